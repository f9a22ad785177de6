package drafts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"xpost-studio/internal/adapters/intent"
	"xpost-studio/internal/domain"
	"xpost-studio/internal/infra/metrics"
)

// Service генерирует, редактирует и сохраняет черновики.
type Service struct {
	generator     domain.Generator
	posts         domain.PostRepo
	logger        zerolog.Logger
	remoteTimeout time.Duration
	now           func() time.Time
}

// NewService создаёт сервис черновиков.
func NewService(generator domain.Generator, posts domain.PostRepo, logger zerolog.Logger, remoteTimeout time.Duration) *Service {
	if remoteTimeout <= 0 {
		remoteTimeout = 60 * time.Second
	}
	return &Service{
		generator:     generator,
		posts:         posts,
		logger:        logger.With().Str("component", "drafts").Logger(),
		remoteTimeout: remoteTimeout,
		now:           time.Now,
	}
}

// Generate проверяет ввод и запрашивает черновики у API генерации.
// Длина и признак лимита пересчитываются локально.
func (s *Service) Generate(ctx context.Context, prompt, tone, postType string) ([]domain.Draft, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.Invalid("prompt", "Please enter a topic or prompt")
	}
	parsedTone, err := domain.ParseTone(tone)
	if err != nil {
		return nil, err
	}
	parsedType, err := domain.ParsePostType(postType)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()

	start := time.Now()
	generated, err := s.generator.GeneratePosts(ctx, domain.GenerateRequest{Prompt: prompt, Tone: parsedTone, PostType: parsedType})
	if err != nil {
		s.logger.Warn().Err(err).Str("post_type", string(parsedType)).Msg("генерация не удалась")
		return nil, domain.Remote("generate", err)
	}
	drafts := lo.Map(generated, func(d domain.Draft, _ int) domain.Draft {
		return domain.NewDraft(d.Content)
	})
	metrics.ObserveGeneration(string(parsedType), string(parsedTone), time.Since(start), len(drafts))

	spec := parsedType.Spec()
	if len(drafts) < spec.MinPosts || len(drafts) > spec.MaxPosts {
		s.logger.Debug().Int("drafts", len(drafts)).Str("post_type", string(parsedType)).Msg("число черновиков вне ожидаемого диапазона")
	}
	return drafts, nil
}

// Edit принимает правку черновика. Пустой текст даёт ошибку валидации.
func (s *Service) Edit(content string) (domain.Draft, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Draft{}, domain.Invalid("content", "Post content cannot be empty")
	}
	return domain.NewDraft(content), nil
}

// Split разбивает длинный текст на черновики в пределах лимита.
func (s *Service) Split(content string) ([]domain.Draft, error) {
	parts := intent.Split(content, domain.DraftSoftLimit)
	if len(parts) == 0 {
		return nil, domain.Invalid("content", "Post content cannot be empty")
	}
	return lo.Map(parts, func(part string, _ int) domain.Draft {
		return domain.NewDraft(part)
	}), nil
}

// SaveThread сохраняет черновики по одному под общим threadID.
// Пустой threadID заменяется новым uuid. Метки времени возрастают на
// миллисекунду, чтобы порядок в треде совпадал с порядком черновиков.
func (s *Service) SaveThread(ctx context.Context, userID, threadID string, contents []string) ([]domain.Post, error) {
	contents = lo.Filter(contents, func(c string, _ int) bool {
		return strings.TrimSpace(c) != ""
	})
	if len(contents) == 0 {
		return nil, domain.Invalid("posts", "No posts to save")
	}
	if threadID == "" {
		threadID = uuid.NewString()
	}

	base := s.now().UTC()
	saved := make([]domain.Post, 0, len(contents))
	for i, content := range contents {
		callCtx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
		post, err := s.posts.CreatePost(callCtx, domain.Post{
			UserID:    userID,
			Content:   content,
			ThreadID:  threadID,
			CreatedAt: domain.FormatTimestamp(base.Add(time.Duration(i) * time.Millisecond)),
		})
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Str("thread_id", threadID).Int("saved", len(saved)).Msg("сохранение треда прервано")
			return saved, domain.Remote("save thread", err)
		}
		saved = append(saved, post)
	}
	metrics.IncSavedThread()
	s.logger.Info().Str("user_id", userID).Str("thread_id", threadID).Int("posts", len(saved)).Msg("тред сохранён")
	return saved, nil
}

// Health возвращает состояние API генерации. Ошибка превращается в статус ERROR.
func (s *Service) Health(ctx context.Context) domain.BackendHealth {
	ctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	health, err := s.generator.Health(ctx)
	if err != nil {
		return domain.BackendHealth{Status: "ERROR", Error: err.Error()}
	}
	return health
}

// TestKey проверяет ключ API генерации. Ошибка превращается в success=false.
func (s *Service) TestKey(ctx context.Context) domain.KeyCheck {
	ctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	check, err := s.generator.TestKey(ctx)
	if err != nil {
		return domain.KeyCheck{Success: false, Error: err.Error()}
	}
	return check
}
