package threads

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"xpost-studio/internal/domain"
	"xpost-studio/internal/infra/metrics"
)

// Статусы завершения удаления.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeIgnored    = "ignored"
)

// DeleteOutcome описывает результат DeleteThread.
// После отката RemoteDeleted может быть непустым: эти документы уже удалены в
// хранилище, хотя тред снова показан целиком до следующей загрузки.
type DeleteOutcome struct {
	ThreadID      string   `json:"threadId"`
	Status        string   `json:"status"`
	RemoteDeleted []string `json:"remoteDeleted"`
	Err           error    `json:"-"`
}

// Options задаёт тайминги сервиса.
type Options struct {
	RemoteTimeout time.Duration
	ErrorTTL      time.Duration
	// PageIdleTTL — через сколько без обращений страница закрывается и забывается.
	PageIdleTTL time.Duration
	MaxPages    int
}

// Service держит страницы тредов пользователей и выполняет удаление с откатом.
type Service struct {
	posts  domain.PostRepo
	logger zerolog.Logger
	opts   Options

	mu    sync.Mutex
	pages *expirable.LRU[string, *Page]
	after afterFunc
}

// NewService создаёт сервис тредов.
func NewService(posts domain.PostRepo, logger zerolog.Logger, opts Options) *Service {
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = 10 * time.Second
	}
	if opts.ErrorTTL <= 0 {
		opts.ErrorTTL = 3 * time.Second
	}
	if opts.PageIdleTTL <= 0 {
		opts.PageIdleTTL = time.Hour
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10_000
	}
	onEvict := func(_ string, page *Page) { page.Close() }
	return &Service{
		posts:  posts,
		logger: logger.With().Str("component", "threads").Logger(),
		opts:   opts,
		pages:  expirable.NewLRU[string, *Page](opts.MaxPages, onEvict, opts.PageIdleTTL),
		after:  realAfterFunc,
	}
}

// remoteCtx отвязывает вызов от отмены родителя: начатый удалённый вызов
// доводится до конца или до таймаута.
func (s *Service) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.opts.RemoteTimeout)
}

// Load загружает посты пользователя, собирает треды и заменяет страницу.
// Прежняя страница закрывается.
func (s *Service) Load(ctx context.Context, userID string) (PageState, error) {
	callCtx, cancel := s.remoteCtx(ctx)
	defer cancel()

	posts, err := s.posts.ListByUser(callCtx, userID)
	if err != nil {
		return PageState{}, domain.Remote("list posts", err)
	}
	threads := Aggregate(posts)
	page := NewPage(threads, s.opts.ErrorTTL)
	page.after = s.after

	s.mu.Lock()
	if old, ok := s.pages.Peek(userID); ok {
		old.Close()
	}
	s.pages.Add(userID, page)
	s.mu.Unlock()

	s.logger.Debug().Str("user_id", userID).Int("posts", len(posts)).Int("threads", len(threads)).Msg("страница тредов загружена")
	return page.State(), nil
}

// Page возвращает текущую страницу пользователя и продлевает ей жизнь.
func (s *Service) Page(userID string) (*Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages.Get(userID)
	if !ok {
		return nil, false
	}
	s.pages.Add(userID, page)
	return page, true
}

// Drop закрывает и забывает страницу пользователя, например при выходе.
func (s *Service) Drop(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages.Remove(userID)
}

// DeleteThread удаляет тред со страницы пользователя.
// Посты удаляются по одному, первая ошибка останавливает цикл и откатывает страницу.
// Отсутствующий в хранилище пост считается удалённым, поэтому повтор после
// частичного сбоя доходит до конца.
// Запрос на тред, которого нет на странице или который уже удаляется, игнорируется.
func (s *Service) DeleteThread(ctx context.Context, userID, threadID string) DeleteOutcome {
	outcome := DeleteOutcome{ThreadID: threadID, Status: OutcomeIgnored, RemoteDeleted: []string{}}

	page, ok := s.Page(userID)
	if !ok {
		metrics.IncThreadDeletion(OutcomeIgnored)
		return outcome
	}
	deletion, ok := page.Begin(threadID)
	if !ok {
		metrics.IncThreadDeletion(OutcomeIgnored)
		return outcome
	}

	for _, post := range deletion.Thread().Posts {
		callCtx, cancel := s.remoteCtx(ctx)
		err := s.posts.DeletePost(callCtx, post.ID)
		cancel()
		if errors.Is(err, domain.ErrNotFound) {
			// Пост уже удалён прошлой попыткой.
			err = nil
		}
		if err != nil {
			deletion.Rollback()
			outcome.Status = OutcomeRolledBack
			outcome.Err = domain.Remote("delete thread", fmt.Errorf("пост %s: %w", post.ID, err))
			metrics.IncThreadDeletion(OutcomeRolledBack)
			s.logger.Warn().Err(err).
				Str("user_id", userID).
				Str("thread_id", threadID).
				Strs("remote_deleted", outcome.RemoteDeleted).
				Msg("удаление треда откачено")
			return outcome
		}
		outcome.RemoteDeleted = append(outcome.RemoteDeleted, post.ID)
	}

	deletion.Commit()
	outcome.Status = OutcomeCommitted
	metrics.IncThreadDeletion(OutcomeCommitted)
	s.logger.Info().Str("user_id", userID).Str("thread_id", threadID).Int("posts", len(outcome.RemoteDeleted)).Msg("тред удалён")
	return outcome
}
