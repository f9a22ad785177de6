package welcome

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"xpost-studio/internal/domain"
	"xpost-studio/internal/infra/metrics"
)

const (
	memoShow = "1"
	memoSkip = "0"
)

// Options задаёт тайминги гейта.
type Options struct {
	MemoTTL       time.Duration
	RemoteTimeout time.Duration
}

// Service решает, показывать ли пользователю приветствие. Решение принимается
// один раз за сессию и запоминается по userID.
type Service struct {
	profiles domain.ProfileRepo
	memo     domain.Cache
	logger   zerolog.Logger
	opts     Options
	group    singleflight.Group
	now      func() time.Time
}

// NewService создаёт гейт приветствия.
func NewService(profiles domain.ProfileRepo, memo domain.Cache, logger zerolog.Logger, opts Options) *Service {
	if opts.MemoTTL <= 0 {
		opts.MemoTTL = 24 * time.Hour
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = 10 * time.Second
	}
	return &Service{
		profiles: profiles,
		memo:     memo,
		logger:   logger.With().Str("component", "welcome").Logger(),
		opts:     opts,
		now:      time.Now,
	}
}

func memoKey(userID string) string {
	return "welcome:" + userID
}

func (s *Service) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.opts.RemoteTimeout)
}

func (s *Service) recall(ctx context.Context, userID string) (show bool, ok bool) {
	data, err := s.memo.Get(ctx, memoKey(userID))
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("не удалось прочитать память решения")
		}
		return false, false
	}
	return string(data) == memoShow, true
}

func (s *Service) remember(ctx context.Context, userID string, show bool) {
	value := memoSkip
	if show {
		value = memoShow
	}
	if err := s.memo.Set(ctx, memoKey(userID), []byte(value), s.opts.MemoTTL); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("не удалось запомнить решение")
	}
}

// ShouldShowWelcome возвращает true, если профиля ещё нет (он создаётся) или
// флаг hasSeenWelcome не выставлен. Сбой хранилища даёт false и не запоминается.
func (s *Service) ShouldShowWelcome(ctx context.Context, user domain.User) bool {
	if show, ok := s.recall(ctx, user.ID); ok {
		return show
	}
	v, _, _ := s.group.Do(user.ID, func() (any, error) {
		if show, ok := s.recall(ctx, user.ID); ok {
			return show, nil
		}
		show, err := s.decide(ctx, user)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("проверка профиля не удалась, приветствие пропущено")
			return false, nil
		}
		s.remember(ctx, user.ID, show)
		metrics.IncWelcomeDecision(show)
		return show, nil
	})
	show, _ := v.(bool)
	return show
}

func (s *Service) decide(ctx context.Context, user domain.User) (bool, error) {
	callCtx, cancel := s.remoteCtx(ctx)
	defer cancel()
	profile, found, err := s.profiles.FindByEmail(callCtx, user.Email)
	if err != nil {
		return false, domain.Remote("find profile", err)
	}
	if found {
		return !profile.HasSeenWelcome, nil
	}

	createCtx, cancelCreate := s.remoteCtx(ctx)
	defer cancelCreate()
	method := user.LoginMethod
	if method == "" {
		method = domain.LoginMethodEmail
	}
	created, err := s.profiles.CreateOrGet(createCtx, domain.UserProfile{
		UserID:         user.ID,
		UserName:       user.Name,
		UserEmail:      user.Email,
		CreatedAt:      domain.FormatTimestamp(s.now()),
		LoginMethod:    method,
		HasSeenWelcome: false,
		IsNewUser:      true,
	})
	if err != nil {
		return false, domain.Remote("create profile", err)
	}
	s.logger.Info().Str("user_id", user.ID).Msg("создан профиль пользователя")
	return !created.HasSeenWelcome, nil
}

// MarkWelcomeCompleted выставляет hasSeenWelcome. Ошибки только логируются.
func (s *Service) MarkWelcomeCompleted(ctx context.Context, userID string) {
	callCtx, cancel := s.remoteCtx(ctx)
	defer cancel()
	err := s.profiles.SetHasSeenWelcome(callCtx, userID, true)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.logger.Info().Str("user_id", userID).Msg("профиль не найден, отметка приветствия пропущена")
	case err != nil:
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("не удалось отметить приветствие")
	}
	s.remember(ctx, userID, false)
}

// Forget сбрасывает запомненное решение, например при выходе.
func (s *Service) Forget(ctx context.Context, userID string) {
	if err := s.memo.Del(ctx, memoKey(userID)); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("не удалось сбросить решение")
	}
}
