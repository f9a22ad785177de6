package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"xpost-studio/internal/adapters/account"
	"xpost-studio/internal/adapters/api"
	"xpost-studio/internal/adapters/docstore"
	"xpost-studio/internal/adapters/generator"
	"xpost-studio/internal/adapters/repo"
	"xpost-studio/internal/domain"
	"xpost-studio/internal/infra/cache"
	"xpost-studio/internal/infra/config"
	httpinfra "xpost-studio/internal/infra/http"
	logpkg "xpost-studio/internal/infra/log"
	"xpost-studio/internal/infra/metrics"
	"xpost-studio/internal/usecase/drafts"
	"xpost-studio/internal/usecase/session"
	"xpost-studio/internal/usecase/threads"
	"xpost-studio/internal/usecase/welcome"
)

func main() {
	cfg := config.Load()
	logger := logpkg.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := docstore.Open(ctx, logger, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к хранилищу")
	}
	defer closeStore()
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось подготовить схему")
	}

	memo, closeCache, err := cache.Open(ctx, logger, cfg.RedisAddr)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к кэшу")
	}
	defer closeCache()

	tokens, err := account.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: JWT_SECRET не задан")
	}
	accounts := account.NewService(store, tokens, memo, logpkg.Component(logger, "account"))

	var oauth domain.OAuthProvider
	if cfg.Auth.Google.ClientID != "" {
		g := cfg.Auth.Google
		oauth = account.NewGoogle(g.ClientID, g.ClientSecret, g.RedirectURL, memo, accounts)
	} else {
		logger.Info().Msg("api: GOOGLE_CLIENT_ID не задан, вход через Google отключён")
	}

	genClient, err := generator.New(cfg.Generator.BaseURL, generator.WithTimeout(cfg.Generator.Timeout))
	if err != nil {
		logger.Fatal().Err(err).Msg("api: некорректный адрес API генерации")
	}

	posts := repo.NewPosts(store)
	threadsUC := threads.NewService(posts, logger, threads.Options{
		RemoteTimeout: cfg.Threads.RemoteTimeout,
		ErrorTTL:      cfg.Threads.ErrorTTL,
		PageIdleTTL:   cfg.Threads.PageIdleTTL,
	})
	welcomeUC := welcome.NewService(repo.NewProfiles(store), memo, logger, welcome.Options{
		MemoTTL:       cfg.Welcome.MemoTTL,
		RemoteTimeout: cfg.Threads.RemoteTimeout,
	})
	draftsUC := drafts.NewService(genClient, posts, logger, cfg.Threads.RemoteTimeout)
	sessionUC := session.NewService(accounts, oauth, logger,
		func(_ context.Context, userID string) { threadsUC.Drop(userID) },
		welcomeUC.Forget,
	)

	handler := api.NewHandler(logger, api.Config{
		SuccessRedirect: cfg.Auth.SuccessRedirect,
		FailureRedirect: cfg.Auth.FailureRedirect,
		SecureCookies:   cfg.AppEnv != "dev",
	}, sessionUC, welcomeUC, draftsUC, threadsUC)

	srv := httpinfra.NewServer(logger, cfg.CORSOrigin)
	handler.Routes(srv.Router)

	metrics.StartServer(ctx, logger, cfg.MetricsAddr, prometheus.DefaultGatherer)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf(":%d", cfg.Port))
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("api: HTTP сервер остановлен")
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: graceful shutdown failed")
	}
	logger.Info().Msg("api: остановлен")
}
