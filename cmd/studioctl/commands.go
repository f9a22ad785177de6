package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"xpost-studio/internal/adapters/account"
	"xpost-studio/internal/adapters/docstore"
	"xpost-studio/internal/adapters/repo"
	"xpost-studio/internal/domain"
	"xpost-studio/internal/infra/cache"
	"xpost-studio/internal/infra/config"
	logpkg "xpost-studio/internal/infra/log"
	"xpost-studio/internal/usecase/threads"
	"xpost-studio/internal/usecase/welcome"
)

// env — подключения, общие для команд.
type env struct {
	logger zerolog.Logger
	cfg    config.AppConfig
	store  docstore.Store
	close  func()
}

func openEnv(ctx context.Context) (*env, error) {
	cfg := config.Load()
	logger := logpkg.NewLogger(cfg.AppEnv)
	store, closeFn, err := docstore.Open(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	return &env{logger: logger, cfg: cfg, store: store, close: closeFn}, nil
}

func withEnv(fn func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := openEnv(c.Context)
		if err != nil {
			return err
		}
		defer e.close()
		return fn(c, e)
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{Name: "user", Usage: "ID пользователя", Required: true}
}

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Создать таблицы и индексы хранилища",
		Action: withEnv(func(c *cli.Context, e *env) error {
			if err := e.store.EnsureSchema(c.Context); err != nil {
				return fmt.Errorf("подготовка схемы: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "schema ready (%s)\n", e.cfg.Store.Driver)
			return nil
		}),
	}
}

func threadsCmd() *cli.Command {
	return &cli.Command{
		Name:  "threads",
		Usage: "Показать треды пользователя",
		Flags: []cli.Flag{userFlag()},
		Action: withEnv(func(c *cli.Context, e *env) error {
			posts, err := repo.NewPosts(e.store).ListByUser(c.Context, c.String("user"))
			if err != nil {
				return fmt.Errorf("загрузка постов: %w", err)
			}
			printThreads(c.App.Writer, threads.Aggregate(posts))
			return nil
		}),
	}
}

func printThreads(w io.Writer, list []domain.Thread) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no threads")
		return
	}
	for _, t := range list {
		fmt.Fprintf(w, "%s  posts=%d  updated=%s\n", t.ThreadID, len(t.Posts), domain.FormatTimestamp(t.LastUpdated))
		for i, p := range t.Posts {
			fmt.Fprintf(w, "  %d/%d %s\n", i+1, len(t.Posts), p.Content)
		}
	}
}

func welcomeResetCmd() *cli.Command {
	return &cli.Command{
		Name:  "welcome-reset",
		Usage: "Снова показать пользователю приветствие",
		Flags: []cli.Flag{userFlag()},
		Action: withEnv(func(c *cli.Context, e *env) error {
			userID := c.String("user")
			if err := repo.NewProfiles(e.store).SetHasSeenWelcome(c.Context, userID, false); err != nil {
				return fmt.Errorf("сброс приветствия: %w", err)
			}
			memo, closeCache, err := cache.Open(c.Context, e.logger, e.cfg.RedisAddr)
			if err != nil {
				return err
			}
			defer closeCache()
			welcome.NewService(repo.NewProfiles(e.store), memo, e.logger, welcome.Options{}).Forget(c.Context, userID)
			fmt.Fprintf(c.App.Writer, "welcome reset for %s\n", userID)
			return nil
		}),
	}
}

func statsCmd() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Число документов по коллекциям",
		Action: withEnv(func(c *cli.Context, e *env) error {
			counts, err := e.store.CountByCollection(c.Context)
			if err != nil {
				return fmt.Errorf("подсчёт документов: %w", err)
			}
			printCounts(c.App.Writer, counts)
			return nil
		}),
	}
}

func printCounts(w io.Writer, counts map[string]int64) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%-10s %d\n", name, counts[name])
	}
}

func resetPasswordCmd() *cli.Command {
	return &cli.Command{
		Name:  "reset-password",
		Usage: "Задать новый пароль аккаунта",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"STUDIOCTL_PASSWORD"}},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			tokens, err := account.NewTokens(e.cfg.Auth.JWTSecret, e.cfg.Auth.SessionTTL)
			if err != nil {
				return err
			}
			memo, closeCache, err := cache.Open(c.Context, e.logger, e.cfg.RedisAddr)
			if err != nil {
				return err
			}
			defer closeCache()
			accounts := account.NewService(e.store, tokens, memo, e.logger)
			if err := accounts.ResetPassword(c.Context, c.String("email"), c.String("password")); err != nil {
				return fmt.Errorf("смена пароля: %w", err)
			}
			fmt.Fprintln(c.App.Writer, "password updated")
			return nil
		}),
	}
}
