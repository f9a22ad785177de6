package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if err := rootApp().Run(os.Args); err != nil {
		logger.Fatal().Err(err).Msg("studioctl")
	}
}

func rootApp() *cli.App {
	return &cli.App{
		Name:  "studioctl",
		Usage: "Обслуживание хранилища студии постов",
		Description: `Команды работают с тем же хранилищем, что и API:
		драйвер и адреса берутся из окружения (.env), например
		DOCSTORE_DRIVER=postgres PG_DSN=postgres://...`,
		Commands: []*cli.Command{
			migrateCmd(),
			threadsCmd(),
			welcomeResetCmd(),
			statsCmd(),
			resetPasswordCmd(),
		},
		Action: func(ctx *cli.Context) error {
			return ctx.App.Run([]string{"", "help"})
		},
	}
}
