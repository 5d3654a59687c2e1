package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/KB1RD/matrix-widget-api/cmd/app/commands"
	"github.com/KB1RD/matrix-widget-api/internal/app"
	"github.com/KB1RD/matrix-widget-api/internal/config"
)

// withContainer builds a container from the environment and shuts it down
// once fn returns.
func withContainer(ctx context.Context, fn func(cfg *config.Config, container *app.Container) error) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	defer func() { _ = container.Shutdown(ctx) }()

	return fn(cfg, container)
}

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Serve the widget API until SIGINT or SIGTERM",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, app.NewContainer(config.Load()), version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Create or upgrade the room event and audit log tables",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(cfg *config.Config, container *app.Container) error {
					return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
				})
			},
		},
		{
			Name:  "clean-audit-logs",
			Usage: "Apply audit log retention by deleting decisions older than --days",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:     "days",
					Aliases:  []string{"d"},
					Required: true,
					Usage:    "Retention window in days",
				},
				&cli.BoolFlag{
					Name:    "dry-run",
					Aliases: []string{"n"},
					Usage:   "Only count the logs that would be deleted",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(cfg *config.Config, container *app.Container) error {
					auditLogUseCase, err := container.AuditLogUseCase()
					if err != nil {
						return err
					}

					return commands.RunCleanAuditLogs(
						ctx,
						auditLogUseCase,
						container.Logger(),
						cmd.Root().Writer,
						int(cmd.Int("days")),
						cmd.Bool("dry-run"),
						cmd.String("format"),
					)
				})
			},
		},
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}
