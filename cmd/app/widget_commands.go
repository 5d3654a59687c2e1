package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/KB1RD/matrix-widget-api/cmd/app/commands"
	"github.com/KB1RD/matrix-widget-api/internal/config"
)

func getWidgetCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "check-policies",
			Usage: "Validate WIDGET_POLICIES and preview the decisions for an origin",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "policies",
					Aliases: []string{"p"},
					Usage:   "JSON array of policies (defaults to WIDGET_POLICIES)",
				},
				&cli.StringFlag{
					Name:    "origin",
					Aliases: []string{"o"},
					Usage:   "Widget origin to preview, e.g. https://widget.example.org",
				},
				&cli.StringSliceFlag{
					Name:    "capability",
					Aliases: []string{"c"},
					Usage:   "Capability the widget requests (repeatable)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				policies := cmd.String("policies")
				if policies == "" {
					policies = config.Load().WidgetPolicies
				}

				return commands.RunCheckPolicies(
					cmd.Root().Writer,
					policies,
					cmd.String("origin"),
					cmd.StringSlice("capability"),
					cmd.String("format"),
				)
			},
		},
	}
}
