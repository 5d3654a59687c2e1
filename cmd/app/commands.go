package main

import (
	"github.com/urfave/cli/v3"
)

func getCommands(version string) []*cli.Command {
	return append(getSystemCommands(version), getWidgetCommands()...)
}
