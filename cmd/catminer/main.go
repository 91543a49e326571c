package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/catminer/cmd/catminer/commands"
	"git.home.luguber.info/inful/catminer/internal/config"
	ferrors "git.home.luguber.info/inful/catminer/internal/foundation/errors"
	"git.home.luguber.info/inful/catminer/internal/version"
)

func main() {
	// .env files feed the env-tagged flags, so they load before parsing.
	loaded, envErr := config.LoadEnvFiles()

	var cli commands.CLI
	vars := kong.Vars(commands.Vars())
	vars["version"] = version.String()
	kctx := kong.Parse(&cli,
		kong.Name("catminer"),
		kong.Description("Export CAD design files to XML or JSON, skipping files that did not change."),
		kong.UsageOnError(),
		vars,
	)

	if envErr != nil {
		slog.Warn("Failed to load .env file", "error", envErr)
	}
	for _, f := range loaded {
		slog.Debug("Loaded environment file", "file", f)
	}

	global := &commands.Global{Logger: slog.Default(), Stdout: os.Stdout}
	err := kctx.Run(global, &cli)
	ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
