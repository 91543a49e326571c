// Package commands holds the kong command structs of the catminer CLI.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/catminer/internal/config"
)

// Global context passed to subcommands.
type Global struct {
	Logger     *slog.Logger
	Stdout     io.Writer
	Extractors ExtractorFactory // nil selects DefaultExtractor
}

// CLI definition and global flags.
type CLI struct {
	SettingsFile string           `name:"settings" short:"c" help:"Settings store (YAML or TOML)" default:"catminer.yaml" env:"CATMINER_SETTINGS"`
	NoSettings   bool             `name:"no-settings" help:"Ignore the settings store and any profile"`
	Verbose      bool             `short:"v" help:"Enable verbose logging" env:"CATMINER_VERBOSE"`
	LogFormat    string           `name:"log-format" help:"Log format: text or json" default:"text" env:"CATMINER_LOG_FORMAT"`
	Version      kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run      RunCmd      `cmd:"" help:"Export CAD documents under the input directory"`
	Bat      BatCmd      `cmd:"" help:"Write an automation script that replays an export run"`
	Discover DiscoverCmd `cmd:"" help:"List export candidates and their cache status without extracting"`
	Settings SettingsCmd `cmd:"" help:"Manage the settings store"`
	Watch    WatchCmd    `cmd:"" help:"Export, then re-export whenever the input changes"`
	History  HistoryCmd  `cmd:"" help:"Show recent export runs"`
	Worker   WorkerCmd   `cmd:"" help:"Serve a local extractor command over NATS"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	slog.SetDefault(NewLogger(os.Stderr, c.Verbose, c.LogFormat))
	return nil
}

// NewLogger builds the process logger.
func NewLogger(w io.Writer, verbose bool, format string) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if config.NormalizeLogFormat(format) == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (g *Global) stdout() io.Writer {
	if g == nil || g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

func (g *Global) extractors() ExtractorFactory {
	if g == nil || g.Extractors == nil {
		return DefaultExtractor
	}
	return g.Extractors
}
