// Package script renders a replayable automation script for a resolved
// configuration. The script calls the catminer CLI with every setting spelled
// out, so it does not depend on the settings store that produced it.
package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/catminer/internal/config"
	"git.home.luguber.info/inful/catminer/internal/foundation/normalization"
)

// DefaultExecutable is invoked when Options.Executable is empty.
const DefaultExecutable = "catminer"

// ErrUnsafeValue is returned for values the target shell cannot quote.
var ErrUnsafeValue = errors.New("value cannot be quoted safely")

// Dialect is the script language.
type Dialect string

const (
	DialectBat Dialect = "bat"
	DialectSh  Dialect = "sh"
)

var dialectNormalizer = normalization.NewNormalizer(map[string]Dialect{
	"bat":   DialectBat,
	"cmd":   DialectBat,
	"sh":    DialectSh,
	"shell": DialectSh,
}, DialectBat)

// ParseDialect normalizes a user supplied dialect name.
func ParseDialect(raw string) (Dialect, error) {
	return dialectNormalizer.NormalizeWithError(raw)
}

// Ext is the conventional file extension of the dialect.
func (d Dialect) Ext() string { return "." + string(d) }

// Options control rendering.
type Options struct {
	PathStyle  config.PathStyle
	ScriptPath string // relative paths are anchored at its directory
	Dialect    Dialect
	Executable string
}

type arg struct {
	flag  string
	value string
	path  bool
}

// Generate renders the script text. It touches no files.
func Generate(cfg config.EffectiveConfig, opts Options) (string, error) {
	if opts.Dialect == "" {
		opts.Dialect = DialectBat
	}
	if opts.PathStyle == "" {
		opts.PathStyle = cfg.PathStyle()
	}
	if opts.Executable == "" {
		opts.Executable = DefaultExecutable
	}
	var anchor string
	if opts.PathStyle == config.PathStyleRelative {
		if opts.ScriptPath == "" {
			return "", fmt.Errorf("relative paths need the script location")
		}
		abs, err := filepath.Abs(opts.ScriptPath)
		if err != nil {
			return "", fmt.Errorf("resolve script path: %w", err)
		}
		anchor = filepath.Dir(abs)
	}

	r := renderer{dialect: opts.Dialect, anchor: anchor}
	switch opts.Dialect {
	case DialectBat, DialectSh:
	default:
		return "", fmt.Errorf("unsupported script dialect %q", opts.Dialect)
	}

	exe, err := r.quote(opts.Executable)
	if err != nil {
		return "", fmt.Errorf("executable: %w", err)
	}
	words := []string{exe + " run"}
	for _, a := range arguments(cfg) {
		w := a.flag
		if a.value != "" || a.path {
			v, err := r.value(a)
			if err != nil {
				return "", fmt.Errorf("%s: %w", a.flag, err)
			}
			w += " " + v
		}
		words = append(words, w)
	}
	return r.script(cfg, words), nil
}

// arguments lists the CLI flags reproducing cfg, in a fixed order. The
// settings store is switched off so that every value comes from the script
// and boolean flags only need to be emitted when on.
func arguments(cfg config.EffectiveConfig) []arg {
	args := []arg{
		{flag: "--no-settings"},
		{flag: "--in-dir", value: cfg.InputDir(), path: true},
		{flag: "--out-dir", value: cfg.OutputDir(), path: true},
		{flag: "--file-type", value: string(cfg.Format())},
	}
	if cfg.ForceExport() {
		args = append(args, arg{flag: "--force-export"})
	}
	if !cfg.SkipOptimization() {
		args = append(args, arg{flag: "--no-skips"})
	}
	if cfg.ActiveDocumentOnly() {
		args = append(args, arg{flag: "--active-doc"})
	}
	if !cfg.OpenArchives() {
		args = append(args, arg{flag: "--no-archives"})
	}
	for _, ext := range cfg.SkipExtensions() {
		args = append(args, arg{flag: "--skip-ext", value: ext})
	}
	for _, kw := range cfg.SkipKeywords() {
		args = append(args, arg{flag: "--skip-keyword", value: kw})
	}
	args = append(args, arg{flag: "--cache-file", value: cfg.CacheFile(), path: true})
	if db := cfg.HistoryDB(); db != "" {
		args = append(args, arg{flag: "--history-db", value: db, path: true})
	}

	ex := cfg.Extractor()
	args = append(args,
		arg{flag: "--extractor", value: string(ex.Kind)},
		arg{flag: "--extractor-timeout", value: ex.Timeout.String()},
	)
	switch ex.Kind {
	case config.ExtractorNATS:
		args = append(args,
			arg{flag: "--nats-url", value: ex.NATSURL},
			arg{flag: "--nats-subject", value: ex.Subject},
		)
	default:
		args = append(args, arg{flag: "--extractor-cmd", value: ex.Command})
		for _, a := range ex.Args {
			args = append(args, arg{flag: "--extractor-arg", value: a})
		}
	}
	return args
}

// Write stores the script at path, creating parent directories.
func Write(path, text string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create script directory: %w", err)
		}
	}
	// #nosec G306 -- the script is meant to be executed
	if err := os.WriteFile(path, []byte(text), 0o755); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	return nil
}

// Name returns the default script file name for profile and dialect.
func Name(profile string, d Dialect) string {
	base := "catminer-export"
	if profile != "" {
		base += "-" + strings.Map(func(r rune) rune {
			if r == '/' || r == '\\' || r == ' ' {
				return '_'
			}
			return r
		}, profile)
	}
	return base + d.Ext()
}
