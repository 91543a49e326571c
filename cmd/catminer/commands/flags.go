package commands

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/catminer/internal/config"
	ferrors "git.home.luguber.info/inful/catminer/internal/foundation/errors"
	"git.home.luguber.info/inful/catminer/internal/logfields"
)

// Switch is a boolean flag that remembers whether it was given, so
// "--force-export=false" turns off what a profile switched on while an
// absent flag leaves the profile alone.
type Switch struct {
	Set   bool
	Value bool
}

// On is a given, enabled switch.
func On() Switch { return Switch{Set: true, Value: true} }

// Decode reads "--flag" as true and "--flag=<bool>" as given.
func (s *Switch) Decode(ctx *kong.DecodeContext) error {
	v := true
	if ctx.Scan.Peek().Type == kong.FlagValueToken {
		token := ctx.Scan.Pop()
		switch x := token.Value.(type) {
		case bool:
			v = x
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return fmt.Errorf("expected a boolean but got %q", x)
			}
			v = b
		default:
			return fmt.Errorf("expected a boolean but got %v", x)
		}
	}
	*s = Switch{Set: true, Value: v}
	return nil
}

// IsBool lets the flag appear without a value.
func (s *Switch) IsBool() bool { return true }

// ConfigFlags are the settings every export-related command accepts. Unset
// flags leave the store and profile values alone.
type ConfigFlags struct {
	InDir       string   `short:"i" name:"in-dir" help:"Input directory to crawl" env:"CATMINER_IN_DIR"`
	OutDir      string   `short:"o" name:"out-dir" help:"Output directory" env:"CATMINER_OUT_DIR"`
	FileType    string   `short:"t" name:"file-type" help:"Output format: xml or json" env:"CATMINER_FILE_TYPE"`
	ForceExport Switch   `short:"f" name:"force-export" help:"Export every file regardless of the skip cache (--force-export=false overrides the settings store)"`
	NoSkips     Switch   `name:"no-skips" help:"Do not skip unchanged files; records are still written"`
	ActiveDoc   Switch   `name:"active-doc" help:"Export the whole active document, not only its root"`
	Profile     string   `short:"u" name:"user-settings" help:"Settings profile; a number N means UserSettings.N" env:"CATMINER_PROFILE"`
	SkipExt     []string `name:"skip-ext" help:"Extensions to ignore (repeatable)"`
	SkipKeyword []string `name:"skip-keyword" help:"Skip files whose relative path contains this text (repeatable)"`
	NoArchives  Switch   `name:"no-archives" help:"Do not look inside zip archives"`
	CacheFile   string   `name:"cache-file" help:"Skip cache location" env:"CATMINER_CACHE_FILE"`
	HistoryDB   string   `name:"history-db" help:"SQLite run history database" env:"CATMINER_HISTORY_DB"`

	Extractor        string   `name:"extractor" help:"Extractor adapter: exec or nats" env:"CATMINER_EXTRACTOR"`
	ExtractorCmd     string   `name:"extractor-cmd" help:"Extractor command (exec adapter)" env:"CATMINER_EXTRACTOR_CMD"`
	ExtractorArg     []string `name:"extractor-arg" help:"Extra extractor argument (repeatable)"`
	ExtractorTimeout string   `name:"extractor-timeout" help:"Timeout per extractor call, e.g. 5m" env:"CATMINER_EXTRACTOR_TIMEOUT"`
	NATSURL          string   `name:"nats-url" help:"NATS server URL (nats adapter)" env:"CATMINER_NATS_URL"`
	NATSSubject      string   `name:"nats-subject" help:"NATS subject prefix (nats adapter)" env:"CATMINER_NATS_SUBJECT"`
}

// Overrides converts the set flags into the highest-precedence layer.
func (f ConfigFlags) Overrides() config.Overrides {
	var o config.Overrides
	str := func(dst **string, v string) {
		if v != "" {
			*dst = config.Ptr(v)
		}
	}
	sw := func(dst **bool, v Switch) {
		if v.Set {
			*dst = config.Ptr(v.Value)
		}
	}
	str(&o.InputDirectory, f.InDir)
	str(&o.OutputDirectory, f.OutDir)
	str(&o.FileType, f.FileType)
	sw(&o.ForceExport, f.ForceExport)
	sw(&o.NoSkips, f.NoSkips)
	sw(&o.ActiveDocument, f.ActiveDoc)
	if f.NoArchives.Set {
		o.OpenArchives = config.Ptr(!f.NoArchives.Value)
	}
	if len(f.SkipExt) > 0 {
		o.SkipExtensions = f.SkipExt
	}
	if len(f.SkipKeyword) > 0 {
		o.SkipKeywords = f.SkipKeyword
	}
	str(&o.CacheFile, f.CacheFile)
	str(&o.HistoryDB, f.HistoryDB)
	str(&o.Extractor.Kind, f.Extractor)
	str(&o.Extractor.Command, f.ExtractorCmd)
	if len(f.ExtractorArg) > 0 {
		o.Extractor.Args = f.ExtractorArg
	}
	str(&o.Extractor.Timeout, f.ExtractorTimeout)
	str(&o.Extractor.NATSURL, f.NATSURL)
	str(&o.Extractor.Subject, f.NATSSubject)
	return o
}

// Resolve loads the settings store and merges it with the flags.
func (f ConfigFlags) Resolve(root *CLI) (config.EffectiveConfig, error) {
	return resolve(root, f.Profile, f.Overrides())
}

func resolve(root *CLI, profile string, overrides config.Overrides) (config.EffectiveConfig, error) {
	store, err := loadStore(root)
	if err != nil {
		return config.EffectiveConfig{}, err
	}
	if root != nil && root.NoSettings && profile != "" {
		slog.Warn("Ignoring settings profile, the settings store is disabled", logfields.Profile(profile))
		profile = ""
	}
	return config.Resolve(store, profile, overrides)
}

// loadStore reads the settings store. The default location is optional; an
// explicitly named store must exist. --no-settings yields an empty store.
func loadStore(root *CLI) (*config.Store, error) {
	if root != nil && root.NoSettings {
		return &config.Store{}, nil
	}
	path := config.DefaultStorePath
	if root != nil && root.SettingsFile != "" {
		path = root.SettingsFile
	}
	store, err := config.LoadStore(path, path != config.DefaultStorePath)
	if err != nil {
		return nil, ferrors.InvalidConfig("cannot load settings store").
			WithCause(err).
			WithContext("store", path).
			Build()
	}
	return store, nil
}
