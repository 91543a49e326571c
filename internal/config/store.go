package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultStorePath is the settings store looked up when -c is not given.
const DefaultStorePath = "catminer.yaml"

// userSettingsPrefix is the profile naming used by numbered user settings.
const userSettingsPrefix = "UserSettings."

var numericProfile = regexp.MustCompile(`^[0-9]+$`)

// Store is the persisted, key-grouped profile store. The `default` section
// applies beneath every named profile.
type Store struct {
	Default  *Layer           `yaml:"default,omitempty" toml:"default,omitempty"`
	Profiles map[string]Layer `yaml:"profiles,omitempty" toml:"profiles,omitempty"`

	path string
}

// Path is the file the store was loaded from, empty for an in-memory store.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Profile looks up a named profile. A purely numeric name N is an alias for
// "UserSettings.N".
func (s *Store) Profile(name string) (Layer, bool) {
	_, l, ok := s.lookup(name)
	return l, ok
}

// lookup resolves name, including the numeric alias, to its stored key.
func (s *Store) lookup(name string) (string, Layer, bool) {
	if s == nil || s.Profiles == nil {
		return "", Layer{}, false
	}
	if l, ok := s.Profiles[name]; ok {
		return name, l, true
	}
	if numericProfile.MatchString(name) {
		key := userSettingsPrefix + name
		l, ok := s.Profiles[key]
		return key, l, ok
	}
	return "", Layer{}, false
}

// ProfileNames returns the stored profile names, sorted.
func (s *Store) ProfileNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Profiles))
	for n := range s.Profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoadStore reads a YAML or TOML settings store (chosen by extension).
// A missing file yields an empty store unless required is set.
func LoadStore(path string, required bool) (*Store, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator supplied
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return &Store{path: path}, nil
		}
		return nil, fmt.Errorf("read settings store %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	store := &Store{path: path}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(expanded, store); err != nil {
			return nil, fmt.Errorf("decode settings store %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), store); err != nil {
			return nil, fmt.Errorf("decode settings store %s: %w", path, err)
		}
	}
	return store, nil
}

// InitStore writes an example settings store. It refuses to overwrite an
// existing file unless force is set.
func InitStore(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("settings store already exists: %s (use --force to overwrite)", path)
	}

	example := Store{
		Default: &Layer{
			InputDirectory:  Ptr("./input"),
			OutputDirectory: Ptr("./output"),
			FileType:        Ptr(string(FormatXML)),
			ForceExport:     Ptr(false),
			NoSkips:         Ptr(false),
			ActiveDocument:  Ptr(false),
		},
		Profiles: map[string]Layer{
			userSettingsPrefix + "1": {
				FileType:       Ptr(string(FormatJSON)),
				SkipExtensions: []string{"CATDrawing"},
				SkipKeywords:   []string{"backup", "old"},
			},
		},
	}

	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.NewEncoder(&buf).Encode(example); err != nil {
			return fmt.Errorf("encode settings store: %w", err)
		}
	default:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(example); err != nil {
			return fmt.Errorf("encode settings store: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode settings store: %w", err)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create settings directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write settings store: %w", err)
	}
	return nil
}
