package commands

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/catminer/internal/config"
	ferrors "git.home.luguber.info/inful/catminer/internal/foundation/errors"
)

// SettingsCmd groups the settings store subcommands.
type SettingsCmd struct {
	Init SettingsInitCmd `cmd:"" help:"Write an example settings store"`
	Show SettingsShowCmd `cmd:"" help:"Print the effective settings of a profile"`
	List SettingsListCmd `cmd:"" help:"List the profiles in the settings store"`
}

// SettingsInitCmd implements 'settings init'.
type SettingsInitCmd struct {
	Force bool `help:"Overwrite an existing settings store"`
}

func (s *SettingsInitCmd) Run(g *Global, root *CLI) error {
	path := root.SettingsFile
	if err := config.InitStore(path, s.Force); err != nil {
		return ferrors.InvalidConfig("cannot initialize settings store").WithCause(err).WithContext("store", path).Build()
	}
	_, err := fmt.Fprintf(g.stdout(), "Wrote example settings store to %s\n", path)
	return err
}

// SettingsShowCmd implements 'settings show'.
type SettingsShowCmd struct {
	ConfigFlags `embed:""`

	Output string `name:"output-format" help:"Rendering: yaml or toml" default:"yaml" enum:"yaml,toml"`
}

func (s *SettingsShowCmd) Run(g *Global, root *CLI) error {
	cfg, err := s.Resolve(root)
	if err != nil {
		return err
	}
	profile := cfg.Profile()
	if profile == "" {
		profile = "default"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# effective settings, profile: %s\n", profile)
	layer := cfg.Layer()
	switch s.Output {
	case "toml":
		err = toml.NewEncoder(&buf).Encode(layer)
	default:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		err = enc.Encode(layer)
		if err == nil {
			err = enc.Close()
		}
	}
	if err != nil {
		return ferrors.InternalError("cannot render settings").WithCause(err).Build()
	}
	_, err = g.stdout().Write(buf.Bytes())
	return err
}

// SettingsListCmd implements 'settings list'.
type SettingsListCmd struct{}

func (s *SettingsListCmd) Run(g *Global, root *CLI) error {
	store, err := loadStore(root)
	if err != nil {
		return err
	}
	out := g.stdout()
	if store.Default != nil {
		if _, err := fmt.Fprintln(out, "default"); err != nil {
			return err
		}
	}
	for _, name := range store.ProfileNames() {
		if _, err := fmt.Fprintln(out, name); err != nil {
			return err
		}
	}
	return nil
}
