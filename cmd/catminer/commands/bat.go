package commands

import (
	"fmt"

	"git.home.luguber.info/inful/catminer/internal/config"
	ferrors "git.home.luguber.info/inful/catminer/internal/foundation/errors"
	"git.home.luguber.info/inful/catminer/internal/script"
)

// BatCmd implements the 'bat' command.
type BatCmd struct {
	ConfigFlags `embed:""`

	Script     string `name:"script" help:"Script path (default: catminer-export[-<profile>].<dialect> in the working directory)"`
	PathStyle  string `name:"path-style" help:"Render paths absolute or relative to the script"`
	Dialect    string `name:"dialect" help:"Script dialect: bat or sh" default:"bat"`
	Executable string `name:"executable" help:"catminer binary the script invokes" default:"catminer"`
}

func (b *BatCmd) Run(g *Global, root *CLI) error {
	dialect, err := script.ParseDialect(b.Dialect)
	if err != nil {
		return ferrors.ValidationError("unsupported script dialect").WithCause(err).Build()
	}

	overrides := b.Overrides()
	if b.PathStyle != "" {
		overrides.PathStyle = config.Ptr(b.PathStyle)
	}
	cfg, err := resolve(root, b.Profile, overrides)
	if err != nil {
		return err
	}

	path := b.Script
	if path == "" {
		path = script.Name(cfg.Profile(), dialect)
	}
	text, err := script.Generate(cfg, script.Options{
		PathStyle:  cfg.PathStyle(),
		ScriptPath: path,
		Dialect:    dialect,
		Executable: b.Executable,
	})
	if err != nil {
		return ferrors.ValidationError("cannot render automation script").WithCause(err).Build()
	}
	if err := script.Write(path, text); err != nil {
		return ferrors.WriteError("cannot write automation script").WithCause(err).WithContext("path", path).Build()
	}
	_, err = fmt.Fprintf(g.stdout(), "Wrote %s script to %s\n", dialect, path)
	return err
}
