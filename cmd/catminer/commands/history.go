package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	ferrors "git.home.luguber.info/inful/catminer/internal/foundation/errors"
	"git.home.luguber.info/inful/catminer/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	DB       string `name:"db" help:"Run history database (default: history_db from the settings)" env:"CATMINER_HISTORY_DB"`
	Profile  string `short:"u" name:"user-settings" help:"Settings profile to read history_db from"`
	Limit    int    `short:"n" help:"Number of runs to show" default:"10"`
	Failures bool   `help:"List the failures of each run"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	path := h.DB
	if path == "" {
		flags := ConfigFlags{Profile: h.Profile}
		cfg, err := flags.Resolve(root)
		if err != nil {
			return err
		}
		path = cfg.HistoryDB()
	}
	if path == "" {
		return ferrors.ValidationError("no run history configured; pass --db or set history_db").Build()
	}

	store, err := history.NewSQLiteStore(path)
	if err != nil {
		return ferrors.FileSystemError("cannot open run history").WithCause(err).WithContext("path", path).Build()
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	runs, err := store.Recent(ctx, h.Limit)
	if err != nil {
		return ferrors.FileSystemError("cannot read run history").WithCause(err).Build()
	}

	tw := tabwriter.NewWriter(g.stdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tRUN\tPROFILE\tFORMAT\tOUTCOME\tEXPORTED\tSKIPPED\tFAILED\tDURATION")
	for _, r := range runs {
		profile := r.Profile
		if profile == "" {
			profile = "default"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.Started.Local().Format(time.DateTime), r.RunID, profile, r.Format, r.Outcome,
			r.Exported, r.Skipped, r.Failed, r.Duration().Round(time.Millisecond))
		if !h.Failures || r.Failed == 0 {
			continue
		}
		failures, err := store.Failures(ctx, r.RunID)
		if err != nil {
			return ferrors.FileSystemError("cannot read run failures").WithCause(err).Build()
		}
		for _, f := range failures {
			fmt.Fprintf(tw, "\t  %s: [%s] %s\t\t\t\t\t\t\t\n", f.Path, f.Category, f.Reason)
		}
	}
	return tw.Flush()
}
