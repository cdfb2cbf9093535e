package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lockersync/internal/deps"
	"lockersync/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check binaries, directories, and locker connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := preflight.CheckSystemDeps(cfg)
			results := preflight.RunAll(cmd.Context(), cfg)

			rows := make([][]string, 0, len(statuses)+len(results))
			for _, s := range statuses {
				rows = append(rows, []string{s.Name, depState(s), depDetail(s)})
			}
			for _, r := range results {
				state := "ok"
				if !r.Passed {
					state = "FAIL"
				}
				rows = append(rows, []string{r.Name, state, r.Detail})
			}
			failed := len(deps.MissingRequired(statuses)) + len(preflight.Failures(results))

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]column{
				{Header: "Check"},
				{Header: "State"},
				{Header: "Detail", MaxWidth: 70},
			}, rows))
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}

func depState(s deps.Status) string {
	switch {
	case s.Available:
		return "ok"
	case s.Optional:
		return "missing (optional)"
	default:
		return "FAIL"
	}
}

func depDetail(s deps.Status) string {
	if s.Available {
		return s.Path
	}
	if s.Description != "" {
		return s.Detail + "; " + s.Description
	}
	return s.Detail
}
