package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"lockersync/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent upload batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			batches, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, batches)
			}
			if len(batches) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No upload batches recorded yet")
				return nil
			}
			rows := make([][]string, 0, len(batches))
			for _, b := range batches {
				rows = append(rows, []string{
					shortID(b.ID),
					b.StartedAt.Local().Format(time.DateTime),
					b.FinishedAt.Sub(b.StartedAt).Round(time.Second).String(),
					b.UploaderName,
					strconv.Itoa(b.Uploaded),
					strconv.Itoa(b.Matched),
					strconv.Itoa(b.NotUploaded),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
				{Header: "Batch"},
				{Header: "Started"},
				{Header: "Took", Right: true},
				{Header: "Uploader"},
				{Header: "Uploaded", Right: true},
				{Header: "Matched", Right: true},
				{Header: "Not uploaded", Right: true},
			}, rows))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of batches to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print batches as JSON")

	cmd.AddCommand(newHistoryShowCommand(ctx))
	cmd.AddCommand(newHistoryFileCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show per-file outcomes of one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			batchID, err := resolveBatchID(cmd, store, args[0])
			if err != nil {
				return err
			}
			outcomes, err := store.Outcomes(cmd.Context(), batchID)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(outcomes))
			for _, o := range outcomes {
				rows = append(rows, []string{o.Path, bucketLabel(o.Bucket), o.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
				{Header: "File", MaxWidth: 60},
				{Header: "Status"},
				{Header: "Server ID / Reason", MaxWidth: 60},
			}, rows))
			return nil
		},
	}
}

func newHistoryFileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "file <path>",
		Short: "Show every recorded outcome for one file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			outcomes, err := store.Lookup(cmd.Context(), path)
			if err != nil {
				return err
			}
			if len(outcomes) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No history for %s\n", path)
				return nil
			}
			rows := make([][]string, 0, len(outcomes))
			for _, o := range outcomes {
				rows = append(rows, []string{
					shortID(o.BatchID),
					o.FinishedAt.Local().Format(time.DateTime),
					bucketLabel(o.Bucket),
					o.Detail,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
				{Header: "Batch"},
				{Header: "Finished"},
				{Header: "Status"},
				{Header: "Server ID / Reason", MaxWidth: 60},
			}, rows))
			return nil
		},
	}
}

func openHistory(ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return history.Open(cfg)
}

// resolveBatchID expands a short batch id prefix among recent batches.
func resolveBatchID(cmd *cobra.Command, store *history.Store, prefix string) (string, error) {
	batches, err := store.Recent(cmd.Context(), 500)
	if err != nil {
		return "", err
	}
	var match string
	for _, b := range batches {
		if len(prefix) <= len(b.ID) && b.ID[:len(prefix)] == prefix {
			if match != "" {
				return "", fmt.Errorf("batch id %q is ambiguous", prefix)
			}
			match = b.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no batch matches %q", prefix)
	}
	return match, nil
}
