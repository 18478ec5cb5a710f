package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"montage/internal/composition"
	"montage/internal/config"
	"montage/internal/history"
)

const historyTimeLayout = "2006-01-02 15:04:05"

var errHistoryDisabled = errors.New("history is disabled (set history.enabled = true)")

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List past composition requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				records, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, records)
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No composition requests recorded")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					rows = append(rows, []string{
						shortID(rec.ID),
						string(rec.Status),
						rec.CreatedAt.Local().Format(historyTimeLayout),
						rec.OutputPath,
					})
				}
				fmt.Fprintln(out, renderTable(out, []string{"ID", "Status", "Created", "Output"}, rows, nil))
				return nil
			})
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of requests to show")

	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryReclaimCommand(ctx))
	return historyCmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one request with its status transitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				id, err := store.ResolveID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				rec, err := store.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				transitions, err := store.Transitions(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, struct {
						*history.Record
						Transitions []history.Transition `json:"transitions"`
					}{rec, transitions})
				}

				out := cmd.OutOrStdout()
				sum := rec.Summary
				rows := [][]string{
					{"ID", rec.ID},
					{"Status", string(rec.Status)},
					{"Manifest", rec.ManifestPath},
					{"Output", rec.OutputPath},
					{"Subtitles", rec.SubtitlesPath},
					{"Segments", fmt.Sprintf("%d matched / %d dropped of %d", sum.Matched, sum.Dropped, sum.Segments)},
					{"Overlays", fmt.Sprintf("%d", sum.Overlays)},
					{"Cues", fmt.Sprintf("%d", sum.Cues)},
					{"Duration", composition.FormatSeconds(sum.OutputDuration) + "s"},
				}
				if sum.FallbackReason != "" {
					rows = append(rows, []string{"Fallback", sum.FallbackReason})
				}
				if rec.ErrorMessage != "" {
					rows = append(rows, []string{"Error", rec.ErrorMessage})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Field", "Value"}, rows, nil))

				trows := make([][]string, 0, len(transitions))
				for _, tr := range transitions {
					trows = append(trows, []string{tr.CreatedAt.Local().Format(historyTimeLayout), string(tr.Status), tr.Message})
				}
				fmt.Fprintln(out, renderTable(out, []string{"At", "Status", "Message"}, trows, nil))
				return nil
			})
		},
	}
}

func newHistoryReclaimCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Mark interrupted requests as failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				n, err := store.FailInterrupted(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int64{"reclaimed": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %d interrupted request(s) as failed\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", time.Hour, "Only reclaim requests not updated within this window")
	return cmd
}

func withHistory(ctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return errHistoryDisabled
	}
	return openHistory(cfg, fn)
}

func openHistory(cfg *config.Config, fn func(*history.Store) error) error {
	store, err := history.Open(cfg)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
