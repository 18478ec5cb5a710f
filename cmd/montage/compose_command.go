package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"montage/internal/composition"
	"montage/internal/deps"
	"montage/internal/history"
	"montage/internal/pipeline"
)

var errOutputLocked = errors.New("another montage process is writing this output")

func newComposeCommand(ctx *commandContext) *cobra.Command {
	var outputFlag string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "compose <manifest>",
		Short: "Render a manifest into a finished video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			m, manifestPath, err := ctx.loadManifest(args)
			if err != nil {
				return err
			}

			outputs := pipeline.ResolveOutputs(cfg, m, outputFlag)
			if err := os.MkdirAll(filepath.Dir(outputs.Final), 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			lock, err := acquireOutputLock(outputs.Final)
			if err != nil {
				return err
			}
			defer releaseOutputLock(lock)

			var opts []pipeline.Option
			if cfg.History.Enabled && !dryRun {
				store, err := history.Open(cfg)
				if err != nil {
					return fmt.Errorf("open history: %w", err)
				}
				defer store.Close()
				opts = append(opts, pipeline.WithHistory(store))
			}
			composer := pipeline.NewComposer(cfg, logger, opts...)
			req := pipeline.Request{Manifest: m, ManifestPath: manifestPath, Output: outputFlag}

			if dryRun {
				prep, err := composer.Prepare(cmd.Context(), req)
				if err != nil {
					return err
				}
				defer composer.Cleanup(cmd.Context(), prep)
				binary := deps.ResolveFFmpegPath(cfg.FFmpeg.Binary)
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, composition.CommandLine(binary, prep.Plan.Args(prep.Outputs.Base)))
				if prep.Outputs.BurnIn && len(prep.Cues) > 0 {
					fmt.Fprintf(out, "# then burn %s into %s\n", prep.Outputs.Subtitles, prep.Outputs.Final)
				}
				if ids := prep.TemporaryAssets(); len(ids) > 0 {
					fmt.Fprintf(out, "# downloaded materials (%s) are deleted when this command exits; run compose to render them\n",
						strings.Join(ids, ", "))
				}
				return nil
			}

			result, err := composer.Compose(cmd.Context(), req)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, result)
			}
			printComposeResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Final video path (overrides the manifest)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan the request and print the ffmpeg command without rendering")
	return cmd
}

// acquireOutputLock keeps two runs from writing the same artifacts.
func acquireOutputLock(output string) (*flock.Flock, error) {
	lock := flock.New(output + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", output, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", errOutputLocked, output)
	}
	return lock, nil
}

// releaseOutputLock unlocks and removes the lock file.
func releaseOutputLock(lock *flock.Flock) {
	_ = lock.Unlock()
	// Already gone is fine.
	_ = os.Remove(lock.Path())
}

func printComposeResult(cmd *cobra.Command, result *pipeline.Result) {
	out := cmd.OutOrStdout()
	rep := result.Timeline.Report
	rows := [][]string{
		{"Request", result.RequestID},
		{"Status", string(result.Status)},
		{"Video", result.Outputs.Final},
		{"Duration", composition.FormatSeconds(result.Plan.Duration) + "s"},
		{"Segments", fmt.Sprintf("%d matched / %d dropped of %d", rep.Matched, rep.Dropped, rep.Segments)},
		{"Overlays", fmt.Sprintf("%d", len(result.Plan.Overlays))},
		{"Cues", fmt.Sprintf("%d", len(result.Cues))},
		{"Burned subtitles", yesNo(result.Outputs.BurnIn && len(result.Cues) > 0)},
	}
	if len(result.Cues) > 0 {
		rows = append(rows, []string{"Subtitles", result.Outputs.Subtitles})
	}
	if rep.Fallback {
		rows = append(rows, []string{"Fallback", rep.Reason})
	}
	if n := len(result.Assets.Failures); n > 0 {
		ids := make([]string, 0, n)
		for _, f := range result.Assets.Failures {
			ids = append(ids, f.MaterialID)
		}
		rows = append(rows, []string{"Missing materials", strings.Join(ids, ", ")})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Field", "Value"}, rows, nil))
}
