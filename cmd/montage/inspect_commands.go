package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"montage/internal/composition"
	"montage/internal/config"
	"montage/internal/deps"
	"montage/internal/manifest"
	"montage/internal/media/ffprobe"
	"montage/internal/pipeline"
	"montage/internal/subtitles"
	"montage/internal/textutil"
	"montage/internal/timeline"
)

const snippetColumnWidth = 48

func newTimelineCommand(ctx *commandContext) *cobra.Command {
	var durationFlag float64

	cmd := &cobra.Command{
		Use:   "timeline <manifest>",
		Short: "Map manifest segments onto narration timestamps",
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
			m, _, err := ctx.loadManifest(args)
			if err != nil {
				return err
			}
			duration := narrationDuration(cmd.Context(), cfg, m, durationFlag)
			if duration <= 0 {
				return fmt.Errorf("narration duration unknown; pass --duration or set audio_duration in the manifest")
			}

			mapper := timeline.NewMapper(cfg.Composition.MatchPrefixChars, logger)
			tl, err := mapper.Map(cmd.Context(), m.Segments, m.Alignment, duration)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, tl)
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(tl.Entries))
			for i, e := range tl.Entries {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					composition.FormatSeconds(e.Start),
					composition.FormatSeconds(e.End),
					e.MaterialID,
					textutil.Truncate(e.TextSnippet, snippetColumnWidth),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"#", "Start", "End", "Material", "Snippet"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignLeft},
			))
			rep := tl.Report
			fmt.Fprintf(out, "%d of %d segments matched, %d dropped\n", rep.Matched, rep.Segments, rep.Dropped)
			if rep.Fallback {
				fmt.Fprintf(out, "Fallback timeline used: %s\n", rep.Reason)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&durationFlag, "duration", 0, "Narration length in seconds (skips probing)")
	return cmd
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var outputFlag string

	cmd := &cobra.Command{
		Use:   "plan <manifest>",
		Short: "Build the composition plan and show the ffmpeg filter graph",
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

			composer := pipeline.NewComposer(cfg, logger, pipeline.WithoutPreflight())
			prep, err := composer.Prepare(cmd.Context(), pipeline.Request{Manifest: m, ManifestPath: manifestPath, Output: outputFlag})
			if err != nil {
				return err
			}
			defer composer.Cleanup(cmd.Context(), prep)

			if ctx.jsonOutput() {
				return writeJSON(cmd, prep)
			}

			out := cmd.OutOrStdout()
			inputs := make([][]string, 0, len(prep.Plan.Inputs))
			for i, in := range prep.Plan.Inputs {
				inputs = append(inputs, []string{strconv.Itoa(i), in.Role, in.AssetID, filepath.Base(in.Path)})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Input", "Role", "Material", "File"}, inputs,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))

			if len(prep.Plan.Overlays) > 0 {
				overlays := make([][]string, 0, len(prep.Plan.Overlays))
				for _, o := range prep.Plan.Overlays {
					overlays = append(overlays, []string{
						o.MaterialID,
						strconv.Itoa(o.Input),
						composition.FormatSeconds(o.Start),
						composition.FormatSeconds(o.End),
					})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Material", "Input", "Start", "End"}, overlays,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight}))
			}

			if prep.Plan.FilterGraph != "" {
				fmt.Fprintln(out, "Filter graph:")
				for _, chain := range strings.Split(prep.Plan.FilterGraph, ";") {
					fmt.Fprintf(out, "  %s;\n", chain)
				}
			} else {
				fmt.Fprintln(out, "No overlays; base video passes through.")
			}
			fmt.Fprintf(out, "Output duration: %ss\n", composition.FormatSeconds(prep.Plan.Duration))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Final video path (overrides the manifest)")
	return cmd
}

func newSubtitlesCommand(ctx *commandContext) *cobra.Command {
	var outputFlag string
	var durationFlag float64

	cmd := &cobra.Command{
		Use:   "subtitles <manifest>",
		Short: "Generate the SRT subtitle file for a manifest",
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
			m, _, err := ctx.loadManifest(args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(m.NarrationText) == "" {
				return fmt.Errorf("manifest has no narration_text")
			}
			duration := narrationDuration(cmd.Context(), cfg, m, durationFlag)
			if duration <= 0 {
				return fmt.Errorf("narration duration unknown; pass --duration or set audio_duration in the manifest")
			}

			chunker := subtitles.NewChunker(subtitles.OptionsFromConfig(cfg.Subtitles), logger)
			cues, err := chunker.Chunk(cmd.Context(), m.NarrationText, m.Alignment, duration)
			if err != nil {
				return err
			}

			target := strings.TrimSpace(outputFlag)
			if target == "" {
				target = pipeline.ResolveOutputs(cfg, m, "").Subtitles
			} else if target, err = config.ExpandPath(target); err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}
			if err := subtitles.WriteSRT(target, cues); err != nil {
				return fmt.Errorf("write subtitles: %w", err)
			}
			issues := subtitles.ValidateSRTContent(target, duration)

			if ctx.jsonOutput() {
				return writeJSON(cmd, struct {
					Path   string          `json:"path"`
					Cues   []subtitles.Cue `json:"cues"`
					Issues []string        `json:"issues,omitempty"`
				}{target, cues, issues})
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(cues))
			for _, c := range cues {
				rows = append(rows, []string{
					strconv.Itoa(c.Index),
					subtitles.FormatTimestamp(c.Start),
					subtitles.FormatTimestamp(c.End),
					strings.Join(c.Lines, " / "),
				})
			}
			fmt.Fprintln(out, renderTable(out, []string{"#", "Start", "End", "Text"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
			fmt.Fprintf(out, "Wrote %d cues to %s\n", len(cues), target)
			for _, issue := range issues {
				fmt.Fprintf(out, "warning: %s\n", issue)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "SRT destination (defaults next to the final video)")
	cmd.Flags().Float64Var(&durationFlag, "duration", 0, "Narration length in seconds (skips probing)")
	return cmd
}

// narrationDuration prefers an explicit value, then the manifest, then the
// alignment payload, then ffprobe.
func narrationDuration(ctx context.Context, cfg *config.Config, m *manifest.Manifest, explicit float64) float64 {
	if explicit > 0 {
		return explicit
	}
	if m.AudioDuration > 0 {
		return m.AudioDuration
	}
	if m.Alignment != nil && m.Alignment.AudioDuration > 0 {
		return m.Alignment.AudioDuration
	}
	res, err := ffprobe.Inspect(ctx, deps.ResolveFFprobePath(cfg.FFmpeg.FFprobeBinary), m.NarrationAudio)
	if err != nil {
		return 0
	}
	return res.DurationSeconds()
}
