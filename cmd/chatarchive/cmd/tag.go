package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wesm/chatarchive/internal/scheduler"
	"github.com/wesm/chatarchive/internal/store"
	"github.com/wesm/chatarchive/internal/tagger"
	"github.com/wesm/chatarchive/internal/tags"
)

var (
	tagAll      bool
	tagTags     []string
	tagRestart  bool
	tagModel    string
	tagSchedule bool
	tagCron     string
	tagStoppers bool
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Classify messages with a local LLM",
	Long: `Classify messages into the tag vocabulary using an Ollama model.

By default only untagged messages are sent. --all reclassifies everything;
--tags reclassifies only the named tags and keeps the rest of each row's
tags. Progress is checkpointed, so an interrupted run resumes where it
stopped unless --restart is given.

After classification the Conversation Stopper tag is recomputed (disable
with --stoppers=false).

The Ollama server comes from OLLAMA_HOST when set, else [tagger] server.

With --schedule the command keeps running and repeats the job on the cron
expression in [tagger] schedule (or --cron).

Examples:
  chatarchive tag
  chatarchive tag --tags Music,Sport
  chatarchive tag --schedule --cron "@daily"`,
	RunE: runTag,
}

func runTag(cmd *cobra.Command, args []string) error {
	if tagModel != "" {
		cfg.Tagger.Model = tagModel
	}

	var only []tags.Tag
	if len(tagTags) > 0 {
		only = tags.ParseList(strings.Join(tagTags, ","))
	}

	// Validate flags before touching the database or the LLM.
	if _, err := newTagPipeline(nil, nil, only, nil); err != nil {
		return err
	}

	if !tagSchedule {
		return runTagJob(cmd.Context(), cmd.OutOrStdout(), only)
	}

	expr := cfg.Tagger.Schedule
	if tagCron != "" {
		expr = tagCron
	}
	if expr == "" {
		return fmt.Errorf("--schedule needs [tagger] schedule in config or --cron")
	}

	sched := scheduler.New(func(ctx context.Context, name string) error {
		return runTagJob(ctx, io.Discard, only)
	}).WithLogger(logger)
	if err := sched.AddJob(scheduler.JobTag, expr); err != nil {
		return err
	}
	sched.Start()
	fmt.Fprintf(cmd.OutOrStdout(), "Tagging on schedule %q. Press Ctrl+C to stop.\n", expr)

	<-cmd.Context().Done()

	stopCtx := sched.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("tagging job did not stop within 30s")
	}
	return nil
}

func newTagPipeline(st tagger.Store, llm tagger.LLMClient, only []tags.Tag, progress func(done, total int64)) (*tagger.Pipeline, error) {
	return tagger.New(st, llm, tagger.Options{
		BatchSize:         cfg.Tagger.BatchSize,
		Concurrency:       cfg.Tagger.Concurrency,
		RequestsPerMinute: cfg.Tagger.RequestsPerMinute,
		All:               tagAll,
		Tags:              only,
		CheckpointPath:    cfg.CheckpointPath(),
		Restart:           tagRestart,
		Progress:          progress,
	})
}

// runTagJob runs one classification pass followed by the stopper pass.
func runTagJob(ctx context.Context, out io.Writer, only []tags.Tag) error {
	serverURL := cfg.Tagger.Server
	if h := os.Getenv("OLLAMA_HOST"); h != "" {
		serverURL = h
	}
	llm, err := tagger.NewOllamaClient(serverURL, cfg.Tagger.Model)
	if err != nil {
		return err
	}

	s, err := openWritable()
	if err != nil {
		return err
	}
	defer s.Close()

	progress := newProgressLine("Tagging")
	if out == io.Discard {
		progress.w = io.Discard
	}
	p, err := newTagPipeline(s, llm, only, progress.Update)
	if err != nil {
		return err
	}
	p.WithLogger(logger)

	logger.Info("tagging started", "model", cfg.Tagger.Model, "server", serverURL)
	sum, err := p.Run(ctx)
	progress.Done()
	if err != nil {
		return fmt.Errorf("tag: %w", err)
	}

	fmt.Fprintln(out)
	if sum.ResumedFrom > 0 {
		fmt.Fprintf(out, "Resumed:    after id %d\n", sum.ResumedFrom)
	}
	fmt.Fprintf(out, "Candidates: %s\n", humanize.Comma(sum.Candidates))
	fmt.Fprintf(out, "Processed:  %s\n", humanize.Comma(sum.Processed))
	fmt.Fprintf(out, "Updated:    %s\n", humanize.Comma(sum.Updated))
	if sum.FailedBatches > 0 {
		fmt.Fprintf(out, "Failed:     %d batches (rerun to retry)\n", sum.FailedBatches)
	}
	fmt.Fprintf(out, "Duration:   %s\n", formatDuration(sum.Duration))

	if !tagStoppers {
		return nil
	}
	return runStopperPass(ctx, out, s, "", "")
}

func init() {
	rootCmd.AddCommand(tagCmd)
	tagCmd.Flags().BoolVar(&tagAll, "all", false, "reclassify messages that already have tags")
	tagCmd.Flags().StringSliceVar(&tagTags, "tags", nil, "reclassify only these tags (implies --all)")
	tagCmd.Flags().BoolVar(&tagRestart, "restart", false, "ignore the saved checkpoint")
	tagCmd.Flags().StringVar(&tagModel, "model", "", "Ollama model (overrides [tagger] model)")
	tagCmd.Flags().BoolVar(&tagSchedule, "schedule", false, "keep running and tag on a cron schedule")
	tagCmd.Flags().StringVar(&tagCron, "cron", "", "cron expression (overrides [tagger] schedule)")
	tagCmd.Flags().BoolVar(&tagStoppers, "stoppers", true, "recompute conversation stoppers afterwards")
}

// runStopperPass recomputes Conversation Stopper tags. Empty gap or scope
// fall back to the config.
func runStopperPass(ctx context.Context, out io.Writer, s *store.Store, gapStr, scopeStr string) error {
	if gapStr != "" {
		cfg.Tagger.StopperGap = gapStr
	}
	if scopeStr != "" {
		cfg.Tagger.StopperScope = scopeStr
	}
	gap, err := cfg.StopperGap()
	if err != nil {
		return err
	}
	scope, err := tagger.ParseScope(cfg.Tagger.StopperScope)
	if err != nil {
		return err
	}

	sum, err := tagger.DetectStoppers(ctx, s, gap, scope, logger)
	if err != nil {
		return fmt.Errorf("stoppers: %w", err)
	}
	fmt.Fprintf(out, "Stoppers:   %s of %s messages (+%d / -%d)\n",
		humanize.Comma(sum.Stoppers), humanize.Comma(sum.Messages), sum.Added, sum.Removed)
	return nil
}
