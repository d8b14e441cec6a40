package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iksnae/cursor-journal/internal"
	"github.com/iksnae/cursor-journal/internal/ai"
	"github.com/iksnae/cursor-journal/internal/telemetry"
)

var (
	commitHash       string
	commitMessage    string
	commitTimestamp  int64
	parentTimestamps []int64
	changedFiles     []string
	previousEntry    string
	overallTimeout   time.Duration
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Retrieve the chat messages attributed to one commit",
	Long: `Retrieve the chat messages attributed to one commit.

Commit metadata is supplied by the caller (typically a git hook wrapper
that has already resolved timestamps); this tool never shells out to git.
The result is printed as a JSON array of streamlined messages.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := internal.LoadConfig(configPath)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		provider, err := telemetry.Init(ctx, cfg.TelemetryEnabled)
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer provider.Shutdown(context.Background())

		rec, err := telemetry.NewRecorder(provider.Meter)
		if err != nil {
			return fmt.Errorf("creating telemetry recorder: %w", err)
		}

		invoker := ai.NewClient(cfg.AI.BaseURL, cfg.AI.Model).WithFormat(boundarySchema())
		pipeline := internal.NewPipeline(cfg, invoker, rec).WithTracer(provider.Tracer)

		runCtx, cancel := internal.WithDeadline(ctx, overallTimeout)
		defer cancel()

		messages, err := pipeline.MessagesForCommit(runCtx, internal.Commit{
			Hash:                commitHash,
			Message:             commitMessage,
			ChangedFiles:        changedFiles,
			TimestampSec:        commitTimestamp,
			ParentTimestampsSec: parentTimestamps,
		}, internal.GitContext{
			PreviousJournalEntry: previousEntry,
		})
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(messages)
	},
}

// boundarySchema constrains the model to the exact decision shape the
// strict parser expects.
func boundarySchema() *ai.Schema {
	return &ai.Schema{
		Type: "object",
		Properties: map[string]ai.SchemaProperty{
			"bubbleId":   {Type: "string", Description: "id of the boundary message"},
			"confidence": {Type: "integer", Description: "1-10"},
			"reasoning":  {Type: "string"},
		},
		Required: []string{"bubbleId", "confidence", "reasoning"},
	}
}

func init() {
	journalCmd.Flags().StringVar(&commitHash, "hash", "", "Commit hash (informational)")
	journalCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "Commit message")
	journalCmd.Flags().Int64Var(&commitTimestamp, "timestamp", 0, "Commit timestamp, epoch seconds")
	journalCmd.Flags().Int64SliceVar(&parentTimestamps, "parent-timestamp", nil, "Parent commit timestamps, epoch seconds (repeat per parent)")
	journalCmd.Flags().StringSliceVar(&changedFiles, "file", nil, "Changed file path (repeatable)")
	journalCmd.Flags().StringVar(&previousEntry, "previous-entry", "", "Journal entry text of the previous commit")
	journalCmd.Flags().DurationVar(&overallTimeout, "timeout", 0, "Overall retrieval deadline; partial history is returned on expiry (0 = none)")
	rootCmd.AddCommand(journalCmd)
}
