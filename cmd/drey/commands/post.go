package commands

import (
	"fmt"
	"strings"

	"github.com/dyluth/drey/internal/config"
	"github.com/dyluth/drey/internal/printer"
	"github.com/dyluth/drey/pkg/midden"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	postConfigPath string
	postBudget     float64
)

var postCmd = &cobra.Command{
	Use:   "post DESCRIPTION",
	Short: "Post a new job to the event bus",
	Long: `Post a new job as a JOB_CREATED event. The event is published with the
'user' source role; the running agents pick it up on their next poll.

Examples:
  drey post "Write a haiku about squirrels" --budget 50
  drey post "Refactor the billing module" --budget 500`,
	Args: cobra.ExactArgs(1),
	RunE: runPost,
}

func init() {
	postCmd.Flags().StringVar(&postConfigPath, "config", config.DefaultPath, "Path to drey.yml")
	postCmd.Flags().Float64Var(&postBudget, "budget", 100, "Job budget")
	rootCmd.AddCommand(postCmd)
}

func runPost(cmd *cobra.Command, args []string) error {
	description := strings.TrimSpace(args[0])
	if description == "" {
		return printer.Error(
			"empty job description",
			"A job needs a description for the worker to act on.",
			nil,
		)
	}
	if postBudget <= 0 {
		return printer.Error(
			"invalid budget",
			fmt.Sprintf("Budget must be positive, got %v", postBudget),
			nil,
		)
	}

	cfg, err := config.Load(postConfigPath)
	if err != nil {
		return printer.Error(
			"failed to load configuration",
			err.Error(),
			[]string{"Run 'drey init' to create a project"},
		)
	}

	store, err := midden.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	if err := store.EnsureLayout(); err != nil {
		return fmt.Errorf("failed to prepare event directories: %w", err)
	}

	jobID := "job-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	payload, err := midden.EncodePayload(midden.JobCreatedPayload{
		JobID:       jobID,
		Description: description,
		Budget:      postBudget,
	})
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	event := &midden.Event{
		ID:          midden.NewEventID(),
		Type:        midden.EventJobCreated,
		Timestamp:   midden.NewTimestamp(),
		SourceAgent: midden.AgentUser,
		Payload:     payload,
		ProcessedBy: []string{},
		Status:      midden.StatusPending,
	}
	if err := store.Create(event); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	printer.Success("Posted job %s (budget %.2f)\n", jobID, postBudget)
	printer.Info("Event: %s\n", event.ID)
	return nil
}
