package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/dyluth/drey/internal/config"
	"github.com/dyluth/drey/internal/hoard"
	"github.com/dyluth/drey/internal/printer"
	"github.com/dyluth/drey/internal/resolver"
	"github.com/dyluth/drey/internal/timespec"
	"github.com/dyluth/drey/pkg/midden"
	"github.com/spf13/cobra"
)

var (
	hoardConfigPath   string
	hoardOutputFormat string
	hoardScope        string
	hoardSince        string
	hoardUntil        string
	hoardType         string
	hoardAgent        string
	hoardJob          string
)

var hoardCmd = &cobra.Command{
	Use:   "hoard [EVENT_ID]",
	Short: "Inspect stored events with filtering",
	Long: `Inspect events in list or get mode.

List Mode (no EVENT_ID):
  Displays events matching filters as a table or JSONL stream.

Get Mode (with EVENT_ID):
  Displays complete details of a single event as pretty-printed JSON.
  Checks the pending directory first, then the archive.

Output Formats (list mode only):
  default - Human-readable table with ID, type, source, acks, and payload
  jsonl   - Line-delimited JSON, one event per line

Scope (list mode only):
  --scope pending|archived|all (default: all)

Time Filters (list mode only):
  --since  - Show events created after this time
  --until  - Show events created before this time

Content Filters (list mode only):
  --type   - Filter by event type (glob pattern: "JOB_*", "*_FILED")
  --agent  - Filter by source agent role (exact match: "hiring", "worker")
  --job    - Filter by the payload's job id

Examples:
  # List all events
  drey hoard

  # Pending disputes from the last hour
  drey hoard --scope=pending --type="DISPUTE_*" --since=1h

  # Pipe everything for a job to jq
  drey hoard --job=job-abc123 --output=jsonl | jq .type

  # Get a specific event
  drey hoard event-1714000000000-abc123ef`,
	RunE: runHoard,
}

func init() {
	hoardCmd.Flags().StringVar(&hoardConfigPath, "config", config.DefaultPath, "Path to drey.yml")
	hoardCmd.Flags().StringVarP(&hoardOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	hoardCmd.Flags().StringVar(&hoardScope, "scope", "all", "Which events to list: pending, archived, or all")

	// Time-based filters
	hoardCmd.Flags().StringVar(&hoardSince, "since", "", "Show events after time (duration or RFC3339)")
	hoardCmd.Flags().StringVar(&hoardUntil, "until", "", "Show events before time (duration or RFC3339)")

	// Content-based filters
	hoardCmd.Flags().StringVar(&hoardType, "type", "", "Filter by event type (glob pattern)")
	hoardCmd.Flags().StringVar(&hoardAgent, "agent", "", "Filter by source agent role (exact match)")
	hoardCmd.Flags().StringVar(&hoardJob, "job", "", "Filter by job id")

	rootCmd.AddCommand(hoardCmd)
}

func runHoard(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(hoardConfigPath)
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

	// Get mode. Short ID prefixes are resolved against the store first.
	if len(args) > 0 {
		eventID, err := resolver.ResolveEventID(store, args[0])
		if err != nil {
			if resolver.IsNotFoundError(err) {
				return printer.Error(
					"event not found",
					err.Error(),
					[]string{"Run 'drey hoard' to list known events"},
				)
			}
			var ambiguous *resolver.AmbiguousError
			if errors.As(err, &ambiguous) {
				fmt.Fprintln(os.Stderr, resolver.FormatAmbiguousError(ambiguous))
				return fmt.Errorf("ambiguous event ID")
			}
			return err
		}
		return hoard.GetEvent(store, eventID, os.Stdout)
	}

	// List mode
	var outputFormat hoard.OutputFormat
	switch hoardOutputFormat {
	case "default":
		outputFormat = hoard.OutputFormatDefault
	case "jsonl":
		outputFormat = hoard.OutputFormatJSONL
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", hoardOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	scope := hoard.Scope(hoardScope)
	if err := scope.Validate(); err != nil {
		return printer.Error(
			"invalid scope",
			err.Error(),
			[]string{"Valid scopes: pending, archived, all"},
		)
	}

	since, until, err := timespec.ParseRange(hoardSince, hoardUntil)
	if err != nil {
		return printer.Error("invalid time filter", err.Error(), nil)
	}

	filters := &hoard.FilterCriteria{
		Since:     since,
		Until:     until,
		TypeGlob:  hoardType,
		AgentRole: hoardAgent,
		JobID:     hoardJob,
	}

	return hoard.ListEvents(store, scope, outputFormat, filters, os.Stdout)
}
