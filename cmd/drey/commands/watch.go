package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/drey/internal/config"
	"github.com/dyluth/drey/internal/printer"
	"github.com/dyluth/drey/internal/watch"
	"github.com/dyluth/drey/pkg/midden"
	"github.com/spf13/cobra"
)

var (
	watchConfigPath string
	watchInterval   time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail the event feed in real time",
	Long: `Watch the shared event directory and print a human-readable line for
every new event, plus a line when an event reaches the archive.

Runs until interrupted with Ctrl+C.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchConfigPath, "config", config.DefaultPath, "Path to drey.yml")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 500*time.Millisecond, "Scan cadence")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(watchConfigPath)
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		cancel()
	}()

	printer.Info("Watching %s (Ctrl+C to stop)...\n\n", cfg.DataDir)
	return watch.Stream(ctx, store, watchInterval, os.Stdout)
}
