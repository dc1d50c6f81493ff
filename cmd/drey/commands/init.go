package commands

import (
	"fmt"

	"github.com/dyluth/drey/internal/config"
	"github.com/dyluth/drey/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new drey project",
	Long: `Initialize a new drey project with default configuration and event directories.

Creates:
  • drey.yml - Project configuration file
  • .drey/pending/ and .drey/archive/ - Shared event directories

Use --force to reinitialize an existing project (replaces drey.yml but
leaves existing events in place).`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Force reinitialization (replaces existing drey.yml)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	// Check for existing files (unless --force)
	if !forceInit {
		if err := scaffold.CheckExisting(); err != nil {
			return err
		}
	}

	if err := scaffold.Initialize(forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		return fmt.Errorf("initialization produced an unloadable config: %w", err)
	}

	scaffold.PrintSuccess(cfg.DataDir)

	return nil
}
