// Package scaffold creates the initial drey project layout: the drey.yml
// configuration file and the shared event directories.
package scaffold

import (
	"embed"
	"fmt"
	"os"

	"github.com/dyluth/drey/internal/config"
	"github.com/dyluth/drey/pkg/midden"
)

//go:embed templates/*
var templatesFS embed.FS

// Initialize creates the drey project structure in the current directory.
// If force is true, it will remove an existing drey.yml first. The event
// directories are created but never removed: they may hold real events.
func Initialize(force bool) error {
	if force {
		if err := handleForce(); err != nil {
			return err
		}
	}

	content, err := templatesFS.ReadFile("templates/drey.yml.tmpl")
	if err != nil {
		return fmt.Errorf("failed to read drey.yml template: %w", err)
	}

	if err := os.WriteFile(config.DefaultPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.DefaultPath, err)
	}

	// Round-trip through the loader so a broken template fails here, not
	// at first agent start
	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		return fmt.Errorf("created %s is not valid: %w", config.DefaultPath, err)
	}

	store, err := midden.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	if err := store.EnsureLayout(); err != nil {
		return fmt.Errorf("failed to create event directories: %w", err)
	}

	return nil
}

// handleForce removes an existing drey.yml if --force was specified
func handleForce() error {
	if _, err := os.Stat(config.DefaultPath); err == nil {
		fmt.Printf("⚠️  Removing existing %s...\n", config.DefaultPath)
		if err := os.Remove(config.DefaultPath); err != nil {
			return fmt.Errorf("failed to remove %s: %w", config.DefaultPath, err)
		}
	}

	return nil
}

// PrintSuccess prints the success message with created files
func PrintSuccess(dataDir string) {
	fmt.Println("\n✅ Successfully initialized drey project!")
	fmt.Println("\nCreated:")
	fmt.Println("  ✓ drey.yml")
	fmt.Printf("  ✓ %s/pending/\n", dataDir)
	fmt.Printf("  ✓ %s/archive/\n", dataDir)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add the data directory to your .gitignore file")
	fmt.Println("  2. Customize drey.yml (roles, approval threshold, poll cadence)")
	fmt.Println("  3. Start each agent with 'drey run <role>'")
	fmt.Println("  4. Post a job with 'drey post \"description\" --budget 100'")
}
