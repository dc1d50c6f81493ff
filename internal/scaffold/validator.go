package scaffold

import (
	"fmt"
	"os"

	"github.com/dyluth/drey/internal/config"
)

// CheckExisting checks if drey.yml already exists.
// Returns an error if it does, nil otherwise.
func CheckExisting() error {
	if _, err := os.Stat(config.DefaultPath); err == nil {
		return fmt.Errorf("project already initialized\n\nFound existing: %s\n\nUse 'drey init --force' to reinitialize (this will overwrite existing configuration)", config.DefaultPath)
	}

	return nil
}
