package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/drey/internal/config"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	originalDir, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(originalDir) })
	require.NoError(t, os.Chdir(tmpDir))
	return tmpDir
}

func TestInitialize(t *testing.T) {
	t.Run("fresh initialization", func(t *testing.T) {
		tmpDir := chdirTemp(t)

		require.NoError(t, Initialize(false))

		// drey.yml exists and loads
		cfg, err := config.Load(config.DefaultPath)
		require.NoError(t, err)
		assert.Equal(t, "1.0", cfg.Version)
		assert.Len(t, cfg.Agents, 3)

		// Event directories exist
		assert.DirExists(t, filepath.Join(tmpDir, ".drey", "pending"))
		assert.DirExists(t, filepath.Join(tmpDir, ".drey", "archive"))
	})

	t.Run("force replaces existing drey.yml", func(t *testing.T) {
		chdirTemp(t)
		require.NoError(t, os.WriteFile("drey.yml", []byte("old content"), 0644))

		require.NoError(t, Initialize(true))

		cfg, err := config.Load(config.DefaultPath)
		require.NoError(t, err)
		assert.Equal(t, "1.0", cfg.Version)
	})

	t.Run("force preserves existing events", func(t *testing.T) {
		tmpDir := chdirTemp(t)
		require.NoError(t, Initialize(false))

		eventPath := filepath.Join(tmpDir, ".drey", "pending", "event-1-aaaa.json")
		require.NoError(t, os.WriteFile(eventPath, []byte("{}"), 0644))

		require.NoError(t, Initialize(true))
		assert.FileExists(t, eventPath)
	})
}

func TestPrintSuccess(t *testing.T) {
	// Smoke test: must not panic
	PrintSuccess(".drey")
}
