package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCLIFlags(t *testing.T) {
	t.Run("Should collect only changed flags with their typed values", func(t *testing.T) {
		root := RootCmd()
		cmd, _, err := root.Find([]string{"dev"})
		require.NoError(t, err)
		require.NoError(t, cmd.ParseFlags([]string{
			"--temporal-namespace=graph",
			"--ui=false",
			"--ui-port=9000",
			"--monitoring",
		}))

		flags := make(map[string]any)
		extractCLIFlags(cmd, flags)

		assert.Equal(t, map[string]any{
			"temporal-namespace": "graph",
			"ui":                 false,
			"ui-port":            9000,
			"monitoring":         true,
		}, flags)
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("Should load variables from a file inside the working directory", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GRAPHSYNC_TEST_VALUE=loaded\n"), 0o600))
		t.Setenv("GRAPHSYNC_TEST_VALUE", "")
		require.NoError(t, os.Unsetenv("GRAPHSYNC_TEST_VALUE"))

		cmd := RootCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--env-file=.env"}))
		path, err := loadEnvFile(cmd)
		require.NoError(t, err)
		pwd, err := os.Getwd()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(pwd, ".env"), path)
		assert.Equal(t, "loaded", os.Getenv("GRAPHSYNC_TEST_VALUE"))
	})
	t.Run("Should ignore a missing file", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cmd := RootCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--env-file=missing.env"}))
		_, err := loadEnvFile(cmd)
		assert.NoError(t, err)
	})
	t.Run("Should reject files outside the working directory", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cmd := RootCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--env-file=../outside.env"}))
		_, err := loadEnvFile(cmd)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outside the working directory")
	})
}

func TestIsPathWithinDirectory(t *testing.T) {
	t.Run("Should accept nested paths and the directory itself", func(t *testing.T) {
		dir := t.TempDir()
		assert.True(t, isPathWithinDirectory(filepath.Join(dir, "a", "b.env"), dir))
		assert.True(t, isPathWithinDirectory(dir, dir))
	})
	t.Run("Should reject siblings sharing a prefix", func(t *testing.T) {
		dir := t.TempDir()
		assert.False(t, isPathWithinDirectory(dir+"-other/x.env", dir))
		assert.False(t, isPathWithinDirectory(filepath.Dir(dir), dir))
	})
}
