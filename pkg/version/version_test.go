package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	t.Run("Should prefer values injected at link time", func(t *testing.T) {
		prevVersion, prevCommit, prevDate := Version, CommitHash, BuildDate
		t.Cleanup(func() { Version, CommitHash, BuildDate = prevVersion, prevCommit, prevDate })
		Version, CommitHash, BuildDate = "v1.2.3", "abc123", "2026-01-02T03:04:05Z"

		info := Get()
		assert.Equal(t, Info{
			Version:    "v1.2.3",
			CommitHash: "abc123",
			BuildDate:  "2026-01-02T03:04:05Z",
			GoVersion:  runtime.Version(),
		}, info)
	})
	t.Run("Should always report the go version", func(t *testing.T) {
		assert.Equal(t, runtime.Version(), Get().GoVersion)
		assert.NotEmpty(t, Get().Version)
	})
}
