//go:build windows

package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

func newCommand(ctx context.Context, path string, args []string, grace time.Duration) (*exec.Cmd, func(), error) {
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve command path %s: %w", path, err)
		}
		path = abs
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("command not accessible: %w", err)
	}
	if info.IsDir() {
		return nil, nil, fmt.Errorf("command path references a directory: %s", path)
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.WaitDelay = grace
	return cmd, func() {}, nil
}
