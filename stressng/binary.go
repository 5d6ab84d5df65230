package stressng

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// DefaultBinary is the name looked up in $PATH when no path is given.
const DefaultBinary = "stress-ng"

// Resolve returns the stress-ng binary to run: path itself when set, or
// stress-ng from $PATH.
func Resolve(path string) (string, error) {
	if path == "" {
		found, err := exec.LookPath(DefaultBinary)
		if err != nil {
			return "", fmt.Errorf("find %s: %w", DefaultBinary, err)
		}

		return found, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stress-ng binary: %w", err)
	}

	if info.IsDir() || info.Mode()&0o111 == 0 {
		return "", fmt.Errorf("stress-ng binary %s is not executable", path)
	}

	return path, nil
}

// Build compiles stress-ng in srcDir with make and returns the path of the
// built binary.
func Build(ctx context.Context, logger *slog.Logger, srcDir string) (string, error) {
	binPath := filepath.Join(srcDir, DefaultBinary)

	logger.InfoContext(ctx, "building stress-ng",
		slog.String("source_dir", srcDir),
	)

	cmd := exec.CommandContext(ctx, "make", "-j")
	cmd.Dir = srcDir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("build stress-ng: %w", err)
	}

	if _, err := os.Stat(binPath); err != nil {
		return "", fmt.Errorf(
			"build stress-ng: binary not found at %s", binPath,
		)
	}

	logger.InfoContext(ctx, "stress-ng built",
		slog.String("binary", binPath),
	)

	return binPath, nil
}
