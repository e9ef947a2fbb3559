// Package fsio wraps the local file I/O the engine performs so every
// blocking call is bounded by a context and every persisted file is written
// atomically.
package fsio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrTimeout indicates a file operation exceeded its deadline.
var ErrTimeout = errors.New("file operation timed out")

type readResult struct {
	data []byte
	err  error
}

// ReadFile reads the named file, honoring the context deadline. The engine
// is called by outer automation with its own timeout budget, so a stuck
// read must fail fast instead of hanging the run.
func ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapCtxErr(path, err)
	}

	ch := make(chan readResult, 1)
	go func() {
		data, err := os.ReadFile(path)
		ch <- readResult{data: data, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("read %s: %w", path, res.err)
		}
		return res.data, nil
	case <-ctx.Done():
		return nil, wrapCtxErr(path, ctx.Err())
	}
}

func wrapCtxErr(path string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("read %s: %w", path, ErrTimeout)
	}
	return fmt.Errorf("read %s: %w", path, err)
}

// WriteFileAtomic writes data to path via a temp file in the same
// directory followed by a rename, so the target is never observed
// half-written. The parent directory is created if needed.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()

	cleanup := func() {
		f.Close()
		os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	// Sync before rename so a crash leaves either the old file or the new
	// complete one.
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
