// Package tempfile stages output beside its destination and publishes it
// only once it is complete.
package tempfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Path returns a sibling temporary path for dest of the form
// <dir>/<base>.<8 hex chars>.tmp, where base is dest's name without its
// extension.
func Path(dest string) (string, error) {
	abs, err := filepath.Abs(dest)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", dest, err)
	}

	base := strings.TrimSuffix(abs, filepath.Ext(abs))
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return base + "." + suffix + ".tmp", nil
}

// Write creates a temporary file next to dest, passes it to fn, and on
// success replaces dest with it. If fn or any step fails, dest is left as it
// was and the temporary file is removed.
func Write(dest string, fn func(f *os.File) error) (err error) {
	tmpPath, err := Path(dest)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	published := false
	defer func() {
		if !published {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := runAndClose(f, fn); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", filepath.Base(tmpPath), dest, err)
	}
	published = true
	return nil
}

// runAndClose releases the file handle on every path before the rename is
// attempted
func runAndClose(f *os.File, fn func(f *os.File) error) error {
	fnErr := fn(f)

	var syncErr error
	if fnErr == nil {
		if err := f.Sync(); err != nil {
			syncErr = fmt.Errorf("failed to sync temporary file: %w", err)
		}
	}

	closeErr := f.Close()
	if closeErr != nil {
		closeErr = fmt.Errorf("failed to close temporary file: %w", closeErr)
	}

	return errors.Join(fnErr, syncErr, closeErr)
}
