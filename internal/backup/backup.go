// Package backup snapshots deployment artifacts before a repair overwrites
// them. Snapshots live under .backups/<operation>/<timestamp>/ inside the
// deployment directory and are never removed automatically.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Root is the backup subdirectory inside a deployment directory.
const Root = ".backups"

// timestampFormat names snapshot directories; second precision with a
// numeric suffix on collision.
const timestampFormat = "20060102T150405Z"

// Snapshot copies the named files (relative to the deployment directory)
// into a fresh per-operation, per-timestamp snapshot directory and returns
// its path. Files that do not exist are skipped; a repair may target an
// artifact that was never generated.
func Snapshot(deploymentDir, operation string, files ...string) (string, error) {
	snapDir, err := newSnapshotDir(deploymentDir, operation)
	if err != nil {
		return "", err
	}

	for _, name := range files {
		src := filepath.Join(deploymentDir, name)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := copyFile(src, filepath.Join(snapDir, name)); err != nil {
			return "", fmt.Errorf("failed to back up %s: %w", name, err)
		}
	}
	return snapDir, nil
}

func newSnapshotDir(deploymentDir, operation string) (string, error) {
	base := filepath.Join(deploymentDir, Root, operation, time.Now().UTC().Format(timestampFormat))
	dir := base
	for i := 1; ; i++ {
		err := os.MkdirAll(filepath.Dir(dir), 0o700)
		if err != nil {
			return "", fmt.Errorf("failed to create backup directory: %w", err)
		}
		err = os.Mkdir(dir, 0o700)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("failed to create snapshot directory: %w", err)
		}
		dir = fmt.Sprintf("%s-%d", base, i)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
