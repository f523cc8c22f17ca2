// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package rules

import (
	"fmt"
	"os"
	"path/filepath"
)

// BundleFileName is the well-known name of the pulled bundle inside the cache directory.
const BundleFileName = "custom-bundle.tar.gz"

// BundlePath returns the location of the pulled bundle inside cacheDir.
func BundlePath(cacheDir string) string {
	return filepath.Join(cacheDir, BundleFileName)
}

// Materialize writes blob to target, creating the parent directory if needed.
// The blob is written to a temp file next to target and renamed into place,
// so target is either the previous bundle or the complete new one.
func Materialize(blob []byte, target string) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".bundle-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set bundle permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close bundle: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move bundle to %s: %w", target, err)
	}
	return nil
}
