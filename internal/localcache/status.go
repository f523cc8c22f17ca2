// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package localcache

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chez-shanpu/iac-rules/internal/rules"
)

// Status describes the bundle currently held by the local cache.
type Status struct {
	Dir        string    `json:"dir" yaml:"dir"`
	BundlePath string    `json:"bundlePath" yaml:"bundlePath"`
	Present    bool      `json:"present" yaml:"present"`
	Size       string    `json:"size,omitempty" yaml:"size,omitempty"`
	Modified   time.Time `json:"modified,omitempty" yaml:"modified,omitempty"`
	RulesDir   string    `json:"rulesDir" yaml:"rulesDir"`
	RuleFiles  int       `json:"ruleFiles" yaml:"ruleFiles"`
}

// ReadStatus inspects the cache rooted at dir. A missing directory is not an error.
func ReadStatus(dir string) (*Status, error) {
	s := &Status{
		Dir:        dir,
		BundlePath: rules.BundlePath(dir),
		RulesDir:   NewInitializer(dir, nil).RulesDir(),
	}

	fi, err := os.Stat(s.BundlePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to stat bundle: %w", err)
	default:
		s.Present = true
		s.Size = FormatSize(fi.Size())
		s.Modified = fi.ModTime()
	}

	n, err := countFiles(s.RulesDir)
	if err != nil {
		return nil, err
	}
	s.RuleFiles = n

	return s, nil
}

// Clean removes the pulled bundle and the extracted rules. It reports whether
// anything was removed.
func Clean(dir string) (bool, error) {
	removed := false
	for _, p := range []string{rules.BundlePath(dir), NewInitializer(dir, nil).RulesDir()} {
		if _, err := os.Lstat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return removed, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if err := os.RemoveAll(p); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", p, err)
		}
		removed = true
	}
	return removed, nil
}

// FormatSize formats byte size to human-readable format
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%dB", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
