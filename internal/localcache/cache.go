// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package localcache

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"github.com/chez-shanpu/iac-rules/internal/rules"
)

// RulesDirName is the directory, inside the cache directory, holding the extracted bundle.
const RulesDirName = "custom-rules"

// maxFileSize bounds a single extracted file.
const maxFileSize = 64 << 20

// Initializer rebuilds the local cache from a pulled rules bundle.
type Initializer struct {
	dir string
	log logrus.FieldLogger
}

// NewInitializer returns an Initializer for the cache rooted at dir.
func NewInitializer(dir string, log logrus.FieldLogger) *Initializer {
	if log == nil {
		log = rules.DiscardLogger()
	}
	return &Initializer{dir: dir, log: log}
}

// RulesDir returns where bundles are extracted.
func (i *Initializer) RulesDir() string {
	return filepath.Join(i.dir, RulesDirName)
}

// InitLocalCache extracts the bundle at opts.CustomRulesPath into the rules
// directory. The previous rules are only replaced once the new bundle was
// extracted completely.
func (i *Initializer) InitLocalCache(ctx context.Context, opts rules.CacheOptions) (*rules.CacheHandle, error) {
	if err := os.MkdirAll(i.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", i.dir, err)
	}

	handle := &rules.CacheHandle{
		Dir:             i.dir,
		RulesBundlePath: opts.CustomRulesPath,
		RulesDir:        i.RulesDir(),
	}
	if opts.CustomRulesPath == "" {
		n, err := countFiles(handle.RulesDir)
		if err != nil {
			return nil, err
		}
		handle.Files = n
		return handle, nil
	}

	staging, err := os.MkdirTemp(i.dir, ".custom-rules-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	n, err := extractBundle(ctx, opts.CustomRulesPath, staging)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("bundle %s contains no files", opts.CustomRulesPath)
	}

	if err := os.Chmod(staging, 0o755); err != nil {
		return nil, fmt.Errorf("failed to set rules directory permissions: %w", err)
	}
	if err := os.RemoveAll(handle.RulesDir); err != nil {
		return nil, fmt.Errorf("failed to remove previous rules: %w", err)
	}
	if err := os.Rename(staging, handle.RulesDir); err != nil {
		return nil, fmt.Errorf("failed to install rules: %w", err)
	}

	i.log.WithFields(logrus.Fields{
		"bundle": opts.CustomRulesPath,
		"files":  n,
	}).Debug("local cache initialized")

	handle.Files = n
	return handle, nil
}

// extractBundle untars the gzipped bundle into dst and returns the number of
// regular files written.
func extractBundle(ctx context.Context, bundlePath, dst string) (int, error) {
	f, err := os.Open(bundlePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open bundle: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("failed to read bundle %s: %w", bundlePath, err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	files := 0
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		// Insecure names are rejected by entryPath with a clearer message.
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			return 0, fmt.Errorf("failed to read bundle %s: %w", bundlePath, err)
		}

		// pax global headers only carry archive metadata, e.g. from git archive.
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		target, err := entryPath(dst, hdr.Name)
		if err != nil {
			return 0, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return 0, fmt.Errorf("failed to create %s: %w", target, err)
			}
		case tar.TypeReg:
			if hdr.Size > maxFileSize {
				return 0, fmt.Errorf("bundle entry %s is too large (%s)", hdr.Name, FormatSize(hdr.Size))
			}
			if err := writeEntry(target, tr, hdr.Size); err != nil {
				return 0, err
			}
			files++
		default:
			// Only directories and regular files are extracted.
			return 0, fmt.Errorf("unsupported entry %s of type %c in bundle", hdr.Name, hdr.Typeflag)
		}
	}
	return files, nil
}

// entryPath resolves name inside dst, rejecting entries escaping it.
func entryPath(dst, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("invalid bundle entry %q: absolute path", name)
	}
	target := filepath.Join(dst, name)
	rel, err := filepath.Rel(dst, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid bundle entry %q: outside of bundle", name)
	}
	return target, nil
}

func writeEntry(target string, r io.Reader, size int64) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.CopyN(out, r, size); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return out.Close()
}

func countFiles(dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			n++
		}
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to walk rules directory: %w", err)
	}
	return n, nil
}
