// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

//go:build e2e

package test

import (
	"archive/tar"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/gzip"
	. "github.com/onsi/gomega"
)

// Fixtures manages test bundles and temporary directories
type Fixtures struct {
	tempDir string
}

// NewFixtures creates a new test fixtures instance
func NewFixtures() *Fixtures {
	tempDir, err := os.MkdirTemp("", "iac-rules-test-*")
	Expect(err).NotTo(HaveOccurred())

	return &Fixtures{
		tempDir: tempDir,
	}
}

// Cleanup removes all temporary test files
func (f *Fixtures) Cleanup() {
	if f.tempDir != "" {
		os.RemoveAll(f.tempDir)
	}
}

// ConfigPath returns a config file location that does not exist, so that
// the user's configuration never leaks into the tests.
func (f *Fixtures) ConfigPath() string {
	return filepath.Join(f.tempDir, "config.yaml")
}

// CreateBundle writes a gzipped tar holding files and returns its path.
func (f *Fixtures) CreateBundle(name string, files map[string]string) string {
	path := filepath.Join(f.tempDir, name)
	out, err := os.Create(path)
	Expect(err).NotTo(HaveOccurred())
	defer out.Close()

	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)

	zw := gzip.NewWriter(out)
	tw := tar.NewWriter(zw)
	for _, n := range names {
		body := files[n]
		Expect(tw.WriteHeader(&tar.Header{
			Name:     n,
			Mode:     0o644,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		})).To(Succeed())
		_, err := tw.Write([]byte(body))
		Expect(err).NotTo(HaveOccurred())
	}
	Expect(tw.Close()).To(Succeed())
	Expect(zw.Close()).To(Succeed())
	return path
}

// CreateFile writes a plain file, e.g. an invalid bundle.
func (f *Fixtures) CreateFile(name, content string) string {
	path := filepath.Join(f.tempDir, name)
	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
	return path
}

// GetSimpleBundle returns the rule files of a small custom rules bundle
func (f *Fixtures) GetSimpleBundle() map[string]string {
	return map[string]string{
		"policies/deny_public_bucket.rego": `package rules

deny[msg] {
  input.resource.aws_s3_bucket[name].acl == "public-read"
  msg := sprintf("bucket %s must not be public", [name])
}
`,
		"policies/require_tags.rego": `package rules

deny[msg] {
  not input.resource.aws_instance[name].tags
  msg := sprintf("instance %s must be tagged", [name])
}
`,
	}
}
