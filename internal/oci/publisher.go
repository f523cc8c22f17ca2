// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package oci

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/file"
	"oras.land/oras-go/v2/registry/remote/auth"

	"github.com/chez-shanpu/iac-rules/internal/rules"
)

const (
	// ArtifactType identifies custom rules bundle artifacts.
	ArtifactType = "application/vnd.iac-rules.custom-rules.v1"
	// BundleMediaType is the media type of the single bundle layer.
	BundleMediaType = "application/vnd.iac-rules.custom-rules.bundle.v1.tar+gzip"
)

// Publisher pushes a local rules bundle to a remote registry as a single
// layer OCI artifact.
type Publisher struct {
	cache auth.Cache
}

func NewPublisher() *Publisher {
	return &Publisher{cache: auth.NewCache()}
}

// Publish packs the bundle at bundlePath into a manifest tagged ref.Tag and
// copies it to the repository of ref. It returns the manifest descriptor.
// opts carries the same credentials and request options as a pull.
func (p *Publisher) Publish(ctx context.Context, ref rules.Reference, bundlePath string, opts *rules.PullOptions) (ocispec.Descriptor, error) {
	fi, err := os.Stat(bundlePath)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("failed to stat bundle %q: %w", bundlePath, err)
	}
	if !fi.Mode().IsRegular() {
		return ocispec.Descriptor{}, fmt.Errorf("bundle %q is not a regular file", bundlePath)
	}

	workDir, err := os.MkdirTemp("", "iac-rules-push-*")
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("failed to create working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	fs, err := file.New(workDir)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("failed to create file store: %w", err)
	}
	defer fs.Close()

	manifestDesc, err := packBundle(ctx, fs, ref, bundlePath)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	repo, err := newAuthenticatedRepository(ref, opts, p.cache)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	if _, err := oras.Copy(ctx, fs, ref.Tag, repo, ref.Tag, oras.DefaultCopyOptions); err != nil {
		return ocispec.Descriptor{}, formatPushError(err, ref)
	}
	return manifestDesc, nil
}

// packBundle adds the bundle to fs as the only layer and tags the packed manifest.
func packBundle(ctx context.Context, fs *file.Store, ref rules.Reference, bundlePath string) (ocispec.Descriptor, error) {
	path, err := filepath.Abs(bundlePath)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("failed to get absolute path of %q: %w", bundlePath, err)
	}

	layerDesc, err := fs.Add(ctx, rules.BundleFileName, BundleMediaType, path)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("failed to add bundle: %w", err)
	}

	manifestDesc, err := oras.PackManifest(ctx, fs, oras.PackManifestVersion1_1, ArtifactType, oras.PackManifestOptions{
		Layers: []ocispec.Descriptor{layerDesc},
		ManifestAnnotations: map[string]string{
			ocispec.AnnotationTitle: ref.Repository(),
		},
	})
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("failed to pack bundle: %w", err)
	}

	if err := fs.Tag(ctx, manifestDesc, ref.Tag); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("failed to tag bundle: %w", err)
	}
	return manifestDesc, nil
}

// formatPushError adds a remediation hint to common push failures.
func formatPushError(err error, ref rules.Reference) error {
	return formatRegistryError(err, ref, "push", "push")
}
