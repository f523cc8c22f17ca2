// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package oci

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"

	"github.com/chez-shanpu/iac-rules/internal/credential"
	"github.com/chez-shanpu/iac-rules/internal/rules"
)

// Fetcher retrieves rules bundle manifests and layers from a remote registry.
type Fetcher struct {
	cache auth.Cache
}

// NewFetcher returns a Fetcher sharing one token cache across requests.
func NewFetcher() *Fetcher {
	return &Fetcher{cache: auth.NewCache()}
}

// GetManifest fetches and decodes the manifest tagged ref.Tag.
func (f *Fetcher) GetManifest(ctx context.Context, ref rules.Reference, opts *rules.PullOptions) (ocispec.Manifest, error) {
	repo, err := newAuthenticatedRepository(ref, opts, f.cache)
	if err != nil {
		return ocispec.Manifest{}, err
	}

	desc, rc, err := repo.Manifests().FetchReference(ctx, ref.Tag)
	if err != nil {
		return ocispec.Manifest{}, formatFetchError(err, ref)
	}
	defer rc.Close()

	b, err := content.ReadAll(rc, desc)
	if err != nil {
		return ocispec.Manifest{}, fmt.Errorf("failed to read manifest %s: %w", ref, err)
	}

	var m ocispec.Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return ocispec.Manifest{}, fmt.Errorf("failed to unmarshal manifest %s: %w", ref, err)
	}
	return m, nil
}

// GetLayer fetches the blob addressed by dgst from the repository of ref.
func (f *Fetcher) GetLayer(ctx context.Context, ref rules.Reference, dgst digest.Digest, opts *rules.PullOptions) ([]byte, error) {
	if err := dgst.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layer digest %q: %w", dgst, err)
	}

	repo, err := newAuthenticatedRepository(ref, opts, f.cache)
	if err != nil {
		return nil, err
	}

	desc, rc, err := repo.Blobs().FetchReference(ctx, dgst.String())
	if err != nil {
		return nil, formatFetchError(err, ref)
	}
	defer rc.Close()

	b, err := content.ReadAll(rc, desc)
	if err != nil {
		return nil, fmt.Errorf("failed to read layer %s: %w", dgst, err)
	}
	return b, nil
}

// newAuthenticatedRepository creates and configures a repository with authentication
func newAuthenticatedRepository(ref rules.Reference, opts *rules.PullOptions, cache auth.Cache) (*remote.Repository, error) {
	if opts == nil {
		opts = &rules.PullOptions{}
	}

	c, err := credential.CreateFunc(ref.RegistryBase, opts.Username, opts.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential for registry %s: %w", ref.RegistryBase, err)
	}

	repo, err := remote.NewRepository(ref.Repository())
	if err != nil {
		return nil, fmt.Errorf("failed to create repository %s: %w", ref.Repository(), err)
	}

	// Tokens are cached per host, so explicit credentials get a cache of their own.
	if opts.Username != "" || opts.Password != "" {
		cache = auth.NewCache()
	}

	client := &auth.Client{
		Client:     retry.DefaultClient,
		Cache:      cache,
		Credential: c,
		Header:     opts.Request.Header.Clone(),
	}
	if opts.Request.UserAgent != "" {
		client.SetUserAgent(opts.Request.UserAgent)
	}
	repo.Client = client

	// Enable PlainHTTP for localhost registries (for testing)
	repo.PlainHTTP = opts.Request.PlainHTTP || isLocalRegistry(ref.RegistryBase)

	return repo, nil
}

// formatFetchError adds a remediation hint to common registry failures.
// The original error stays in the chain.
func formatFetchError(err error, ref rules.Reference) error {
	if errors.Is(err, errdef.ErrNotFound) {
		return fmt.Errorf("custom rules bundle %s not found: %w", ref, err)
	}
	return formatRegistryError(err, ref, "fetch", "pull")
}

// formatRegistryError classifies registry failures by their message. verb names
// the failed operation and permission the access the repository requires.
func formatRegistryError(err error, ref rules.Reference, verb, permission string) error {
	errorMsg := err.Error()

	if strings.Contains(errorMsg, "401") || strings.Contains(errorMsg, "unauthorized") {
		return fmt.Errorf("authentication failed for registry %s: %w\n"+
			"Please check the registry username and password, or log in using 'docker login %s'", ref.RegistryBase, err, ref.RegistryBase)
	}

	if strings.Contains(errorMsg, "403") || strings.Contains(errorMsg, "forbidden") {
		return fmt.Errorf("access denied to repository %s: %w\n"+
			"Check if you have %s permissions to this repository", ref.Repository(), err, permission)
	}

	if strings.Contains(errorMsg, "connection") || strings.Contains(errorMsg, "timeout") || strings.Contains(errorMsg, "network") {
		return fmt.Errorf("network error with %s: %w\n"+
			"Check your network connection and registry availability", ref.RegistryBase, err)
	}

	return fmt.Errorf("failed to %s %s: %w", verb, ref, err)
}

// isLocalRegistry checks if the registry is a local/test registry that should use PlainHTTP
func isLocalRegistry(registry string) bool {
	return strings.HasPrefix(registry, "localhost") ||
		strings.HasPrefix(registry, "127.0.0.1")
}
