// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package rules

import (
	"context"
	"io"
	"net/http"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sirupsen/logrus"
)

// SupportedSchemaVersion is the only manifest schema version accepted.
const SupportedSchemaVersion = 2

// RequestOptions tune the registry requests made by a Fetcher.
type RequestOptions struct {
	PlainHTTP bool
	Header    http.Header
	UserAgent string
}

// PullOptions holds the optional credentials and request options for a pull.
type PullOptions struct {
	Username string
	Password string
	Request  RequestOptions
}

// Fetcher retrieves manifests and layer blobs from a registry.
// Errors are returned to the caller of Pull untouched.
type Fetcher interface {
	GetManifest(ctx context.Context, ref Reference, opts *PullOptions) (ocispec.Manifest, error)
	GetLayer(ctx context.Context, ref Reference, dgst digest.Digest, opts *PullOptions) ([]byte, error)
}

// CacheOptions describes what the local cache should be (re)built from.
type CacheOptions struct {
	CustomRulesPath string
}

// CacheHandle describes the local cache after initialization.
type CacheHandle struct {
	Dir             string
	RulesBundlePath string
	RulesDir        string
	Files           int
}

// CacheInitializer (re)builds the local cache consumed by the scanning engine.
type CacheInitializer interface {
	InitLocalCache(ctx context.Context, opts CacheOptions) (*CacheHandle, error)
}

// Puller downloads a rules bundle and hands it to the local cache.
// It is not safe to run two pulls against the same cache directory at once.
type Puller struct {
	fetcher      Fetcher
	cache        CacheInitializer
	entitlements EntitlementChecker
	cacheDir     string
	log          logrus.FieldLogger
}

// Option configures a Puller.
type Option func(*Puller)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Puller) {
		p.log = l
	}
}

// WithEntitlementChecker gates PullURL behind CustomRulesEntitlement.
func WithEntitlementChecker(c EntitlementChecker) Option {
	return func(p *Puller) {
		p.entitlements = c
	}
}

// DiscardLogger returns a logger dropping every entry.
func DiscardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// NewPuller returns a Puller writing the bundle into cacheDir.
func NewPuller(fetcher Fetcher, cache CacheInitializer, cacheDir string, opts ...Option) *Puller {
	p := &Puller{
		fetcher:  fetcher,
		cache:    cache,
		cacheDir: cacheDir,
		log:      DiscardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BundlePath returns where Pull writes the bundle.
func (p *Puller) BundlePath() string {
	return BundlePath(p.cacheDir)
}

// PullURL checks the entitlement, parses rawURL and pulls the bundle it names.
func (p *Puller) PullURL(ctx context.Context, rawURL string, opts *PullOptions) (*CacheHandle, error) {
	if err := checkEntitlement(ctx, p.entitlements, CustomRulesEntitlement); err != nil {
		return nil, err
	}

	ref, err := ParseReference(rawURL)
	if err != nil {
		return nil, err
	}

	return p.Pull(ctx, ref, opts)
}

// Pull fetches the manifest for ref, downloads its first layer, writes it to
// the bundle path and initializes the local cache from it.
func (p *Puller) Pull(ctx context.Context, ref Reference, opts *PullOptions) (*CacheHandle, error) {
	log := p.log.WithField("reference", ref.String())

	log.Debug("fetching manifest")
	manifest, err := p.fetcher.GetManifest(ctx, ref, opts)
	if err != nil {
		return nil, err
	}

	layer, err := p.validateManifest(log, manifest)
	if err != nil {
		return nil, err
	}

	log.WithField("digest", layer.Digest.String()).Debug("fetching layer")
	blob, err := p.fetcher.GetLayer(ctx, ref, layer.Digest, opts)
	if err != nil {
		return nil, err
	}

	handle, err := p.build(ctx, blob)
	if err != nil {
		return nil, NewArtifactBuildError(err)
	}

	log.WithField("path", handle.RulesBundlePath).Debug("custom rules bundle pulled")
	return handle, nil
}

// validateManifest checks the manifest and returns the layer holding the bundle.
func (p *Puller) validateManifest(log logrus.FieldLogger, m ocispec.Manifest) (ocispec.Descriptor, error) {
	if m.SchemaVersion != SupportedSchemaVersion {
		return ocispec.Descriptor{}, NewUnsupportedManifestVersionError(m.SchemaVersion)
	}
	if len(m.Layers) == 0 {
		return ocispec.Descriptor{}, NewInvalidArtifactError("manifest has no layers")
	}
	// Bundles are single layer artifacts; extra layers are ignored.
	if len(m.Layers) > 1 {
		log.WithField("layers", len(m.Layers)).Debug("there were more than one layers found in the OCI artifact")
	}
	return m.Layers[0], nil
}

// build persists the blob and only then triggers the cache.
func (p *Puller) build(ctx context.Context, blob []byte) (*CacheHandle, error) {
	path := p.BundlePath()
	if err := Materialize(blob, path); err != nil {
		return nil, err
	}
	return p.cache.InitLocalCache(ctx, CacheOptions{CustomRulesPath: path})
}
