//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package integration

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/chez-shanpu/iac-rules/internal/rules"
)

var (
	registryOnce sync.Once
	registryAddr string
	registryErr  error
)

// getRegistry returns the shared registry address, starting the container if needed.
func getRegistry(tb testing.TB) string {
	tb.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}

	registryOnce.Do(func() {
		registryAddr, registryErr = startRegistryContainer(context.Background())
	})

	if registryErr != nil {
		tb.Fatalf("start registry container: %v", registryErr)
	}
	return registryAddr
}

// startRegistryContainer starts a registry:2 container and returns the host:port address.
func startRegistryContainer(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "registry:2",
		ExposedPorts: []string{"5000/tcp"},
		WaitingFor:   wait.ForHTTP("/v2/").WithPort("5000/tcp").WithStatusCodeMatcher(isOKStatus),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start registry container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve registry host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5000/tcp")
	if err != nil {
		return "", fmt.Errorf("resolve registry port: %w", err)
	}

	return fmt.Sprintf("%s:%s", host, port.Port()), nil
}

func isOKStatus(status int) bool {
	return status >= 200 && status < 300
}

// testRef generates a unique reference for a test to avoid collisions.
func testRef(tb testing.TB, registryAddr, tag string) rules.Reference {
	tb.Helper()

	name := strings.ToLower(strings.ReplaceAll(tb.Name(), "/", "-"))
	return rules.Reference{
		RegistryBase: registryAddr,
		Repo:         "test/" + strings.ReplaceAll(name, "_", "-"),
		Tag:          tag,
	}
}

func plainHTTP() *rules.PullOptions {
	return &rules.PullOptions{Request: rules.RequestOptions{PlainHTTP: true}}
}

// makeBundle builds a gzipped tar holding files.
func makeBundle(tb testing.TB, files map[string]string) []byte {
	tb.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for _, name := range names {
		body := files[name]
		require.NoError(tb, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(tb, err)
	}
	require.NoError(tb, tw.Close())
	require.NoError(tb, zw.Close())
	return buf.Bytes()
}

// writeBundle writes a bundle to a temporary file and returns its path.
func writeBundle(tb testing.TB, files map[string]string) (string, []byte) {
	tb.Helper()

	b := makeBundle(tb, files)
	path := filepath.Join(tb.TempDir(), "rules.tar.gz")
	require.NoError(tb, os.WriteFile(path, b, 0o644))
	return path, b
}
