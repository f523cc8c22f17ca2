//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

// Package integration exercises pushing and pulling custom rules bundles
// against a real OCI registry started with testcontainers.
//
// Run with: go test -tags=integration ./integration/...
package integration
