// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package rules

import (
	"strings"
)

// DefaultTag is used when the registry URL carries no tag.
const DefaultTag = "latest"

// Reference locates a rules bundle in a remote registry.
type Reference struct {
	RegistryBase string
	Repo         string
	Tag          string
}

// ParseReference splits a registry URL such as
// "https://registry.example.com/org/rules:v1" into its components.
// The scheme is optional and ignored. Every malformed input yields a
// KindInvalidReference error.
func ParseReference(raw string) (Reference, error) {
	rest := raw
	if _, after, found := strings.Cut(raw, "://"); found {
		rest = after
	}

	host, repoWithTag, found := strings.Cut(rest, "/")
	if !found || host == "" || repoWithTag == "" {
		return Reference{}, NewInvalidReferenceError(raw)
	}

	parts := strings.Split(repoWithTag, ":")
	repo := parts[0]
	if repo == "" {
		return Reference{}, NewInvalidReferenceError(raw)
	}

	tag := DefaultTag
	if len(parts) > 1 && parts[1] != "" {
		tag = parts[1]
	}

	return Reference{RegistryBase: host, Repo: repo, Tag: tag}, nil
}

// Repository returns the "<registry>/<repo>" form expected by registry clients.
func (r Reference) Repository() string {
	return r.RegistryBase + "/" + r.Repo
}

func (r Reference) String() string {
	return r.Repository() + ":" + r.Tag
}
