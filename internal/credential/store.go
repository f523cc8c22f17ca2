// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package credential

import (
	"fmt"

	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
)

// CreateFunc returns the credential function used for registry.
// Explicit credentials win; otherwise the docker credential store is used.
func CreateFunc(registry, username, password string) (auth.CredentialFunc, error) {
	if username != "" || password != "" {
		return auth.StaticCredential(registry, auth.Credential{
			Username: username,
			Password: password,
		}), nil
	}

	s, err := CreateStore()
	if err != nil {
		return nil, err
	}
	return credentials.Credential(s), nil
}

// CreateStore creates a credential store with secure defaults
func CreateStore() (credentials.Store, error) {
	opt := credentials.StoreOptions{
		AllowPlaintextPut: false, // Secure default
	}
	s, err := credentials.NewStoreFromDocker(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}
	return s, nil
}
