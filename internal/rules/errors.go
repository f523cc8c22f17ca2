// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package rules

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Kind identifies a failure of the pull flow. Callers dispatch on the kind
// rather than on the concrete error type.
type Kind int

const (
	KindInvalidReference Kind = iota + 1
	KindUnsupportedManifestVersion
	KindArtifactBuildFailure
	KindUnsupportedEntitlement
	KindInvalidArtifact
)

// Stable numeric error codes surfaced to callers.
const (
	CodeFailedToBuildOCIArtifact     = 1080
	CodeInvalidRemoteRegistryURL     = 1081
	CodeInvalidManifestSchemaVersion = 1082
	CodeUnsupportedEntitlementPull   = 1083
	CodeInvalidArtifact              = 1084
)

var codeNames = map[int]string{
	CodeFailedToBuildOCIArtifact:     "FailedToBuildOCIArtifactError",
	CodeInvalidRemoteRegistryURL:     "InvalidRemoteRegistryURLError",
	CodeInvalidManifestSchemaVersion: "InvalidManifestSchemaVersionError",
	CodeUnsupportedEntitlementPull:   "UnsupportedEntitlementPullError",
	CodeInvalidArtifact:              "InvalidArtifactError",
}

// Error is the typed failure returned by the pull flow.
type Error struct {
	Kind        Kind
	Code        int
	StrCode     string
	Message     string
	UserMessage string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err, or any error it wraps, is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func newError(kind Kind, code int, msg, userMsg string, cause error) *Error {
	return &Error{
		Kind:        kind,
		Code:        code,
		StrCode:     StringCode(code),
		Message:     msg,
		UserMessage: userMsg,
		Err:         cause,
	}
}

// NewInvalidReferenceError reports a registry URL that cannot be decomposed.
func NewInvalidReferenceError(url string) *Error {
	userMsg := "The provided remote registry URL is invalid. Please check it again."
	if url != "" {
		userMsg = fmt.Sprintf("The provided remote registry URL: %q is invalid. Please check it again.", url)
	}
	return newError(KindInvalidReference, CodeInvalidRemoteRegistryURL,
		"invalid URL for remote registry", userMsg, nil)
}

// NewUnsupportedManifestVersionError reports a manifest whose schema version is not 2.
func NewUnsupportedManifestVersionError(version int) *Error {
	return newError(KindUnsupportedManifestVersion, CodeInvalidManifestSchemaVersion,
		fmt.Sprintf("invalid manifest schema version %d", version),
		fmt.Sprintf("Invalid manifest schema version: %d. We currently support Image Manifest Version 2, Schema 2", version),
		nil)
}

// NewArtifactBuildError reports a failure to persist the bundle or rebuild the local cache.
func NewArtifactBuildError(cause error) *Error {
	return newError(KindArtifactBuildFailure, CodeFailedToBuildOCIArtifact,
		"could not build OCI artifact",
		"We were unable to build the remote OCI Artifact locally, please ensure that the local directory is writeable.",
		cause)
}

// NewUnsupportedEntitlementError reports that the caller lacks the entitlement gating pulls.
func NewUnsupportedEntitlementError(entitlement string) *Error {
	return newError(KindUnsupportedEntitlement, CodeUnsupportedEntitlementPull,
		fmt.Sprintf("OCI pull not supported - missing the %s entitlement", entitlement),
		"The custom rules feature is currently not supported for this org. To enable it, please contact support.",
		nil)
}

// NewInvalidArtifactError reports a manifest that references no layer.
func NewInvalidArtifactError(reason string) *Error {
	return newError(KindInvalidArtifact, CodeInvalidArtifact,
		fmt.Sprintf("invalid OCI artifact: %s", reason),
		"The remote OCI Artifact is not a valid custom rules bundle. Please check that it was pushed with a single layer.",
		nil)
}

// StringCode derives the short string code for a numeric code, e.g.
// 1081 becomes "INVALID_REMOTE_REGISTRY_URL".
func StringCode(code int) string {
	name, ok := codeNames[code]
	if !ok {
		return "INVALID_IAC_ERROR"
	}
	name = strings.TrimSuffix(name, "Error")

	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
