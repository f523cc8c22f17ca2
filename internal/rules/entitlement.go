// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package rules

import "context"

// CustomRulesEntitlement gates pulling custom rules bundles.
const CustomRulesEntitlement = "iacCustomRulesEntitlement"

// EntitlementChecker reports whether the caller's account has an entitlement.
type EntitlementChecker interface {
	Entitled(ctx context.Context, name string) (bool, error)
}

// checkEntitlement returns a KindUnsupportedEntitlement error when the
// entitlement is missing. Errors from the checker itself are returned as is.
func checkEntitlement(ctx context.Context, c EntitlementChecker, name string) error {
	if c == nil {
		return nil
	}
	ok, err := c.Entitled(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return NewUnsupportedEntitlementError(name)
	}
	return nil
}
