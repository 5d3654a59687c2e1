package domain

import (
	"strings"
)

// CapabilityPolicy pre-approves capabilities for widgets served from matching origins.
// Capabilities not covered by any policy are left to the user prompt.
type CapabilityPolicy struct {
	Origin       string   `json:"origin"`       // Origin pattern (supports "*", "prefix*" and "*suffix")
	Capabilities []string `json:"capabilities"` // Capability patterns (supports "*" and "prefix*")
	AllowOpenID  bool     `json:"allow_openid"` // Skip the prompt for identity assertions
}

// matchPattern checks a value against a policy pattern.
// Supports three forms:
//  1. Full wildcard: "*" matches any value
//  2. Trailing wildcard: "org.matrix.msc2762.send.event:*" matches any value with that prefix
//  3. Leading wildcard: "*.example.org" matches any value with that suffix
//
// Anything else must match exactly. Matching is case-sensitive.
func matchPattern(pattern, value string) bool {
	if pattern == "*" {
		return true
	}

	if !strings.Contains(pattern, "*") {
		return pattern == value
	}

	if prefix, ok := strings.CutSuffix(pattern, "*"); ok && !strings.Contains(prefix, "*") {
		return strings.HasPrefix(value, prefix)
	}

	if suffix, ok := strings.CutPrefix(pattern, "*"); ok && !strings.Contains(suffix, "*") {
		return strings.HasSuffix(value, suffix)
	}

	// Mid-pattern wildcards are not supported
	return false
}

// MatchesOrigin reports whether the policy applies to a widget served from origin.
// An empty origin never matches.
func (p CapabilityPolicy) MatchesOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	return matchPattern(p.Origin, origin)
}

// Permits reports whether the policy covers the capability.
func (p CapabilityPolicy) Permits(capability Capability) bool {
	if capability == "" {
		return false
	}
	for _, pattern := range p.Capabilities {
		if matchPattern(pattern, string(capability)) {
			return true
		}
	}
	return false
}

// PolicySet is the ordered list of policies configured on the host.
type PolicySet []CapabilityPolicy

// Approve returns the subset of requested covered by any policy matching origin.
// The result is always a subset of requested.
func (ps PolicySet) Approve(origin string, requested CapabilitySet) CapabilitySet {
	approved := make(CapabilitySet)
	for _, policy := range ps {
		if !policy.MatchesOrigin(origin) {
			continue
		}
		for c := range requested {
			if policy.Permits(c) {
				approved[c] = struct{}{}
			}
		}
	}
	return approved
}

// AllowsOpenID reports whether any policy matching origin pre-approves identity assertions.
func (ps PolicySet) AllowsOpenID(origin string) bool {
	for _, policy := range ps {
		if policy.AllowOpenID && policy.MatchesOrigin(origin) {
			return true
		}
	}
	return false
}
