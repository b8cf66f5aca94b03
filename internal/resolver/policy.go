package resolver

import (
	"fmt"
	"strings"

	"towline/internal/faults"
)

// Policy selects how duplicate matches are handled.
type Policy string

const (
	// AlwaysReuse hands back the existing task for any match.
	AlwaysReuse Policy = "always_reuse"
	// NeverReuse ignores matches and requests fresh work.
	NeverReuse Policy = "never_reuse"
	// ReuseIfComplete reuses only finished tasks whose payload still exists.
	ReuseIfComplete Policy = "reuse_if_complete"
	// ReuseIfIncomplete resumes in-flight tasks but redownloads finished ones.
	ReuseIfIncomplete Policy = "reuse_if_incomplete"
	// PromptCaller defers the decision, surfacing match details.
	PromptCaller Policy = "prompt_caller"
	// RejectOnDuplicate fails the request when a match exists.
	RejectOnDuplicate Policy = "reject_on_duplicate"
)

var allPolicies = []Policy{
	AlwaysReuse,
	NeverReuse,
	ReuseIfComplete,
	ReuseIfIncomplete,
	PromptCaller,
	RejectOnDuplicate,
}

// AllPolicies returns the known policies in display order.
func AllPolicies() []Policy {
	cp := make([]Policy, len(allPolicies))
	copy(cp, allPolicies)
	return cp
}

// ParsePolicy converts a config or flag string into a Policy.
func ParsePolicy(value string) (Policy, error) {
	normalized := Policy(strings.ToLower(strings.TrimSpace(value)))
	for _, policy := range allPolicies {
		if normalized == policy {
			return policy, nil
		}
	}
	return "", faults.Wrap(faults.ErrPolicyViolation, "resolver", "parse_policy",
		fmt.Sprintf("unknown policy %q", value), nil)
}
