package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidLocator marks malformed source locators rejected before any write.
	ErrInvalidLocator = errors.New("invalid locator")
	// ErrInvalidTransition marks lifecycle state-machine violations.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrPolicyViolation marks duplicates rejected under a reject policy.
	ErrPolicyViolation = errors.New("policy violation")
	// ErrStore marks persistence failures; treated as potentially transient.
	ErrStore = errors.New("store failure")
	// ErrEngineUnavailable marks engine calls that failed without mutating state.
	ErrEngineUnavailable = errors.New("engine unavailable")
	// ErrRecovery marks startup re-registration failures.
	ErrRecovery = errors.New("recovery failure")
)

// Wrap builds an error that carries component/operation context while tagging
// it with the provided sentinel kind for later classification.
func Wrap(kind error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if kind == nil {
		kind = ErrStore
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", kind, detail, err)
	}
	return fmt.Errorf("%w: %s", kind, detail)
}

// Kind returns the stable name of the taxonomy entry an error belongs to, or
// "unknown" when the error carries no towline tag.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidLocator):
		return "invalid_locator"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrPolicyViolation):
		return "policy_violation"
	case errors.Is(err, ErrStore):
		return "store_error"
	case errors.Is(err, ErrEngineUnavailable):
		return "engine_unavailable"
	case errors.Is(err, ErrRecovery):
		return "recovery_failure"
	default:
		return "unknown"
	}
}

// Retryable reports whether an error kind is safe to retry without caller-side
// cleanup. Engine and store failures leave no partial writes behind.
func Retryable(err error) bool {
	return errors.Is(err, ErrEngineUnavailable) || errors.Is(err, ErrStore)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "operation failed"
	}
	return strings.Join(parts, ": ")
}
