package engine

import (
	"log/slog"
	"strconv"
)

// RemovalMode governs the action taken on an identity record found stale
// during reconciliation.
type RemovalMode string

const (
	// RemovalDisable marks the stale person with the configured suspended
	// type sentinel. This is the default.
	RemovalDisable RemovalMode = "disable"

	// RemovalDelete removes the stale person outright.
	RemovalDelete RemovalMode = "delete"

	// RemovalIgnore skips identity removal processing entirely.
	RemovalIgnore RemovalMode = "ignore"
)

// ParseRemovalMode validates a configured removal mode. Invalid values fall
// back to RemovalDisable with a warning.
func ParseRemovalMode(s string, log *slog.Logger) RemovalMode {
	switch RemovalMode(s) {
	case RemovalDisable, RemovalDelete, RemovalIgnore:
		return RemovalMode(s)
	}
	if log != nil {
		log.Warn("invalid user removal mode, falling back to disable",
			"value", s, "valid", []string{"disable", "delete", "ignore"})
	}
	return RemovalDisable
}

// Policies is the resolved policy surface for one run: installation-wide
// defaults merged with per-run overrides, read once at run start.
type Policies struct {
	// IgnoreMissingSessions suppresses processing of any child record whose
	// declared parent is absent from the current run's file-derived
	// valid-id set. When false, no valid-id sets are consulted and every
	// dependency check passes.
	IgnoreMissingSessions bool

	// IgnoreMembershipRemovals skips the sweep phase for membership and
	// enrollment kinds, leaving previously stamped rows untouched.
	IgnoreMembershipRemovals bool

	// UserRemovalMode selects the removal action for stale identities.
	UserRemovalMode RemovalMode
}

// Override keys accepted in the job property bag.
const (
	OverrideIgnoreMissingSessions    = "ignoreMissingSessions"
	OverrideIgnoreMembershipRemovals = "ignoreMembershipRemovals"
	OverrideUserRemovalMode          = "userRemovalMode"
)

// resolvePolicies merges per-run overrides into the configured defaults.
// Precedence: per-run override > installation default.
func resolvePolicies(defaults Policies, overrides map[string]string, log *slog.Logger) Policies {
	p := defaults
	if v, ok := overrides[OverrideIgnoreMissingSessions]; ok {
		b, _ := strconv.ParseBool(v)
		p.IgnoreMissingSessions = b
		log.Info("overriding ignoreMissingSessions for this run", "value", b)
	}
	if v, ok := overrides[OverrideIgnoreMembershipRemovals]; ok {
		b, _ := strconv.ParseBool(v)
		p.IgnoreMembershipRemovals = b
		log.Info("overriding ignoreMembershipRemovals for this run", "value", b)
	}
	if v, ok := overrides[OverrideUserRemovalMode]; ok {
		p.UserRemovalMode = ParseRemovalMode(v, log)
		log.Info("overriding userRemovalMode for this run", "value", string(p.UserRemovalMode))
	}
	return p
}
