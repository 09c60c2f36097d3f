package config

import (
	"os"
	"strconv"
	"strings"
)

// DefaultFollowUpFrequencyMonths is the system fallback cadence applied when an
// account has neither follow_up_frequency_months nor follow_up_times_per_year.
//
// Set via env:
// - CRM_DEFAULT_FOLLOWUP_MONTHS=3 (0 disables the fallback entirely)
func DefaultFollowUpFrequencyMonths() int {
	raw := strings.TrimSpace(os.Getenv("CRM_DEFAULT_FOLLOWUP_MONTHS"))
	if raw == "" {
		return 3
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 3
	}
	return n
}

// StrictInteractionImmutability keeps interaction records append-only at the API
// layer even for admins: no update/delete routes are registered when enabled.
//
// Set via env:
// - STRICT_INTERACTION_IMMUTABLE=true
func StrictInteractionImmutability() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_INTERACTION_IMMUTABLE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// AssignmentStrategyEnabled allows rollout of bulk-assignment strategies per
// deployment.
//
// Set via env:
// - CRM_ASSIGNMENT_STRATEGIES="MANUAL,ROUND_ROBIN,BY_PRIORITY"
//
// Empty means all strategies are enabled. Keys are case-insensitive.
func AssignmentStrategyEnabled(strategy string) bool {
	strategy = strings.ToUpper(strings.TrimSpace(strategy))
	if strategy == "" {
		return false
	}
	raw := os.Getenv("CRM_ASSIGNMENT_STRATEGIES")
	if strings.TrimSpace(raw) == "" {
		return true
	}
	for _, part := range strings.Split(raw, ",") {
		if strings.ToUpper(strings.TrimSpace(part)) == strategy {
			return true
		}
	}
	return false
}
