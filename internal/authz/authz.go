// ABOUTME: Project-scope authorization checks for kill requests
// ABOUTME: Pure predicate comparing caller and target project identity

package authz

// Decision is the outcome of a project-scope check.
type Decision int

const (
	// Allowed means the caller and target belong to the same project.
	Allowed Decision = iota
	// DeniedNoCallerContext means the caller has no project identity at all.
	DeniedNoCallerContext
	// DeniedCrossProject means the caller's project differs from the target's.
	DeniedCrossProject
)

// String returns a short machine-friendly name for the decision.
func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case DeniedNoCallerContext:
		return "denied_no_caller_context"
	case DeniedCrossProject:
		return "denied_cross_project"
	default:
		return "unknown"
	}
}

// Check compares the caller's project scope against the target's.
// An empty caller project always denies; a mismatch always denies.
// The same predicate is applied to agent and shell targets.
func Check(callerProjectID, targetProjectID string) Decision {
	if callerProjectID == "" {
		return DeniedNoCallerContext
	}
	if callerProjectID != targetProjectID {
		return DeniedCrossProject
	}
	return Allowed
}

// DenialMessage returns user-facing text for a denied decision.
// Messages never name resources belonging to another project.
func DenialMessage(d Decision) string {
	switch d {
	case DeniedNoCallerContext:
		return "cannot verify project scope: caller has no project context"
	case DeniedCrossProject:
		return "target belongs to a different project; cross-project kills are not permitted"
	default:
		return ""
	}
}
