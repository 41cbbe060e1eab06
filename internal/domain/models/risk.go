package models

import (
	"time"

	"github.com/turtacn/ccs/pkg/constants"
)

// VerdictKind tags the outcome of a risk assessment. Inconclusive verdicts
// (judge unreachable or unparsable) are mapped to Safe at exactly one policy
// point in the classifier, so the fail-open decision stays auditable.
type VerdictKind string

const (
	// VerdictSafe means the turn proceeds normally.
	VerdictSafe VerdictKind = "safe"

	// VerdictSuspicious means the turn is blocked and the session flagged.
	VerdictSuspicious VerdictKind = "suspicious"

	// VerdictInconclusive means the judge failed; policy degrades it to safe.
	VerdictInconclusive VerdictKind = "inconclusive"
)

// RiskAssessment is the per-turn verdict of the two-stage classifier. It is
// ephemeral: only its effect on the session's risk flags persists.
type RiskAssessment struct {
	Kind       VerdictKind
	RiskLevel  int // clamped to [RiskLevelMin, RiskLevelMax]
	Suspicious bool
	Reason     string

	// PatternMatched is set when the quick filter short-circuited stage B.
	PatternMatched string

	// ParseFailure marks a fail-open verdict caused by judge malfunction.
	ParseFailure bool

	// AnalysisTime is how long the assessment took; zero when stage B was
	// skipped for a short message.
	AnalysisTime time.Duration
}

// SafeAssessment returns the minimal-risk verdict used for skipped or
// failed-open judgments.
func SafeAssessment(reason string) RiskAssessment {
	return RiskAssessment{
		Kind:      VerdictSafe,
		RiskLevel: constants.RiskLevelMin,
		Reason:    reason,
	}
}

// ClampRiskLevel forces a backend-reported level into the valid range.
func ClampRiskLevel(level int) int {
	if level < constants.RiskLevelMin {
		return constants.RiskLevelMin
	}
	if level > constants.RiskLevelMax {
		return constants.RiskLevelMax
	}
	return level
}
