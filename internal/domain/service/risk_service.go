package service

import (
	"context"

	"github.com/turtacn/ccs/internal/domain/models"
	"github.com/turtacn/ccs/pkg/constants"
)

// RiskClassifier scores an inbound user turn before generation.
//
// Implementations run a cheap pattern filter first and consult the
// language-model judge only when the filter finds nothing. Classifier
// failures never surface as errors to the caller; they degrade to a
// safe verdict instead.
type RiskClassifier interface {
	// Classify assesses one user turn in the context of its tenant.
	Classify(ctx context.Context, input ClassifyInput) models.RiskAssessment
}

// ClassifyInput carries the turn and the tenant context the judge
// needs to tell vertical-appropriate requests from manipulation.
type ClassifyInput struct {
	TenantSlug string
	TenantType constants.TenantType
	Prompt     string
}

// RiskPolicy converts an assessment into a pipeline decision.
type RiskPolicy struct {
	// HighThreshold is the minimum risk level that blocks the turn.
	HighThreshold int

	// LogThreshold is the minimum risk level that is recorded without
	// blocking.
	LogThreshold int
}

// ShouldBlock reports whether the assessment blocks generation.
func (p RiskPolicy) ShouldBlock(a models.RiskAssessment) bool {
	return a.RiskLevel >= p.HighThreshold
}

// ShouldRecord reports whether the assessment is worth flagging on the
// session even though generation proceeds.
func (p RiskPolicy) ShouldRecord(a models.RiskAssessment) bool {
	return a.RiskLevel >= p.LogThreshold
}
