package risk

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/turtacn/ccs/internal/config"
	"github.com/turtacn/ccs/internal/domain/models"
	"github.com/turtacn/ccs/internal/domain/service"
	"github.com/turtacn/ccs/pkg/constants"
	"github.com/turtacn/ccs/pkg/logger"
)

// Classifier is the production RiskClassifier: stage A is the pattern
// filter, stage B the language-model judge. Classification never returns an
// error; every failure path degrades to a safe verdict.
type Classifier struct {
	judge          judge
	minJudgeLength int
	judgeTimeout   time.Duration
	log            logger.Logger
}

// NewClassifier builds the classifier around a completion backend.
func NewClassifier(backend service.CompletionBackend, cfg *config.RiskConfig, judgeModel string, log logger.Logger) *Classifier {
	minLen := cfg.MinJudgeLength
	if minLen <= 0 {
		minLen = constants.DefaultMinJudgeLength
	}
	return &Classifier{
		judge:          judge{backend: backend, model: judgeModel},
		minJudgeLength: minLen,
		judgeTimeout:   cfg.JudgeTimeout(),
		log:            log.WithComponent("risk_classifier"),
	}
}

// Classify assesses one user turn.
func (c *Classifier) Classify(ctx context.Context, input service.ClassifyInput) models.RiskAssessment {
	// Stage A: mechanical markers are maximum risk, no judge consulted.
	if label := MatchPattern(input.Prompt); label != "" {
		return models.RiskAssessment{
			Kind:           models.VerdictSuspicious,
			RiskLevel:      constants.RiskLevelMax,
			Suspicious:     true,
			Reason:         "injection pattern detected",
			PatternMatched: label,
		}
	}

	// Too short to manipulate anything; not worth a judge round trip.
	if utf8.RuneCountInString(input.Prompt) < c.minJudgeLength {
		return models.SafeAssessment("below judgment length")
	}

	// Stage B: semantic judgment with a hard deadline.
	start := time.Now()
	judgeCtx, cancel := context.WithTimeout(ctx, c.judgeTimeout)
	defer cancel()

	verdict, err := c.judge.assess(judgeCtx, input)
	elapsed := time.Since(start)
	if err != nil {
		// Fail open. Availability wins over false-positive safety; the
		// degraded verdict is marked so operators can count occurrences.
		c.log.Warn(ctx, "risk judgment unavailable, failing open",
			logger.String("tenant_slug", input.TenantSlug),
			logger.Error(err),
		)
		a := models.SafeAssessment("judge unavailable")
		a.Kind = models.VerdictInconclusive
		a.ParseFailure = true
		a.AnalysisTime = elapsed
		return degradeInconclusive(a)
	}

	level := models.ClampRiskLevel(*verdict.RiskLevel)
	kind := models.VerdictSafe
	if verdict.Suspicious {
		kind = models.VerdictSuspicious
	}
	return models.RiskAssessment{
		Kind:         kind,
		RiskLevel:    level,
		Suspicious:   verdict.Suspicious,
		Reason:       verdict.Reason,
		AnalysisTime: elapsed,
	}
}

// degradeInconclusive is the single point where an inconclusive verdict is
// mapped to safe.
func degradeInconclusive(a models.RiskAssessment) models.RiskAssessment {
	if a.Kind != models.VerdictInconclusive {
		return a
	}
	a.Kind = models.VerdictSafe
	a.RiskLevel = constants.RiskLevelMin
	a.Suspicious = false
	return a
}
