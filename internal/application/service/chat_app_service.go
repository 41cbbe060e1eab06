package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/ccs/internal/application/dto"
	"github.com/turtacn/ccs/internal/domain/models"
	"github.com/turtacn/ccs/internal/domain/repository"
	domainservice "github.com/turtacn/ccs/internal/domain/service"
	"github.com/turtacn/ccs/internal/infrastructure/monitoring"
	"github.com/turtacn/ccs/pkg/constants"
	ccserrors "github.com/turtacn/ccs/pkg/errors"
	"github.com/turtacn/ccs/pkg/logger"
	"github.com/turtacn/ccs/pkg/utils"
)

// ====== Pipeline State Machine ======

// pipelineState names the stage a turn has reached. Used for step timing
// and for the failure log line; the value never leaves the process.
type pipelineState string

const (
	stateGated      pipelineState = "GATED"
	stateResolved   pipelineState = "RESOLVED"
	stateSessioned  pipelineState = "SESSIONED"
	stateClassified pipelineState = "CLASSIFIED"
	stateGenerated  pipelineState = "GENERATED"
	statePersisted  pipelineState = "PERSISTED"
	stateDone       pipelineState = "DONE"
	stateBlocked    pipelineState = "BLOCKED"
	stateFailed     pipelineState = "FAILED"
)

// turnProgress accumulates per-step timings as the state machine advances.
type turnProgress struct {
	state   pipelineState
	started time.Time
	stepAt  time.Time
	steps   []logger.Field

	dbTime        time.Duration
	riskTime      time.Duration
	genTime       time.Duration
	firstToken    time.Duration
	tokenEstimate int
}

func newTurnProgress() *turnProgress {
	now := time.Now()
	return &turnProgress{state: stateGated, started: now, stepAt: now}
}

// advance closes the current step and enters the next state.
func (p *turnProgress) advance(next pipelineState) {
	now := time.Now()
	p.steps = append(p.steps, logger.Duration(string(p.state), now.Sub(p.stepAt)))
	p.state = next
	p.stepAt = now
}

func (p *turnProgress) total() time.Duration {
	return time.Since(p.started)
}

func (p *turnProgress) metrics() dto.TurnMetrics {
	return dto.TurnMetrics{
		TotalTimeMs:        p.total().Milliseconds(),
		DBTimeMs:           p.dbTime.Milliseconds(),
		GenerationTimeMs:   p.genTime.Milliseconds(),
		TimeToFirstTokenMs: p.firstToken.Milliseconds(),
		EstimatedTokens:    p.tokenEstimate,
		RiskAnalysisTimeMs: p.riskTime.Milliseconds(),
	}
}

// ====== Chat Application Service ======

// TurnCommand is one inbound chat turn plus its caller identity.
type TurnCommand struct {
	ClientKey string
	RequestID string
	Request   dto.ChatRequest
}

// TurnResult carries the response body plus the gate state the HTTP layer
// mirrors into headers.
type TurnResult struct {
	Response *dto.ChatResponse
	Gate     domainservice.AdmitResult
}

// ChatAppService is the pipeline orchestrator. One call to HandleTurn walks
// a turn through admission, tenant resolution, session continuity, risk
// classification, generation, and transcript persistence.
type ChatAppService struct {
	gate       domainservice.RequestGate
	tenants    repository.TenantRepository
	sessions   *SessionAppService
	messages   repository.MessageRepository
	classifier domainservice.RiskClassifier
	policy     domainservice.RiskPolicy
	generator  domainservice.GenerationClient
	audit      domainservice.AuditTrail
	metrics    *monitoring.Metrics
	log        logger.Logger

	historyLimit int
}

// NewChatAppService wires the orchestrator. All collaborators are required;
// use the noop audit trail when kafka is disabled and a registry-scoped
// Metrics in tests.
func NewChatAppService(
	gate domainservice.RequestGate,
	tenants repository.TenantRepository,
	sessions *SessionAppService,
	messages repository.MessageRepository,
	classifier domainservice.RiskClassifier,
	policy domainservice.RiskPolicy,
	generator domainservice.GenerationClient,
	audit domainservice.AuditTrail,
	metrics *monitoring.Metrics,
	log logger.Logger,
) *ChatAppService {
	return &ChatAppService{
		gate:         gate,
		tenants:      tenants,
		sessions:     sessions,
		messages:     messages,
		classifier:   classifier,
		policy:       policy,
		generator:    generator,
		audit:        audit,
		metrics:      metrics,
		log:          log.WithComponent("chat_pipeline"),
		historyLimit: 40,
	}
}

// HandleTurn executes one chat turn. Blocked-by-risk turns return a normal
// response with Blocked set; only gate denials and genuine failures return
// errors.
func (s *ChatAppService) HandleTurn(ctx context.Context, cmd TurnCommand) (*TurnResult, error) {
	progress := newTurnProgress()

	// GATED
	gateRes := s.gate.Admit(ctx, cmd.ClientKey)
	if !gateRes.Allowed {
		s.metrics.GateDenialsTotal.WithLabelValues(cmd.Request.TenantSlug).Inc()
		s.metrics.TurnsTotal.WithLabelValues(cmd.Request.TenantSlug, "rate_limited").Inc()
		s.publishAudit(ctx, models.AuditEvent{
			EventType:  constants.EventTypeRateLimitExceeded,
			TenantSlug: cmd.Request.TenantSlug,
			ClientKey:  cmd.ClientKey,
			RequestID:  cmd.RequestID,
		})
		return &TurnResult{Gate: gateRes},
			ccserrors.ErrRateLimitExceeded(cmd.ClientKey, gateRes.RetryAfterSeconds())
	}
	progress.advance(stateResolved)

	// RESOLVED
	tenant, err := s.resolveTenant(ctx, cmd.Request.TenantSlug, progress)
	if err != nil {
		return s.fail(ctx, cmd, progress, gateRes, err)
	}

	persona := s.selectPersona(ctx, tenant, cmd.Request.PersonaKey)
	progress.advance(stateSessioned)

	// SESSIONED
	session, isNew, err := s.ensureSession(ctx, cmd, tenant, progress)
	if err != nil {
		return s.fail(ctx, cmd, progress, gateRes, err)
	}
	if isNew {
		s.log.Debug(ctx, "session created",
			logger.String("session_id", session.ID),
			logger.String("tenant_slug", tenant.Slug),
		)
	}
	progress.advance(stateClassified)

	// CLASSIFIED
	assessment := s.classifier.Classify(ctx, domainservice.ClassifyInput{
		TenantSlug: tenant.Slug,
		TenantType: tenant.Type(),
		Prompt:     cmd.Request.Prompt,
	})
	progress.riskTime = assessment.AnalysisTime
	s.countVerdict(assessment)

	if s.policy.ShouldBlock(assessment) {
		return s.blockTurn(ctx, cmd, tenant, session, assessment, progress, gateRes)
	}
	if s.policy.ShouldRecord(assessment) {
		s.recordElevatedRisk(ctx, cmd, tenant, session, assessment)
	}

	// User turn is durable before generation starts.
	if err := s.appendMessage(ctx, session.ID, constants.RoleUser, cmd.Request.Prompt, constants.SenderUser, progress); err != nil {
		return s.fail(ctx, cmd, progress, gateRes, err)
	}
	progress.advance(stateGenerated)

	// GENERATED
	history, err := s.buildHistory(ctx, cmd.Request, session, progress)
	if err != nil {
		return s.fail(ctx, cmd, progress, gateRes, err)
	}
	genRes, err := s.generator.Generate(ctx, domainservice.GenerationRequest{
		Persona: persona,
		History: history,
		Prompt:  cmd.Request.Prompt,
	})
	if err != nil {
		// Accepted inconsistency: the user turn stays recorded even though
		// no assistant turn will follow it.
		return s.fail(ctx, cmd, progress, gateRes, err)
	}
	progress.genTime = genRes.Total
	progress.firstToken = genRes.TimeToFirstToken
	progress.tokenEstimate = genRes.TokenEstimate
	s.metrics.GenerationDuration.Observe(genRes.Total.Seconds())
	s.metrics.FirstTokenLatency.Observe(genRes.TimeToFirstToken.Seconds())
	s.metrics.TokenEstimateTotal.WithLabelValues(tenant.Slug).Add(float64(genRes.TokenEstimate))
	progress.advance(statePersisted)

	// PERSISTED
	if err := s.appendMessage(ctx, session.ID, constants.RoleAssistant, genRes.Text, constants.SenderAssistant, progress); err != nil {
		return s.fail(ctx, cmd, progress, gateRes, err)
	}
	progress.advance(stateDone)

	s.metrics.ObserveTurn(tenant.Slug, "completed", progress.total())
	s.metrics.DatastoreDuration.Observe(progress.dbTime.Seconds())
	s.log.Info(ctx, "turn completed",
		append([]logger.Field{
			logger.String("tenant_slug", tenant.Slug),
			logger.String("session_id", session.ID),
			logger.Duration("total", progress.total()),
		}, progress.steps...)...,
	)

	return &TurnResult{
		Response: &dto.ChatResponse{
			Response:  genRes.Text,
			SessionID: session.ID,
			RiskLevel: assessment.RiskLevel,
			Metrics:   progress.metrics(),
		},
		Gate: gateRes,
	}, nil
}

// Greeting returns the tenant's opening line without creating a session.
func (s *ChatAppService) Greeting(ctx context.Context, tenantSlug string, personaKey string) (*dto.GreetingResponse, error) {
	tenant, err := s.lookupActiveTenant(ctx, tenantSlug)
	if err != nil {
		return nil, err
	}
	persona := s.selectPersona(ctx, tenant, personaKey)
	return &dto.GreetingResponse{
		TenantSlug: tenant.Slug,
		AIName:     persona.Name,
		Greeting:   persona.Greeting,
		Language:   persona.Language,
	}, nil
}

// Transcript lists a session's messages in creation order.
func (s *ChatAppService) Transcript(ctx context.Context, sessionID string) (*dto.MessagesResponse, error) {
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	messages, err := s.messages.ListBySession(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}

	out := make([]dto.MessageDTO, 0, len(messages))
	for _, m := range messages {
		out = append(out, dto.MessageDTO{
			ID:         m.ID,
			Role:       string(m.Role),
			Content:    m.Content,
			SenderType: string(m.SenderType),
			CreatedAt:  m.CreatedAt,
		})
	}
	return &dto.MessagesResponse{SessionID: sessionID, Messages: out}, nil
}

// ====== Pipeline Steps ======

func (s *ChatAppService) resolveTenant(ctx context.Context, slug string, progress *turnProgress) (*models.Tenant, error) {
	start := time.Now()
	tenant, err := s.lookupActiveTenant(ctx, slug)
	progress.dbTime += time.Since(start)
	return tenant, err
}

func (s *ChatAppService) lookupActiveTenant(ctx context.Context, slug string) (*models.Tenant, error) {
	if !utils.IsValidTenantSlug(slug) {
		return nil, ccserrors.ErrInvalidRequest("tenantSlug is not a valid slug")
	}
	tenant, err := s.tenants.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !tenant.IsActive() {
		return nil, ccserrors.ErrTenantNotFound(slug)
	}
	return tenant, nil
}

// selectPersona resolves the effective persona. An unknown key is not an
// error: the turn proceeds on the tenant default and the mismatch is logged
// so stale widget configs surface in operations, not in user errors.
func (s *ChatAppService) selectPersona(ctx context.Context, tenant *models.Tenant, personaKey string) models.PersonaConfig {
	companion := tenant.DefaultCompanion()
	if personaKey != "" {
		if found := tenant.CompanionByKey(personaKey); found != nil {
			companion = found
		} else {
			s.log.Warn(ctx, "unknown persona key, using tenant default",
				logger.String("tenant_slug", tenant.Slug),
				logger.String("persona_key", personaKey),
			)
		}
	}
	return models.ResolvePersona(tenant, companion)
}

func (s *ChatAppService) ensureSession(ctx context.Context, cmd TurnCommand, tenant *models.Tenant, progress *turnProgress) (*models.Session, bool, error) {
	if cmd.Request.SessionID != "" && !utils.IsValidSessionID(cmd.Request.SessionID) {
		return nil, false, ccserrors.ErrInvalidRequest("sessionId must be a UUID")
	}

	start := time.Now()
	session, isNew, err := s.sessions.GetOrCreate(ctx, cmd.Request.SessionID, tenant.ID, models.JSONMap(cmd.Request.Metadata))
	progress.dbTime += time.Since(start)
	return session, isNew, err
}

func (s *ChatAppService) appendMessage(ctx context.Context, sessionID string, role constants.MessageRole, content string, sender constants.SenderType, progress *turnProgress) error {
	start := time.Now()
	err := s.messages.Append(ctx, &models.Message{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Role:       role,
		Content:    content,
		SenderType: sender,
	})
	progress.dbTime += time.Since(start)
	return err
}

// buildHistory prepares the generation context. Client-supplied history
// fully overrides the stored transcript; otherwise the most recent stored
// turns are replayed.
func (s *ChatAppService) buildHistory(ctx context.Context, req dto.ChatRequest, session *models.Session, progress *turnProgress) ([]domainservice.HistoryTurn, error) {
	if len(req.History) > 0 {
		turns := make([]domainservice.HistoryTurn, 0, len(req.History))
		for _, h := range req.History {
			sender := h.SenderType
			if sender == "" {
				sender = h.Role
			}
			turns = append(turns, domainservice.HistoryTurn{
				Role:       h.Role,
				Content:    h.Content,
				SenderType: sender,
			})
		}
		return turns, nil
	}

	start := time.Now()
	stored, err := s.messages.ListBySession(ctx, session.ID, s.historyLimit)
	progress.dbTime += time.Since(start)
	if err != nil {
		return nil, err
	}

	turns := make([]domainservice.HistoryTurn, 0, len(stored))
	for _, m := range stored {
		turns = append(turns, domainservice.HistoryTurn{
			Role:       string(m.Role),
			Content:    m.Content,
			SenderType: string(m.SenderType),
		})
	}
	// The user turn of this request is already persisted; drop it from the
	// replayed history so it is not sent twice.
	if n := len(turns); n > 0 && turns[n-1].Role == string(constants.RoleUser) && turns[n-1].Content == req.Prompt {
		turns = turns[:n-1]
	}
	return turns, nil
}

// blockTurn short-circuits a suspicious verdict: flags the session, records
// the exchange, and answers with the tenant-type deflection. The response is
// a successful policy outcome, not an error.
func (s *ChatAppService) blockTurn(ctx context.Context, cmd TurnCommand, tenant *models.Tenant, session *models.Session, assessment models.RiskAssessment, progress *turnProgress, gateRes domainservice.AdmitResult) (*TurnResult, error) {
	progress.advance(stateBlocked)

	suspicious := true
	level := assessment.RiskLevel
	flagStart := time.Now()
	updated := s.sessions.UpdateFlagsBestEffort(ctx, session.ID, models.SessionFlagsUpdate{
		Suspicious: &suspicious,
		RiskLevel:  &level,
		MetadataPatch: models.JSONMap{
			"reason":    assessment.Reason,
			"blockedAt": time.Now().UTC().Format(time.RFC3339),
		},
	})
	progress.dbTime += time.Since(flagStart)

	deflection := constants.DeflectionMessage(tenant.Type())
	if err := s.appendMessage(ctx, session.ID, constants.RoleUser, cmd.Request.Prompt, constants.SenderUser, progress); err == nil {
		_ = s.appendMessage(ctx, session.ID, constants.RoleAssistant, deflection, constants.SenderAssistant, progress)
	}

	s.publishAudit(ctx, models.AuditEvent{
		EventType:  constants.EventTypeSuspiciousTurn,
		TenantSlug: tenant.Slug,
		SessionID:  session.ID,
		ClientKey:  cmd.ClientKey,
		RequestID:  cmd.RequestID,
		RiskLevel:  assessment.RiskLevel,
		Reason:     assessment.Reason,
	})
	s.metrics.ObserveTurn(tenant.Slug, "blocked", progress.total())
	s.log.Info(ctx, "turn blocked by risk policy",
		logger.String("tenant_slug", tenant.Slug),
		logger.String("session_id", session.ID),
		logger.Int("risk_level", assessment.RiskLevel),
		logger.String("pattern", assessment.PatternMatched),
		logger.Bool("flags_updated", updated),
	)

	return &TurnResult{
		Response: &dto.ChatResponse{
			Response:  deflection,
			SessionID: session.ID,
			Blocked:   true,
			RiskLevel: assessment.RiskLevel,
			Metrics:   progress.metrics(),
		},
		Gate: gateRes,
	}, nil
}

// recordElevatedRisk handles the middle band: the turn proceeds but the
// session carries the latest level.
func (s *ChatAppService) recordElevatedRisk(ctx context.Context, cmd TurnCommand, tenant *models.Tenant, session *models.Session, assessment models.RiskAssessment) {
	level := assessment.RiskLevel
	s.sessions.UpdateFlagsBestEffort(ctx, session.ID, models.SessionFlagsUpdate{
		RiskLevel:     &level,
		MetadataPatch: models.JSONMap{"last_risk_reason": assessment.Reason},
	})
	s.publishAudit(ctx, models.AuditEvent{
		EventType:  constants.EventTypeRiskElevated,
		TenantSlug: tenant.Slug,
		SessionID:  session.ID,
		ClientKey:  cmd.ClientKey,
		RequestID:  cmd.RequestID,
		RiskLevel:  assessment.RiskLevel,
		Reason:     assessment.Reason,
	})
	s.log.Info(ctx, "elevated risk recorded, turn proceeds",
		logger.String("session_id", session.ID),
		logger.Int("risk_level", assessment.RiskLevel),
	)
}

func (s *ChatAppService) fail(ctx context.Context, cmd TurnCommand, progress *turnProgress, gateRes domainservice.AdmitResult, err error) (*TurnResult, error) {
	failedAt := progress.state
	progress.advance(stateFailed)
	s.metrics.TurnsTotal.WithLabelValues(cmd.Request.TenantSlug, "failed").Inc()
	if ccserrors.ShouldLogError(err) {
		s.log.Error(ctx, "turn failed", err,
			logger.String("tenant_slug", cmd.Request.TenantSlug),
			logger.String("state", string(failedAt)),
			logger.Duration("elapsed", progress.total()),
		)
	}
	return &TurnResult{Gate: gateRes}, err
}

func (s *ChatAppService) countVerdict(a models.RiskAssessment) {
	stage := "judge"
	switch {
	case a.PatternMatched != "":
		stage = "pattern"
	case a.ParseFailure:
		stage = "failed_open"
	case a.AnalysisTime == 0:
		stage = "skipped"
	}
	s.metrics.RiskVerdictsTotal.WithLabelValues(string(a.Kind), stage).Inc()
}

func (s *ChatAppService) publishAudit(ctx context.Context, event models.AuditEvent) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Publish(ctx, event)
}
