package service

import (
	"context"
	"time"

	"github.com/turtacn/ccs/internal/domain/models"
)

// HistoryTurn is one prior turn supplied to the generator. SenderType
// distinguishes companion replies from human-operator takeovers so the
// client can rewrite the latter before they reach the model.
type HistoryTurn struct {
	Role       string
	Content    string
	SenderType string
}

// GenerationRequest is everything the generator needs for one reply.
type GenerationRequest struct {
	Persona models.PersonaConfig
	History []HistoryTurn
	Prompt  string
}

// GenerationResult carries the reply plus the timing breakdown the
// response envelope reports.
type GenerationResult struct {
	// Text is the full assembled reply.
	Text string

	// TimeToFirstToken is measured from request start to the first
	// non-empty streamed chunk.
	TimeToFirstToken time.Duration

	// Total is the wall time of the whole streamed exchange.
	Total time.Duration

	// TokenEstimate approximates the reply size in tokens.
	TokenEstimate int
}

// GenerationClient streams a companion reply from the model provider.
type GenerationClient interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
}

// CompletionBackend is the minimal non-streaming completion surface the
// risk judge needs. The production generation client satisfies it too.
type CompletionBackend interface {
	Complete(ctx context.Context, model string, system string, user string) (string, error)
}
