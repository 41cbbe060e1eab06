// Package dto defines the request and response shapes of the HTTP surface.
package dto

import "time"

// HistoryTurnDTO is one client-supplied prior turn. When a request carries
// history, it fully replaces the stored transcript as generation context.
type HistoryTurnDTO struct {
	Role       string `json:"role" binding:"required,oneof=user assistant"`
	Content    string `json:"content" binding:"required"`
	SenderType string `json:"senderType,omitempty"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	TenantSlug string `json:"tenantSlug" binding:"required"`
	Prompt     string `json:"prompt" binding:"required"`

	// SessionID continues an existing conversation. Absent means a new
	// session; an unknown client-supplied UUID is adopted as-is.
	SessionID string `json:"sessionId,omitempty"`

	// PersonaKey selects a companion. Unknown keys fall back to the
	// tenant default with a warning, never an error.
	PersonaKey string `json:"personaKey,omitempty"`

	History []HistoryTurnDTO `json:"history,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// TurnMetrics is the per-turn timing envelope.
type TurnMetrics struct {
	TotalTimeMs        int64 `json:"totalTimeMs"`
	DBTimeMs           int64 `json:"dbTimeMs"`
	GenerationTimeMs   int64 `json:"generationTimeMs"`
	TimeToFirstTokenMs int64 `json:"timeToFirstTokenMs"`
	EstimatedTokens    int   `json:"estimatedTokens"`
	RiskAnalysisTimeMs int64 `json:"riskAnalysisTimeMs"`
}

// ChatResponse is the body of a successful (or blocked) turn. Blocked turns
// are HTTP 200 with Blocked set and a conversational deflection in Response.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`

	Blocked   bool `json:"blocked"`
	RiskLevel int  `json:"riskLevel,omitempty"`

	Metrics TurnMetrics `json:"metrics"`
}

// GreetingResponse is the body of GET /greeting.
type GreetingResponse struct {
	TenantSlug string `json:"tenantSlug"`
	AIName     string `json:"aiName"`
	Greeting   string `json:"greeting"`
	Language   string `json:"language,omitempty"`
}

// MessageDTO is one transcript entry in GET /messages.
type MessageDTO struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	SenderType string    `json:"senderType"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MessagesResponse is the body of GET /messages.
type MessagesResponse struct {
	SessionID string       `json:"sessionId"`
	Messages  []MessageDTO `json:"messages"`
}
