// Package constants defines system-wide constants for the CCS Companion Chat Service.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Message Role Constants
// ================================================================================

// MessageRole represents the conversational role of a transcript message.
type MessageRole string

const (
	// RoleUser marks a message authored by the end user
	RoleUser MessageRole = "user"

	// RoleAssistant marks a message authored by the AI persona
	RoleAssistant MessageRole = "assistant"
)

// SenderType classifies who actually produced a message. An assistant-role
// message may have been written by a human operator taking over the session.
type SenderType string

const (
	// SenderUser is the end user typing into the chat widget
	SenderUser SenderType = "user"

	// SenderAssistant is the generative model
	SenderAssistant SenderType = "assistant"

	// SenderHumanOperator is a human who replied on behalf of the assistant
	SenderHumanOperator SenderType = "human-operator"
)

// ================================================================================
// Tenant Type Constants
// ================================================================================

// TenantType is a coarse vertical classification derived from the tenant slug.
// It steers the risk judge's benign-pattern whitelist and the deflection copy.
type TenantType string

const (
	// TenantTypeEldercare covers senior-care and assisted-living tenants
	TenantTypeEldercare TenantType = "eldercare"

	// TenantTypeRestaurant covers hospitality and food-service tenants
	TenantTypeRestaurant TenantType = "restaurant"

	// TenantTypeGeneral is the fallback classification
	TenantTypeGeneral TenantType = "general"
)

// ================================================================================
// Tenant Status Constants
// ================================================================================

// TenantStatus represents the lifecycle status of a tenant.
type TenantStatus string

const (
	// TenantStatusActive indicates the tenant can serve chat turns
	TenantStatusActive TenantStatus = "active"

	// TenantStatusSuspended indicates the tenant is temporarily disabled
	TenantStatusSuspended TenantStatus = "suspended"

	// TenantStatusDeleted indicates the tenant has been soft-deleted
	TenantStatusDeleted TenantStatus = "deleted"
)

// ================================================================================
// Risk Policy Constants
// ================================================================================

const (
	// RiskLevelMin is the lowest risk level the classifier can produce
	RiskLevelMin = 1

	// RiskLevelMax is the highest risk level the classifier can produce
	RiskLevelMax = 10

	// DefaultHighRiskThreshold is the default level at or above which a turn
	// is treated as suspicious and blocked
	DefaultHighRiskThreshold = 7

	// DefaultLogRiskThreshold is the default lower bound of the middle band:
	// levels in [log, high) are recorded on the session but the turn proceeds
	DefaultLogRiskThreshold = 4

	// DefaultMinJudgeLength is the minimum message length (in runes) that is
	// worth sending to the semantic judge
	DefaultMinJudgeLength = 8
)

// ================================================================================
// Rate Limit Constants
// ================================================================================

const (
	// DefaultRateLimitWindow is the default sliding-window duration
	DefaultRateLimitWindow = 30 * time.Second

	// DefaultRateLimitMaxRequests is the default per-client request budget per window
	DefaultRateLimitMaxRequests = 10

	// DefaultRateLimitSweepInterval is how often stale window entries are purged
	DefaultRateLimitSweepInterval = 5 * time.Minute
)

// RateLimitBackend selects the RequestGate implementation.
type RateLimitBackend string

const (
	// RateLimitBackendMemory is the default single-instance in-memory window
	RateLimitBackendMemory RateLimitBackend = "memory"

	// RateLimitBackendRedis is the optional distributed window
	RateLimitBackendRedis RateLimitBackend = "redis"
)

// ================================================================================
// Timeout Constants
// ================================================================================

const (
	// DefaultDatastoreTimeout bounds every postgres round trip
	DefaultDatastoreTimeout = 5 * time.Second

	// DefaultJudgeTimeout bounds the semantic risk judgment call; a timeout
	// degrades to a fail-open verdict
	DefaultJudgeTimeout = 10 * time.Second

	// DefaultGenerationTimeout bounds the full streamed completion
	DefaultGenerationTimeout = 120 * time.Second
)

// ================================================================================
// Cache TTL Constants
// ================================================================================

const (
	// TenantConfigCacheTTL is the cache lifetime for resolved tenant configurations
	TenantConfigCacheTTL = 5 * time.Minute

	// TenantConfigCacheL1TTL is the in-process cache lifetime, kept shorter
	// than the redis tier so config edits propagate quickly
	TenantConfigCacheL1TTL = 1 * time.Minute
)

// ================================================================================
// Error Code Constants
// ================================================================================

// ErrorCode is the stable machine-readable error classification exposed at the
// HTTP boundary and in operator logs.
type ErrorCode string

const (
	// ErrCodeInvalidRequest indicates malformed or missing input
	ErrCodeInvalidRequest ErrorCode = "invalid_request"

	// ErrCodeNotFound indicates an unknown tenant or resource
	ErrCodeNotFound ErrorCode = "not_found"

	// ErrCodeRateLimited indicates the request gate denied the turn
	ErrCodeRateLimited ErrorCode = "rate_limited"

	// ErrCodeUpstreamRateLimited indicates the generation backend is saturated
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"

	// ErrCodeUpstreamFailure indicates a generation or judge backend failure
	ErrCodeUpstreamFailure ErrorCode = "upstream_failure"

	// ErrCodePersistenceFailure indicates a session or transcript write failed
	ErrCodePersistenceFailure ErrorCode = "persistence_failure"

	// ErrCodeServerError is the generic internal failure classification
	ErrCodeServerError ErrorCode = "server_error"
)

// ================================================================================
// Audit Event Constants
// ================================================================================

// AuditEventType represents different types of auditable pipeline events.
type AuditEventType string

const (
	// EventTypeSuspiciousTurn is emitted when the classifier blocks a turn
	EventTypeSuspiciousTurn AuditEventType = "suspicious_turn"

	// EventTypeRiskElevated is emitted for middle-band verdicts that proceed
	EventTypeRiskElevated AuditEventType = "risk_elevated"

	// EventTypeRateLimitExceeded is emitted when the request gate denies a client
	EventTypeRateLimitExceeded AuditEventType = "rate_limit_exceeded"
)

// ================================================================================
// Log Level Constants
// ================================================================================

// LogLevel represents the severity level of log messages.
type LogLevel int

const (
	// LogLevelDebug is the most verbose logging level
	LogLevelDebug LogLevel = iota

	// LogLevelInfo is the standard informational logging level
	LogLevelInfo

	// LogLevelWarn indicates potential issues
	LogLevelWarn

	// LogLevelError indicates errors that need attention
	LogLevelError

	// LogLevelFatal indicates critical errors that cause service termination
	LogLevelFatal
)

// ParseLogLevel maps a config string to a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	case "fatal":
		return LogLevelFatal
	default:
		return LogLevelInfo
	}
}

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey represents keys used in context.Context.
type ContextKey string

const (
	// ContextKeyRequestID is the key for the request-correlating identifier
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyTenantSlug is the key for the tenant slug in context
	ContextKeyTenantSlug ContextKey = "tenant_slug"

	// ContextKeySessionID is the key for the session ID in context
	ContextKeySessionID ContextKey = "session_id"

	// ContextKeyClientIP is the key for the client IP address in context
	ContextKeyClientIP ContextKey = "client_ip"
)

// ================================================================================
// Generation Defaults
// ================================================================================

const (
	// DefaultGenerationModel is used when a tenant does not pin a model
	DefaultGenerationModel = "gpt-4o-mini"

	// DefaultTemperature is the sampling temperature when unset on the persona
	DefaultTemperature float32 = 0.7

	// DefaultMaxTokens caps the completion length when unset on the persona
	DefaultMaxTokens = 1024

	// CharsPerTokenEstimate is the heuristic divisor for token estimation.
	// Estimates are telemetry-grade only, never billing-grade.
	CharsPerTokenEstimate = 4
)

// DeflectionMessage returns the tenant-type-appropriate canned reply used when
// a turn is blocked by the risk classifier. The copy is intentionally
// conversational so a blocked turn never reads as an error to the end user.
func DeflectionMessage(t TenantType) string {
	switch t {
	case TenantTypeEldercare:
		return "I'm sorry, I didn't quite follow that. Let's talk about something else. Is there anything I can help you with today?"
	case TenantTypeRestaurant:
		return "I can only help with questions about our menu, hours, and reservations. What would you like to know?"
	default:
		return "I'm not able to help with that request, but I'm happy to assist with something else."
	}
}
