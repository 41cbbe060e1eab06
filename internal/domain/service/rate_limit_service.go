// Package service defines domain service interfaces consumed by the
// application layer. Infrastructure supplies the implementations.
package service

import (
	"context"
	"time"
)

// AdmitResult is the outcome of one admission check.
type AdmitResult struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// Limit is the per-window request budget.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// RetryAfter is how long a denied client should wait. Zero when allowed.
	RetryAfter time.Duration
}

// RetryAfterSeconds returns the retry hint rounded up to whole seconds.
func (r AdmitResult) RetryAfterSeconds() int {
	if r.RetryAfter <= 0 {
		return 0
	}
	secs := int((r.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// RequestGate is the per-client admission control in front of the pipeline.
// Absence of prior state for a key always admits; the gate never fails a
// request for internal reasons.
type RequestGate interface {
	// Admit records one request for clientKey and reports the verdict.
	Admit(ctx context.Context, clientKey string) AdmitResult

	// Close releases background resources (the stale-entry sweeper).
	Close() error
}
