package common

import (
	"context"

	"github.com/google/uuid"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeySessionID contextKey = "session_id"
	ContextKeyRegion    contextKey = "region"
)

// NewSessionID returns the short id used to group one run's debug images
// and history rows.
func NewSessionID() string {
	return uuid.NewString()[:8]
}

// WithSessionID adds a session ID to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// SessionIDFromContext extracts the session ID from context
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeySessionID).(string); ok {
		return id
	}
	return ""
}

// WithRegion names the screen region an OCR call is reading.
func WithRegion(ctx context.Context, region string) context.Context {
	return context.WithValue(ctx, ContextKeyRegion, region)
}

// RegionFromContext returns the region name, defaulting to "ocr".
func RegionFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(ContextKeyRegion).(string); ok && r != "" {
		return r
	}
	return "ocr"
}
