package common

import (
	"context"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyOperator  contextKey = "operator"
	ContextKeyLocale    contextKey = "locale"
)

// Operator identifies who acts on behalf of which tenant.
type Operator struct {
	UserID   string
	TenantID string
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithOperator stores the acting operator in the context.
func WithOperator(ctx context.Context, op Operator) context.Context {
	return context.WithValue(ctx, ContextKeyOperator, op)
}

// OperatorFromContext extracts the operator; ok is false when none was set.
func OperatorFromContext(ctx context.Context) (Operator, bool) {
	op, ok := ctx.Value(ContextKeyOperator).(Operator)
	return op, ok
}

// WithLocale stores the resolved message locale.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, ContextKeyLocale, locale)
}

// LocaleFromContext returns the stored locale or German.
func LocaleFromContext(ctx context.Context) string {
	if l, ok := ctx.Value(ContextKeyLocale).(string); ok && l != "" {
		return l
	}
	return LocaleDE
}

// WithTimeout creates a context with the specified timeout
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
