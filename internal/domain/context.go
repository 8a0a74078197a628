package domain

import "context"

// ContextKey is a type for context keys to avoid magic strings
type ContextKey string

const (
	// ContextKeySubject is the key for the authenticated subject (user ID) in the context
	ContextKeySubject ContextKey = "sub"
	// ContextKeyTenant is the key for the tenant identifier in the context
	ContextKeyTenant ContextKey = "tenant"
	// ContextKeyRequestID is the key for the transport request ID in the context
	ContextKeyRequestID ContextKey = "request_id"
)

// WithSubject adds the authenticated subject to the context
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ContextKeySubject, subject)
}

// Subject retrieves the authenticated subject from the context
func Subject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(ContextKeySubject).(string)
	return subject, ok
}

// WithTenant adds the tenant identifier to the context
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, ContextKeyTenant, tenant)
}

// Tenant retrieves the tenant identifier from the context
func Tenant(ctx context.Context) (string, bool) {
	tenant, ok := ctx.Value(ContextKeyTenant).(string)
	return tenant, ok
}
