package http

import "context"

type contextKey string

const (
	tenantIDContextKey  contextKey = "tenant_id"
	requestIDContextKey contextKey = "request_id"
)

// ContextWithTenantID injects the tenant identifier resolved from the request path.
func ContextWithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDContextKey, tenantID)
}

// TenantIDFromContext extracts a tenant identifier previously associated with the context.
func TenantIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(tenantIDContextKey).(string)
	return id, ok
}

// ContextWithRequestID records the request identifier assigned by RequestLogger.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext returns the request identifier, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDContextKey).(string)
	return id, ok
}
