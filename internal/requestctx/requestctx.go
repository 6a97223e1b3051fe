package requestctx

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	originKey
)

// Origin names what triggered a change.
type Origin string

const (
	OriginAPI            Origin = "api"
	OriginAutoEscalation Origin = "auto-escalation"
	OriginSystem         Origin = "system"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}

func WithOrigin(ctx context.Context, origin Origin) context.Context {
	return context.WithValue(ctx, originKey, origin)
}

// GetOrigin defaults to OriginSystem for work started outside a request.
func GetOrigin(ctx context.Context) Origin {
	if value, ok := ctx.Value(originKey).(Origin); ok && value != "" {
		return value
	}
	return OriginSystem
}
