package fieldgate

import "context"

type contextKey int

const (
	ctxKeyRole contextKey = iota
	ctxKeyActor
)

// WithRole returns a context carrying the role of the authenticated caller.
// Use this in standalone mode (without Forge) after authentication.
func WithRole(ctx context.Context, roleCode string) context.Context {
	return context.WithValue(ctx, ctxKeyRole, roleCode)
}

// WithActor returns a context carrying the identity recorded in the change
// log. Use this in standalone mode (without Forge).
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

func roleFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxKeyRole).(string)
	if !ok {
		return ""
	}
	return v
}

func actorFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxKeyActor).(string)
	if !ok {
		return ""
	}
	return v
}
