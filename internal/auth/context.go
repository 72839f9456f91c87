package auth

import "context"

type actorKey struct{}

// WithActor returns a context carrying the name of the authenticated
// caller, as established by the role middleware.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom reports the caller recorded on the context by the role
// middleware. Requests that never passed through a role gate come back
// as "anonymous".
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "anonymous"
}
