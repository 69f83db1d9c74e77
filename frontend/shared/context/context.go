package context

import (
	"context"
)

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID   int64
	Username string
	Role     string
}

type actorKey struct{}

func NewContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func GetActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// ActorName returns the caller's username, or "" for anonymous requests.
func ActorName(ctx context.Context) string {
	a, _ := GetActorFromContext(ctx)
	return a.Username
}
