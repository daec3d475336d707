package services

import (
	"context"

	"github.com/google/uuid"
)

type actorCtxKey struct{}

// Actor identifies the authenticated caller of a user-initiated request.
type Actor struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
}

func WithActor(ctx context.Context, userID, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, Actor{UserID: userID, TenantID: tenantID})
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorCtxKey{}).(Actor)
	return actor, ok
}
