package usecase

import (
	"context"

	"sealtrail/internal/domain"
)

type actorKey struct{}

type Actor struct {
	Type domain.AuditActorType
	ID   string
}

// WithActor records who is driving the operations run under ctx. The ID is
// hashed before it reaches the audit log.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) Actor {
	if actor, ok := ctx.Value(actorKey{}).(Actor); ok && actor.Type != "" {
		return actor
	}
	return Actor{Type: domain.AuditActorSystem}
}
