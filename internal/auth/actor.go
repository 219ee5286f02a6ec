package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/Togather-Foundation/listsync/internal/domain/errs"
	"github.com/Togather-Foundation/listsync/internal/domain/users"
)

// Actor is the authenticated user behind a request.
type Actor struct {
	ID    int64
	Name  string
	Email string
}

type actorKey struct{}

func ContextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the actor stored by the auth middleware.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok && a.ID > 0
}

// ActorID returns the actor's id, or 0 when the request is anonymous.
func ActorID(ctx context.Context) int64 {
	a, _ := ActorFromContext(ctx)
	return a.ID
}

// UserLookup is the subset of users.Repository the resolver needs.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*users.User, error)
}

// Resolver turns a bearer token into an Actor. The token must verify and
// name a user that still exists.
type Resolver struct {
	jwt   *JWTManager
	users UserLookup
}

func NewResolver(jwt *JWTManager, users UserLookup) *Resolver {
	return &Resolver{jwt: jwt, users: users}
}

func (r *Resolver) Resolve(ctx context.Context, token string) (Actor, error) {
	claims, err := r.jwt.Validate(token)
	if err != nil {
		return Actor{}, &errs.Error{Kind: errs.KindUnauthenticated, Message: capitalize(err.Error())}
	}

	u, err := r.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return Actor{}, errs.Unauthenticated("User no longer exists")
		}
		return Actor{}, fmt.Errorf("resolve actor: %w", err)
	}
	return Actor{ID: u.ID, Name: u.Name, Email: u.Email}, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
