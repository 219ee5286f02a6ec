package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/listsync/internal/api/problem"
	"github.com/Togather-Foundation/listsync/internal/auth"
	"github.com/Togather-Foundation/listsync/internal/domain/errs"
)

// ActorResolver turns a bearer token into the acting user.
type ActorResolver interface {
	Resolve(ctx context.Context, token string) (auth.Actor, error)
}

// RequireAuth rejects requests without a valid bearer token with 401 and
// stores the resolved actor in the request context otherwise. The request
// logger gains a user_id field.
func RequireAuth(resolver ActorResolver, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				problem.FromError(w, r, errs.Unauthenticated("Access token required"), env)
				return
			}

			actor, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				problem.FromError(w, r, err, env)
				return
			}

			ctx := auth.ContextWithActor(r.Context(), actor)
			logger := zerolog.Ctx(ctx).With().Int64("user_id", actor.ID).Logger()
			ctx = logger.WithContext(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
