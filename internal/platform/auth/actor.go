package auth

import (
	"context"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/healthrisk/healthrisk/internal/domain/access"
	"github.com/healthrisk/healthrisk/internal/platform/apperr"
)

// ActorResolver loads the actor for an authenticated user id.
type ActorResolver interface {
	ResolveActor(ctx context.Context, userID string) (*access.Actor, error)
}

// ActorMiddleware resolves the authenticated user into an access.Actor once
// per request. An unknown or inactive user is a 401, never a 403.
func ActorMiddleware(resolver ActorResolver, skipper echomw.Skipper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}
			ctx := c.Request().Context()
			uid := UserIDFromContext(ctx)
			if uid == "" {
				return apperr.ToHTTP(apperr.Authentication("no authenticated user"))
			}

			actor, err := resolver.ResolveActor(ctx, uid)
			if err != nil {
				if apperr.KindOf(err) == "" {
					return apperr.ToHTTP(err)
				}
				return apperr.ToHTTP(apperr.Wrap(apperr.KindAuthentication, "actor could not be resolved", err))
			}

			c.SetRequest(c.Request().WithContext(access.WithActor(ctx, actor)))
			c.Set("actor_role", string(actor.Role))
			return next(c)
		}
	}
}
