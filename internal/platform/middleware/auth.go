package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
)

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier func(token string) (map[string]any, error)

type AuthConfig struct {
	Verify TokenVerifier
	// Public lists exact paths served without a token.
	Public []string
}

// BearerAuth requires an "Authorization: Bearer <token>" header on every
// non-public path. The token's sub claim becomes the user ID and its role or
// roles claim the user roles, both stored on the request context.
func BearerAuth(cfg AuthConfig) echo.MiddlewareFunc {
	public := make(map[string]bool, len(cfg.Public))
	for _, p := range cfg.Public {
		public[p] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if public[c.Request().URL.Path] {
				return next(c)
			}

			header := c.Request().Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := cfg.Verify(strings.TrimSpace(token))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			userID, _ := claims["sub"].(string)
			roles := claimRoles(claims)
			c.Set("user_id", userID)

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, UserIDKey, userID)
			ctx = context.WithValue(ctx, UserRolesKey, roles)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func claimRoles(claims map[string]any) []string {
	if r, ok := claims["role"].(string); ok && r != "" {
		return []string{r}
	}
	var roles []string
	switch v := claims["roles"].(type) {
	case []string:
		roles = v
	case []any:
		for _, r := range v {
			if s, ok := r.(string); ok {
				roles = append(roles, s)
			}
		}
	}
	return roles
}

func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

func RolesFromContext(ctx context.Context) []string {
	v, _ := ctx.Value(UserRolesKey).([]string)
	return v
}
