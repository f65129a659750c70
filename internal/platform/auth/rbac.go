package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin    = "admin"
	RoleTeamLead = "teamlead"
	RoleMember   = "member"
)

// HasRole reports whether the caller holds one of roles. Admins hold every role.
func HasRole(ctx context.Context, roles ...string) bool {
	for _, has := range RolesFromContext(ctx) {
		if has == RoleAdmin {
			return true
		}
		for _, required := range roles {
			if has == required {
				return true
			}
		}
	}
	return false
}

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasRole(c.Request().Context(), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// PrimaryRole picks the role forwarded to the GraphQL upstream: the most
// privileged role held, or fallback when the caller has none of the known roles.
func PrimaryRole(ctx context.Context, fallback string) string {
	roles := RolesFromContext(ctx)
	for _, want := range []string{RoleAdmin, RoleTeamLead, RoleMember} {
		for _, has := range roles {
			if has == want {
				return want
			}
		}
	}
	return fallback
}
