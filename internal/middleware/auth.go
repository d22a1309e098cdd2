package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"experts-service/internal/apperr"
	"experts-service/internal/model"
	"experts-service/internal/store"
	"experts-service/pkg/tokenutil"
)

// Token headers for the three principal types.
const (
	HeaderMasterToken    = "X-Master-Token"
	HeaderWorkspaceToken = "X-Workspace-Token"
	HeaderExpertToken    = "X-Expert-Token"
)

// Context keys set by the middleware below.
const (
	ContextWorkspace = "workspace"
	ContextClaims    = "claims"
)

// WorkspaceFromContext returns the workspace resolved by
// ResolveWorkspace. Panics if the route is not nested under it.
func WorkspaceFromContext(c echo.Context) *model.Workspace {
	return c.Get(ContextWorkspace).(*model.Workspace)
}

// ResolveWorkspace loads the workspace named by the :slug path param
// and stores it in the request context. Unknown slugs get a 404 before
// any auth runs.
func ResolveWorkspace(st *store.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ws, err := st.WorkspaceBySlug(c.Param("slug"))
			if err != nil {
				if apperr.KindOf(err) == apperr.KindNotFound {
					return echo.NewHTTPError(http.StatusNotFound, "workspace not found")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "workspace lookup failed")
			}
			c.Set(ContextWorkspace, ws)
			return next(c)
		}
	}
}

// RequireMaster rejects requests without a valid master token.
func RequireMaster() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := tokenutil.ValidateToken(c.Request().Header.Get(HeaderMasterToken))
			if err != nil || claims.Type != tokenutil.PrincipalMaster {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}
			c.Set(ContextClaims, claims)
			return next(c)
		}
	}
}

// RequireWorkspace rejects requests whose workspace token does not
// match the workspace resolved from the path. A valid token for a
// different workspace is a 403, not a 401.
func RequireWorkspace() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := tokenutil.ValidateToken(c.Request().Header.Get(HeaderWorkspaceToken))
			if err != nil || claims.Type != tokenutil.PrincipalWorkspace {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			ws := WorkspaceFromContext(c)
			if claims.WorkspaceID != ws.ID || claims.Slug != ws.Slug {
				return echo.NewHTTPError(http.StatusForbidden, "token not valid for this workspace")
			}

			c.Set(ContextClaims, claims)
			return next(c)
		}
	}
}

// RequireExpert rejects requests whose expert token does not match
// both the workspace from the path and the :id path param.
func RequireExpert() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := tokenutil.ValidateToken(c.Request().Header.Get(HeaderExpertToken))
			if err != nil || claims.Type != tokenutil.PrincipalExpert {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			ws := WorkspaceFromContext(c)
			if claims.WorkspaceID != ws.ID {
				return echo.NewHTTPError(http.StatusForbidden, "token not valid for this workspace")
			}
			if claims.ExpertID != c.Param("id") {
				return echo.NewHTTPError(http.StatusForbidden, "token not valid for this expert")
			}

			c.Set(ContextClaims, claims)
			return next(c)
		}
	}
}
