package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"experts-service/internal/audit"
	"experts-service/internal/middleware"
	"experts-service/internal/model"
	"experts-service/internal/store"
	"experts-service/pkg/logger"
	"experts-service/pkg/password"
	"experts-service/pkg/ratelimit"
	"experts-service/pkg/tokenutil"
	"experts-service/prometheus"
)

// WorkspaceHandler serves the workspace-scoped surface: login,
// settings and public info.
type WorkspaceHandler struct {
	store   *store.Store
	limiter *ratelimit.Limiter
	audit   *audit.Logger
}

// NewWorkspaceHandler wires the workspace surface.
func NewWorkspaceHandler(st *store.Store, limiter *ratelimit.Limiter, auditLog *audit.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{store: st, limiter: limiter, audit: auditLog}
}

// Info returns the public identity of a workspace.
func (h *WorkspaceHandler) Info(c echo.Context) error {
	ws := middleware.WorkspaceFromContext(c)
	return c.JSON(http.StatusOK, echo.Map{
		"id":   ws.ID,
		"name": ws.Name,
		"slug": ws.Slug,
	})
}

type workspaceAuthRequest struct {
	Password string `json:"password"`
}

// Auth exchanges the workspace password for a workspace token.
// Attempts are rate limited per slug + client IP. Legacy plaintext
// passwords are upgraded to the hashed form on first successful
// login.
func (h *WorkspaceHandler) Auth(c echo.Context) error {
	log := logger.FromContext(c)
	ws := middleware.WorkspaceFromContext(c)
	prometheus.RecordLogin(tokenutil.PrincipalWorkspace)

	var req workspaceAuthRequest
	if err := c.Bind(&req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	key := ratelimit.WorkspaceKey(ws.Slug, c.RealIP())
	check, err := h.limiter.Check(key)
	if err != nil {
		log.Error("rate limit check failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !check.Allowed {
		prometheus.RecordRateLimitBlock()
		h.audit.Record(audit.FromRequest(c, audit.Entry{
			ActorType: model.ActorAnonymous, ActorID: ws.Slug, WorkspaceID: ws.ID,
			Action: "workspace.auth", Result: model.AuditFailure,
			StatusCode: http.StatusTooManyRequests, Reason: "rate limited",
		}))
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"error":       "too many attempts",
			"retry_after": check.RetryAfterSeconds,
		})
	}

	if !password.Verify(req.Password, ws.Password) {
		prometheus.RecordAuthError("login_failure")
		blocked, retry, regErr := h.limiter.RegisterFailure(key)
		if regErr != nil {
			log.Error("rate limit update failed", zap.Error(regErr))
		}
		h.audit.Record(audit.FromRequest(c, audit.Entry{
			ActorType: model.ActorAnonymous, ActorID: ws.Slug, WorkspaceID: ws.ID,
			Action: "workspace.auth", Result: model.AuditFailure,
			StatusCode: http.StatusUnauthorized, Reason: "invalid credentials",
		}))
		if blocked {
			prometheus.RecordRateLimitBlock()
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too many attempts",
				"retry_after": retry,
			})
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	// Upgrade legacy plaintext rows in place.
	if !password.IsHashed(ws.Password) {
		hashed, hashErr := password.Hash(req.Password)
		if hashErr == nil {
			ws.Password = hashed
			if saveErr := h.store.SaveWorkspace(ws); saveErr != nil {
				log.Error("password upgrade failed", zap.Error(saveErr))
			}
		}
	}

	if err := h.limiter.Clear(key); err != nil {
		log.Error("rate limit clear failed", zap.Error(err))
	}

	token, err := tokenutil.GenerateWorkspaceToken(ws.ID, ws.Slug)
	if err != nil {
		log.Error("token generation failed", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	h.audit.Record(audit.FromRequest(c, audit.Entry{
		ActorType: model.ActorWorkspace, ActorID: ws.Slug, WorkspaceID: ws.ID,
		Action: "workspace.auth", Result: model.AuditSuccess, StatusCode: http.StatusOK,
	}))
	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"workspace": echo.Map{
			"id":   ws.ID,
			"name": ws.Name,
			"slug": ws.Slug,
		},
	})
}

// Verify confirms a workspace token is valid for this workspace.
func (h *WorkspaceHandler) Verify(c echo.Context) error {
	ws := middleware.WorkspaceFromContext(c)
	return c.JSON(http.StatusOK, echo.Map{
		"valid": true,
		"type":  tokenutil.PrincipalWorkspace,
		"slug":  ws.Slug,
	})
}

// Settings returns the workspace's editable settings.
func (h *WorkspaceHandler) Settings(c echo.Context) error {
	ws := middleware.WorkspaceFromContext(c)
	return c.JSON(http.StatusOK, echo.Map{
		"name":          ws.Name,
		"contact_email": ws.ContactEmail,
		"contact_phone": ws.ContactPhone,
		"organization":  ws.Organization,
		"sender_name":   ws.SenderName,
	})
}

type workspaceSettingsRequest struct {
	Name         string `json:"name"`
	Password     string `json:"password"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	Organization string `json:"organization"`
	SenderName   string `json:"sender_name"`
}

// UpdateSettings writes the workspace's settings. A non-empty
// password field rotates the credential.
func (h *WorkspaceHandler) UpdateSettings(c echo.Context) error {
	ws := middleware.WorkspaceFromContext(c)

	var req workspaceSettingsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Name != "" {
		ws.Name = req.Name
	}
	ws.ContactEmail = req.ContactEmail
	ws.ContactPhone = req.ContactPhone
	ws.Organization = req.Organization
	ws.SenderName = req.SenderName
	if req.Password != "" {
		hashed, err := password.Hash(req.Password)
		if err != nil {
			return respondError(c, err)
		}
		ws.Password = hashed
	}

	if err := h.store.SaveWorkspace(ws); err != nil {
		return respondError(c, err)
	}

	h.audit.Record(audit.FromRequest(c, audit.Entry{
		ActorType: model.ActorWorkspace, ActorID: ws.Slug, WorkspaceID: ws.ID,
		Action: "workspace.settings_update", Result: model.AuditSuccess, StatusCode: http.StatusOK,
	}))
	return c.JSON(http.StatusOK, echo.Map{"updated": true})
}

// PublicSettings exposes only what anonymous form pages need.
func (h *WorkspaceHandler) PublicSettings(c echo.Context) error {
	ws := middleware.WorkspaceFromContext(c)
	return c.JSON(http.StatusOK, echo.Map{
		"sender_name": ws.SenderName,
	})
}
