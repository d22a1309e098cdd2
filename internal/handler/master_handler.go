package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"experts-service/internal/audit"
	"experts-service/internal/model"
	"experts-service/internal/retention"
	"experts-service/internal/store"
	"experts-service/pkg/config"
	"experts-service/pkg/logger"
	"experts-service/pkg/password"
	"experts-service/pkg/ratelimit"
	"experts-service/pkg/tokenutil"
	"experts-service/prometheus"
)

// MasterHandler serves the master operator surface: workspace
// administration, application processing and maintenance.
type MasterHandler struct {
	store   *store.Store
	limiter *ratelimit.Limiter
	audit   *audit.Logger
	sweeper *retention.Sweeper
	cfg     *config.Config
}

// NewMasterHandler wires the master surface.
func NewMasterHandler(st *store.Store, limiter *ratelimit.Limiter, auditLog *audit.Logger, sweeper *retention.Sweeper, cfg *config.Config) *MasterHandler {
	return &MasterHandler{store: st, limiter: limiter, audit: auditLog, sweeper: sweeper, cfg: cfg}
}

type masterAuthRequest struct {
	Password string `json:"password"`
}

// Auth exchanges the master password for a short-lived master token.
// Attempts are rate limited per client IP.
func (h *MasterHandler) Auth(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordLogin(tokenutil.PrincipalMaster)

	var req masterAuthRequest
	if err := c.Bind(&req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	key := ratelimit.MasterKey(c.RealIP())
	check, err := h.limiter.Check(key)
	if err != nil {
		log.Error("rate limit check failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !check.Allowed {
		prometheus.RecordRateLimitBlock()
		h.audit.Record(audit.FromRequest(c, audit.Entry{
			ActorType: model.ActorAnonymous, ActorID: "master",
			Action: "master.auth", Result: model.AuditFailure,
			StatusCode: http.StatusTooManyRequests, Reason: "rate limited",
		}))
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"error":       "too many attempts",
			"retry_after": check.RetryAfterSeconds,
		})
	}

	if h.cfg.Master.Password == "" || !password.Verify(req.Password, h.cfg.Master.Password) {
		prometheus.RecordAuthError("login_failure")
		blocked, retry, regErr := h.limiter.RegisterFailure(key)
		if regErr != nil {
			log.Error("rate limit update failed", zap.Error(regErr))
		}
		h.audit.Record(audit.FromRequest(c, audit.Entry{
			ActorType: model.ActorAnonymous, ActorID: "master",
			Action: "master.auth", Result: model.AuditFailure,
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

	if err := h.limiter.Clear(key); err != nil {
		log.Error("rate limit clear failed", zap.Error(err))
	}

	token, err := tokenutil.GenerateMasterToken()
	if err != nil {
		log.Error("token generation failed", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	h.audit.Record(audit.FromRequest(c, audit.Entry{
		ActorType: model.ActorMaster, ActorID: "master",
		Action: "master.auth", Result: model.AuditSuccess,
		StatusCode: http.StatusOK,
	}))
	return c.JSON(http.StatusOK, echo.Map{"token": token})
}

// Verify confirms a master token is still valid.
func (h *MasterHandler) Verify(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"valid": true, "type": tokenutil.PrincipalMaster})
}

// ListWorkspaces returns every workspace with its expert count.
func (h *MasterHandler) ListWorkspaces(c echo.Context) error {
	summaries, err := h.store.ListWorkspaces()
	if err != nil {
		return respondError(c, err)
	}
	prometheus.UpdateWorkspaces(len(summaries))
	return c.JSON(http.StatusOK, echo.Map{"workspaces": summaries})
}

type workspaceCreateRequest struct {
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Password     string `json:"password"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	Organization string `json:"organization"`
	SenderName   string `json:"sender_name"`
}

// CreateWorkspace provisions a workspace directly, bypassing the
// application flow.
func (h *MasterHandler) CreateWorkspace(c echo.Context) error {
	var req workspaceCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == "" || req.Slug == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, slug and password are required"})
	}

	taken, err := h.store.SlugTaken(req.Slug)
	if err != nil {
		return respondError(c, err)
	}
	if taken {
		return c.JSON(http.StatusConflict, echo.Map{"error": "slug already in use"})
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return respondError(c, err)
	}

	ws := &model.Workspace{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Slug:         req.Slug,
		Password:     hashed,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Organization: req.Organization,
		SenderName:   req.SenderName,
	}
	if err := h.store.CreateWorkspace(ws); err != nil {
		return respondError(c, err)
	}

	h.audit.Record(audit.FromRequest(c, audit.Entry{
		ActorType: model.ActorMaster, ActorID: "master",
		Action: "workspace.create", TargetType: "workspace", TargetID: ws.ID,
		WorkspaceID: ws.ID, Result: model.AuditSuccess, StatusCode: http.StatusCreated,
	}))
	return c.JSON(http.StatusCreated, ws)
}

type workspaceUpdateRequest struct {
	Name         string `json:"name"`
	Password     string `json:"password"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	Organization string `json:"organization"`
	SenderName   string `json:"sender_name"`
}

// UpdateWorkspace renames a workspace or resets its password.
func (h *MasterHandler) UpdateWorkspace(c echo.Context) error {
	ws, err := h.store.WorkspaceByID(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	var req workspaceUpdateRequest
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
		ActorType: model.ActorMaster, ActorID: "master",
		Action: "workspace.update", TargetType: "workspace", TargetID: ws.ID,
		WorkspaceID: ws.ID, Result: model.AuditSuccess, StatusCode: http.StatusOK,
	}))
	return c.JSON(http.StatusOK, ws)
}

// DeleteWorkspace removes a workspace and all its data. The default
// workspace cannot be deleted.
func (h *MasterHandler) DeleteWorkspace(c echo.Context) error {
	ws, err := h.store.WorkspaceByID(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if ws.Protected() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "the default workspace cannot be deleted"})
	}

	if err := h.store.DeleteWorkspaceCascade(ws.ID); err != nil {
		return respondError(c, err)
	}

	h.audit.Record(audit.FromRequest(c, audit.Entry{
		ActorType: model.ActorMaster, ActorID: "master",
		Action: "workspace.delete", TargetType: "workspace", TargetID: ws.ID,
		WorkspaceID: ws.ID, Result: model.AuditSuccess, StatusCode: http.StatusOK,
	}))
	return c.JSON(http.StatusOK, echo.Map{"deleted": true})
}

// ListRequests returns all workspace applications, newest first.
func (h *MasterHandler) ListRequests(c echo.Context) error {
	requests, err := h.store.ListRequests()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": requests})
}

// ApproveRequest turns a pending application into a workspace.
func (h *MasterHandler) ApproveRequest(c echo.Context) error {
	req, err := h.store.RequestByID(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if req.Status != model.RequestPending {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "request already processed"})
	}

	taken, err := h.store.SlugTaken(req.Slug)
	if err != nil {
		return respondError(c, err)
	}
	if taken {
		return c.JSON(http.StatusConflict, echo.Map{"error": "slug already in use"})
	}

	stored := req.Password
	if !password.IsHashed(stored) {
		stored, err = password.Hash(stored)
		if err != nil {
			return respondError(c, err)
		}
	}

	ws := &model.Workspace{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Slug:         req.Slug,
		Password:     stored,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Organization: req.Organization,
		SenderName:   req.SenderName,
	}
	if err := h.store.ApproveRequest(req, ws, model.ActorMaster); err != nil {
		return respondError(c, err)
	}

	h.audit.Record(audit.FromRequest(c, audit.Entry{
		ActorType: model.ActorMaster, ActorID: "master",
		Action: "request.approve", TargetType: "workspace_request", TargetID: req.ID,
		WorkspaceID: ws.ID, Result: model.AuditSuccess, StatusCode: http.StatusCreated,
	}))
	return c.JSON(http.StatusCreated, echo.Map{"workspace": ws})
}

// RejectRequest marks a pending application rejected.
func (h *MasterHandler) RejectRequest(c echo.Context) error {
	req, err := h.store.RequestByID(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if req.Status != model.RequestPending {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "request already processed"})
	}

	if err := h.store.RejectRequest(req.ID, model.ActorMaster); err != nil {
		return respondError(c, err)
	}

	h.audit.Record(audit.FromRequest(c, audit.Entry{
		ActorType: model.ActorMaster, ActorID: "master",
		Action: "request.reject", TargetType: "workspace_request", TargetID: req.ID,
		Result: model.AuditSuccess, StatusCode: http.StatusOK,
	}))
	return c.JSON(http.StatusOK, echo.Map{"rejected": true})
}

// DeleteRequest removes an application regardless of its status.
func (h *MasterHandler) DeleteRequest(c echo.Context) error {
	req, err := h.store.RequestByID(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	if err := h.store.DeleteRequest(req.ID); err != nil {
		return respondError(c, err)
	}

	h.audit.Record(audit.FromRequest(c, audit.Entry{
		ActorType: model.ActorMaster, ActorID: "master",
		Action: "request.delete", TargetType: "workspace_request", TargetID: req.ID,
		Result: model.AuditSuccess, StatusCode: http.StatusOK,
	}))
	return c.JSON(http.StatusOK, echo.Map{"deleted": true})
}

// RunRetention triggers a retention sweep outside the cron schedule.
func (h *MasterHandler) RunRetention(c echo.Context) error {
	summary := h.sweeper.Run()
	prometheus.RecordRetentionSweep()

	h.audit.Record(audit.FromRequest(c, audit.Entry{
		ActorType: model.ActorMaster, ActorID: "master",
		Action: "retention.run", Result: model.AuditSuccess, StatusCode: http.StatusOK,
	}))
	return c.JSON(http.StatusOK, summary)
}
