package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"experts-service/internal/audit"
	"experts-service/internal/model"
	"experts-service/internal/store"
	"experts-service/pkg/password"
)

// RequestHandler serves the public workspace application form.
type RequestHandler struct {
	store *store.Store
	audit *audit.Logger
}

// NewRequestHandler wires the application surface.
func NewRequestHandler(st *store.Store, auditLog *audit.Logger) *RequestHandler {
	return &RequestHandler{store: st, audit: auditLog}
}

type workspaceApplyRequest struct {
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Password     string `json:"password"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	Organization string `json:"organization"`
	SenderName   string `json:"sender_name"`
	Message      string `json:"message"`
}

// Create files a workspace application. The slug must be free both in
// existing workspaces and in pending applications. The password is
// hashed at rest immediately.
func (h *RequestHandler) Create(c echo.Context) error {
	var req workspaceApplyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == "" || req.Slug == "" || req.Password == "" || req.ContactName == "" || req.ContactEmail == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, slug, password, contact name and contact email are required"})
	}

	taken, err := h.store.SlugTaken(req.Slug)
	if err != nil {
		return respondError(c, err)
	}
	if !taken {
		taken, err = h.store.PendingSlugTaken(req.Slug)
		if err != nil {
			return respondError(c, err)
		}
	}
	if taken {
		return c.JSON(http.StatusConflict, echo.Map{"error": "slug already in use"})
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return respondError(c, err)
	}

	application := &model.WorkspaceRequest{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Slug:         req.Slug,
		Password:     hashed,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Organization: req.Organization,
		SenderName:   req.SenderName,
		Message:      req.Message,
		Status:       model.RequestPending,
	}
	if err := h.store.CreateRequest(application); err != nil {
		return respondError(c, err)
	}

	h.audit.Record(audit.FromRequest(c, audit.Entry{
		ActorType: model.ActorAnonymous, ActorID: req.ContactEmail,
		Action: "request.create", TargetType: "workspace_request", TargetID: application.ID,
		Result: model.AuditSuccess, StatusCode: http.StatusCreated,
	}))
	return c.JSON(http.StatusCreated, application)
}
