package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"experts-service/internal/audit"
	"experts-service/internal/middleware"
	"experts-service/internal/model"
	"experts-service/internal/scheduling"
	"experts-service/internal/store"
	"experts-service/pkg/logger"
	"experts-service/pkg/password"
	"experts-service/pkg/ratelimit"
	"experts-service/pkg/tokenutil"
	"experts-service/prometheus"
)

// ExpertHandler serves expert management, slot polling, voting and
// the scheduling lifecycle.
type ExpertHandler struct {
	store   *store.Store
	limiter *ratelimit.Limiter
	audit   *audit.Logger
}

// NewExpertHandler wires the expert surface.
func NewExpertHandler(st *store.Store, limiter *ratelimit.Limiter, auditLog *audit.Logger) *ExpertHandler {
	return &ExpertHandler{store: st, limiter: limiter, audit: auditLog}
}

// slotView is a candidate slot with its recomputed vote tally.
type slotView struct {
	ID     string   `json:"id"`
	Date   string   `json:"date"`
	Time   string   `json:"time"`
	Votes  int      `json:"votes"`
	Voters []string `json:"voters,omitempty"`
}

// expertView is the assembled read model for one expert. Tallies are
// derived from voter responses on every read, never stored.
type expertView struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Organization   string               `json:"organization,omitempty"`
	Position       string               `json:"position,omitempty"`
	Email          string               `json:"email,omitempty"`
	Phone          string               `json:"phone,omitempty"`
	Fee            string               `json:"fee,omitempty"`
	Status         model.ExpertStatus   `json:"status"`
	HasPassword    bool                 `json:"has_password"`
	Slots          []slotView           `json:"slots"`
	SelectedSlot   *model.SlotSnapshot  `json:"selected_slot,omitempty"`
	ConfirmedSlots []model.SlotSnapshot `json:"confirmed_slots,omitempty"`
	VoterNames     []string             `json:"voter_names,omitempty"`
}

// buildView assembles an expert's read model. Voter identities are
// included only for the authenticated workspace listing.
func (h *ExpertHandler) buildView(expert *model.Expert, includeVoters bool) (*expertView, error) {
	slots, err := h.store.SlotsForExpert(expert.ID)
	if err != nil {
		return nil, err
	}
	responses, err := h.store.ResponsesForExpert(expert.ID)
	if err != nil {
		return nil, err
	}

	tally := make(map[string]int)
	voters := make(map[string][]string)
	for _, r := range responses {
		tally[r.SlotID]++
		voters[r.SlotID] = append(voters[r.SlotID], r.VoterName)
	}

	view := &expertView{
		ID:             expert.ID,
		Name:           expert.Name,
		Organization:   expert.Organization,
		Position:       expert.Position,
		Email:          expert.Email,
		Phone:          expert.Phone,
		Fee:            expert.Fee,
		Status:         expert.Status,
		HasPassword:    expert.Password != "",
		Slots:          make([]slotView, 0, len(slots)),
		SelectedSlot:   expert.SelectedSnapshot(),
		ConfirmedSlots: expert.ConfirmedSnapshot(),
	}
	for _, slot := range slots {
		sv := slotView{ID: slot.ID, Date: slot.Date, Time: slot.Time, Votes: tally[slot.ID]}
		if includeVoters {
			sv.Voters = voters[slot.ID]
		}
		view.Slots = append(view.Slots, sv)
	}

	if includeVoters {
		names, err := h.store.VoterNamesForExpert(expert.ID)
		if err != nil {
			return nil, err
		}
		view.VoterNames = names
	}
	return view, nil
}

// List returns all experts of the workspace with slots, tallies and
// voter identities. Workspace token required.
func (h *ExpertHandler) List(c echo.Context) error {
	ws := middleware.WorkspaceFromContext(c)

	experts, err := h.store.ListExperts(ws.ID)
	if err != nil {
		return respondError(c, err)
	}

	views := make([]*expertView, 0, len(experts))
	for i := range experts {
		view, err := h.buildView(&experts[i], true)
		if err != nil {
			return respondError(c, err)
		}
		views = append(views, view)
	}
	return c.JSON(http.StatusOK, echo.Map{"experts": views})
}

// Get returns one expert's public view: same shape as the listing
// minus voter identities.
func (h *ExpertHandler) Get(c echo.Context) error {
	ws := middleware.WorkspaceFromContext(c)

	expert, err := h.store.ExpertByID(ws.ID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	view, err := h.buildView(expert, false)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

type expertUpsertRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Organization string `json:"organization"`
	Position     string `json:"position"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Fee          string `json:"fee"`
	Password     string `json:"password"`
}

// Upsert creates an expert or updates its profile. A non-empty
// password is hashed at rest; an empty one leaves the credential
// untouched.
func (h *ExpertHandler) Upsert(c echo.Context) error {
	ws := middleware.WorkspaceFromContext(c)

	var req expertUpsertRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	expert := &model.Expert{
		ID:           req.ID,
		WorkspaceID:  ws.ID,
		Name:         req.Name,
		Organization: req.Organization,
		Position:     req.Position,
		Email:        req.Email,
		Phone:        req.Phone,
		Fee:          req.Fee,
		Status:       model.StatusNone,
	}
	if expert.ID == "" {
		expert.ID = uuid.NewString()
	}
	if req.Password != "" {
		hashed, err := password.Hash(req.Password)
		if err != nil {
			return respondError(c, err)
		}
		expert.Password = hashed
	}

	if err := h.store.UpsertExpert(expert); err != nil {
		return respondError(c, err)
	}

	h.audit.Record(audit.FromRequest(c, audit.Entry{
		ActorType: model.ActorWorkspace, ActorID: ws.Slug, WorkspaceID: ws.ID,
		Action: "expert.upsert", TargetType: "expert", TargetID: expert.ID,
		Result: model.AuditSuccess, StatusCode: http.StatusOK,
	}))
	return c.JSON(http.StatusOK, echo.Map{"id": expert.ID})
}

// Delete removes an expert and everything attached to it.
func (h *ExpertHandler) Delete(c echo.Context) error {
	ws := middleware.WorkspaceFromContext(c)

	expert, err := h.store.ExpertByID(ws.ID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	if err := h.store.DeleteExpertCascade(ws.ID, expert.ID); err != nil {
		return respondError(c, err)
	}

	h.audit.Record(audit.FromRequest(c, audit.Entry{
		ActorType: model.ActorWorkspace, ActorID: ws.Slug, WorkspaceID: ws.ID,
		Action: "expert.delete", TargetType: "expert", TargetID: expert.ID,
		Result: model.AuditSuccess, StatusCode: http.StatusOK,
	}))
	return c.JSON(http.StatusOK, echo.Map{"deleted": true})
}

type slotAddRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// AddSlot adds a candidate slot. The candidate set is frozen once the
// expert is confirmed.
func (h *ExpertHandler) AddSlot(c echo.Context) error {
	ws := middleware.WorkspaceFromContext(c)

	expert, err := h.store.ExpertByID(ws.ID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if !scheduling.CanMutateSlots(expert.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "candidate slots are frozen"})
	}

	var req slotAddRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Date == "" || req.Time == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date and time are required"})
	}

	slot := &model.PollingSlot{
		ID:       uuid.NewString(),
		ExpertID: expert.ID,
		Date:     req.Date,
		Time:     req.Time,
	}
	if err := h.store.AddSlot(slot); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, slot)
}

// DeleteSlot removes a candidate slot along with votes for it.
func (h *ExpertHandler) DeleteSlot(c echo.Context) error {
	ws := middleware.WorkspaceFromContext(c)

	expert, err := h.store.ExpertByID(ws.ID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if !scheduling.CanMutateSlots(expert.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "candidate slots are frozen"})
	}

	if err := h.store.DeleteSlotCascade(expert.ID, c.Param("slotId")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": true})
}

type expertAuthRequest struct {
	Password string `json:"password"`
}

// Auth exchanges the expert's password for an expert token bound to
// this workspace and expert. Rate limited per expert + client IP.
// Legacy plaintext credentials are upgraded on first success.
func (h *ExpertHandler) Auth(c echo.Context) error {
	log := logger.FromContext(c)
	ws := middleware.WorkspaceFromContext(c)
	prometheus.RecordLogin(tokenutil.PrincipalExpert)

	expert, err := h.store.ExpertByID(ws.ID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	var req expertAuthRequest
	if err := c.Bind(&req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	key := ratelimit.ExpertKey(ws.Slug, expert.ID, c.RealIP())
	check, err := h.limiter.Check(key)
	if err != nil {
		log.Error("rate limit check failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !check.Allowed {
		prometheus.RecordRateLimitBlock()
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"error":       "too many attempts",
			"retry_after": check.RetryAfterSeconds,
		})
	}

	if expert.Password == "" || !password.Verify(req.Password, expert.Password) {
		prometheus.RecordAuthError("login_failure")
		blocked, retry, regErr := h.limiter.RegisterFailure(key)
		if regErr != nil {
			log.Error("rate limit update failed", zap.Error(regErr))
		}
		h.audit.Record(audit.FromRequest(c, audit.Entry{
			ActorType: model.ActorAnonymous, ActorID: expert.ID, WorkspaceID: ws.ID,
			Action: "expert.auth", TargetType: "expert", TargetID: expert.ID,
			Result: model.AuditFailure, StatusCode: http.StatusUnauthorized,
			Reason: "invalid credentials",
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

	if !password.IsHashed(expert.Password) {
		if hashed, hashErr := password.Hash(req.Password); hashErr == nil {
			if saveErr := h.store.UpdateExpertPassword(expert.ID, hashed); saveErr != nil {
				log.Error("password upgrade failed", zap.Error(saveErr))
			}
		}
	}

	if err := h.limiter.Clear(key); err != nil {
		log.Error("rate limit clear failed", zap.Error(err))
	}

	token, err := tokenutil.GenerateExpertToken(ws.ID, ws.Slug, expert.ID)
	if err != nil {
		log.Error("token generation failed", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	h.audit.Record(audit.FromRequest(c, audit.Entry{
		ActorType: model.ActorAnonymous, ActorID: expert.ID, WorkspaceID: ws.ID,
		Action: "expert.auth", TargetType: "expert", TargetID: expert.ID,
		Result: model.AuditSuccess, StatusCode: http.StatusOK,
	}))
	return c.JSON(http.StatusOK, echo.Map{"token": token, "expert_id": expert.ID})
}

type voterPasswordRequest struct {
	VoterName string `json:"voter_name"`
	Password  string `json:"password"`
}

// VerifyPassword establishes or checks a voter's per-expert password.
// The first submission for a (expert, voter) pair sets the password;
// later submissions must match it. Rate limited per expert + voter +
// client IP.
func (h *ExpertHandler) VerifyPassword(c echo.Context) error {
	log := logger.FromContext(c)
	ws := middleware.WorkspaceFromContext(c)
	prometheus.RecordLogin("voter")

	expert, err := h.store.ExpertByID(ws.ID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	var req voterPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.VoterName == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "voter name and password are required"})
	}

	key := ratelimit.VoterKey(expert.ID, req.VoterName, c.RealIP())
	check, err := h.limiter.Check(key)
	if err != nil {
		log.Error("rate limit check failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !check.Allowed {
		prometheus.RecordRateLimitBlock()
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"error":       "too many attempts",
			"retry_after": check.RetryAfterSeconds,
		})
	}

	stored, err := h.store.VoterPassword(expert.ID, req.VoterName)
	if err != nil {
		return respondError(c, err)
	}

	// First submission establishes the credential.
	if stored == nil {
		hashed, hashErr := password.Hash(req.Password)
		if hashErr != nil {
			return respondError(c, hashErr)
		}
		vp := &model.VoterPassword{ExpertID: expert.ID, VoterName: req.VoterName, Password: hashed}
		if err := h.store.SetVoterPassword(vp); err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"verified": true, "established": true})
	}

	if !password.Verify(req.Password, stored.Password) {
		prometheus.RecordAuthError("login_failure")
		blocked, retry, regErr := h.limiter.RegisterFailure(key)
		if regErr != nil {
			log.Error("rate limit update failed", zap.Error(regErr))
		}
		if blocked {
			prometheus.RecordRateLimitBlock()
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too many attempts",
				"retry_after": retry,
			})
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if !password.IsHashed(stored.Password) {
		if hashed, hashErr := password.Hash(req.Password); hashErr == nil {
			stored.Password = hashed
			if saveErr := h.store.SetVoterPassword(stored); saveErr != nil {
				log.Error("password upgrade failed", zap.Error(saveErr))
			}
		}
	}

	if err := h.limiter.Clear(key); err != nil {
		log.Error("rate limit clear failed", zap.Error(err))
	}
	return c.JSON(http.StatusOK, echo.Map{"verified": true, "established": false})
}

type voteRequest struct {
	VoterName string   `json:"voter_name"`
	SlotIDs   []string `json:"slot_ids"`
}

// Vote replaces the voter's full response set for this expert. Voting
// closes once the expert is confirmed or registered.
func (h *ExpertHandler) Vote(c echo.Context) error {
	ws := middleware.WorkspaceFromContext(c)

	expert, err := h.store.ExpertByID(ws.ID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if scheduling.VotingClosed(expert.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "voting is closed"})
	}

	var req voteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.VoterName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "voter name is required"})
	}

	// Every voted slot must belong to this expert.
	if len(req.SlotIDs) > 0 {
		owned, err := h.store.SlotsByIDs(expert.ID, req.SlotIDs)
		if err != nil {
			return respondError(c, err)
		}
		if len(owned) != len(req.SlotIDs) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown slot in vote"})
		}
	}

	if err := h.store.ReplaceVotes(expert.ID, req.VoterName, req.SlotIDs); err != nil {
		return respondError(c, err)
	}
	prometheus.RecordVote()
	return c.JSON(http.StatusOK, echo.Map{"recorded": len(req.SlotIDs)})
}

// saveTransition persists a state machine result and records it.
func (h *ExpertHandler) saveTransition(c echo.Context, expert *model.Expert, transition string) error {
	ws := middleware.WorkspaceFromContext(c)

	if err := h.store.SaveExpert(expert); err != nil {
		return respondError(c, err)
	}
	prometheus.RecordStateTransition(transition)
	h.audit.Record(audit.FromRequest(c, audit.Entry{
		ActorType: model.ActorWorkspace, ActorID: ws.Slug, WorkspaceID: ws.ID,
		Action: "expert." + transition, TargetType: "expert", TargetID: expert.ID,
		Result: model.AuditSuccess, StatusCode: http.StatusOK,
	}))
	return c.JSON(http.StatusOK, echo.Map{"status": expert.Status})
}

// StartPolling opens voting for an expert with at least one slot.
func (h *ExpertHandler) StartPolling(c echo.Context) error {
	ws := middleware.WorkspaceFromContext(c)

	expert, err := h.store.ExpertByID(ws.ID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	count, err := h.store.CountSlots(expert.ID)
	if err != nil {
		return respondError(c, err)
	}
	if err := scheduling.StartPolling(expert, int(count)); err != nil {
		return respondError(c, err)
	}
	return h.saveTransition(c, expert, "start_polling")
}

type confirmRequest struct {
	SlotIDs []string `json:"slot_ids"`
}

// Confirm shortlists slots and freezes the candidate set. The chosen
// slots are snapshotted by value into the expert row.
func (h *ExpertHandler) Confirm(c echo.Context) error {
	ws := middleware.WorkspaceFromContext(c)

	expert, err := h.store.ExpertByID(ws.ID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	owned, err := h.store.SlotsForExpert(expert.ID)
	if err != nil {
		return respondError(c, err)
	}
	if err := scheduling.Confirm(expert, owned, req.SlotIDs); err != nil {
		return respondError(c, err)
	}
	return h.saveTransition(c, expert, "confirm")
}

// ResetConfirmation reopens polling, clearing the snapshot and any
// selection. Votes and slots survive the reset.
func (h *ExpertHandler) ResetConfirmation(c echo.Context) error {
	ws := middleware.WorkspaceFromContext(c)

	expert, err := h.store.ExpertByID(ws.ID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if err := scheduling.Reset(expert); err != nil {
		return respondError(c, err)
	}
	return h.saveTransition(c, expert, "reset")
}

type selectSlotRequest struct {
	SlotID string `json:"slot_id"`
}

// SelectSlot lets the expert pick one of the shortlisted slots.
// Requires the expert's own token.
func (h *ExpertHandler) SelectSlot(c echo.Context) error {
	ws := middleware.WorkspaceFromContext(c)

	expert, err := h.store.ExpertByID(ws.ID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	var req selectSlotRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := scheduling.SelectSlot(expert, req.SlotID); err != nil {
		return respondError(c, err)
	}
	return h.saveTransition(c, expert, "select_slot")
}

// NoAvailableSchedule lets the expert decline every shortlisted slot.
// Requires the expert's own token.
func (h *ExpertHandler) NoAvailableSchedule(c echo.Context) error {
	ws := middleware.WorkspaceFromContext(c)

	expert, err := h.store.ExpertByID(ws.ID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if err := scheduling.Decline(expert); err != nil {
		return respondError(c, err)
	}
	return h.saveTransition(c, expert, "decline")
}
