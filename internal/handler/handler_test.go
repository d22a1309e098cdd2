package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"experts-service/internal/audit"
	"experts-service/internal/middleware"
	"experts-service/internal/model"
	"experts-service/internal/retention"
	"experts-service/internal/store"
	"experts-service/internal/testutil"
	"experts-service/pkg/config"
	"experts-service/pkg/password"
	"experts-service/pkg/ratelimit"
	"experts-service/pkg/tokenutil"
)

func init() {
	tokenutil.Initialize(tokenutil.Config{SigningKey: "test-signing-key"})
}

// env bundles everything a handler test needs.
type env struct {
	store     *store.Store
	master    *MasterHandler
	workspace *WorkspaceHandler
	expert    *ExpertHandler
	request   *RequestHandler
	audit     *audit.Logger
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	st := store.New(db)
	limiter := ratelimit.New(db, ratelimit.Policy{
		MaxAttempts: 3,
		Window:      10 * time.Minute,
		Block:       15 * time.Minute,
	})
	auditLog := audit.NewLogger(db, zap.NewNop())
	t.Cleanup(auditLog.Close)
	sweeper := retention.NewSweeper(st, zap.NewNop(), 5)
	cfg := &config.Config{}
	cfg.Master.Password = "master-secret"

	return &env{
		store:     st,
		master:    NewMasterHandler(st, limiter, auditLog, sweeper, cfg),
		workspace: NewWorkspaceHandler(st, limiter, auditLog),
		expert:    NewExpertHandler(st, limiter, auditLog),
		request:   NewRequestHandler(st, auditLog),
		audit:     auditLog,
	}
}

// call invokes a handler with an optional JSON body, path params and
// a pre-resolved workspace, and returns the recorder.
func call(t *testing.T, h echo.HandlerFunc, method, body string, ws *model.Workspace, paramNames, paramValues []string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/", reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if ws != nil {
		c.Set(middleware.ContextWorkspace, ws)
	}
	c.SetParamNames(paramNames...)
	c.SetParamValues(paramValues...)
	require.NoError(t, h(c))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func seedWorkspace(t *testing.T, st *store.Store, slug, plaintext string) *model.Workspace {
	t.Helper()
	hashed, err := password.Hash(plaintext)
	require.NoError(t, err)
	ws := &model.Workspace{
		ID:       uuid.NewString(),
		Name:     "Workspace " + slug,
		Slug:     slug,
		Password: hashed,
	}
	require.NoError(t, st.CreateWorkspace(ws))
	return ws
}

func seedExpert(t *testing.T, st *store.Store, ws *model.Workspace, status model.ExpertStatus) *model.Expert {
	t.Helper()
	expert := &model.Expert{
		ID:          uuid.NewString(),
		WorkspaceID: ws.ID,
		Name:        "Dr. Kim",
		Status:      model.StatusNone,
	}
	require.NoError(t, st.UpsertExpert(expert))
	if status != model.StatusNone {
		expert.Status = status
		require.NoError(t, st.SaveExpert(expert))
	}
	return expert
}

func seedSlot(t *testing.T, st *store.Store, expertID, date string) *model.PollingSlot {
	t.Helper()
	slot := &model.PollingSlot{
		ID:       uuid.NewString(),
		ExpertID: expertID,
		Date:     date,
		Time:     "10:00-12:00",
	}
	require.NoError(t, st.AddSlot(slot))
	return slot
}
