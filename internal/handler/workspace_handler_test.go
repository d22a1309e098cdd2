package handler

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"experts-service/internal/model"
	"experts-service/pkg/password"
)

func TestWorkspaceAuthSuccess(t *testing.T) {
	env := newEnv(t)
	ws := seedWorkspace(t, env.store, "acme", "hunter2")

	rec := call(t, env.workspace.Auth, http.MethodPost, `{"password":"hunter2"}`, ws, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.NotEmpty(t, body["token"])
}

func TestWorkspaceAuthWrongPassword(t *testing.T) {
	env := newEnv(t)
	ws := seedWorkspace(t, env.store, "acme", "hunter2")

	rec := call(t, env.workspace.Auth, http.MethodPost, `{"password":"wrong"}`, ws, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", decode(t, rec)["error"])
}

func TestWorkspaceAuthRateLimited(t *testing.T) {
	env := newEnv(t)
	ws := seedWorkspace(t, env.store, "acme", "hunter2")

	// Saturate the limiter (MaxAttempts = 3 in the test env).
	rec := call(t, env.workspace.Auth, http.MethodPost, `{"password":"wrong"}`, ws, nil, nil)
	for i := 0; i < 2; i++ {
		rec = call(t, env.workspace.Auth, http.MethodPost, `{"password":"wrong"}`, ws, nil, nil)
	}
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotNil(t, decode(t, rec)["retry_after"])

	// Even the right password is rejected while blocked.
	rec = call(t, env.workspace.Auth, http.MethodPost, `{"password":"hunter2"}`, ws, nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestWorkspaceAuthMigratesLegacyPassword(t *testing.T) {
	env := newEnv(t)
	ws := &model.Workspace{
		ID:       uuid.NewString(),
		Name:     "Legacy",
		Slug:     "legacy",
		Password: "plaintext-password",
	}
	require.NoError(t, env.store.CreateWorkspace(ws))

	rec := call(t, env.workspace.Auth, http.MethodPost, `{"password":"plaintext-password"}`, ws, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := env.store.WorkspaceBySlug("legacy")
	require.NoError(t, err)
	assert.True(t, password.IsHashed(stored.Password))
	assert.True(t, password.Verify("plaintext-password", stored.Password))
}

func TestWorkspaceSettingsRoundTrip(t *testing.T) {
	env := newEnv(t)
	ws := seedWorkspace(t, env.store, "acme", "hunter2")

	rec := call(t, env.workspace.UpdateSettings, http.MethodPut,
		`{"name":"Renamed","sender_name":"Events Team","contact_email":"team@acme.test"}`,
		ws, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := env.store.WorkspaceBySlug("acme")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Name)
	assert.Equal(t, "Events Team", stored.SenderName)

	rec = call(t, env.workspace.PublicSettings, http.MethodGet, "", stored, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Events Team", body["sender_name"])
	// Public settings leak nothing else.
	assert.NotContains(t, body, "contact_email")
}

func TestWorkspaceSettingsPasswordRotation(t *testing.T) {
	env := newEnv(t)
	ws := seedWorkspace(t, env.store, "acme", "hunter2")

	rec := call(t, env.workspace.UpdateSettings, http.MethodPut, `{"password":"new-secret"}`, ws, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := env.store.WorkspaceBySlug("acme")
	require.NoError(t, err)
	assert.True(t, password.Verify("new-secret", stored.Password))
	assert.False(t, password.Verify("hunter2", stored.Password))
}

func TestRequestCreateAndApprove(t *testing.T) {
	env := newEnv(t)

	rec := call(t, env.request.Create, http.MethodPost,
		`{"name":"New Org","slug":"neworg","password":"orgpw","contact_name":"Park","contact_email":"park@example.com"}`,
		nil, nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	requestID := decode(t, rec)["id"].(string)

	// The same slug is now rejected for new applications.
	rec = call(t, env.request.Create, http.MethodPost,
		`{"name":"Other","slug":"neworg","password":"pw","contact_name":"Lee","contact_email":"lee@example.com"}`,
		nil, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, env.master.ApproveRequest, http.MethodPost, "", nil,
		[]string{"id"}, []string{requestID})
	require.Equal(t, http.StatusCreated, rec.Code)

	ws, err := env.store.WorkspaceBySlug("neworg")
	require.NoError(t, err)
	assert.True(t, password.Verify("orgpw", ws.Password))

	// A processed request cannot be approved twice.
	rec = call(t, env.master.ApproveRequest, http.MethodPost, "", nil,
		[]string{"id"}, []string{requestID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestCreateRequiresFields(t *testing.T) {
	env := newEnv(t)

	rec := call(t, env.request.Create, http.MethodPost, `{"name":"No Slug"}`, nil, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMasterAuth(t *testing.T) {
	env := newEnv(t)

	rec := call(t, env.master.Auth, http.MethodPost, `{"password":"master-secret"}`, nil, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["token"])

	rec = call(t, env.master.Auth, http.MethodPost, `{"password":"nope"}`, nil, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMasterDeleteProtectsDefaultWorkspace(t *testing.T) {
	env := newEnv(t)
	def := &model.Workspace{ID: model.DefaultWorkspaceID, Name: "Default", Slug: "default", Password: "pw"}
	require.NoError(t, env.store.CreateWorkspace(def))

	rec := call(t, env.master.DeleteWorkspace, http.MethodDelete, "", nil,
		[]string{"id"}, []string{model.DefaultWorkspaceID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, err := env.store.WorkspaceByID(model.DefaultWorkspaceID)
	assert.NoError(t, err)
}
