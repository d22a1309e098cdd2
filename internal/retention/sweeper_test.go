package retention

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"experts-service/internal/apperr"
	"experts-service/internal/model"
	"experts-service/internal/store"
	"experts-service/internal/testutil"
)

func newSweeper(t *testing.T, years int) (*Sweeper, *store.Store) {
	t.Helper()
	st := store.New(testutil.NewDB(t))
	return NewSweeper(st, zap.NewNop(), years), st
}

func backdate(t *testing.T, st *store.Store, table, id string, age time.Duration) {
	t.Helper()
	created := time.Now().Add(-age)
	require.NoError(t, st.DB().Table(table).Where("id = ?", id).Update("created_at", created).Error)
}

func TestRunDeletesExpiredRows(t *testing.T) {
	sweeper, st := newSweeper(t, 1)

	old := &model.Workspace{ID: uuid.NewString(), Name: "Old", Slug: "old", Password: "pw"}
	fresh := &model.Workspace{ID: uuid.NewString(), Name: "Fresh", Slug: "fresh", Password: "pw"}
	require.NoError(t, st.CreateWorkspace(old))
	require.NoError(t, st.CreateWorkspace(fresh))
	backdate(t, st, "workspaces", old.ID, 2*365*24*time.Hour)

	expert := &model.Expert{ID: uuid.NewString(), WorkspaceID: fresh.ID, Name: "Dr. Kim", Status: model.StatusNone}
	require.NoError(t, st.UpsertExpert(expert))
	backdate(t, st, "experts", expert.ID, 2*365*24*time.Hour)

	req := &model.WorkspaceRequest{
		ID: uuid.NewString(), Name: "Stale", Slug: "stale",
		Password: "pw", ContactName: "Park", ContactEmail: "p@example.com",
		Status: model.RequestPending,
	}
	require.NoError(t, st.CreateRequest(req))
	backdate(t, st, "workspace_requests", req.ID, 2*365*24*time.Hour)

	summary := sweeper.Run()

	assert.Equal(t, 1, summary.DeletedWorkspaces)
	assert.Equal(t, 1, summary.DeletedExperts)
	assert.Equal(t, 1, summary.DeletedRequests)

	_, err := st.WorkspaceBySlug("old")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = st.WorkspaceBySlug("fresh")
	assert.NoError(t, err)
	_, err = st.ExpertByID(fresh.ID, expert.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRunLeavesRecentRows(t *testing.T) {
	sweeper, st := newSweeper(t, 1)

	ws := &model.Workspace{ID: uuid.NewString(), Name: "Recent", Slug: "recent", Password: "pw"}
	require.NoError(t, st.CreateWorkspace(ws))

	summary := sweeper.Run()

	assert.Zero(t, summary.DeletedWorkspaces)
	_, err := st.WorkspaceBySlug("recent")
	assert.NoError(t, err)
}

func TestRunNeverDeletesDefaultWorkspace(t *testing.T) {
	sweeper, st := newSweeper(t, 1)

	def := &model.Workspace{ID: model.DefaultWorkspaceID, Name: "Default", Slug: "default", Password: "pw"}
	require.NoError(t, st.CreateWorkspace(def))
	backdate(t, st, "workspaces", def.ID, 10*365*24*time.Hour)

	summary := sweeper.Run()

	assert.Zero(t, summary.DeletedWorkspaces)
	_, err := st.WorkspaceByID(model.DefaultWorkspaceID)
	assert.NoError(t, err)
}

func TestCutoffUsesRetentionYears(t *testing.T) {
	sweeper, _ := newSweeper(t, 3)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sweeper.now = func() time.Time { return fixed }

	summary := sweeper.Run()

	expected := fixed.Add(-3 * 365 * 24 * time.Hour)
	assert.Equal(t, expected, summary.Cutoff)
	assert.Equal(t, 3, summary.Years)
}
