package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"experts-service/internal/model"
)

func TestExpertLifecycleOverHTTP(t *testing.T) {
	env := newEnv(t)
	ws := seedWorkspace(t, env.store, "acme", "hunter2")
	expert := seedExpert(t, env.store, ws, model.StatusNone)
	a := seedSlot(t, env.store, expert.ID, "2025-07-01")
	b := seedSlot(t, env.store, expert.ID, "2025-07-02")

	params := []string{"id"}
	values := []string{expert.ID}

	rec := call(t, env.expert.StartPolling, http.MethodPost, "", ws, params, values)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(model.StatusPolling), decode(t, rec)["status"])

	body := fmt.Sprintf(`{"slot_ids":["%s","%s"]}`, a.ID, b.ID)
	rec = call(t, env.expert.Confirm, http.MethodPost, body, ws, params, values)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(model.StatusConfirmed), decode(t, rec)["status"])

	rec = call(t, env.expert.SelectSlot, http.MethodPost,
		fmt.Sprintf(`{"slot_id":"%s"}`, b.ID), ws, params, values)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(model.StatusRegistered), decode(t, rec)["status"])

	stored, err := env.store.ExpertByID(ws.ID, expert.ID)
	require.NoError(t, err)
	selected := stored.SelectedSnapshot()
	require.NotNil(t, selected)
	assert.Equal(t, b.ID, selected.ID)
}

func TestStartPollingRequiresSlots(t *testing.T) {
	env := newEnv(t)
	ws := seedWorkspace(t, env.store, "acme", "hunter2")
	expert := seedExpert(t, env.store, ws, model.StatusNone)

	rec := call(t, env.expert.StartPolling, http.MethodPost, "", ws,
		[]string{"id"}, []string{expert.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmRejectsForeignSlots(t *testing.T) {
	env := newEnv(t)
	ws := seedWorkspace(t, env.store, "acme", "hunter2")
	expert := seedExpert(t, env.store, ws, model.StatusPolling)
	seedSlot(t, env.store, expert.ID, "2025-07-01")
	other := seedExpert(t, env.store, ws, model.StatusNone)
	foreign := seedSlot(t, env.store, other.ID, "2025-07-02")

	rec := call(t, env.expert.Confirm, http.MethodPost,
		fmt.Sprintf(`{"slot_ids":["%s"]}`, foreign.ID), ws,
		[]string{"id"}, []string{expert.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetConfirmationReopensPolling(t *testing.T) {
	env := newEnv(t)
	ws := seedWorkspace(t, env.store, "acme", "hunter2")
	expert := seedExpert(t, env.store, ws, model.StatusPolling)
	a := seedSlot(t, env.store, expert.ID, "2025-07-01")

	params := []string{"id"}
	values := []string{expert.ID}

	rec := call(t, env.expert.Confirm, http.MethodPost,
		fmt.Sprintf(`{"slot_ids":["%s"]}`, a.ID), ws, params, values)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, env.expert.ResetConfirmation, http.MethodPost, "", ws, params, values)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := env.store.ExpertByID(ws.ID, expert.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPolling, stored.Status)
	assert.Nil(t, stored.ConfirmedSlots)
	assert.Nil(t, stored.SelectedSlot)
}

func TestSlotsFrozenAfterConfirmation(t *testing.T) {
	env := newEnv(t)
	ws := seedWorkspace(t, env.store, "acme", "hunter2")
	expert := seedExpert(t, env.store, ws, model.StatusConfirmed)
	slot := seedSlot(t, env.store, expert.ID, "2025-07-01")

	rec := call(t, env.expert.AddSlot, http.MethodPost,
		`{"date":"2025-08-01","time":"10:00-12:00"}`, ws,
		[]string{"id"}, []string{expert.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, env.expert.DeleteSlot, http.MethodDelete, "", ws,
		[]string{"id", "slotId"}, []string{expert.ID, slot.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoteReplacesAll(t *testing.T) {
	env := newEnv(t)
	ws := seedWorkspace(t, env.store, "acme", "hunter2")
	expert := seedExpert(t, env.store, ws, model.StatusPolling)
	a := seedSlot(t, env.store, expert.ID, "2025-07-01")
	b := seedSlot(t, env.store, expert.ID, "2025-07-02")
	c := seedSlot(t, env.store, expert.ID, "2025-07-03")

	params := []string{"id"}
	values := []string{expert.ID}

	rec := call(t, env.expert.Vote, http.MethodPost,
		fmt.Sprintf(`{"voter_name":"kim","slot_ids":["%s","%s"]}`, a.ID, b.ID), ws, params, values)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, env.expert.Vote, http.MethodPost,
		fmt.Sprintf(`{"voter_name":"kim","slot_ids":["%s"]}`, c.ID), ws, params, values)
	require.Equal(t, http.StatusOK, rec.Code)

	responses, err := env.store.ResponsesForExpert(expert.ID)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, c.ID, responses[0].SlotID)
}

func TestVoteClosedWhenConfirmed(t *testing.T) {
	env := newEnv(t)
	ws := seedWorkspace(t, env.store, "acme", "hunter2")
	expert := seedExpert(t, env.store, ws, model.StatusConfirmed)
	slot := seedSlot(t, env.store, expert.ID, "2025-07-01")

	rec := call(t, env.expert.Vote, http.MethodPost,
		fmt.Sprintf(`{"voter_name":"kim","slot_ids":["%s"]}`, slot.ID), ws,
		[]string{"id"}, []string{expert.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoteOpenWhileUnavailable(t *testing.T) {
	env := newEnv(t)
	ws := seedWorkspace(t, env.store, "acme", "hunter2")
	expert := seedExpert(t, env.store, ws, model.StatusUnavailable)
	slot := seedSlot(t, env.store, expert.ID, "2025-07-01")

	rec := call(t, env.expert.Vote, http.MethodPost,
		fmt.Sprintf(`{"voter_name":"kim","slot_ids":["%s"]}`, slot.ID), ws,
		[]string{"id"}, []string{expert.ID})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyPasswordEstablishesThenVerifies(t *testing.T) {
	env := newEnv(t)
	ws := seedWorkspace(t, env.store, "acme", "hunter2")
	expert := seedExpert(t, env.store, ws, model.StatusPolling)

	params := []string{"id"}
	values := []string{expert.ID}

	rec := call(t, env.expert.VerifyPassword, http.MethodPost,
		`{"voter_name":"kim","password":"kimpw"}`, ws, params, values)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["established"])

	rec = call(t, env.expert.VerifyPassword, http.MethodPost,
		`{"voter_name":"kim","password":"kimpw"}`, ws, params, values)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["established"])

	rec = call(t, env.expert.VerifyPassword, http.MethodPost,
		`{"voter_name":"kim","password":"wrong"}`, ws, params, values)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExpertAuthIssuesToken(t *testing.T) {
	env := newEnv(t)
	ws := seedWorkspace(t, env.store, "acme", "hunter2")
	expert := seedExpert(t, env.store, ws, model.StatusNone)

	rec := call(t, env.expert.Upsert, http.MethodPost,
		fmt.Sprintf(`{"id":"%s","name":"Dr. Kim","password":"expertpw"}`, expert.ID), ws, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, env.expert.Auth, http.MethodPost, `{"password":"expertpw"}`, ws,
		[]string{"id"}, []string{expert.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["token"])

	rec = call(t, env.expert.Auth, http.MethodPost, `{"password":"wrong"}`, ws,
		[]string{"id"}, []string{expert.ID})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListIncludesTalliesAndVoters(t *testing.T) {
	env := newEnv(t)
	ws := seedWorkspace(t, env.store, "acme", "hunter2")
	expert := seedExpert(t, env.store, ws, model.StatusPolling)
	a := seedSlot(t, env.store, expert.ID, "2025-07-01")

	require.NoError(t, env.store.ReplaceVotes(expert.ID, "kim", []string{a.ID}))
	require.NoError(t, env.store.ReplaceVotes(expert.ID, "lee", []string{a.ID}))

	rec := call(t, env.expert.List, http.MethodGet, "", ws, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	experts := decode(t, rec)["experts"].([]interface{})
	require.Len(t, experts, 1)
	slots := experts[0].(map[string]interface{})["slots"].([]interface{})
	require.Len(t, slots, 1)
	slot := slots[0].(map[string]interface{})
	assert.EqualValues(t, 2, slot["votes"])
	assert.Len(t, slot["voters"], 2)

	// Public view: same tallies, no voter identities.
	rec = call(t, env.expert.Get, http.MethodGet, "", ws, []string{"id"}, []string{expert.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	publicSlots := decode(t, rec)["slots"].([]interface{})
	publicSlot := publicSlots[0].(map[string]interface{})
	assert.EqualValues(t, 2, publicSlot["votes"])
	assert.NotContains(t, publicSlot, "voters")
}
