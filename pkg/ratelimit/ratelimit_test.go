package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"experts-service/internal/testutil"
)

func newTestLimiter(t *testing.T) (*Limiter, *time.Time) {
	t.Helper()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := New(testutil.NewDB(t), Policy{
		MaxAttempts: 3,
		Window:      10 * time.Minute,
		Block:       15 * time.Minute,
	})
	l.now = func() time.Time { return current }
	return l, &current
}

func TestCheckAllowsUnknownKey(t *testing.T) {
	l, _ := newTestLimiter(t)

	res, err := l.Check("workspace:acme:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestSaturationBlocks(t *testing.T) {
	l, _ := newTestLimiter(t)
	key := "workspace:acme:1.2.3.4"

	for i := 0; i < 2; i++ {
		blocked, _, err := l.RegisterFailure(key)
		require.NoError(t, err)
		assert.False(t, blocked, "attempt %d should not block", i+1)
	}

	blocked, retry, err := l.RegisterFailure(key)
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, 900, retry)

	res, err := l.Check(key)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 900, res.RetryAfterSeconds)
}

func TestClearUnblocksImmediately(t *testing.T) {
	l, _ := newTestLimiter(t)
	key := "workspace:acme:1.2.3.4"

	for i := 0; i < 3; i++ {
		_, _, err := l.RegisterFailure(key)
		require.NoError(t, err)
	}

	res, err := l.Check(key)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	require.NoError(t, l.Clear(key))

	res, err = l.Check(key)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestBlockExpires(t *testing.T) {
	l, current := newTestLimiter(t)
	key := "master:1.2.3.4"

	for i := 0; i < 3; i++ {
		_, _, err := l.RegisterFailure(key)
		require.NoError(t, err)
	}

	*current = current.Add(16 * time.Minute)

	res, err := l.Check(key)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestAgedWindowResetsCounter(t *testing.T) {
	l, current := newTestLimiter(t)
	key := "voter:exp-1:kim:1.2.3.4"

	for i := 0; i < 2; i++ {
		_, _, err := l.RegisterFailure(key)
		require.NoError(t, err)
	}

	// Window ages out without reaching the cap; the next failure
	// starts a fresh window instead of blocking.
	*current = current.Add(11 * time.Minute)

	res, err := l.Check(key)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	blocked, _, err := l.RegisterFailure(key)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestKeysAreIsolated(t *testing.T) {
	l, _ := newTestLimiter(t)

	for i := 0; i < 3; i++ {
		_, _, err := l.RegisterFailure(WorkspaceKey("acme", "1.2.3.4"))
		require.NoError(t, err)
	}

	res, err := l.Check(WorkspaceKey("acme", "5.6.7.8"))
	require.NoError(t, err)
	assert.True(t, res.Allowed, "another IP must not be locked out")

	res, err = l.Check(WorkspaceKey("globex", "1.2.3.4"))
	require.NoError(t, err)
	assert.True(t, res.Allowed, "another workspace must not be locked out")
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "master:1.2.3.4", MasterKey("1.2.3.4"))
	assert.Equal(t, "workspace:acme:1.2.3.4", WorkspaceKey("acme", "1.2.3.4"))
	assert.Equal(t, "expert:acme:exp-1:1.2.3.4", ExpertKey("acme", "exp-1", "1.2.3.4"))
	assert.Equal(t, "voter:exp-1:kim:1.2.3.4", VoterKey("exp-1", "kim", "1.2.3.4"))
}
