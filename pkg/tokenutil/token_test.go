package tokenutil

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestConfig() {
	Initialize(Config{
		SigningKey:        "test-signing-key",
		MasterTTLHours:    1,
		WorkspaceTTLHours: 24,
		ExpertTTLHours:    2,
	})
}

func TestWorkspaceTokenRoundTrip(t *testing.T) {
	initTestConfig()

	token, err := GenerateWorkspaceToken("ws-1", "acme")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, PrincipalWorkspace, claims.Type)
	assert.Equal(t, "ws-1", claims.WorkspaceID)
	assert.Equal(t, "acme", claims.Slug)
	assert.Empty(t, claims.ExpertID)
}

func TestExpertTokenRoundTrip(t *testing.T) {
	initTestConfig()

	token, err := GenerateExpertToken("ws-1", "acme", "exp-9")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, PrincipalExpert, claims.Type)
	assert.Equal(t, "exp-9", claims.ExpertID)
}

func TestMasterTokenRoundTrip(t *testing.T) {
	initTestConfig()

	token, err := GenerateMasterToken()
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, PrincipalMaster, claims.Type)
	assert.Empty(t, claims.WorkspaceID)
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	initTestConfig()

	token, err := GenerateWorkspaceToken("ws-1", "acme")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	// Flip a character in the payload; the signature no longer matches.
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	_, err = ValidateToken(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Truncated signature fails too.
	_, err = ValidateToken(parts[0] + "." + parts[1] + "." + parts[2][:len(parts[2])-2])
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsWrongKey(t *testing.T) {
	Initialize(Config{SigningKey: "first-key"})
	token, err := GenerateWorkspaceToken("ws-1", "acme")
	require.NoError(t, err)

	Initialize(Config{SigningKey: "second-key"})
	_, err = ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	initTestConfig()

	claims := Claims{
		Type: PrincipalWorkspace,
		Slug: "acme",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	_, err = ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	initTestConfig()

	for _, tok := range []string{"", "not-a-token", "a.b", "a.b.c"} {
		_, err := ValidateToken(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, tok)
	}
}
