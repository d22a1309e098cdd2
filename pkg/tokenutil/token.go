// Package tokenutil issues and verifies the signed bearer tokens used
// by the three principal types: the master operator, workspaces and
// experts. Tokens are HMAC-SHA256 signed claim sets with an embedded
// expiry; verification failures are indistinguishable to callers.
package tokenutil

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Principal types carried in the token's type claim.
const (
	PrincipalMaster    = "master"
	PrincipalWorkspace = "workspace"
	PrincipalExpert    = "expert"
)

// ErrInvalidToken is returned for any malformed, forged or expired
// token. Callers must treat all three identically as unauthenticated.
var ErrInvalidToken = errors.New("invalid token")

// Config holds the signing key and per-principal token lifetimes.
type Config struct {
	SigningKey        string
	MasterTTLHours    int
	WorkspaceTTLHours int
	ExpertTTLHours    int
}

var cfg Config

// Initialize sets the signing key and TTL policy for the package.
func Initialize(c Config) {
	if c.MasterTTLHours <= 0 {
		c.MasterTTLHours = 1
	}
	if c.WorkspaceTTLHours <= 0 {
		c.WorkspaceTTLHours = 24
	}
	if c.ExpertTTLHours <= 0 {
		c.ExpertTTLHours = 2
	}
	cfg = c
}

// Claims is the token payload: a principal-type discriminator plus
// the scoping fields for that type.
type Claims struct {
	Type        string `json:"type"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	Slug        string `json:"slug,omitempty"`
	ExpertID    string `json:"expert_id,omitempty"`
	jwt.RegisteredClaims
}

func generate(claims Claims, ttlHours int) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlHours) * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.SigningKey))
}

// GenerateMasterToken creates a short-lived master operator token.
func GenerateMasterToken() (string, error) {
	return generate(Claims{Type: PrincipalMaster}, cfg.MasterTTLHours)
}

// GenerateWorkspaceToken creates a token scoped to one workspace.
func GenerateWorkspaceToken(workspaceID, slug string) (string, error) {
	return generate(Claims{
		Type:        PrincipalWorkspace,
		WorkspaceID: workspaceID,
		Slug:        slug,
	}, cfg.WorkspaceTTLHours)
}

// GenerateExpertToken creates a token bound to one expert within one
// workspace.
func GenerateExpertToken(workspaceID, slug, expertID string) (string, error) {
	return generate(Claims{
		Type:        PrincipalExpert,
		WorkspaceID: workspaceID,
		Slug:        slug,
		ExpertID:    expertID,
	}, cfg.ExpertTTLHours)
}

// ValidateToken verifies the signature and expiry and returns the
// claims. Any failure returns ErrInvalidToken.
func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(cfg.SigningKey), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
