package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("test-secret"))

	token, expiresAt, err := svc.GenerateAccessToken("user-1", "acme", "u1@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, time.Minute)

	actor, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", actor.ActorID)
	assert.Equal(t, "acme", actor.TenantKey)
	assert.Equal(t, "u1@example.com", actor.Email)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	issuer := NewJWTService(DefaultJWTConfig("issuer-secret"))
	verifier := NewJWTService(DefaultJWTConfig("other-secret"))

	token, _, err := issuer.GenerateAccessToken("user-1", "acme", "")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	cfg := DefaultJWTConfig("test-secret")
	cfg.AccessTokenTTL = -time.Minute
	svc := NewJWTService(cfg)

	token, _, err := svc.GenerateAccessToken("user-1", "acme", "")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("test-secret"))

	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
