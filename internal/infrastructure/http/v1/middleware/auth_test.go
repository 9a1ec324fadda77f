package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/domain/auth"
)

func newAuthRouter(t *testing.T, validator JWTValidator, tenantKey string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorHandler())
	// Stand-in for TenantContext: the resolved key only.
	router.Use(func(c *gin.Context) {
		c.Set("tenant_key", tenantKey)
		c.Next()
	})
	router.Use(Auth(validator))
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"actorId":   appctx.GetActorID(c.Request.Context()),
			"tenantKey": appctx.GetTenantKey(c.Request.Context()),
		})
	})
	return router
}

func TestAuth_ValidToken(t *testing.T) {
	svc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	router := newAuthRouter(t, svc, "acme")

	token, _, err := svc.GenerateAccessToken("user-1", "acme", "")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"actorId":"user-1"`)
	assert.Contains(t, rec.Body.String(), `"tenantKey":"acme"`)
}

func TestAuth_MissingHeader(t *testing.T) {
	svc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	router := newAuthRouter(t, svc, "acme")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
}

func TestAuth_MalformedHeader(t *testing.T) {
	svc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	router := newAuthRouter(t, svc, "acme")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Token abc")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_WrongSecret(t *testing.T) {
	issuer := auth.NewJWTService(auth.DefaultJWTConfig("other-secret"))
	verifier := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	router := newAuthRouter(t, verifier, "acme")

	token, _, err := issuer.GenerateAccessToken("user-1", "acme", "")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_TenantMismatch(t *testing.T) {
	svc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	router := newAuthRouter(t, svc, "acme")

	// Token minted for another tenant must be rejected, never rebound.
	token, _, err := svc.GenerateAccessToken("user-1", "rival", "")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "FORBIDDEN")
}
