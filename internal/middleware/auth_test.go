package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateNumericSubject(t *testing.T) {
	v := NewJWTValidator("secret")

	token := signToken(t, "secret", jwt.MapClaims{"sub": 42, "exp": time.Now().Add(time.Hour).Unix()})
	id, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, 42, id)
}

func TestValidateStringSubject(t *testing.T) {
	v := NewJWTValidator("secret")

	token := signToken(t, "secret", jwt.MapClaims{"sub": "42", "exp": time.Now().Add(time.Hour).Unix()})
	id, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, 42, id)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	v := NewJWTValidator("secret")

	token := signToken(t, "other-secret", jwt.MapClaims{"sub": 42})
	_, err := v.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	v := NewJWTValidator("secret")

	token := signToken(t, "secret", jwt.MapClaims{"sub": 42, "exp": time.Now().Add(-time.Hour).Unix()})
	_, err := v.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthMiddlewareSetsUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := NewJWTValidator("secret")

	r := gin.New()
	r.GET("/me", AuthMiddleware(v), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt("userID")})
	})

	token := signToken(t, "secret", jwt.MapClaims{"sub": 42, "exp": time.Now().Add(time.Hour).Unix()})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "42")
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := NewJWTValidator("secret")

	r := gin.New()
	r.GET("/me", AuthMiddleware(v), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
