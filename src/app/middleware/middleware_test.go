package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tapround/src/core/domain"
	"tapround/src/core/ports"
	"tapround/src/infra/config"
	"tapround/src/infra/logger"
)

type staticResolver struct {
	tokens map[string]*domain.Principal
}

func (r staticResolver) Resolve(_ context.Context, token string) (*domain.Principal, error) {
	if p, ok := r.tokens[token]; ok {
		return p, nil
	}
	return nil, domain.NewUnauthorizedError("invalid token")
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc"))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken("Bearer "))
	assert.Empty(t, bearerToken(""))
}

func TestAuthenticatePrefersCookie(t *testing.T) {
	cookieUser := &domain.Principal{ID: uuid.New(), Role: domain.RoleSurvivor}
	headerUser := &domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin}
	resolver := staticResolver{tokens: map[string]*domain.Principal{"c": cookieUser, "h": headerUser}}

	r := gin.New()
	var seen *domain.Principal
	r.GET("/", Authenticate(resolver, "access_token"), func(c *gin.Context) {
		seen = CurrentPrincipal(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "c"})
	req.Header.Set("Authorization", "Bearer h")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, cookieUser, seen)
}

func TestRequireAdmin(t *testing.T) {
	admin := &domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin}
	observer := &domain.Principal{ID: uuid.New(), Role: domain.RoleObserver}
	resolver := staticResolver{tokens: map[string]*domain.Principal{"a": admin, "o": observer}}

	r := gin.New()
	r.POST("/", Authenticate(resolver, "access_token"), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for token, want := range map[string]int{"a": http.StatusNoContent, "o": http.StatusForbidden, "x": http.StatusUnauthorized} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, token)
		if want == http.StatusForbidden {
			assert.Contains(t, w.Body.String(), `"FORBIDDEN"`)
		}
	}
}

func TestRequireAdminWithoutAuthenticate(t *testing.T) {
	r := gin.New()
	r.POST("/", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"UNAUTHORIZED"`)
}

type recordingLimiter struct {
	subjects []string
}

func (l *recordingLimiter) Allow(_ context.Context, _, subject string, _ ports.RateLimitPolicy) error {
	l.subjects = append(l.subjects, subject)
	return nil
}

func TestRateLimitKeysByIPWithoutPrincipal(t *testing.T) {
	limiter := &recordingLimiter{}
	r := gin.New()
	r.GET("/", RateLimit(limiter, "list", ports.RateLimitPolicy{Points: 1, Window: 1}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, []string{"10.1.2.3"}, limiter.subjects)
}

func TestRequestIDReusedOrGenerated(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "upstream-1", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	_, err := uuid.Parse(w.Body.String())
	assert.NoError(t, err)
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
}

func TestRecoveryAndLogging(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(config.LogConfig{Level: "info", Format: "json"}, &buf)

	r := gin.New()
	// Recovery inside Logging so the recovered 500 is logged as a request.
	r.Use(RequestID(), Logging(log), Recovery(log))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(RequestIDHeader, "req-9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"INTERNAL_ERROR"`)
	assert.NotContains(t, w.Body.String(), "kaboom")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "request failed", entry["msg"])
	assert.Equal(t, "req-9", entry["request_id"])
	assert.EqualValues(t, 500, entry["status"])
}
