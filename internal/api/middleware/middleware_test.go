package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"nutrition-coach/internal/core/session"
	"nutrition-coach/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func perform(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(0.001, 2))
	r.GET("/", okHandler)

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", "", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", "", nil).Code)

	w := perform(r, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestDeduplication(t *testing.T) {
	r := gin.New()
	r.Use(Deduplication(time.Minute))
	r.POST("/", okHandler)
	r.GET("/", okHandler)

	body := `{"email":"a@b.fr"}`
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/", body, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodPost, "/", body, nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/", `{"email":"c@d.fr"}`, nil).Code)

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", "", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", "", nil).Code)
}

func TestDeduplication_BodyStillReadable(t *testing.T) {
	r := gin.New()
	r.Use(Deduplication(time.Minute))
	r.POST("/", func(c *gin.Context) {
		var req struct {
			Name string `json:"name"`
		}
		require.NoError(t, c.ShouldBindJSON(&req))
		c.String(http.StatusOK, req.Name)
	})

	w := perform(r, http.MethodPost, "/", `{"name":"saumon"}`, nil)
	assert.Equal(t, "saumon", w.Body.String())
}

func TestDeduplication_RetryAfterFailure(t *testing.T) {
	var calls int
	r := gin.New()
	r.Use(Deduplication(time.Minute))
	r.POST("/", func(c *gin.Context) {
		calls++
		if calls == 1 {
			c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid request"})
			return
		}
		okHandler(c)
	})

	body := `{"email":"a@b.fr"}`
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPost, "/", body, nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/", body, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodPost, "/", body, nil).Code)
	assert.Equal(t, 2, calls)
}

func TestDeduplication_UnreadableBody(t *testing.T) {
	var reached bool
	r := gin.New()
	r.Use(BodySizeLimit(8))
	r.Use(Deduplication(time.Minute))
	r.POST("/", func(c *gin.Context) {
		reached = true
		okHandler(c)
	})

	// 未宣告長度的請求由讀取時截斷
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"foods":[1,2,3]}`))
	req.ContentLength = -1
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "max 8 bytes")

	req = httptest.NewRequest(http.MethodPost, "/", iotest.ErrReader(errors.New("connection reset")))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid request","code":"INVALID_REQUEST"}`, w.Body.String())

	assert.False(t, reached)
}

func TestBodySizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodySizeLimit(8))
	r.POST("/", okHandler)

	assert.Equal(t, http.StatusRequestEntityTooLarge, perform(r, http.MethodPost, "/", `{"foods":[1,2,3]}`, nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/", `{}`, nil).Code)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := perform(r, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error","code":"INTERNAL_ERROR"}`, w.Body.String())
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	prev := common.Logger
	common.Logger = zap.New(core)
	t.Cleanup(func() { common.Logger = prev })
	return logs
}

func TestLogger_RecordsSessionAndRoute(t *testing.T) {
	logs := observeLogs(t)
	provider := session.NewJWTProvider("middleware-secret", "nutrition-coach")
	tok, err := provider.IssueToken(session.Session{UserID: "u-9", HasPaidAccess: true}, time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.Use(Logger())
	r.GET("/foods/:name", OptionalSession(provider), okHandler)
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	perform(r, http.MethodGet, "/foods/saumon", "", map[string]string{
		"Authorization": "Bearer " + tok,
		"X-Request-ID":  "req-1",
	})
	perform(r, http.MethodGet, "/missing", "", nil)

	entries := logs.All()
	require.Len(t, entries, 2)

	ok := entries[0].ContextMap()
	assert.Equal(t, "請求完成", entries[0].Message)
	assert.Equal(t, "/foods/:name", ok["route"])
	assert.Equal(t, "req-1", ok["request_id"])
	assert.Equal(t, "u-9", ok["user_id"])
	assert.Equal(t, true, ok["paid"])

	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.NotContains(t, entries[1].ContextMap(), "user_id")
}

func TestSessionMiddleware(t *testing.T) {
	provider := session.NewJWTProvider("middleware-secret", "nutrition-coach")
	paid, err := provider.IssueToken(session.Session{UserID: "u-1", HasPaidAccess: true}, time.Hour)
	require.NoError(t, err)
	free, err := provider.IssueToken(session.Session{UserID: "u-2"}, time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", RequireSession(provider), func(c *gin.Context) {
		s, ok := SessionFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, s.UserID)
	})
	r.GET("/premium", RequireSession(provider), RequirePaidAccess(), okHandler)
	r.GET("/optional", OptionalSession(provider), func(c *gin.Context) {
		if s, ok := SessionFrom(c); ok {
			c.String(http.StatusOK, s.UserID)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	bearer := func(token string) map[string]string {
		return map[string]string{"Authorization": "Bearer " + token}
	}

	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/me", "", bearer("junk")).Code)

	w := perform(r, http.MethodGet, "/me", "", bearer(free))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-2", w.Body.String())

	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/premium", "", bearer(free)).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/premium", "", bearer(paid)).Code)

	assert.Equal(t, "anonymous", perform(r, http.MethodGet, "/optional", "", nil).Body.String())
	assert.Equal(t, "anonymous", perform(r, http.MethodGet, "/optional", "", bearer("junk")).Body.String())
	assert.Equal(t, "u-1", perform(r, http.MethodGet, "/optional", "", bearer(paid)).Body.String())
}
