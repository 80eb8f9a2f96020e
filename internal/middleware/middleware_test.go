package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/trace"
)

func newTestEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(mw...)
	engine.POST("/ping", func(c *gin.Context) {
		id, _ := c.Get(RequestIDKey)
		c.String(http.StatusOK, "%v", id)
	})
	return engine
}

func TestCORS_AllowAll(t *testing.T) {
	engine := newTestEngine(CORS(nil))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.Header.Set("Origin", "http://example.com")
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Allowlist(t *testing.T) {
	engine := newTestEngine(CORS([]string{" http://ui.local ", ""}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.Header.Set("Origin", "http://ui.local")
	engine.ServeHTTP(rec, req)
	require.Equal(t, "http://ui.local", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "Origin", rec.Header().Get("Vary"))

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.Header.Set("Origin", "http://evil.local")
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	engine := newTestEngine(CORS(nil))
	engine.OPTIONS("/ping", func(c *gin.Context) {
		c.Status(http.StatusTeapot)
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestRequestID_Generated(t *testing.T) {
	engine := newTestEngine(RequestID())
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
	id := rec.Header().Get(RequestIDHeader)
	require.Len(t, id, 36)
	require.Equal(t, id, rec.Body.String())
}

func TestRequestID_KeepsCallerValue(t *testing.T) {
	engine := newTestEngine(RequestID())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	engine.ServeHTTP(rec, req)
	require.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	require.Equal(t, "abc-123", rec.Body.String())
}

func TestRequestID_ReusesTraceID(t *testing.T) {
	setTrace := func(c *gin.Context) {
		c.Request = c.Request.WithContext(trace.WithTraceId(c.Request.Context(), "trace-42"))
		c.Next()
	}
	engine := newTestEngine(setTrace, RequestID())
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
	require.Equal(t, "trace-42", rec.Header().Get(RequestIDHeader))
	require.Equal(t, "trace-42", rec.Body.String())
}

func TestRequestID_StoresGeneratedTraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/trace", func(c *gin.Context) {
		id, ok := trace.GetTraceId(c.Request.Context())
		require.True(t, ok)
		c.String(http.StatusOK, id)
	})
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trace", nil))
	require.Equal(t, rec.Header().Get(RequestIDHeader), rec.Body.String())
}
