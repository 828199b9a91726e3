package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Recovery(zerolog.Nop()))
	return router
}

func TestRequestIDKeepsCallerSuppliedID(t *testing.T) {
	router := newTestRouter()
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFrom(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "trace-abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "trace-abc", rec.Body.String())
	assert.Equal(t, "trace-abc", rec.Header().Get("X-Request-Id"))
}

func TestRequestIDMintsWhenMissingOrOversized(t *testing.T) {
	router := newTestRouter()
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFrom(c))
	})

	for name, header := range map[string]string{
		"missing":   "",
		"oversized": strings.Repeat("x", 200),
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if header != "" {
				req.Header.Set("X-Request-Id", header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			id := rec.Header().Get("X-Request-Id")
			require.NotEmpty(t, id)
			assert.NotEqual(t, header, id)
			assert.Equal(t, id, rec.Body.String())
		})
	}
}

func TestRecoveryTurnsPanicInto500(t *testing.T) {
	router := newTestRouter()
	router.GET("/boom", func(c *gin.Context) {
		panic("kaboom")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal_server_error"}`, rec.Body.String())
}
