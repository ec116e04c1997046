package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityHeadersDefault(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(SecurityHeaders(DefaultSecurityHeadersConfig()))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/test", nil)
	require.NoError(t, err)

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))

	// Not over TLS: HSTS and Expect-CT must be withheld.
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
	assert.Empty(t, w.Header().Get("Expect-CT"))
}

func TestSecurityHeadersHSTSOnlyOverTLS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(SecurityHeaders(DefaultSecurityHeadersConfig()))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/test", nil)
	require.NoError(t, err)
	req.TLS = &tls.ConnectionState{}

	router.ServeHTTP(w, req)

	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=31536000")
}

func TestSecurityHeadersDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	config := &SecurityHeadersConfig{}
	router := gin.New()
	router.Use(SecurityHeaders(config))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/test", nil)
	require.NoError(t, err)

	router.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Content-Security-Policy"))
	assert.Empty(t, w.Header().Get("X-Frame-Options"))
	assert.Empty(t, w.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, w.Header().Get("Referrer-Policy"))
}

func TestAPISecurityHeadersConfig(t *testing.T) {
	config := APISecurityHeadersConfig()
	assert.Equal(t, "1.0", config.CustomHeaders["X-API-Version"])
	assert.Equal(t, "DENY", config.FrameOptions)
	assert.Equal(t, "no-referrer", config.ReferrerPolicy)
}

func TestSecurityHeadersForEnvironment(t *testing.T) {
	dev := SecurityHeadersForEnvironment("development", false)
	require.NotNil(t, dev)
	assert.Empty(t, dev.HSTS, "HSTS should be disabled in development")
	assert.Contains(t, dev.CSP, "unsafe-inline")

	prodHTTPS := SecurityHeadersForEnvironment("production", true)
	assert.NotEmpty(t, prodHTTPS.HSTS, "HSTS should be enabled in production over HTTPS")
	assert.NotContains(t, prodHTTPS.CSP, "unsafe-inline")

	prodPlain := SecurityHeadersForEnvironment("production", false)
	assert.Empty(t, prodPlain.HSTS, "HSTS should be disabled without HTTPS")
}

func TestNoCache(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(NoCache())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)

	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
}
