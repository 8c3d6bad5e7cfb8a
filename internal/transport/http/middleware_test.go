package http_test

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftlabs/interlock/internal/chain"
	"github.com/riftlabs/interlock/internal/credentials"
	"github.com/riftlabs/interlock/internal/domain"
	"github.com/riftlabs/interlock/internal/subject"
	httptransport "github.com/riftlabs/interlock/internal/transport/http"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCorrelationMiddleware_GeneratesWhenAbsent(t *testing.T) {
	router := gin.New()
	var gotID string
	router.Use(httptransport.CorrelationMiddleware())
	router.GET("/x", func(c *gin.Context) {
		gotID = chain.CorrelationIDFromContext(c.Request.Context())
		c.Status(200)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))

	require.NotEmpty(t, gotID)
	assert.Equal(t, gotID, w.Header().Get("X-Correlation-Id"))
}

func TestCorrelationMiddleware_PreservesInbound(t *testing.T) {
	router := gin.New()
	router.Use(httptransport.CorrelationMiddleware())
	router.GET("/x", func(c *gin.Context) { c.Status(200) })

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Correlation-Id", "fixed-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "fixed-id", w.Header().Get("X-Correlation-Id"))
}

func TestIdempotencyKeyMiddleware_PrefersCanonicalHeader(t *testing.T) {
	router := gin.New()
	var gotKey string
	router.Use(httptransport.IdempotencyKeyMiddleware())
	router.GET("/x", func(c *gin.Context) {
		gotKey = chain.IdempotencyKeyFromContext(c.Request.Context())
		c.Status(200)
	})

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Idempotency-Key", "  canonical  ")
	req.Header.Set("Idempotency-Key", "alias")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "canonical", gotKey)
}

func TestIdempotencyKeyMiddleware_FallsBackToAlias(t *testing.T) {
	router := gin.New()
	var gotKey string
	router.Use(httptransport.IdempotencyKeyMiddleware())
	router.GET("/x", func(c *gin.Context) {
		gotKey = chain.IdempotencyKeyFromContext(c.Request.Context())
		c.Status(200)
	})

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Idempotency-Key", "alias-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "alias-key", gotKey)
}

func TestSubjectMiddleware_ResolvesAPIKey(t *testing.T) {
	resolver := subject.NewResolver(credentials.NewInMemoryStore(nil), "pepper", "SHA-256")

	router := gin.New()
	var gotSubject domain.Subject
	router.Use(httptransport.SubjectMiddleware(resolver))
	router.GET("/x", func(c *gin.Context) {
		gotSubject = chain.SubjectFromContext(c.Request.Context())
		c.Status(200)
	})

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Api-Key", "secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, domain.SubjectAPIKey, gotSubject.Kind)
}

func TestSubjectMiddleware_FallsBackToUnknown(t *testing.T) {
	resolver := subject.NewResolver(credentials.NewInMemoryStore(nil), "pepper", "SHA-256")

	router := gin.New()
	var gotSubject domain.Subject
	router.Use(httptransport.SubjectMiddleware(resolver))
	router.GET("/x", func(c *gin.Context) {
		gotSubject = chain.SubjectFromContext(c.Request.Context())
		c.Status(200)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))

	assert.Equal(t, domain.Unknown, gotSubject)
}

func TestRecoveryMiddleware_RendersPanicAsInternalError(t *testing.T) {
	logger := testLogger()

	router := gin.New()
	router.Use(httptransport.RecoveryMiddleware(logger))
	router.GET("/x", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))

	assert.Equal(t, 500, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL")
}

func TestCORSMiddleware_HandlesPreflight(t *testing.T) {
	router := gin.New()
	router.Use(httptransport.CORSMiddleware())
	router.GET("/x", func(c *gin.Context) { c.Status(200) })

	req := httptest.NewRequest("OPTIONS", "/x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 204, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
