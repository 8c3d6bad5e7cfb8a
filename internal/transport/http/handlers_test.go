package http_test

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCacheDemo_MissingCustomerIDIsBadRequest(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/demo/cache", nil))

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION")
}

func TestPostIdempotentDemo_InvalidBodyIsBadRequest(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/demo/idempotent", bytes.NewReader([]byte("not-json")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", "k1")
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
}

func TestPostIdempotentDemo_MissingKeyIsBadRequest(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/demo/idempotent", bytes.NewReader([]byte(`{"amount":1,"currency":"PLN"}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_IDEMPOTENCY_KEY")
}

func TestGetRetryDemo_NegativeFailTimesIsBadRequest(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/demo/retry?failTimes=-1", nil))

	assert.Equal(t, 400, w.Code)
}

func TestGetRetryDemo_DefaultsToZeroFailTimes(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/demo/retry", nil))

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"attempt":1`)
}
