package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestMiddlewareStampsHeadersOnEveryResponse(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	w := httptest.NewRecorder()

	RequestMiddleware(nil, false)(next).ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Correlation-Id"))
	assert.NotEmpty(t, w.Header().Get("X-Trace-Id"))
}

func TestRequestMiddlewareStampsHeadersEvenWithoutExplicitWriteHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// handler never calls WriteHeader or Write; headers must still land.
	})

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	w := httptest.NewRecorder()

	RequestMiddleware(nil, false)(next).ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Correlation-Id"))
	assert.NotEmpty(t, w.Header().Get("X-Trace-Id"))
}

func TestRequestMiddlewareEchoesIncomingCorrelationID(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "incoming-id", correlationIDFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set("X-Correlation-Id", "incoming-id")
	w := httptest.NewRecorder()

	RequestMiddleware(nil, false)(next).ServeHTTP(w, req)

	assert.Equal(t, "incoming-id", w.Header().Get("X-Correlation-Id"))
}

func TestResponseWriterTracksStatusAndBytesOnce(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, correlationID: "c1", traceID: "t1"}

	rw.WriteHeader(http.StatusAccepted)
	n, err := rw.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)

	// a second WriteHeader call must not override the first (write-once).
	rw.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusAccepted, rw.statusCode)
	assert.Equal(t, int64(5), rw.bytesWritten)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
