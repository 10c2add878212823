package metrics

import (
	"net/http"
	"strconv"
)

// ResponseWriterInterceptor is a wrapper around http.ResponseWriter to capture the status code.
type ResponseWriterInterceptor struct {
	http.ResponseWriter
	StatusCode int
	written    bool
}

// NewResponseWriterInterceptor creates a new ResponseWriterInterceptor.
func NewResponseWriterInterceptor(w http.ResponseWriter) *ResponseWriterInterceptor {
	// Default to 200 OK if WriteHeader is not called.
	return &ResponseWriterInterceptor{ResponseWriter: w, StatusCode: http.StatusOK}
}

// WriteHeader captures the first status code and calls the original WriteHeader.
func (rwi *ResponseWriterInterceptor) WriteHeader(code int) {
	if !rwi.written {
		rwi.StatusCode = code
		rwi.written = true
	}
	rwi.ResponseWriter.WriteHeader(code)
}

func (rwi *ResponseWriterInterceptor) Write(b []byte) (int, error) {
	rwi.written = true
	return rwi.ResponseWriter.Write(b)
}

// Middleware wraps an http.Handler to record endpoint responses.
// endpointPath is the route pattern, never the raw URL, to keep label cardinality bounded.
func Middleware(next http.Handler, endpointPath string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		interceptor := NewResponseWriterInterceptor(w)
		next.ServeHTTP(interceptor, r)
		EndpointResponses.WithLabelValues(endpointPath, strconv.Itoa(interceptor.StatusCode)).Inc()
	})
}
