package audit

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Middleware returns a chi-compatible middleware emitting one audit record
// per handled request.
func Middleware(rec *Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			rec.Observe(r, &http.Response{StatusCode: ww.Status()}, nil, time.Since(start))
		})
	}
}

// RoundTripper audits outbound requests made by an HTTP client.
type RoundTripper struct {
	next http.RoundTripper
	rec  *Recorder
}

// NewRoundTripper wraps next with audit recording. A nil next uses
// http.DefaultTransport.
func NewRoundTripper(next http.RoundTripper, rec *Recorder) *RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &RoundTripper{next: next, rec: rec}
}

// RoundTrip performs the exchange and records it, including transport
// errors.
func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := rt.next.RoundTrip(req)
	rt.rec.Observe(req, resp, err, time.Since(start))
	return resp, err
}
