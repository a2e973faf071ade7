// Package audit produces one structured audit record per request/response
// pair. Records carry the authenticated identity claimed by the request's
// bearer token; signature verification belongs to the service terminating
// the request, not to the audit trail.
package audit

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the set of claims the audit trail keeps from a bearer token.
type Identity struct {
	Subject string
	Issuer  string
	Expiry  time.Time
}

// Record is one audit entry: a request, its outcome and the identity that
// made it.
type Record struct {
	Time     time.Time
	Method   string
	URL      string
	Status   int
	Duration time.Duration
	Identity Identity
	Error    string
}

// Recorder emits audit records to a structured log and, when configured, a
// persistent store.
type Recorder struct {
	log   *slog.Logger
	store *Store
}

// NewRecorder creates a recorder writing to the given logger.
func NewRecorder(log *slog.Logger) *Recorder {
	return &Recorder{log: log}
}

// NewRecorderWithStore creates a recorder that also persists every record.
// Store failures are logged, never propagated to the audited request.
func NewRecorderWithStore(log *slog.Logger, store *Store) *Recorder {
	return &Recorder{log: log, store: store}
}

// Observe builds the audit record for one exchange and emits it. resp may
// be nil when err is set, err may be nil when resp is set.
func (rec *Recorder) Observe(req *http.Request, resp *http.Response, err error, duration time.Duration) Record {
	record := Record{
		Time:     time.Now().UTC(),
		Method:   req.Method,
		URL:      req.URL.Redacted(),
		Duration: duration,
		Identity: IdentityFromRequest(req),
	}
	if resp != nil {
		record.Status = resp.StatusCode
	}
	if err != nil {
		record.Error = err.Error()
	}

	rec.emit(record)
	if rec.store != nil {
		if err := rec.store.Save(req.Context(), record); err != nil {
			rec.log.Warn("could not persist audit record", "err", err)
		}
	}
	return record
}

func (rec *Recorder) emit(record Record) {
	attrs := []any{
		slog.String("method", record.Method),
		slog.String("url", record.URL),
		slog.Int("status", record.Status),
		slog.Duration("duration", record.Duration),
	}
	if record.Identity.Subject != "" {
		attrs = append(attrs,
			slog.String("subject", record.Identity.Subject),
			slog.String("issuer", record.Identity.Issuer))
	}
	if record.Error != "" {
		attrs = append(attrs, slog.String("err", record.Error))
	}
	rec.log.Info("audit", attrs...)
}

// IdentityFromRequest extracts identity claims from the request's bearer
// token. The token is parsed without signature verification; a missing or
// unparsable token yields a zero Identity.
func IdentityFromRequest(req *http.Request) Identity {
	auth := req.Header.Get("Authorization")
	tokenString, found := strings.CutPrefix(auth, "Bearer ")
	if !found || tokenString == "" {
		return Identity{}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return Identity{}
	}

	var identity Identity
	if sub, err := claims.GetSubject(); err == nil {
		identity.Subject = sub
	}
	if iss, err := claims.GetIssuer(); err == nil {
		identity.Issuer = iss
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.Expiry = exp.Time
	}
	return identity
}
