// Package metrics exposes the Prometheus collectors and the standalone
// metrics listener used by the provisioning binaries.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ruteri/mtls-credential-provisioner/common"
)

var (
	// ProvisionedContextsTotal counts successfully assembled TLS client
	// contexts.
	ProvisionedContextsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: common.PackageName,
		Name:      "provisioned_contexts_total",
		Help:      "Number of TLS client contexts successfully provisioned.",
	})

	// ProvisionFailuresTotal counts aborted provisioning calls by pipeline
	// stage (decode, stage, assemble).
	ProvisionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: common.PackageName,
		Name:      "provision_failures_total",
		Help:      "Number of provisioning calls aborted, by pipeline stage.",
	}, []string{"stage"})

	// TeardownWarningsTotal counts provisioning calls whose cleanup was
	// incomplete.
	TeardownWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: common.PackageName,
		Name:      "teardown_warnings_total",
		Help:      "Number of provisioning calls with incomplete credential teardown.",
	})
)

// Server serves the default Prometheus registry over HTTP.
type Server struct {
	srv *http.Server
}

// New creates a metrics server listening on addr.
func New(addr string) (*Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// ListenAndServe blocks serving metrics until Shutdown is called.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
