package provisioner

import (
	"context"
	"crypto/tls"
	"log/slog"

	"github.com/ruteri/mtls-credential-provisioner/metrics"
)

// Body receives the provisioned TLS client context. The context argument is
// the caller's; cancelling it aborts the body but never skips teardown.
type Body func(ctx context.Context, tlsConfig *tls.Config) error

// Option adjusts a single provisioning call.
type Option func(*guardConfig)

type guardConfig struct {
	log      *slog.Logger
	observer func(*TeardownWarning)
}

// WithLogger routes the call's diagnostics to the given logger instead of
// the process default.
func WithLogger(log *slog.Logger) Option {
	return func(cfg *guardConfig) {
		cfg.log = log
	}
}

// WithTeardownObserver registers a callback invoked when cleanup partially
// failed. The callback runs after teardown completes, before
// WithProvisionedContext returns.
func WithTeardownObserver(observer func(*TeardownWarning)) Option {
	return func(cfg *guardConfig) {
		cfg.observer = observer
	}
}

// WithProvisionedContext runs the full pipeline - decode, stage, assemble -
// hands the assembled TLS client context to body, and tears everything down
// on every exit path: normal return, an error from any stage, an error from
// body, or cancellation of ctx. Teardown zero-overwrites and deletes any
// transient files (deletion is attempted even if the overwrite fails) and
// clears in-memory key buffers.
//
// The error returned is always the one that aborted the call; teardown
// problems are reported as a TeardownWarning through the logger, the
// teardown-warning metric and the optional observer, never by replacing the
// original error.
//
// Calls are independent: no credential state is shared or cached between
// them, so concurrent calls need no coordination.
func WithProvisionedContext(ctx context.Context, archive ArchiveInput, mode StagingMode, body Body, opts ...Option) error {
	cfg := guardConfig{log: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	var material *StagedMaterial
	defer func() {
		if material == nil {
			return
		}
		if errs := teardownMaterial(material); len(errs) > 0 {
			warning := &TeardownWarning{Errs: errs}
			cfg.log.Warn("Credential teardown incomplete", "err", warning)
			metrics.TeardownWarningsTotal.Inc()
			if cfg.observer != nil {
				cfg.observer(warning)
			}
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	triple, err := Decode(archive)
	if err != nil {
		metrics.ProvisionFailuresTotal.WithLabelValues("decode").Inc()
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	material, err = Stage(triple, mode)
	if err != nil {
		metrics.ProvisionFailuresTotal.WithLabelValues("stage").Inc()
		return err
	}

	tlsConfig, err := Assemble(material)
	if err != nil {
		metrics.ProvisionFailuresTotal.WithLabelValues("assemble").Inc()
		return err
	}
	metrics.ProvisionedContextsTotal.Inc()

	if err := ctx.Err(); err != nil {
		return err
	}

	// The body's error propagates unchanged; the deferred teardown has
	// already been armed.
	return body(ctx, tlsConfig)
}
