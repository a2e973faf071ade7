// Package httpclient builds mutually-authenticated HTTP clients from
// provisioned TLS contexts. The client only borrows the context; credential
// lifetime stays with the provisioning scope that produced it.
package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/ruteri/mtls-credential-provisioner/audit"
	"github.com/ruteri/mtls-credential-provisioner/resolver"
)

// Defaults applied when the config leaves a field zero.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// Config controls client construction.
type Config struct {
	// Timeout bounds each request end to end.
	Timeout time.Duration

	// IdleConnTimeout bounds how long idle connections are kept.
	IdleConnTimeout time.Duration

	// Auditor, when set, records every outbound exchange.
	Auditor *audit.Recorder
}

// New builds an HTTP client presenting the given TLS context.
func New(tlsCfg *tls.Config, cfg Config) *http.Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = DefaultIdleConnTimeout
	}

	var transport http.RoundTripper = &http.Transport{
		TLSClientConfig:   tlsCfg,
		IdleConnTimeout:   cfg.IdleConnTimeout,
		ForceAttemptHTTP2: true,
	}
	if cfg.Auditor != nil {
		transport = audit.NewRoundTripper(transport, cfg.Auditor)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}

// ResolveBaseURL discovers the service endpoint for domain through SRV
// records and returns an https base URL for it.
func ResolveBaseURL(ctx context.Context, r *resolver.ServiceResolver, domain string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	endpoints, err := r.Resolve(domain)
	if err != nil {
		return "", fmt.Errorf("could not resolve %q: %w", domain, err)
	}
	if len(endpoints) == 0 {
		return "", fmt.Errorf("no endpoints for %q", domain)
	}
	return "https://" + endpoints[0].Addr(), nil
}
