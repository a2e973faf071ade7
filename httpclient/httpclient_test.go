package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/mtls-credential-provisioner/audit"
)

func TestNewAppliesDefaults(t *testing.T) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	client := New(tlsCfg, Config{})

	assert.Equal(t, DefaultTimeout, client.Timeout)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Same(t, tlsCfg, transport.TLSClientConfig)
	assert.Equal(t, DefaultIdleConnTimeout, transport.IdleConnTimeout)
}

func TestNewWithAuditorWrapsTransport(t *testing.T) {
	var buf bytes.Buffer
	rec := audit.NewRecorder(slog.New(slog.NewJSONHandler(&buf, nil)))

	client := New(&tls.Config{}, Config{Timeout: time.Second, Auditor: rec})

	_, ok := client.Transport.(*audit.RoundTripper)
	assert.True(t, ok)
	assert.Equal(t, time.Second, client.Timeout)
}

func TestResolveBaseURLCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ResolveBaseURL(ctx, nil, "svc.internal")
	assert.ErrorIs(t, err, context.Canceled)
}
