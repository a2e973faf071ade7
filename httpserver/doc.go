// Package httpserver exposes the provisioning probe sidecar over HTTP.
//
// The API surface is intentionally small: POST /api/provision/probe runs a
// full provision/use/teardown cycle against a submitted or referenced
// PKCS#12 archive and reports the client identity the resulting TLS context
// would present. Key material never appears in any response.
//
// The server also provides the standard operational endpoints: /livez,
// /readyz, /drain, /undrain, optional pprof under /debug, and a separate
// Prometheus metrics listener.
package httpserver
