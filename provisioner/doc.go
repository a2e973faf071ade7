// Package provisioner turns a base64-encoded PKCS#12 archive into a
// ready-to-use TLS client context without letting the private key or
// certificate persist beyond the operation.
//
// The pipeline is strictly forward:
//
//	archive bytes -> Decode -> CredentialTriple -> Stage -> StagedMaterial -> Assemble -> *tls.Config
//
// and teardown flows backward on scope exit. The only entry point most
// callers need is WithProvisionedContext, which runs the pipeline, hands the
// assembled context to a caller-supplied body, and guarantees teardown on
// every exit path: transient files are overwritten with zeros and deleted,
// in-memory key buffers are cleared, and teardown problems never replace the
// error (if any) that aborted the call.
//
// # Staging modes
//
// PreferInMemory keeps all serialized material in buffers; nothing touches
// storage. RequireFileBacked stages the key and certificate chain in a fresh
// owner-only directory with randomized file names, for TLS layers that can
// only load credentials from paths. Staged files are fully written, synced
// and closed before the stager returns, so a different API layer can reopen
// them immediately; some platforms refuse to reopen a file still held open
// for writing, and that hazard lives entirely inside this package.
//
// # Context handoff boundary
//
// On Go, crypto/tls copies certificate DER bytes into the tls.Certificate
// and parses the private key into an independent allocation, so the returned
// tls.Config does not alias StagedMaterial buffers. The caller may keep
// using connections established inside the body after teardown runs; the
// parsed in-context private key, however, lives for as long as the caller
// retains the config, which is why the config should not be held past the
// body unless the caller accepts ownership of that key material.
//
// Each call re-derives everything from its own ArchiveInput. There is no
// credential cache, and concurrent calls use disjoint staging directories.
package provisioner
