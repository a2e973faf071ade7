package provisioner

import (
	"errors"
	"strings"
)

// Decode stage errors.
var (
	// ErrMalformedArchive means the payload is not valid base64 or not a
	// valid PKCS#12 container.
	ErrMalformedArchive = errors.New("malformed PKCS#12 archive")

	// ErrWrongPassphrase means the archive MAC or decryption check failed.
	ErrWrongPassphrase = errors.New("incorrect archive passphrase")

	// ErrMissingKeyOrCertificate means the archive parsed but does not
	// contain a usable private key and leaf certificate pair.
	ErrMissingKeyOrCertificate = errors.New("archive missing private key or certificate")
)

// Stage errors.
var (
	// ErrSerializationFailure means credential material could not be
	// serialized to PEM.
	ErrSerializationFailure = errors.New("failed to serialize credential material")

	// ErrStorageUnavailable means a transient store with safe permissions
	// could not be created.
	ErrStorageUnavailable = errors.New("transient credential store unavailable")
)

// Assemble errors.
var (
	// ErrKeyCertMismatch means the private key does not correspond to the
	// leaf certificate.
	ErrKeyCertMismatch = errors.New("private key does not match certificate")

	// ErrChainCertInvalid means a chain certificate failed to parse.
	ErrChainCertInvalid = errors.New("invalid chain certificate")

	// ErrContextBuildFailure means the TLS context could not be constructed
	// from otherwise valid material.
	ErrContextBuildFailure = errors.New("failed to build TLS client context")
)

// TeardownWarning reports that cleanup partially failed, for example a
// transient file was deleted but its zero-overwrite could not be verified.
// It is surfaced through logs, metrics and the optional per-call observer,
// never in place of the error that aborted the call.
type TeardownWarning struct {
	Errs []error
}

func (w *TeardownWarning) Error() string {
	msgs := make([]string, 0, len(w.Errs))
	for _, err := range w.Errs {
		msgs = append(msgs, err.Error())
	}
	return "teardown incomplete: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual cleanup failures to errors.Is/As.
func (w *TeardownWarning) Unwrap() []error {
	return w.Errs
}
