package httpserver

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ruteri/mtls-credential-provisioner/archivesource"
	"github.com/ruteri/mtls-credential-provisioner/provisioner"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// ProbeRequest asks the sidecar to provision a client context from an
// archive and report the identity it carries. The archive comes either
// inline or from a configured source URI, never both.
type ProbeRequest struct {
	// ArchiveB64 is the base64-encoded PKCS#12 archive, inline.
	ArchiveB64 string `json:"archive_b64,omitempty"`

	// SourceURI names an external archive location (file://, s3://,
	// vault://, ipfs://).
	SourceURI string `json:"source_uri,omitempty"`

	// Passphrase decrypts the archive. May be empty.
	Passphrase string `json:"passphrase,omitempty"`

	// StagingMode is "memory" or "file". Defaults to memory.
	StagingMode string `json:"staging_mode,omitempty"`
}

// ProbeResponse reports the identity the provisioned context would present.
// It never contains key material.
type ProbeResponse struct {
	Subject     string    `json:"subject"`
	Issuer      string    `json:"issuer"`
	Serial      string    `json:"serial"`
	NotBefore   time.Time `json:"not_before"`
	NotAfter    time.Time `json:"not_after"`
	ChainLength int       `json:"chain_length"`
	StagingMode string    `json:"staging_mode"`
}

// Handler processes provisioning probe requests. Each probe runs the full
// provision/use/teardown cycle, so no credential material outlives the
// request.
type Handler struct {
	sources *archivesource.Factory
	log     *slog.Logger
}

// NewHandler creates a handler using the given archive source factory.
func NewHandler(sources *archivesource.Factory, log *slog.Logger) *Handler {
	return &Handler{sources: sources, log: log}
}

// HandleProbe provisions a client context from the requested archive,
// inspects the presented identity inside the provisioned scope, and
// responds once teardown has completed.
//
// URL format: POST /api/provision/probe
func (h *Handler) HandleProbe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "could not read request body", http.StatusBadRequest)
		return
	}

	var req ProbeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	archive, err := h.archiveFor(r.Context(), &req)
	if err != nil {
		h.log.Warn("could not obtain archive", "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	mode := provisioner.PreferInMemory
	if req.StagingMode != "" {
		mode, err = provisioner.ParseStagingMode(req.StagingMode)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	var resp ProbeResponse
	err = provisioner.WithProvisionedContext(r.Context(),
		provisioner.ArchiveInput{PayloadB64: archive, Passphrase: req.Passphrase},
		mode,
		func(ctx context.Context, cfg *tls.Config) error {
			leaf, err := presentedLeaf(cfg)
			if err != nil {
				return err
			}
			resp = ProbeResponse{
				Subject:     leaf.Subject.String(),
				Issuer:      leaf.Issuer.String(),
				Serial:      leaf.SerialNumber.String(),
				NotBefore:   leaf.NotBefore,
				NotAfter:    leaf.NotAfter,
				ChainLength: len(cfg.Certificates[0].Certificate),
				StagingMode: mode.String(),
			}
			return nil
		},
		provisioner.WithLogger(h.log),
	)
	if err != nil {
		h.log.Warn("provisioning probe failed", "err", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("could not write probe response", "err", err)
	}
}

func (h *Handler) archiveFor(ctx context.Context, req *ProbeRequest) ([]byte, error) {
	switch {
	case req.ArchiveB64 != "" && req.SourceURI != "":
		return nil, fmt.Errorf("archive_b64 and source_uri are mutually exclusive")
	case req.ArchiveB64 != "":
		return []byte(req.ArchiveB64), nil
	case req.SourceURI != "":
		source, err := h.sources.SourceFor(req.SourceURI)
		if err != nil {
			return nil, err
		}
		return source.Fetch(ctx)
	default:
		return nil, fmt.Errorf("either archive_b64 or source_uri is required")
	}
}

func presentedLeaf(cfg *tls.Config) (*x509.Certificate, error) {
	if len(cfg.Certificates) == 0 || len(cfg.Certificates[0].Certificate) == 0 {
		return nil, fmt.Errorf("provisioned context has no certificate")
	}
	return x509.ParseCertificate(cfg.Certificates[0].Certificate[0])
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, provisioner.ErrWrongPassphrase):
		return http.StatusUnauthorized
	case errors.Is(err, provisioner.ErrMalformedArchive),
		errors.Is(err, provisioner.ErrMissingKeyOrCertificate),
		errors.Is(err, provisioner.ErrKeyCertMismatch),
		errors.Is(err, provisioner.ErrChainCertInvalid):
		return http.StatusBadRequest
	case errors.Is(err, archivesource.ErrArchiveNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
