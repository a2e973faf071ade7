package provisioner

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Stage serializes a credential triple to the forms a TLS context builder
// needs. With PreferInMemory nothing touches storage. With
// RequireFileBacked the key and the certificate chain are written to two
// transient files inside a fresh 0700 directory, with uuid-randomized names
// and 0600 permissions, created exclusively so a path is never reused across
// invocations.
//
// Staged files are fully written, synced and closed before Stage returns.
// Reopening a file that is still open for writing by the same process is
// rejected on some platforms, so no handle from staging survives the call.
func Stage(triple *CredentialTriple, mode StagingMode) (*StagedMaterial, error) {
	keyDER, err := x509.MarshalPKCS8PrivateKey(triple.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailure, err)
	}

	material := &StagedMaterial{
		KeyBytes:  pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
		CertBytes: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: triple.Leaf.Raw}),
		Backing:   BackingInMemory,
	}
	for _, cert := range triple.Chain {
		material.ChainBytes = append(material.ChainBytes,
			pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}))
	}

	if mode != RequireFileBacked {
		return material, nil
	}

	dir, err := os.MkdirTemp("", "credstage-")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	material.Backing = BackingTransientFile
	material.dir = dir

	// Certificate file holds the leaf followed by the chain; the key always
	// stays in its own file.
	certFile := material.CertBytes
	for _, chainPEM := range material.ChainBytes {
		certFile = append(certFile, chainPEM...)
	}

	material.KeyPath = filepath.Join(dir, uuid.NewString()+".key.pem")
	if err := writeTransientFile(material.KeyPath, material.KeyBytes); err != nil {
		return nil, stageFailure(err, material)
	}

	material.CertPath = filepath.Join(dir, uuid.NewString()+".crt.pem")
	if err := writeTransientFile(material.CertPath, certFile); err != nil {
		return nil, stageFailure(err, material)
	}

	return material, nil
}

// stageFailure tears down whatever partial state staging created and folds
// any cleanup problems into the returned error so they are not lost.
func stageFailure(cause error, material *StagedMaterial) error {
	errs := []error{fmt.Errorf("%w: %v", ErrStorageUnavailable, cause)}
	errs = append(errs, teardownMaterial(material)...)
	return errors.Join(errs...)
}

// writeTransientFile creates path exclusively with owner-only permissions,
// writes data, flushes it to stable storage and closes the handle.
func writeTransientFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create transient file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write transient file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync transient file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close transient file: %w", err)
	}
	return nil
}
