package provisioner

import (
	"crypto/x509"
)

// StagingMode selects how serialized credential material is backed.
type StagingMode int

const (
	// PreferInMemory keeps serialized material in buffers. No file is
	// created.
	PreferInMemory StagingMode = iota

	// RequireFileBacked stages material in transient, owner-only files for
	// TLS layers that can only load credentials from paths.
	RequireFileBacked
)

// String returns the flag-style name of the mode.
func (m StagingMode) String() string {
	switch m {
	case PreferInMemory:
		return "memory"
	case RequireFileBacked:
		return "file"
	default:
		return "unknown"
	}
}

// ParseStagingMode parses a flag-style mode name.
func ParseStagingMode(s string) (StagingMode, error) {
	switch s {
	case "memory", "":
		return PreferInMemory, nil
	case "file":
		return RequireFileBacked, nil
	default:
		return 0, &UnknownModeError{Mode: s}
	}
}

// UnknownModeError reports an unrecognized staging mode name.
type UnknownModeError struct {
	Mode string
}

func (e *UnknownModeError) Error() string {
	return "unknown staging mode: " + e.Mode
}

// ArchiveInput is the base64-encoded PKCS#12 archive plus its optional
// passphrase. It is consumed exactly once per provisioning call.
type ArchiveInput struct {
	// PayloadB64 is the base64-encoded PKCS#12 archive.
	PayloadB64 []byte

	// Passphrase decrypts the archive. Empty for unencrypted archives.
	Passphrase string
}

// CredentialTriple is the parsed content of a PKCS#12 archive. PrivateKey
// and Leaf are always non-nil; Chain may be empty. The triple is owned by
// the pipeline until consumed by the stager.
type CredentialTriple struct {
	PrivateKey interface{}
	Leaf       *x509.Certificate
	Chain      []*x509.Certificate
}

// Backing tells where staged material lives.
type Backing int

const (
	// BackingInMemory means the material exists only in buffers.
	BackingInMemory Backing = iota

	// BackingTransientFile means the key and certificates were written to
	// transient files that must be zero-overwritten and deleted on scope
	// exit.
	BackingTransientFile
)

// StagedMaterial holds the serialized forms a TLS context builder needs.
// Its lifetime is bounded by the provisioning scope that created it.
type StagedMaterial struct {
	// KeyBytes is the unencrypted PKCS#8 private key in PEM form. Sensitive;
	// zeroized on teardown.
	KeyBytes []byte

	// CertBytes is the leaf certificate in PEM form.
	CertBytes []byte

	// ChainBytes are the chain certificates in PEM form, archive order
	// preserved.
	ChainBytes [][]byte

	// Backing tells whether transient files exist for this material.
	Backing Backing

	// KeyPath and CertPath are set when Backing is BackingTransientFile.
	// CertPath holds the leaf followed by the chain, key and certificates
	// always in separate files.
	KeyPath  string
	CertPath string

	// dir is the transient staging directory, removed on teardown.
	dir string
}
