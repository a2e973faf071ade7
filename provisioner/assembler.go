package provisioner

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/ruteri/mtls-credential-provisioner/cryptoutils"
)

// Assemble builds a TLS client context from staged material. Peer
// verification is always on: hostname checking enabled, verification
// mandatory. There is no configuration path that relaxes it.
//
// The client pair is loaded from memory or from the staged files according
// to the material's backing. Chain certificates are presented during the
// handshake and additionally installed as trust anchors on top of the
// system roots, so archives carrying a private PKI verify out of the box.
// Every chain entry must be syntactically valid or the whole assembly
// fails.
func Assemble(material *StagedMaterial) (*tls.Config, error) {
	// A mismatched pair must surface as its own error, not as a generic
	// handshake failure later.
	if err := cryptoutils.VerifyKeyCertMatch(material.KeyBytes, material.CertBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyCertMismatch, err)
	}

	roots, err := x509.SystemCertPool()
	if err != nil {
		roots = x509.NewCertPool()
	}

	for i, chainPEM := range material.ChainBytes {
		chainCert, err := cryptoutils.TLSCert(chainPEM).GetX509Cert()
		if err != nil {
			return nil, fmt.Errorf("%w: chain entry %d: %v", ErrChainCertInvalid, i, err)
		}
		roots.AddCert(chainCert)
	}

	var pair tls.Certificate
	switch material.Backing {
	case BackingTransientFile:
		// Exercises the reopen-after-close path the stager guarantees.
		pair, err = tls.LoadX509KeyPair(material.CertPath, material.KeyPath)
	default:
		certPEM := material.CertBytes
		for _, chainPEM := range material.ChainBytes {
			certPEM = append(certPEM, chainPEM...)
		}
		pair, err = tls.X509KeyPair(certPEM, material.KeyBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextBuildFailure, err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{pair},
		RootCAs:      roots,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
