package provisioner

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Decode parses a base64-encoded PKCS#12 archive into its credential triple.
// The passphrase is required for encrypted archives; whitespace in and
// around the payload is tolerated, so line-wrapped .b64 files decode as-is.
//
// Errors are classified into ErrMalformedArchive, ErrWrongPassphrase and
// ErrMissingKeyOrCertificate. Decode allocates in-memory handles only; it
// never touches storage.
func Decode(input ArchiveInput) (*CredentialTriple, error) {
	raw := bytes.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, input.PayloadB64)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedArchive)
	}

	der := make([]byte, base64.StdEncoding.DecodedLen(len(raw)))
	n, err := base64.StdEncoding.Decode(der, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrMalformedArchive, err)
	}
	der = der[:n]

	privateKey, leaf, chain, err := pkcs12.DecodeChain(der, input.Passphrase)
	if err != nil {
		switch {
		case errors.Is(err, pkcs12.ErrIncorrectPassword):
			return nil, fmt.Errorf("%w: %v", ErrWrongPassphrase, err)
		case isMissingCredential(err):
			// The container itself parsed; it just lacks a usable
			// key/leaf pair (e.g. a trust-store archive).
			return nil, fmt.Errorf("%w: %v", ErrMissingKeyOrCertificate, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
		}
	}

	if privateKey == nil || leaf == nil {
		return nil, ErrMissingKeyOrCertificate
	}

	return &CredentialTriple{
		PrivateKey: privateKey,
		Leaf:       leaf,
		Chain:      chain,
	}, nil
}

// isMissingCredential recognizes go-pkcs12's "private key missing" and
// "certificate missing" outcomes, which are unexported plain errors.
func isMissingCredential(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "private key missing") ||
		strings.Contains(msg, "certificate missing")
}
