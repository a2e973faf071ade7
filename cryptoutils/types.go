package cryptoutils

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// TLSCert represents a TLS Certificate in PEM format.
type TLSCert []byte

// NewTLSCert creates a new certificate object from PEM-encoded data with validation.
func NewTLSCert(data []byte) (TLSCert, error) {
	// Validate PEM format
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return TLSCert{}, errors.New("invalid certificate: not in PEM format or not a certificate")
	}

	// Validate certificate structure
	_, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return TLSCert{}, fmt.Errorf("invalid certificate structure: %w", err)
	}

	return TLSCert(data), nil
}

// Validate checks if the certificate is properly formed.
func (cert TLSCert) Validate() error {
	_, err := NewTLSCert(cert)
	return err
}

// GetX509Cert returns the parsed X.509 certificate.
func (cert TLSCert) GetX509Cert() (*x509.Certificate, error) {
	block, _ := pem.Decode(cert)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	return x509.ParseCertificate(block.Bytes)
}

// CACert represents a Certificate Authority certificate in PEM format.
type CACert []byte

// NewCACert creates a new CA certificate object from PEM-encoded data with validation.
func NewCACert(data []byte) (CACert, error) {
	// Validate PEM format
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return CACert{}, errors.New("invalid CA certificate: not in PEM format or not a certificate")
	}

	// Validate certificate structure
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return CACert{}, fmt.Errorf("invalid CA certificate structure: %w", err)
	}

	// Check if it's a CA certificate
	if !cert.IsCA {
		return CACert{}, errors.New("certificate is not a CA certificate (IsCA flag not set)")
	}

	return CACert(data), nil
}

// Validate checks if the CA certificate is properly formed.
func (ca CACert) Validate() error {
	_, err := NewCACert(ca)
	return err
}

// GetX509Cert returns the parsed X.509 certificate.
func (ca CACert) GetX509Cert() (*x509.Certificate, error) {
	block, _ := pem.Decode(ca)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	return x509.ParseCertificate(block.Bytes)
}

// VerifyCertificate checks if a certificate was signed by this CA.
func (ca CACert) VerifyCertificate(cert TLSCert) error {
	caCert, err := ca.GetX509Cert()
	if err != nil {
		return err
	}

	leafCert, err := cert.GetX509Cert()
	if err != nil {
		return err
	}

	// Create a certificate pool containing the CA cert
	caPool := x509.NewCertPool()
	caPool.AddCert(caCert)

	// Verify the leaf certificate against the CA
	_, err = leafCert.Verify(x509.VerifyOptions{
		Roots: caPool,
	})
	return err
}

// ClientPrivkey represents a client's private key in PEM format.
type ClientPrivkey []byte

// NewClientPrivkey creates a new private key object from PEM-encoded data with validation.
func NewClientPrivkey(data []byte) (ClientPrivkey, error) {
	// Validate PEM format
	block, _ := pem.Decode(data)
	if block == nil || (block.Type != "PRIVATE KEY" && block.Type != "EC PRIVATE KEY" && block.Type != "RSA PRIVATE KEY") {
		return ClientPrivkey{}, errors.New("invalid private key: not in PEM format or not a private key")
	}

	if _, err := parseKeyBlock(block); err != nil {
		return ClientPrivkey{}, fmt.Errorf("invalid private key structure: %w", err)
	}

	return ClientPrivkey(data), nil
}

// Validate checks if the private key is properly formed.
func (priv ClientPrivkey) Validate() error {
	_, err := NewClientPrivkey(priv)
	return err
}

// GetPrivateKey returns the parsed private key interface.
func (priv ClientPrivkey) GetPrivateKey() (interface{}, error) {
	block, _ := pem.Decode(priv)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	return parseKeyBlock(block)
}

// parseKeyBlock tries PKCS#8 first, then the legacy EC and PKCS#1 encodings.
func parseKeyBlock(block *pem.Block) (interface{}, error) {
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	return nil, errors.New("failed to parse private key")
}
