// Package cryptoutils provides the cryptographic primitives shared by the
// credential provisioning pipeline.
//
// It defines PEM-typed byte slices with validating constructors for the
// material the pipeline moves around:
//
//   - TLSCert - an end-entity certificate
//   - CACert - a certificate authority certificate
//   - ClientPrivkey - a client private key (PKCS#8, EC or PKCS#1 encodings)
//
// and the checks and helpers built on top of them:
//
//   - VerifyKeyCertMatch - detects key/certificate mismatches before a TLS
//     context is assembled
//   - Zeroize - secure erasure of sensitive buffers
//   - RandomCert - throwaway self-signed certificate for the sidecar's
//     localhost development listener
//   - IssueCA / IssueLeaf - small test/development PKI
//
// The typed-PEM approach keeps validation at construction time: once a value
// of one of these types exists, the bytes are known to parse, and downstream
// code can re-parse without re-validating error paths.
package cryptoutils
