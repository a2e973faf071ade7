package cryptoutils

// Zeroize overwrites every byte of b with zero. Used to release buffers that
// held private key material.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
