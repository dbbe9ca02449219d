package driven

// Cipher encrypts and decrypts backup artifact bytes. The algorithm is a
// black box at this layer; the only contract is that Decrypt inverts
// Encrypt under the same configured key.
type Cipher interface {
	// Encrypt returns the sealed form of data.
	Encrypt(data []byte) ([]byte, error)

	// Decrypt opens data previously produced by Encrypt.
	// Returns domain.ErrDecryptFailed (wrapped) on tampered or
	// wrong-key input.
	Decrypt(data []byte) ([]byte, error)
}
