package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

var errSealedTooShort = errors.New("sealed token too short")

// NewAEADFromKey derives an AES-256-GCM cipher from arbitrary key material,
// typically the bytes of a local key file.
func NewAEADFromKey(material []byte) (cipher.AEAD, error) {
	key := sha256.Sum256(material)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}

// seal encrypts plain with a fresh nonce; the result is base64(nonce || ciphertext).
func seal(aead cipher.AEAD, plain string) (string, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	ct := aead.Seal(nonce, nonce, []byte(plain), []byte(Key))
	return base64.StdEncoding.EncodeToString(ct), nil
}

func open(aead cipher.AEAD, sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode sealed token: %w", err)
	}
	if len(data) < aead.NonceSize() {
		return "", errSealedTooShort
	}
	nonce, ct := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, []byte(Key))
	if err != nil {
		return "", fmt.Errorf("decrypt token: %w", err)
	}
	return string(plain), nil
}
