package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrNoCryptKey is returned when a sensitive value is touched but no
	// encryption key has been configured.
	ErrNoCryptKey = errors.New("no crypt key configured (set WAO_CRYPT_KEY)")

	// ErrBadCiphertext is returned when a stored value cannot be decrypted
	// with the configured key.
	ErrBadCiphertext = errors.New("ciphertext is invalid or key mismatch")
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Codec encrypts and decrypts designated field values with a process-wide
// symmetric key. A Codec constructed with an empty key is valid but refuses
// every operation with ErrNoCryptKey.
type Codec struct {
	key []byte // 32-byte AES-256 key, nil when unkeyed
}

// New derives an AES-256 key from the configured secret. An empty secret
// produces an unkeyed codec.
func New(key string) *Codec {
	if key == "" {
		return &Codec{}
	}
	sum := sha256.Sum256([]byte(key))
	return &Codec{key: sum[:]}
}

// Keyed reports whether the codec has an encryption key.
func (c *Codec) Keyed() bool { return len(c.key) > 0 }

// Encrypt seals plaintext with AES-GCM under a fresh random nonce and
// returns base64(nonce || ciphertext).
func (c *Codec) Encrypt(plaintext string) (string, error) {
	aead, err := c.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	aead, err := c.aead()
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadCiphertext, err)
	}
	if len(raw) < aead.NonceSize() {
		return "", ErrBadCiphertext
	}

	plain, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadCiphertext, err)
	}
	return string(plain), nil
}

// Compare reports whether plaintext matches the given stored ciphertext.
// A ciphertext that fails authentication compares as false, not as an error.
func (c *Codec) Compare(plaintext, ciphertext string) (bool, error) {
	if !c.Keyed() {
		return false, ErrNoCryptKey
	}
	stored, err := c.Decrypt(ciphertext)
	if err != nil {
		if errors.Is(err, ErrBadCiphertext) {
			return false, nil
		}
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(plaintext), []byte(stored)) == 1, nil
}

func (c *Codec) aead() (cipher.AEAD, error) {
	if !c.Keyed() {
		return nil, ErrNoCryptKey
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// GenerateSecret produces a random alphanumeric token of the requested
// length with a dot separator spliced in at two stable offsets, giving the
// familiar "prefix.payload" shape used for auth tokens and generated
// passwords.
func GenerateSecret(length int) (string, error) {
	if length < 8 {
		length = 8
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}

	s := string(buf)
	s = s[0:3] + "." + s[5:]
	if len(s) >= 32 {
		s = s[0:28] + "." + s[30:]
	}
	return s, nil
}

// Hash returns the hex SHA-256 digest of a value. Encryption is
// non-deterministic, so lookup columns for sensitive fields (token_hash)
// store this digest instead of the ciphertext.
func Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
