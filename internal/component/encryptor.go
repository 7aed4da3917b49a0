package component

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/box"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
)

// Encryptor encrypts one sensitive field with the public key before it leaves the
// device.
type Encryptor interface {
	EncryptField(key, value, publicKey string) (string, error)
}

// TestEncryptor marks values as unencrypted test data, which test environments
// accept in place of encrypted fields.
type TestEncryptor struct{}

func (TestEncryptor) EncryptField(_, value, _ string) (string, error) {
	return TestFieldPrefix + value, nil
}

const (
	// TestFieldPrefix marks a field produced by TestEncryptor.
	TestFieldPrefix = "test_"
	// SealedFieldPrefix marks a field produced by SealedBoxEncryptor.
	SealedFieldPrefix = "nbx1$"
)

// SealedBoxEncryptor seals each field to a base64 X25519 public key with an
// anonymous NaCl box. Only the holder of the matching SealedBoxKey can open it.
type SealedBoxEncryptor struct {
	// Rand defaults to crypto/rand.
	Rand io.Reader
}

func (e SealedBoxEncryptor) EncryptField(key, value, publicKey string) (string, error) {
	recipient, err := decodeBoxKey(publicKey)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrEncryption, "encrypt "+key, "invalid public key", err)
	}
	random := e.Rand
	if random == nil {
		random = rand.Reader
	}
	sealed, err := box.SealAnonymous(nil, []byte(value), recipient, random)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrEncryption, "encrypt "+key, "seal failed", err)
	}
	return SealedFieldPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// SealedBoxKey is the key pair a backend publishes for SealedBoxEncryptor.
type SealedBoxKey struct {
	public  *[32]byte
	private *[32]byte
}

// GenerateSealedBoxKey creates a new key pair.
func GenerateSealedBoxKey() (*SealedBoxKey, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrEncryption, "generate key", "key generation failed", err)
	}
	return &SealedBoxKey{public: pub, private: priv}, nil
}

// PublicKey returns the base64 public key clients encrypt with.
func (k *SealedBoxKey) PublicKey() string {
	return base64.StdEncoding.EncodeToString(k.public[:])
}

// Open returns the plaintext of a field sealed to k.
func (k *SealedBoxKey) Open(field string) (string, error) {
	raw, ok := strings.CutPrefix(field, SealedFieldPrefix)
	if !ok {
		return "", apperr.New(apperr.ErrEncryption, "open field", "field is not sealed")
	}
	sealed, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrEncryption, "open field", "malformed sealed field", err)
	}
	plain, ok := box.OpenAnonymous(nil, sealed, k.public, k.private)
	if !ok {
		return "", apperr.New(apperr.ErrEncryption, "open field", "field was not sealed to this key")
	}
	return string(plain), nil
}

func decodeBoxKey(s string) (*[32]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		return nil, apperr.New(apperr.ErrEncryption, "decode key", "public key must be 32 bytes")
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}
