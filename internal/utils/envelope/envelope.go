// Package envelope seals byte payloads into authenticated, password-derived
// ciphertext envelopes: PBKDF2-SHA256 key derivation, AES-256-CBC with PKCS#7
// padding, and an HMAC-SHA256 tag over ciphertext, IV and salt
// (encrypt-then-MAC).
package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	"golang.org/x/crypto/pbkdf2"
)

const (
	KeySize           = 32
	SaltSize          = 16
	IVSize            = aes.BlockSize
	DefaultIterations = 100_000
	MinIterations     = 10_000
)

// ErrEmptySecret is returned when no master secret is configured.
var ErrEmptySecret = errors.New("master secret cannot be empty")

// Keys are the two independent keys derived from one secret and salt.
type Keys struct {
	Encryption []byte
	MAC        []byte
}

// DeriveKeys stretches secret into an encryption key and a MAC key.
func DeriveKeys(secret string, salt []byte, iterations int) Keys {
	material := pbkdf2.Key([]byte(secret), salt, iterations, 2*KeySize, sha256.New)
	return Keys{Encryption: material[:KeySize], MAC: material[KeySize:]}
}

// Sealer encrypts and authenticates payloads with a fixed secret.
// A fresh salt and IV are drawn for every Seal.
type Sealer struct {
	secret     string
	iterations int
	now        func() time.Time
}

// NewSealer validates its inputs. iterations must be the same on every
// device that shares envelopes.
func NewSealer(secret string, iterations int) (*Sealer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if iterations < MinIterations {
		return nil, fmt.Errorf("kdf iterations must be at least %d, got %d", MinIterations, iterations)
	}
	return &Sealer{secret: secret, iterations: iterations, now: time.Now}, nil
}

// Seal encrypts plaintext into a new envelope.
func (s *Sealer) Seal(plaintext []byte) (domain.EncryptedEnvelope, error) {
	salt := make([]byte, SaltSize)
	iv := make([]byte, IVSize)
	if _, err := rand.Read(salt); err != nil {
		return domain.EncryptedEnvelope{}, fmt.Errorf("failed to read random salt: %w", err)
	}
	if _, err := rand.Read(iv); err != nil {
		return domain.EncryptedEnvelope{}, fmt.Errorf("failed to read random iv: %w", err)
	}

	keys := DeriveKeys(s.secret, salt, s.iterations)
	block, err := aes.NewCipher(keys.Encryption)
	if err != nil {
		return domain.EncryptedEnvelope{}, fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	enc := base64.StdEncoding
	return domain.EncryptedEnvelope{
		Ciphertext:    enc.EncodeToString(ciphertext),
		IV:            enc.EncodeToString(iv),
		Salt:          enc.EncodeToString(salt),
		AuthTag:       enc.EncodeToString(tag(keys.MAC, ciphertext, iv, salt)),
		Timestamp:     s.now().UnixMilli(),
		SchemaVersion: domain.EnvelopeSchemaVersion,
	}, nil
}

// Open verifies and decrypts env. The tag is checked before any decryption;
// a mismatch, whether from a wrong secret or tampering, is an AuthenticationError.
func (s *Sealer) Open(env domain.EncryptedEnvelope) ([]byte, error) {
	if env.SchemaVersion != domain.EnvelopeSchemaVersion {
		return nil, apperrors.NewValidationError("version", "unsupported envelope version %d", env.SchemaVersion)
	}

	enc := base64.StdEncoding
	ciphertext, err := enc.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, &apperrors.AuthenticationError{Reason: "ciphertext is not valid base64"}
	}
	iv, err := enc.DecodeString(env.IV)
	if err != nil || len(iv) != IVSize {
		return nil, &apperrors.AuthenticationError{Reason: "malformed iv"}
	}
	salt, err := enc.DecodeString(env.Salt)
	if err != nil || len(salt) == 0 {
		return nil, &apperrors.AuthenticationError{Reason: "malformed salt"}
	}
	got, err := enc.DecodeString(env.AuthTag)
	if err != nil {
		return nil, &apperrors.AuthenticationError{Reason: "malformed tag"}
	}

	keys := DeriveKeys(s.secret, salt, s.iterations)
	if !hmac.Equal(got, tag(keys.MAC, ciphertext, iv, salt)) {
		return nil, &apperrors.AuthenticationError{Reason: "tag mismatch"}
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, &apperrors.AuthenticationError{Reason: "ciphertext is not a whole number of blocks"}
	}

	block, err := aes.NewCipher(keys.Encryption)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	out, err := unpad(plain, aes.BlockSize)
	if err != nil {
		return nil, &apperrors.AuthenticationError{Reason: err.Error()}
	}
	return out, nil
}

func tag(key, ciphertext, iv, salt []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(ciphertext)
	mac.Write(iv)
	mac.Write(salt)
	return mac.Sum(nil)
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append([]byte(nil), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, errors.New("invalid padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
