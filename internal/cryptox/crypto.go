// Package cryptox implements the symmetric envelope used for documents at
// rest, file-level helpers around it, key parsing/derivation and CSRF token
// primitives.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/filex"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the required length of the master key (AES-256).
const KeySize = 32

const (
	ivSize  = aes.BlockSize
	tagSize = sha256.Size
)

var envelopeEncoding = base64.StdEncoding.Strict()

// DeriveKey stretches a passphrase into a 256-bit key with argon2id.
func DeriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}

// ParseKey decodes a 32-byte key given as 64 hex characters or standard
// base64. Anything else is rejected.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if len(s) == 2*KeySize {
		if k, err := hex.DecodeString(s); err == nil {
			return k, nil
		}
	}
	k, err := base64.StdEncoding.DecodeString(s)
	if err == nil && len(k) == KeySize {
		return k, nil
	}
	return nil, fmt.Errorf("encryption key must be %d bytes, hex or base64 encoded", KeySize)
}

func splitKey(key []byte) (encKey, macKey []byte, err error) {
	if len(key) != KeySize {
		return nil, nil, fmt.Errorf("invalid key length: expected %d bytes, got %d", KeySize, len(key))
	}
	macKey = make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte("docvault envelope mac")), macKey); err != nil {
		return nil, nil, err
	}
	return key, macKey, nil
}

// EncryptBytes encrypts plaintext with AES-256-CBC under key and returns the
// envelope base64(iv || ciphertext || tag).
//
// A fresh IV is drawn from crypto/rand on every call. The tag is
// HMAC-SHA256 over iv||ciphertext with a MAC key derived from key, so any
// modification of a stored envelope is rejected by DecryptBytes.
func EncryptBytes(plaintext, key []byte) ([]byte, error) {
	encKey, macKey, err := splitKey(key)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	defer common.WipeByteArray(padded)

	raw := make([]byte, ivSize+len(padded), ivSize+len(padded)+tagSize)
	iv := raw[:ivSize]
	copy(iv, common.GenerateRandByteArray(ivSize))

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(raw[ivSize:], padded)

	mac := hmac.New(sha256.New, macKey)
	mac.Write(raw)
	raw = mac.Sum(raw)

	out := make([]byte, envelopeEncoding.EncodedLen(len(raw)))
	envelopeEncoding.Encode(out, raw)
	return out, nil
}

// DecryptBytes reverses EncryptBytes. Malformed, truncated or tampered
// envelopes yield an error wrapping common.ErrorDecryption.
func DecryptBytes(envelope, key []byte) ([]byte, error) {
	encKey, macKey, err := splitKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorDecryption, err)
	}

	raw := make([]byte, envelopeEncoding.DecodedLen(len(envelope)))
	n, err := envelopeEncoding.Decode(raw, envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed envelope: %v", common.ErrorDecryption, err)
	}
	raw = raw[:n]

	if len(raw) < ivSize+aes.BlockSize+tagSize {
		return nil, fmt.Errorf("%w: envelope too short", common.ErrorDecryption)
	}

	body, tag := raw[:len(raw)-tagSize], raw[len(raw)-tagSize:]
	mac := hmac.New(sha256.New, macKey)
	mac.Write(body)
	if !hmac.Equal(tag, mac.Sum(nil)) {
		return nil, fmt.Errorf("%w: authentication failed", common.ErrorDecryption)
	}

	iv, ciphertext := body[:ivSize], body[ivSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not a multiple of the block size", common.ErrorDecryption)
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorDecryption, err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	out, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		common.WipeByteArray(plaintext)
		return nil, fmt.Errorf("%w: %v", common.ErrorDecryption, err)
	}
	return out, nil
}

// EncryptFile reads src fully, encrypts it and writes the envelope to dst.
// dst appears atomically; nothing is left behind on failure.
func EncryptFile(src, dst string, key []byte) error {
	plaintext, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", common.ErrorStorage, src, err)
	}
	defer common.WipeByteArray(plaintext)

	envelope, err := EncryptBytes(plaintext, key)
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(dst, envelope, 0o600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}
	return nil
}

// DecryptFile reads the envelope at src and writes the plaintext to dst.
// On a decryption failure dst is not created.
func DecryptFile(src, dst string, key []byte) error {
	envelope, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", common.ErrorStorage, src, err)
	}

	plaintext, err := DecryptBytes(envelope, key)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)

	if err := filex.WriteFileAtomic(dst, plaintext, 0o600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}
	return nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	out := make([]byte, len(b)+n)
	copy(out, b)
	copy(out[len(b):], bytes.Repeat([]byte{byte(n)}, n))
	return out
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(b))
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
