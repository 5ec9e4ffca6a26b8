// Package secret seals OAuth credentials before they are written to the database.
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	prefix   = "sb1:"
	keySize  = 32
	nonceLen = 24
	info     = "connectnow oauth token"
)

var ErrMalformed = errors.New("malformed sealed value")

type Sealer interface {
	Seal(plain string) (string, error)
	Open(sealed string) (string, error)
}

// Box seals values with NaCl secretbox under a key derived from a passphrase.
type Box struct {
	key [keySize]byte
}

func NewBox(passphrase string) (*Box, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}
	var b Box
	r := hkdf.New(sha256.New, []byte(passphrase), nil, []byte(info))
	if _, err := io.ReadFull(r, b.key[:]); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &b, nil
}

func (b *Box) Seal(plain string) (string, error) {
	var nonce [nonceLen]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, &b.key)
	return prefix + base64.RawStdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Values without the sealed prefix are returned unchanged so rows
// written before encryption was enabled stay readable.
func (b *Box) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, prefix) {
		return sealed, nil
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(sealed, prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) < nonceLen+secretbox.Overhead {
		return "", ErrMalformed
	}
	var nonce [nonceLen]byte
	copy(nonce[:], raw[:nonceLen])
	plain, ok := secretbox.Open(nil, raw[nonceLen:], &nonce, &b.key)
	if !ok {
		return "", ErrMalformed
	}
	return string(plain), nil
}

// Plain is the no-op Sealer used when no encryption key is configured.
type Plain struct{}

func (Plain) Seal(plain string) (string, error)  { return plain, nil }
func (Plain) Open(sealed string) (string, error) { return sealed, nil }
