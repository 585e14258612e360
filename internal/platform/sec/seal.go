// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

// Key derivation parameters for [NewSealer]. They are tuned for a one-off
// derivation at process start, not per value.
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 2
	keyLength  = 32
	nonceSize  = 24
)

// ErrUnseal is returned when a sealed value is malformed or was sealed with another key.
var ErrUnseal = errors.New("sec: cannot unseal value")

// Sealer encrypts values at rest with a key derived from an operator secret.
type Sealer struct {
	key [keyLength]byte
}

// NewSealer derives the sealing key from secret with Argon2id.
//
// The salt is fixed per terminal so the same secret always yields the same key
// and sealed values survive a restart.
func NewSealer(secret, salt string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("sec: sealing secret must not be empty")
	}

	derived := argon2.IDKey([]byte(secret), []byte("washdesk:"+salt), kdfTime, kdfMemory, kdfThreads, keyLength)

	sealer := &Sealer{}
	copy(sealer.key[:], derived)
	return sealer, nil
}

// Seal encrypts plaintext and returns it as base64 text, nonce first.
func (s *Sealer) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("sec: failed to read nonce: %w", err)
	}

	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return base64.RawStdEncoding.EncodeToString(box), nil
}

// Open reverses [Sealer.Seal].
func (s *Sealer) Open(sealed string) (string, error) {
	box, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil || len(box) < nonceSize+secretbox.Overhead {
		return "", ErrUnseal
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])

	plaintext, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrUnseal
	}
	return string(plaintext), nil
}
