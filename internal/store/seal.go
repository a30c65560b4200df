// Copyright 2019 The Nuclear Core Authors
// This file is part of the Nuclear Core library.
//
// The Nuclear Core library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The Nuclear Core library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the Nuclear Core library. If not, see <http://www.gnu.org/licenses/>.

package store

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"hash"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

func newSHA256() hash.Hash { return sha256.New() }

// sealVersion is a 1-byte format tag prefixed to every ciphertext, so a
// future scheme can be introduced without breaking files sealed under this
// one (spec §4.1 "authenticated symmetric scheme... versioned token
// format").
const sealVersion byte = 1

// ErrInvalidToken is returned when a ciphertext fails authentication or
// carries an unknown version tag. The sealed store never silently returns
// corrupt data (spec §4.1).
var ErrInvalidToken = errors.New("store: invalid sealed token")

// deriveKey expands an arbitrary-length AUTH_KEY string into the 32-byte
// key chacha20poly1305 needs, via HKDF with info as the domain-separation
// label, so each label gets its own key. Nonces are drawn at random in Seal.
func deriveKey(authKey string, info string) ([]byte, error) {
	h := hkdf.New(newSHA256, []byte(authKey), nil, []byte(info))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Seal authenticates and encrypts cleartext under AUTH_KEY, scoped by info
// (a domain-separation label, e.g. "chain" or "relational" or
// "certificate"). The returned token is versionTag || nonce || ciphertext.
func Seal(authKey, info string, cleartext []byte) ([]byte, error) {
	key, err := deriveKey(authKey, info)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, 1+len(nonce)+len(cleartext)+aead.Overhead())
	out = append(out, sealVersion)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, cleartext, nil)
	return out, nil
}

// Open authenticates and decrypts a token produced by Seal. Any
// authentication failure or unknown version returns ErrInvalidToken,
// regardless of the underlying cause, to avoid distinguishing "corrupt"
// from "tampered" for callers.
func Open(authKey, info string, token []byte) ([]byte, error) {
	key, err := deriveKey(authKey, info)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	if len(token) < 1+aead.NonceSize() {
		return nil, ErrInvalidToken
	}
	if token[0] != sealVersion {
		return nil, ErrInvalidToken
	}

	nonce := token[1 : 1+aead.NonceSize()]
	ciphertext := token[1+aead.NonceSize():]

	cleartext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return cleartext, nil
}
