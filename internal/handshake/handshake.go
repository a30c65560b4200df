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

// Package handshake implements the Association Handshake (C3): the three
// sequential credential lookups and the certificate this core issues to an
// admitted miner.
package handshake

import (
	"context"
	"time"

	"github.com/rmarasigan-tip/folioblocks-1/internal/store"
	"github.com/rmarasigan-tip/folioblocks-1/internal/xerr"
)

// UserLookup resolves the claimed miner address to its e-mail. The real
// account-generation flow that populates this table is out of scope
// (spec §1); this interface is the narrow read-only boundary the core
// consumes.
type UserLookup interface {
	EmailForAddress(ctx context.Context, address string) (email string, ok bool, err error)
}

// AcceptanceLookup resolves a one-time acceptance code to the e-mail it was
// issued to. The admin subsystem that mints these codes is out of scope.
type AcceptanceLookup interface {
	EmailForCode(ctx context.Context, code string) (email string, ok bool, err error)
}

// SessionLookup resolves a bearer session token to the address it was
// minted for. The generic session-token store is out of scope (spec §1);
// this core only reads from it.
type SessionLookup interface {
	AddressForToken(ctx context.Context, token string) (address string, ok bool, err error)
}

// Request is the inbound handshake of spec §4.3.
type Request struct {
	SourceHeader     string // X-Source
	SessionHeader    string // X-Session
	AcceptanceHeader string // X-Acceptance
	SourceAddress    string
	SourcePort       int
}

// Handshake validates candidate credentials and mints association
// certificates.
type Handshake struct {
	Users       UserLookup
	Acceptances AcceptanceLookup
	Sessions    SessionLookup
	SecretKey   string // 32-byte hex, spec §4.3 certificate composition
	AuthKey     string // encrypts the certificate plaintext
	Now         func() time.Time
}

// New builds a Handshake. now defaults to time.Now.
func New(users UserLookup, acceptances AcceptanceLookup, sessions SessionLookup, secretKey, authKey string) *Handshake {
	return &Handshake{
		Users:       users,
		Acceptances: acceptances,
		Sessions:    sessions,
		SecretKey:   secretKey,
		AuthKey:     authKey,
		Now:         time.Now,
	}
}

// Result is what a successful handshake hands back to the caller: the
// plaintext certificate (returned to the miner, who persists it as its
// durable association token) and the ciphertext the Master stores.
type Result struct {
	PlaintextCertificate string
	EncryptedCertificate []byte
}

// Admit performs the three sequential lookups of spec §4.3 — user, then
// acceptance code bound to that user's e-mail, then session token bound to
// X-Source — and on success composes and encrypts the certificate. Any
// lookup failure returns xerr.KindAuthentication without revealing which
// one failed, per spec §4.3 ("do not reveal which").
func (h *Handshake) Admit(ctx context.Context, req Request) (Result, error) {
	email, ok, err := h.Users.EmailForAddress(ctx, req.SourceHeader)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, xerr.New(xerr.KindAuthentication, "handshake.Admit", nil)
	}

	acceptedEmail, ok, err := h.Acceptances.EmailForCode(ctx, req.AcceptanceHeader)
	if err != nil {
		return Result{}, err
	}
	if !ok || acceptedEmail != email {
		return Result{}, xerr.New(xerr.KindAuthentication, "handshake.Admit", nil)
	}

	tokenAddress, ok, err := h.Sessions.AddressForToken(ctx, req.SessionHeader)
	if err != nil {
		return Result{}, err
	}
	if !ok || tokenAddress != req.SourceHeader {
		return Result{}, xerr.New(xerr.KindAuthentication, "handshake.Admit", nil)
	}

	plaintext, err := h.composeCertificate(req)
	if err != nil {
		return Result{}, err
	}

	ciphertext, err := store.Seal(h.AuthKey, "certificate", []byte(plaintext))
	if err != nil {
		return Result{}, err
	}

	return Result{PlaintextCertificate: plaintext, EncryptedCertificate: ciphertext}, nil
}

// composeCertificate builds the fixed-order concatenation of spec §4.3:
// SECRET_KEY[0:16] || X-Session || SECRET_KEY[32:48] || X-Source ||
// SECRET_KEY[48:64] || X-Acceptance || SECRET_KEY[16:32] || ISO-8601(now).
func (h *Handshake) composeCertificate(req Request) (string, error) {
	if len(h.SecretKey) < 64 {
		return "", xerr.New(xerr.KindConfiguration, "handshake.composeCertificate", nil)
	}

	var b []byte
	b = append(b, h.SecretKey[0:16]...)
	b = append(b, req.SessionHeader...)
	b = append(b, h.SecretKey[32:48]...)
	b = append(b, req.SourceHeader...)
	b = append(b, h.SecretKey[48:64]...)
	b = append(b, req.AcceptanceHeader...)
	b = append(b, h.SecretKey[16:32]...)
	b = append(b, h.Now().UTC().Format(time.RFC3339)...)
	return string(b), nil
}
