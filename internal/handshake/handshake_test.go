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

package handshake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmarasigan-tip/folioblocks-1/internal/store"
	"github.com/rmarasigan-tip/folioblocks-1/internal/xerr"
)

type fakeUsers map[string]string       // address -> email
type fakeAcceptances map[string]string // code -> email
type fakeSessions map[string]string    // token -> address

func (f fakeUsers) EmailForAddress(_ context.Context, address string) (string, bool, error) {
	e, ok := f[address]
	return e, ok, nil
}

func (f fakeAcceptances) EmailForCode(_ context.Context, code string) (string, bool, error) {
	e, ok := f[code]
	return e, ok, nil
}

func (f fakeSessions) AddressForToken(_ context.Context, token string) (string, bool, error) {
	a, ok := f[token]
	return a, ok, nil
}

const testSecretKey = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"

func newTestHandshake() (*Handshake, func()) {
	authKey, _, _ := store.GenerateKeyMaterial()
	users := fakeUsers{"miner-1": "miner@example.com"}
	acceptances := fakeAcceptances{"accept-code": "miner@example.com"}
	sessions := fakeSessions{"session-token": "miner-1"}

	h := New(users, acceptances, sessions, testSecretKey, authKey)
	return h, func() {}
}

func TestAdmitSucceedsAndEncryptsCertificate(t *testing.T) {
	h, done := newTestHandshake()
	defer done()

	req := Request{
		SourceHeader:     "miner-1",
		SessionHeader:    "session-token",
		AcceptanceHeader: "accept-code",
		SourceAddress:    "10.0.0.5",
		SourcePort:       9100,
	}

	result, err := h.Admit(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, result.PlaintextCertificate)
	assert.NotEmpty(t, result.EncryptedCertificate)

	decrypted, err := store.Open(h.AuthKey, "certificate", result.EncryptedCertificate)
	require.NoError(t, err)
	assert.Equal(t, result.PlaintextCertificate, string(decrypted))
}

func TestAdmitRejectsUnknownMinerWithoutRevealingWhichCheckFailed(t *testing.T) {
	h, done := newTestHandshake()
	defer done()

	req := Request{
		SourceHeader:     "nobody",
		SessionHeader:    "session-token",
		AcceptanceHeader: "accept-code",
		SourceAddress:    "10.0.0.5",
		SourcePort:       9100,
	}

	_, err := h.Admit(context.Background(), req)
	require.Error(t, err)
	assert.True(t, xerr.Is(err, xerr.KindAuthentication))
}

func TestAdmitRejectsAcceptanceCodeBoundToDifferentEmail(t *testing.T) {
	h, done := newTestHandshake()
	defer done()
	h.Acceptances = fakeAcceptances{"accept-code": "someone-else@example.com"}

	req := Request{
		SourceHeader:     "miner-1",
		SessionHeader:    "session-token",
		AcceptanceHeader: "accept-code",
		SourceAddress:    "10.0.0.5",
		SourcePort:       9100,
	}

	_, err := h.Admit(context.Background(), req)
	assert.True(t, xerr.Is(err, xerr.KindAuthentication))
}

func TestAdmitRejectsSessionTokenBoundToDifferentAddress(t *testing.T) {
	h, done := newTestHandshake()
	defer done()
	h.Sessions = fakeSessions{"session-token": "someone-else"}

	req := Request{
		SourceHeader:     "miner-1",
		SessionHeader:    "session-token",
		AcceptanceHeader: "accept-code",
		SourceAddress:    "10.0.0.5",
		SourcePort:       9100,
	}

	_, err := h.Admit(context.Background(), req)
	assert.True(t, xerr.Is(err, xerr.KindAuthentication))
}
