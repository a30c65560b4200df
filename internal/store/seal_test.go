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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	authKey, _, err := GenerateKeyMaterial()
	require.NoError(t, err)

	plaintext := []byte(`{"chain":[]}`)
	sealed, err := Seal(authKey, "chain", plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	opened, err := Open(authKey, "chain", sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenRejectsWrongInfoLabel(t *testing.T) {
	authKey, _, err := GenerateKeyMaterial()
	require.NoError(t, err)

	sealed, err := Seal(authKey, "chain", []byte("hello"))
	require.NoError(t, err)

	_, err = Open(authKey, "relational", sealed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	authKey, _, err := GenerateKeyMaterial()
	require.NoError(t, err)

	sealed, err := Seal(authKey, "chain", []byte("hello"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xFF

	_, err = Open(authKey, "chain", sealed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestOpenRejectsUnknownVersion(t *testing.T) {
	authKey, _, err := GenerateKeyMaterial()
	require.NoError(t, err)

	sealed, err := Seal(authKey, "chain", []byte("hello"))
	require.NoError(t, err)

	sealed[0] = 0xEE

	_, err = Open(authKey, "chain", sealed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
