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

package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransactionRoundTripsPayload(t *testing.T) {
	tx, err := NewTransaction(ActionNodeGeneralConsensusInit, NodeInitPayload{
		MinerAddress:  "miner-1",
		SourceAddress: "10.0.0.1",
		SourcePort:    9100,
	})
	require.NoError(t, err)

	decoded, err := tx.DecodeNodeInit()
	require.NoError(t, err)
	assert.Equal(t, "miner-1", decoded.MinerAddress)
	assert.Equal(t, 9100, decoded.SourcePort)
}

func TestDecodeRejectsWrongAction(t *testing.T) {
	tx, err := NewTransaction(ActionGenesisInitialization, GenesisPayload{Message: "hi"})
	require.NoError(t, err)

	_, err = tx.DecodeNodeInit()
	assert.Error(t, err, "decoding with the wrong action's accessor must fail, not silently zero-value")
}

func TestActionStringUnknown(t *testing.T) {
	var unknown Action = 999
	assert.Equal(t, "UNKNOWN_ACTION", unknown.String())
}
