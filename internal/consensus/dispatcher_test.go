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

package consensus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apimodel "github.com/rmarasigan-tip/folioblocks-1/internal/api/model"
	"github.com/rmarasigan-tip/folioblocks-1/internal/chain"
	"github.com/rmarasigan-tip/folioblocks-1/internal/cluster"
	"github.com/rmarasigan-tip/folioblocks-1/internal/store/model"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *chain.Builder, *cluster.Registry) {
	t.Helper()
	db := newTestDB(t)

	registry := cluster.NewRegistry(4)
	require.NoError(t, registry.AdmitMiner("miner-a", nil, "10.0.0.1", 9100))
	require.NoError(t, db.Create(&model.AssociatedNode{
		UserAddress:   "miner-a",
		SourceAddress: "10.0.0.1",
		SourcePort:    9100,
		Status:        string(cluster.StatusMining),
	}).Error)

	builder := chain.NewBuilder(1)
	builder.Enqueue(chain.Transaction{})
	raw, err := builder.Seal(time.Now())
	require.NoError(t, err)

	d := New(registry, builder, db, Config{
		SelfAddress:       "master.local",
		BlockTimerSeconds: 1,
		Difficulty:        1,
		RetryAttempts:     1,
		StaleMultiplier:   10,
	})
	require.NoError(t, registry.MarkMining("miner-a"))
	require.NoError(t, d.negotiat.Begin("negotiation-1", raw.ID, "miner-a"))

	return d, builder, registry
}

func mineForDispatch(t *testing.T, raw chain.Block, difficulty int) chain.Block {
	t.Helper()
	for nonce := uint64(0); ; nonce++ {
		raw.Nonce = nonce
		hash, err := raw.CanonicalHash()
		require.NoError(t, err)
		ok := len(hash) >= difficulty
		for i := 0; ok && i < difficulty; i++ {
			if hash[i] != '0' {
				ok = false
			}
		}
		if ok {
			raw.HashBlock = hash
			return raw
		}
	}
}

func TestConfirmHappyPath(t *testing.T) {
	d, builder, registry := newTestDispatcher(t)

	raw := builder.Confirming()[0]
	mined := mineForDispatch(t, raw, 1)

	out, err := d.Confirm(context.Background(), apimodel.ConsensusToMasterPayload{
		Block:                  mined,
		MinerAddress:           "miner-a",
		ConsensusNegotiationID: "negotiation-1",
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, out.AddonConsensusSleepSeconds, 0.0)
	assert.Equal(t, "master.local", out.ReiterateMasterAddress)

	node, ok := registry.Get("miner-a")
	require.True(t, ok)
	assert.Equal(t, cluster.StatusSleeping, node.Status)
	assert.True(t, node.ConsensusSleepExpiration.After(time.Now()))

	assert.Len(t, builder.AppendedChain(), 1)
}

func TestConfirmRejectsReplay(t *testing.T) {
	d, builder, _ := newTestDispatcher(t)

	raw := builder.Confirming()[0]
	mined := mineForDispatch(t, raw, 1)

	payload := apimodel.ConsensusToMasterPayload{
		Block:                  mined,
		MinerAddress:           "miner-a",
		ConsensusNegotiationID: "negotiation-1",
	}

	_, err := d.Confirm(context.Background(), payload)
	require.NoError(t, err)

	_, err = d.Confirm(context.Background(), payload)
	assert.Error(t, err, "the same negotiation id cannot be confirmed twice")
}
