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

package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmarasigan-tip/folioblocks-1/internal/xerr"
)

func TestAdmitMinerEnforcesPoolLimit(t *testing.T) {
	r := NewRegistry(2)
	require.NoError(t, r.AdmitMiner("a", nil, "10.0.0.1", 9000))
	require.NoError(t, r.AdmitMiner("b", nil, "10.0.0.2", 9000))

	err := r.AdmitMiner("c", nil, "10.0.0.3", 9000)
	assert.ErrorIs(t, err, xerr.ErrPoolFull)
}

func TestAdmitMinerReadmitsPastUnreachableWithoutCountingAgainstLimit(t *testing.T) {
	r := NewRegistry(1)
	require.NoError(t, r.AdmitMiner("a", nil, "10.0.0.1", 9000))
	require.NoError(t, r.MarkUnreachable("a"))

	require.NoError(t, r.AdmitMiner("b", nil, "10.0.0.2", 9000))
}

func TestPickEligibleMinerTieBreaksDeterministically(t *testing.T) {
	r := NewRegistry(4)
	now := time.Now()

	require.NoError(t, r.AdmitMiner("zeta", nil, "h", 1))
	require.NoError(t, r.AdmitMiner("alpha", nil, "h", 1))
	require.NoError(t, r.MarkSleeping("zeta", now.Add(-time.Minute)))
	require.NoError(t, r.MarkAvailable("zeta"))
	require.NoError(t, r.MarkSleeping("alpha", now.Add(-time.Minute)))
	require.NoError(t, r.MarkAvailable("alpha"))

	picked, ok := r.PickEligibleMiner(now)
	require.True(t, ok)
	assert.Equal(t, "alpha", picked, "equal sleep expirations break on lexicographically smallest address")
}

func TestPickEligibleMinerRespectsSleepExpiration(t *testing.T) {
	r := NewRegistry(4)
	now := time.Now()

	require.NoError(t, r.AdmitMiner("a", nil, "h", 1))
	require.NoError(t, r.MarkSleeping("a", now.Add(time.Hour)))

	_, ok := r.PickEligibleMiner(now)
	assert.False(t, ok, "a miner still sleeping is not eligible")
}

func TestPromoteExpiredSleepers(t *testing.T) {
	r := NewRegistry(4)
	now := time.Now()

	require.NoError(t, r.AdmitMiner("a", nil, "h", 1))
	require.NoError(t, r.MarkSleeping("a", now.Add(-time.Second)))

	n := r.PromoteExpiredSleepers(now)
	assert.Equal(t, 1, n)

	node, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, StatusAvailable, node.Status)
}

func TestTransitionOnUnknownAddressIsProtocolError(t *testing.T) {
	r := NewRegistry(4)
	err := r.MarkMining("ghost")
	assert.True(t, xerr.Is(err, xerr.KindProtocol))
}
