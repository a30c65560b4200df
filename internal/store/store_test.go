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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmarasigan-tip/folioblocks-1/internal/chain"
	"github.com/rmarasigan-tip/folioblocks-1/internal/config"
)

func freshConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	return cfg
}

// bootstrapAndLoadKeys runs the bootstrap row of spec §4.1's startup table,
// then loads the key material it wrote so the caller can reopen normally.
func bootstrapAndLoadKeys(t *testing.T, cfg config.Config) config.Config {
	t.Helper()

	_, err := OpenStore(cfg, true)
	require.Error(t, err, "bootstrap always signals restart required")

	loaded, err := config.Load(filepath.Join(cfg.DataDir, cfg.KeyFileName))
	require.NoError(t, err)
	cfg.AuthKey = loaded.AuthKey
	cfg.SecretKey = loaded.SecretKey
	return cfg
}

func TestOpenStoreBootstrapThenRestartOpensCleanly(t *testing.T) {
	cfg := freshConfig(t)
	cfg = bootstrapAndLoadKeys(t, cfg)

	s, err := OpenStore(cfg, true)
	require.NoError(t, err)
	defer s.Close()

	blocks, err := s.LoadChain()
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestOpenStoreMissingKeyMaterialIsConfigurationError(t *testing.T) {
	cfg := freshConfig(t)
	cfg = bootstrapAndLoadKeys(t, cfg)
	cfg.AuthKey = ""
	cfg.SecretKey = ""

	_, err := OpenStore(cfg, true)
	assert.Error(t, err)
}

func TestSealChainSurvivesRestart(t *testing.T) {
	cfg := freshConfig(t)
	cfg = bootstrapAndLoadKeys(t, cfg)

	s, err := OpenStore(cfg, true)
	require.NoError(t, err)

	genesis := chain.NewGenesisRaw(time.Now(), nil)
	genesis.HashBlock = "0000" + "deadbeef"
	require.NoError(t, s.SealChain([]chain.Block{genesis}))
	require.NoError(t, s.Close())

	reopened, err := OpenStore(cfg, true)
	require.NoError(t, err)
	defer reopened.Close()

	blocks, err := reopened.LoadChain()
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, genesis.HashBlock, blocks[0].HashBlock)
}

func TestMinerContinuesOnChainSignatureMismatch(t *testing.T) {
	cfg := freshConfig(t)
	cfg = bootstrapAndLoadKeys(t, cfg)

	s, err := OpenStore(cfg, true)
	require.NoError(t, err)

	genesis := chain.NewGenesisRaw(time.Now(), nil)
	require.NoError(t, s.SealChain([]chain.Block{genesis}))

	// Corrupt the recorded signature directly, simulating drift between the
	// relational row and the chain file's actual contents.
	require.NoError(t, s.DB.Exec("UPDATE file_signatures SET sha256 = ? WHERE file_name = ?", "deadbeef", cfg.ChainFileName).Error)
	require.NoError(t, s.Close())

	_, err = OpenStore(cfg, true)
	assert.Error(t, err, "the Master must refuse to continue on a signature mismatch")

	asMiner, err := OpenStore(cfg, false)
	require.NoError(t, err, "a miner continues past a signature mismatch, relying on resync")
	defer asMiner.Close()
}
