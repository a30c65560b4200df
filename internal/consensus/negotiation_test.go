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
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rmarasigan-tip/folioblocks-1/internal/store/model"
)

// newTestDB opens an isolated in-memory database, named uniquely so
// parallel/sequential tests never share sqlite's shared-cache namespace.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

func TestNegotiationsBeginDeletesPriorRowForSameBlock(t *testing.T) {
	db := newTestDB(t)
	n := newNegotiations(db)

	require.NoError(t, n.Begin("negotiation-1", 7, "miner-a"))
	require.NoError(t, n.Begin("negotiation-2", 7, "miner-b"))

	var count int64
	require.NoError(t, db.Model(&model.ConsensusNegotiation{}).Where("block_no_ref = ?", 7).Count(&count).Error)
	assert.Equal(t, int64(1), count, "only the newest negotiation for a block survives")

	row, ok, err := n.InProgressForBlock(7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "negotiation-2", row.ConsensusNegotiationID)
}

func TestNegotiationsCompleteRequiresInProgress(t *testing.T) {
	db := newTestDB(t)
	n := newNegotiations(db)

	require.NoError(t, n.Begin("negotiation-1", 1, "miner-a"))
	require.NoError(t, n.Complete(db, "negotiation-1"))

	err := n.Complete(db, "negotiation-1")
	assert.ErrorIs(t, err, errNegotiationNotInProgress, "completing an already-completed negotiation is rejected")
}

func TestNegotiationsDeleteStale(t *testing.T) {
	db := newTestDB(t)
	n := newNegotiations(db)

	require.NoError(t, n.Begin("negotiation-1", 1, "miner-a"))
	require.NoError(t, n.DeleteStale("negotiation-1"))

	_, ok, err := n.InProgressForBlock(1)
	require.NoError(t, err)
	assert.False(t, ok)
}
