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

// Package consensus implements the Consensus Dispatcher (C5): the per-miner
// dispatch/mine/confirm state machine of spec §4.5.
package consensus

import (
	"errors"

	"gorm.io/gorm"

	"github.com/rmarasigan-tip/folioblocks-1/internal/store/model"
)

// NegotiationStatus mirrors spec §3's ConsensusNegotiation.status.
type NegotiationStatus string

const (
	NegotiationInProgress NegotiationStatus = "ON_PROGRESS"
	NegotiationCompleted  NegotiationStatus = "COMPLETED"
)

// negotiations persists ConsensusNegotiation rows. At most one ON_PROGRESS
// row exists per block_no_ref at any time (spec §3 invariant): Begin
// deletes a prior row for the same block before inserting, per spec §4.5
// step 3 ("if a prior row with that block_no_ref exists, delete it
// first").
type negotiations struct {
	db *gorm.DB
}

func newNegotiations(db *gorm.DB) *negotiations {
	return &negotiations{db: db}
}

// Begin inserts a fresh ON_PROGRESS row for blockID, deleting any prior row
// for the same block first (spec §4.5 step 3).
func (n *negotiations) Begin(id string, blockID uint64, peerAddress string) error {
	return n.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("block_no_ref = ?", blockID).Delete(&model.ConsensusNegotiation{}).Error; err != nil {
			return err
		}
		row := model.ConsensusNegotiation{
			ConsensusNegotiationID: id,
			BlockNoRef:             blockID,
			PeerAddress:            peerAddress,
			Status:                 string(NegotiationInProgress),
		}
		return tx.Create(&row).Error
	})
}

// Complete marks id COMPLETED, but only if it is still ON_PROGRESS — the
// atomic guard of spec §4.5 step 5's "UPDATE ... WHERE status=ON_PROGRESS".
func (n *negotiations) Complete(tx *gorm.DB, id string) error {
	result := tx.Model(&model.ConsensusNegotiation{}).
		Where("consensus_negotiation_id = ? AND status = ?", id, string(NegotiationInProgress)).
		Update("status", string(NegotiationCompleted))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errNegotiationNotInProgress
	}
	return nil
}

var errNegotiationNotInProgress = errors.New("consensus: negotiation is not ON_PROGRESS")

// InProgressForBlock returns the single ON_PROGRESS negotiation for
// blockID, if any. Dispatcher.Hydrate uses it on startup to find and delete
// ON_PROGRESS rows left behind for blocks already on the restored chain.
func (n *negotiations) InProgressForBlock(blockID uint64) (model.ConsensusNegotiation, bool, error) {
	var row model.ConsensusNegotiation
	err := n.db.Where("block_no_ref = ? AND status = ?", blockID, string(NegotiationInProgress)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ConsensusNegotiation{}, false, nil
	}
	if err != nil {
		return model.ConsensusNegotiation{}, false, err
	}
	return row, true, nil
}

// DeleteStale removes a stale ON_PROGRESS row so the next dispatch cycle
// can re-target the same cached block id to a different miner (spec §4.5
// "Failure").
func (n *negotiations) DeleteStale(id string) error {
	return n.db.Where("consensus_negotiation_id = ? AND status = ?", id, string(NegotiationInProgress)).
		Delete(&model.ConsensusNegotiation{}).Error
}
