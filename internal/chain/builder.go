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

// Package chain implements the Block Builder (C4): the pending/confirming
// transaction queues, block sealing, and the append path that enforces the
// chain's field and difficulty invariants.
package chain

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rmarasigan-tip/folioblocks-1/internal/xerr"
	"github.com/rmarasigan-tip/folioblocks-1/internal/xlog"
)

// Builder owns the three in-memory structures of spec §4.4: the pending
// transaction queue, the confirming-block container, and the next block id.
type Builder struct {
	mu sync.Mutex

	difficulty   int
	pending      []Transaction
	confirming   []Block
	cachedID     uint64
	appended     []Block
	lastSealedAt time.Time
}

// NewBuilder constructs an empty Builder seeded at block id 0 (no blocks
// appended yet).
func NewBuilder(difficulty int) *Builder {
	return &Builder{difficulty: difficulty, lastSealedAt: time.Now()}
}

// Enqueue appends an internal or dashboard-submitted transaction to the
// pending queue.
func (b *Builder) Enqueue(tx Transaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, tx)
}

// CachedBlockID returns the id of the next block to be appended.
func (b *Builder) CachedBlockID() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cachedID
}

// ShouldSeal implements the sealing policy of spec §4.4: pending queue
// non-empty AND an eligible miner exists, OR a sealing tick has elapsed.
// hasEligibleMiner is the typed callback C5 supplies so C4 never reaches
// into C2 directly (spec §9's C4/C5 command-queue boundary).
func (b *Builder) ShouldSeal(hasEligibleMiner func() bool, tick time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == 0 {
		return false
	}
	if hasEligibleMiner() {
		return true
	}
	return time.Since(b.lastSealedAt) >= tick
}

// Seal snapshots the pending queue into a new raw block (HashBlock empty)
// and moves it into the confirming container. The returned block is what
// gets dispatched to a miner.
func (b *Builder) Seal(now time.Time) (Block, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	txs := b.pending
	b.pending = nil
	b.lastSealedAt = now

	prevHash := GenesisPrevHash
	if n := len(b.appended); n > 0 {
		h, err := b.appended[n-1].CanonicalHash()
		if err != nil {
			return Block{}, err
		}
		prevHash = h
	}

	body := Contents{Timestamp: now.Unix(), Transactions: txs}
	raw, err := json.Marshal(body)
	if err != nil {
		return Block{}, err
	}

	blk := Block{
		ID:             b.cachedID,
		PrevHashBlock:  prevHash,
		HashBlock:      "",
		BlockSizeBytes: len(raw),
		Contents:       body,
	}
	b.confirming = append(b.confirming, blk)
	return blk, nil
}

// Confirming returns a snapshot of the blocks currently dispatched and
// awaiting a mined return.
func (b *Builder) Confirming() []Block {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Block, len(b.confirming))
	copy(out, b.confirming)
	return out
}

// Append validates a returned mined block against spec §4.4's field and
// difficulty checks. It implements the "first-matched confirming block"
// policy of spec §9's Open Question as normative: the confirming container
// is scanned from the head, and the loop stops (returning ErrFieldMismatch)
// at the first entry whose id matches returned.ID but whose other fields
// don't — later entries are never examined.
//
// The confirming container is consulted before any id-drift judgment is
// made. A returned id absent from confirming is only a forward drift
// (boundary #3: ErrIDDrift) when it is ahead of cachedID — nothing has ever
// been sealed under it yet. An absent id behind or at cachedID is a late
// duplicate return for a block already appended or dropped (boundary #4:
// the losing side of a dispatch race), reported as ErrNegotiationMissing
// rather than conflated with genuine drift.
//
// On success the matched entry is removed from confirming, the block is
// appended, cachedID is incremented, and a
// NODE_GENERAL_CONSENSUS_CONCLUDE_NEGOTIATION_PROCESSING transaction
// recording minerAddress is returned for the caller to enqueue.
func (b *Builder) Append(returned Block, minerAddress, negotiationID string) (Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, candidate := range b.confirming {
		if candidate.ID != returned.ID {
			continue
		}

		// Head-only policy (spec §9): the first id-matching confirming
		// entry is the only one ever considered; if its other fields
		// disagree, surface a mismatch rather than scanning further.
		if candidate.BlockSizeBytes != returned.BlockSizeBytes ||
			candidate.PrevHashBlock != returned.PrevHashBlock ||
			candidate.Contents.Timestamp != returned.Contents.Timestamp {
			return Transaction{}, xerr.ErrFieldMismatch
		}

		ok, err := returned.VerifyHash(b.difficulty)
		if err != nil {
			return Transaction{}, err
		}
		if !ok {
			return Transaction{}, xerr.ErrInvalidDifficulty
		}

		b.confirming = append(b.confirming[:i], b.confirming[i+1:]...)
		b.appended = append(b.appended, returned)
		b.cachedID++

		tx, txErr := NewTransaction(ActionNodeGeneralConsensusConcludeNegotiationProcessing, NegotiationConcludedPayload{
			MinerAddress:           minerAddress,
			ConsensusNegotiationID: negotiationID,
		})
		if txErr != nil {
			return Transaction{}, txErr
		}

		xlog.Info("block appended", "id", returned.ID, "miner", minerAddress, "hash", returned.HashBlock)
		return tx, nil
	}

	if returned.ID > b.cachedID {
		return Transaction{}, xerr.ErrIDDrift
	}
	return Transaction{}, xerr.ErrNegotiationMissing
}

// AppendedChain returns every block appended so far, in order.
func (b *Builder) AppendedChain() []Block {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Block, len(b.appended))
	copy(out, b.appended)
	return out
}

// Restore replaces the appended chain and cachedID — used by cmd/masterd to
// hydrate the Builder from the chain Store.LoadChain decrypted on startup.
func (b *Builder) Restore(blocks []Block) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appended = blocks
	b.cachedID = uint64(len(blocks))
}
