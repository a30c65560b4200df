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
	"fmt"
	"math/rand"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/google/uuid"
	"gorm.io/gorm"

	apimodel "github.com/rmarasigan-tip/folioblocks-1/internal/api/model"
	"github.com/rmarasigan-tip/folioblocks-1/internal/chain"
	"github.com/rmarasigan-tip/folioblocks-1/internal/cluster"
	"github.com/rmarasigan-tip/folioblocks-1/internal/netclient"
	gmodel "github.com/rmarasigan-tip/folioblocks-1/internal/store/model"
	"github.com/rmarasigan-tip/folioblocks-1/internal/xerr"
	"github.com/rmarasigan-tip/folioblocks-1/internal/xlog"
)

// Config bundles the tunables Dispatcher needs beyond its collaborators.
type Config struct {
	SelfAddress       string
	BlockTimerSeconds int
	Difficulty        int
	RetryAttempts     int
	StaleMultiplier   int
}

// dispatch tracks one in-flight negotiation's bookkeeping, kept alongside
// the persisted row so reclaimStale can act without a relational read.
type dispatch struct {
	miner string
	block uint64
	at    time.Time
}

// Dispatcher is the Consensus Dispatcher (C5): it picks eligible miners,
// dispatches raw blocks, tracks negotiations, and validates returned mined
// blocks (spec §4.5).
type Dispatcher struct {
	Registry *cluster.Registry
	Builder  *chain.Builder

	negotiat *negotiations
	db       *gorm.DB
	client   *netclient.Client

	difficulty        int
	selfAddress       string
	blockTimerSeconds int
	staleHorizon      time.Duration

	mu        sync.Mutex
	inFlight  map[string]dispatch // consensus_negotiation_id -> bookkeeping
	completed *lru.Cache          // negotiation id -> struct{}, guards re-confirm races
}

// New builds a Dispatcher.
func New(registry *cluster.Registry, builder *chain.Builder, db *gorm.DB, cfg Config) *Dispatcher {
	completed, _ := lru.New(256)
	return &Dispatcher{
		Registry:          registry,
		Builder:           builder,
		negotiat:          newNegotiations(db),
		db:                db,
		client:            netclient.New(cfg.RetryAttempts),
		difficulty:        cfg.Difficulty,
		selfAddress:       cfg.SelfAddress,
		blockTimerSeconds: cfg.BlockTimerSeconds,
		staleHorizon:      time.Duration(cfg.StaleMultiplier*cfg.BlockTimerSeconds) * time.Second,
		inFlight:          make(map[string]dispatch),
		completed:         completed,
	}
}

// Hydrate reaps orphaned ON_PROGRESS negotiation rows left over from an
// unclean shutdown. The confirming container lives only in memory, so a
// negotiation that was ON_PROGRESS for an already-appended block id when
// the process died can never be completed and would otherwise linger in
// the table forever. appendedBlockIDs is every block id already on the
// restored chain. Called once at startup, before the scheduler begins
// ticking.
func (d *Dispatcher) Hydrate(appendedBlockIDs []uint64) error {
	for _, id := range appendedBlockIDs {
		row, ok, err := d.negotiat.InProgressForBlock(id)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := d.negotiat.DeleteStale(row.ConsensusNegotiationID); err != nil {
			return err
		}
		xlog.Info("reaped orphaned negotiation after restart", "negotiation", row.ConsensusNegotiationID, "block", id)
	}
	return nil
}

// Tick runs one scheduler iteration: promote expired sleepers, seal a new
// block if the policy says to, reclaim stale negotiations, and dispatch the
// oldest undispatched confirming block to a free miner. This is the single
// driving goroutine of spec §5's cooperative scheduler.
func (d *Dispatcher) Tick(ctx context.Context) error {
	now := time.Now()
	d.Registry.PromoteExpiredSleepers(now)
	d.reclaimStale(now)

	if d.Builder.ShouldSeal(func() bool { return d.Registry.HasEligibleMiner(now) }, time.Duration(d.blockTimerSeconds)*time.Second) {
		if _, err := d.Builder.Seal(now); err != nil {
			return err
		}
	}

	return d.dispatchNext(ctx)
}

// dispatchNext implements spec §4.5 "Dispatch": pick a miner for the oldest
// confirming block not already under negotiation, mint a negotiation id,
// persist it, POST the raw block, and mark the miner MINING on 202.
func (d *Dispatcher) dispatchNext(ctx context.Context) error {
	target, ok := d.nextUndispatchedBlock()
	if !ok {
		return nil
	}

	minerAddr, ok := d.Registry.PickEligibleMiner(time.Now())
	if !ok {
		return nil
	}

	node, ok := d.Registry.Get(minerAddr)
	if !ok {
		return xerr.ErrNoEligibleMiner
	}

	negotiationID := uuid.NewString()
	if err := d.negotiat.Begin(negotiationID, target.ID, minerAddr); err != nil {
		return err
	}

	d.mu.Lock()
	d.inFlight[negotiationID] = dispatch{miner: minerAddr, block: target.ID, at: time.Now()}
	d.mu.Unlock()

	url := fmt.Sprintf("http://%s:%d/node/blockchain/receive_raw_block", node.SourceAddress, node.SourcePort)
	payload := apimodel.ConsensusFromMasterPayload{
		Block:                  target,
		MasterAddress:          d.selfAddress,
		ConsensusNegotiationID: negotiationID,
	}

	status, err := d.client.PostJSON(ctx, url, nil, payload, nil)
	if err != nil || status != 202 {
		xlog.Warn("dispatch failed, marking miner unreachable", "miner", minerAddr, "err", err, "status", status)
		d.mu.Lock()
		delete(d.inFlight, negotiationID)
		d.mu.Unlock()
		if markErr := d.Registry.MarkUnreachable(minerAddr); markErr != nil {
			return markErr
		}
		return d.negotiat.DeleteStale(negotiationID)
	}

	return d.Registry.MarkMining(minerAddr)
}

// nextUndispatchedBlock returns the oldest confirming block with no
// in-flight negotiation tracked against it.
func (d *Dispatcher) nextUndispatchedBlock() (chain.Block, bool) {
	d.mu.Lock()
	dispatched := make(map[uint64]bool, len(d.inFlight))
	for _, v := range d.inFlight {
		dispatched[v.block] = true
	}
	d.mu.Unlock()

	for _, blk := range d.Builder.Confirming() {
		if !dispatched[blk.ID] {
			return blk, true
		}
	}
	return chain.Block{}, false
}

// reclaimStale drops bookkeeping and the persisted row for any negotiation
// whose dispatch age exceeds the stale horizon, and marks its miner
// NOT_REACHABLE so the next dispatchNext call retargets the same block to
// a different miner (spec §4.5 "Failure").
func (d *Dispatcher) reclaimStale(now time.Time) {
	cutoff := now.Add(-d.staleHorizon)

	d.mu.Lock()
	var stale []string
	var miners []string
	for id, v := range d.inFlight {
		if v.at.Before(cutoff) {
			stale = append(stale, id)
			miners = append(miners, v.miner)
		}
	}
	for _, id := range stale {
		delete(d.inFlight, id)
	}
	d.mu.Unlock()

	for i, id := range stale {
		if err := d.Registry.MarkUnreachable(miners[i]); err != nil {
			xlog.Warn("failed to mark stale negotiation's miner unreachable", "negotiation", id, "miner", miners[i], "err", err)
		}
		if err := d.negotiat.DeleteStale(id); err != nil {
			xlog.Warn("failed to delete stale negotiation", "negotiation", id, "err", err)
		}
	}
}

// Confirm implements spec §4.5 "Confirm": validate the returned block
// against the confirming container and append it, atomically mark the
// negotiation COMPLETED and the miner CURRENTLY_SLEEPING until now plus the
// block timer plus a randomized addon, and emit the CONSENSUS internal
// transaction.
func (d *Dispatcher) Confirm(ctx context.Context, payload apimodel.ConsensusToMasterPayload) (apimodel.ConsensusSuccessPayload, error) {
	if _, dup := d.completed.Get(payload.ConsensusNegotiationID); dup {
		return apimodel.ConsensusSuccessPayload{}, xerr.ErrNegotiationMissing
	}

	concludeTx, err := d.Builder.Append(payload.Block, payload.MinerAddress, payload.ConsensusNegotiationID)
	if err != nil {
		return apimodel.ConsensusSuccessPayload{}, err
	}

	addon := rand.Float64() * 2 * float64(d.blockTimerSeconds)
	sleepUntil := time.Now().Add(time.Duration(d.blockTimerSeconds)*time.Second + time.Duration(addon*float64(time.Second)))

	err = d.db.Transaction(func(tx *gorm.DB) error {
		if err := d.negotiat.Complete(tx, payload.ConsensusNegotiationID); err != nil {
			return err
		}
		return tx.Model(&gmodel.AssociatedNode{}).
			Where("user_address = ?", payload.MinerAddress).
			Updates(map[string]interface{}{
				"status":                     string(cluster.StatusSleeping),
				"consensus_sleep_expiration": sleepUntil,
			}).Error
	})
	if err != nil {
		return apimodel.ConsensusSuccessPayload{}, err
	}

	if err := d.Registry.MarkSleeping(payload.MinerAddress, sleepUntil); err != nil {
		xlog.Warn("registry out of sync with relational state", "miner", payload.MinerAddress, "err", err)
	}

	d.mu.Lock()
	delete(d.inFlight, payload.ConsensusNegotiationID)
	d.mu.Unlock()
	d.completed.Add(payload.ConsensusNegotiationID, struct{}{})

	d.Builder.Enqueue(concludeTx)

	consensusTx, err := chain.NewTransaction(chain.ActionNodeGeneralConsensus, chain.ConsensusPayload{
		MinerAddress:           payload.MinerAddress,
		MasterAddress:          d.selfAddress,
		ConsensusNegotiationID: payload.ConsensusNegotiationID,
	})
	if err != nil {
		return apimodel.ConsensusSuccessPayload{}, err
	}
	d.Builder.Enqueue(consensusTx)

	xlog.Info("negotiation confirmed", "miner", payload.MinerAddress, "block", payload.Block.ID, "addon", addon)

	return apimodel.ConsensusSuccessPayload{
		AddonConsensusSleepSeconds: addon,
		ReiterateMasterAddress:     d.selfAddress,
	}, nil
}
