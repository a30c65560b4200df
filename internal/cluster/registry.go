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

// Package cluster implements the Cluster Registry (C2): the admitted-miner
// roster, its availability bookkeeping, and the deterministic dispatch pick.
package cluster

import (
	"sort"
	"sync"
	"time"

	"github.com/rmarasigan-tip/folioblocks-1/internal/xerr"
)

// Status is one of an AssociatedNode's lifecycle states (spec §3).
type Status string

const (
	StatusAvailable  Status = "CURRENTLY_AVAILABLE"
	StatusMining     Status = "CURRENTLY_MINING"
	StatusSleeping   Status = "CURRENTLY_SLEEPING"
	StatusUnreachable Status = "NOT_REACHABLE"
)

// Node is one admitted miner (spec §3 AssociatedNode).
type Node struct {
	UserAddress              string
	Certificate              []byte // opaque encrypted blob, see internal/handshake
	SourceAddress            string
	SourcePort               int
	Status                   Status
	ConsensusSleepExpiration time.Time
}

// Registry tracks admitted miners in memory, mirroring the associated_nodes
// table the relational store persists them to.
type Registry struct {
	mu      sync.Mutex
	limit   int
	byAddr  map[string]*Node
}

// NewRegistry builds a Registry capped at limit concurrently-admitted
// miners (MASTER_NODE_LIMIT_CONNECTED_NODES, spec §4.2).
func NewRegistry(limit int) *Registry {
	return &Registry{limit: limit, byAddr: make(map[string]*Node)}
}

// AdmitMiner inserts a new row in CURRENTLY_AVAILABLE. Returns
// xerr.ErrPoolFull once active (non-NOT_REACHABLE) membership reaches the
// configured limit.
func (r *Registry) AdmitMiner(address string, certificate []byte, sourceAddress string, sourcePort int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byAddr[address]; !exists {
		active := 0
		for _, n := range r.byAddr {
			if n.Status != StatusUnreachable {
				active++
			}
		}
		if active >= r.limit {
			return xerr.ErrPoolFull
		}
	}

	r.byAddr[address] = &Node{
		UserAddress:   address,
		Certificate:   certificate,
		SourceAddress: sourceAddress,
		SourcePort:    sourcePort,
		Status:        StatusAvailable,
	}
	return nil
}

// PickEligibleMiner returns the address of one miner with
// status==CURRENTLY_AVAILABLE and consensus_sleep_expiration<=now. Ties
// break on smallest consensus_sleep_expiration, then lexicographically
// smallest address, so the choice is deterministic (spec §4.2).
func (r *Registry) PickEligibleMiner(now time.Time) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var candidates []*Node
	for _, n := range r.byAddr {
		if n.Status == StatusAvailable && !n.ConsensusSleepExpiration.After(now) {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].ConsensusSleepExpiration.Equal(candidates[j].ConsensusSleepExpiration) {
			return candidates[i].ConsensusSleepExpiration.Before(candidates[j].ConsensusSleepExpiration)
		}
		return candidates[i].UserAddress < candidates[j].UserAddress
	})

	return candidates[0].UserAddress, true
}

// HasEligibleMiner is the callback Builder.ShouldSeal consumes, keeping C4
// from reaching into C2 directly.
func (r *Registry) HasEligibleMiner(now time.Time) bool {
	_, ok := r.PickEligibleMiner(now)
	return ok
}

// MarkMining transitions address into CURRENTLY_MINING.
func (r *Registry) MarkMining(address string) error {
	return r.transition(address, func(n *Node) { n.Status = StatusMining })
}

// MarkSleeping transitions address into CURRENTLY_SLEEPING until the given
// instant.
func (r *Registry) MarkSleeping(address string, until time.Time) error {
	return r.transition(address, func(n *Node) {
		n.Status = StatusSleeping
		n.ConsensusSleepExpiration = until
	})
}

// MarkAvailable transitions address back into CURRENTLY_AVAILABLE, used
// once ConsensusSleepExpiration has elapsed.
func (r *Registry) MarkAvailable(address string) error {
	return r.transition(address, func(n *Node) { n.Status = StatusAvailable })
}

// MarkUnreachable transitions address into NOT_REACHABLE after a dispatch
// timeout/error exhausts its retry budget.
func (r *Registry) MarkUnreachable(address string) error {
	return r.transition(address, func(n *Node) { n.Status = StatusUnreachable })
}

func (r *Registry) transition(address string, mutate func(*Node)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.byAddr[address]
	if !ok {
		return xerr.New(xerr.KindProtocol, "cluster.transition", nil)
	}
	mutate(n)
	return nil
}

// PromoteExpiredSleepers walks every CURRENTLY_SLEEPING node whose deadline
// has passed and marks it CURRENTLY_AVAILABLE (spec §4.5 state diagram's
// wall-clock transition), returning how many were promoted.
func (r *Registry) PromoteExpiredSleepers(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, node := range r.byAddr {
		if node.Status == StatusSleeping && !node.ConsensusSleepExpiration.After(now) {
			node.Status = StatusAvailable
			n++
		}
	}
	return n
}

// Get returns a copy of the node's state, if admitted.
func (r *Registry) Get(address string) (Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.byAddr[address]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// CountMining returns the number of nodes currently in CURRENTLY_MINING —
// the count the invariant "never exceeds the size of the confirming-block
// container" is stated over (spec §8 invariant 3).
func (r *Registry) CountMining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, node := range r.byAddr {
		if node.Status == StatusMining {
			n++
		}
	}
	return n
}

// Len returns the number of admitted nodes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byAddr)
}
