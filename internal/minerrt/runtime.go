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

// Package minerrt is the Archival Miner Runtime (C7): the side of the
// protocol that receives raw blocks, mines them, and posts the result back
// (spec §4.4 "Mining", §4.6 "Sync").
package minerrt

import (
	"context"
	"fmt"
	"time"

	apimodel "github.com/rmarasigan-tip/folioblocks-1/internal/api/model"
	"github.com/rmarasigan-tip/folioblocks-1/internal/netclient"
	"github.com/rmarasigan-tip/folioblocks-1/internal/store"
	"github.com/rmarasigan-tip/folioblocks-1/internal/xerr"
	"github.com/rmarasigan-tip/folioblocks-1/internal/xlog"
)

// Runtime is one Archival Miner node's mining/resync side.
type Runtime struct {
	SelfAddress   string
	MasterAddress string
	Difficulty    int
	Client        *netclient.Client
	Store         *store.Store
}

// New builds a Runtime.
func New(selfAddress, masterAddress string, difficulty int, client *netclient.Client, s *store.Store) *Runtime {
	return &Runtime{
		SelfAddress:   selfAddress,
		MasterAddress: masterAddress,
		Difficulty:    difficulty,
		Client:        client,
		Store:         s,
	}
}

// ReceiveRawBlock implements the miner side of POST
// /node/blockchain/receive_raw_block: it kicks off the mine task in the
// background and returns immediately, matching the Master's expectation of
// a fast 202 (spec §4.5 step 4-5).
func (r *Runtime) ReceiveRawBlock(payload apimodel.ConsensusFromMasterPayload) {
	go r.mineAndReturn(payload)
}

// mineAndReturn runs the nonce search and posts the mined block back to the
// Master (spec §4.4 "Mining").
func (r *Runtime) mineAndReturn(payload apimodel.ConsensusFromMasterPayload) {
	ctx := context.Background()

	mined, err := Mine(ctx, payload.Block, r.Difficulty)
	if err != nil {
		xlog.Warn("mining aborted", "block", payload.Block.ID, "err", err)
		return
	}

	ret := apimodel.ConsensusToMasterPayload{
		Block:                    mined,
		MinerAddress:             r.SelfAddress,
		ConsensusNegotiationID:   payload.ConsensusNegotiationID,
		ConsensusSleepExpiration: time.Now().Unix(),
	}

	url := fmt.Sprintf("%s/node/blockchain/receive_hashed_block", r.MasterAddress)
	var out apimodel.ConsensusSuccessPayload
	status, err := r.Client.PostJSON(ctx, url, nil, ret, &out)
	if err != nil {
		xlog.Warn("failed to return mined block", "block", mined.ID, "err", err)
		return
	}
	if status == 406 {
		xlog.Warn("mined block rejected as id drift, triggering resync", "block", mined.ID)
		if resyncErr := r.Resync(ctx); resyncErr != nil {
			xlog.Error("resync failed", "err", resyncErr)
		}
		return
	}
	if status == 204 {
		xlog.Info("mined block lost the race, another miner's return was accepted first", "block", mined.ID)
		return
	}

	xlog.Info("mined block accepted", "block", mined.ID, "addon", out.AddonConsensusSleepSeconds)
}

// Establish dials the Master's POST /node/establish/receive_echo (spec
// §4.3): the miner's side of the handshake C3 serves, handing back the
// durable association certificate it must persist for every future call.
func (r *Runtime) Establish(ctx context.Context, sessionToken, acceptanceCode string, sourcePort int) (string, error) {
	body := apimodel.EstablishRequest{SourceAddress: r.SelfAddress, SourcePort: sourcePort}
	headers := map[string]string{
		"X-Source":     r.SelfAddress,
		"X-Session":    sessionToken,
		"X-Acceptance": acceptanceCode,
	}

	var out apimodel.EstablishResponse
	url := fmt.Sprintf("%s/node/establish/receive_echo", r.MasterAddress)
	status, err := r.Client.PostJSON(ctx, url, headers, body, &out)
	if err != nil {
		return "", err
	}
	if status != 200 {
		return "", xerr.New(xerr.KindAuthentication, "minerrt.Establish", fmt.Errorf("master rejected handshake with status %d", status))
	}
	return out.CertificateToken, nil
}

// Resync is the miner's chain recovery path (spec §4.6 "Sync"): fetch the
// Master's chain snapshot, verify the Master's own hash still matches what
// it just sent, then reseal the local chain file from the snapshot. Its only
// caller is mineAndReturn, on a 406 answer from the Master; a chain
// signature mismatch found by store.OpenStore at startup does not call it.
func (r *Runtime) Resync(ctx context.Context) error {
	var snapshot apimodel.ChainSnapshot
	url := fmt.Sprintf("%s/node/blockchain/request_update", r.MasterAddress)
	if _, err := r.Client.PostJSON(ctx, url, nil, struct{}{}, &snapshot); err != nil {
		return err
	}

	verifyURL := fmt.Sprintf("%s/node/blockchain/verify_hash", r.MasterAddress)
	status, err := r.Client.PostJSON(ctx, verifyURL, map[string]string{"X-Hash": snapshot.CurrentHash}, struct{}{}, nil)
	if err != nil {
		return err
	}
	if status != 200 {
		return xerr.New(xerr.KindIntegrity, "minerrt.Resync", fmt.Errorf("master hash verification failed with status %d", status))
	}

	return r.Store.SealChain(snapshot.Content)
}
