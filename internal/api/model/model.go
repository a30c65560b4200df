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

// Package model defines the wire DTOs of the /node HTTP surface (spec §6).
package model

import "github.com/rmarasigan-tip/folioblocks-1/internal/chain"

// EstablishRequest is the body of POST /node/establish/receive_echo.
type EstablishRequest struct {
	SourceAddress string `json:"source_address"`
	SourcePort    int    `json:"source_port"`
}

// EstablishResponse is the 200 body of the handshake endpoint.
type EstablishResponse struct {
	CertificateToken string `json:"certificate_token"`
}

// ConsensusFromMasterPayload is the body of
// POST /node/blockchain/receive_raw_block (Master → miner).
type ConsensusFromMasterPayload struct {
	Block                  chain.Block `json:"block"`
	MasterAddress          string      `json:"master_address"`
	ConsensusNegotiationID string      `json:"consensus_negotiation_id"`
}

// ConsensusToMasterPayload is the body of
// POST /node/blockchain/receive_hashed_block (miner → Master).
type ConsensusToMasterPayload struct {
	Block                    chain.Block `json:"block"`
	MinerAddress             string      `json:"miner_address"`
	ConsensusNegotiationID   string      `json:"consensus_negotiation_id"`
	ConsensusSleepExpiration int64       `json:"consensus_sleep_expiration"`
}

// ConsensusSuccessPayload is the 202 body of receive_hashed_block.
type ConsensusSuccessPayload struct {
	AddonConsensusSleepSeconds float64 `json:"addon_consensus_sleep_seconds"`
	ReiterateMasterAddress     string  `json:"reiterate_master_address"`
}

// ChainSnapshot is the 200 body of request_update, matching spec §4.5
// literally: {"current_hash": ..., "content": chain_as_json}.
type ChainSnapshot struct {
	CurrentHash string        `json:"current_hash"`
	Content     []chain.Block `json:"content"`
}

// NodeProperties is the static identity half of NodeInformation.
type NodeProperties struct {
	Role       string `json:"role"`
	Address    string `json:"address"`
	Difficulty int    `json:"difficulty"`
}

// NodeStatistics is the dynamic half of NodeInformation.
type NodeStatistics struct {
	ChainLength    int    `json:"chain_length"`
	AdmittedMiners int    `json:"admitted_miners,omitempty"`
	Status         string `json:"status,omitempty"`
}

// NodeInformation is the 200 body of GET /node/info.
type NodeInformation struct {
	Properties NodeProperties `json:"properties"`
	Statistics NodeStatistics `json:"statistics"`
}
