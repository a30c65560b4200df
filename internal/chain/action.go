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

package chain

import "encoding/json"

// Action is the closed enumeration of transaction causes. The wire format
// carries the integer tag; Action is the typed side of that tagged union.
type Action int

const (
	ActionGenesisInitialization Action = iota
	ActionNodeGeneralConsensusInit
	ActionNodeGeneralConsensusBlockSync
	ActionNodeGeneralConsensusConcludeNegotiationProcessing
	ActionNodeGeneralConsensus
	ActionAccountGenerated
	ActionDocumentIssuance
)

var actionNames = map[Action]string{
	ActionGenesisInitialization:                              "GENESIS_INITIALIZATION",
	ActionNodeGeneralConsensusInit:                           "NODE_GENERAL_CONSENSUS_INIT",
	ActionNodeGeneralConsensusBlockSync:                      "NODE_GENERAL_CONSENSUS_BLOCK_SYNC",
	ActionNodeGeneralConsensusConcludeNegotiationProcessing:  "NODE_GENERAL_CONSENSUS_CONCLUDE_NEGOTIATION_PROCESSING",
	ActionNodeGeneralConsensus:                               "CONSENSUS",
	ActionAccountGenerated:                                   "ACCOUNT_GENERATED",
	ActionDocumentIssuance:                                   "DOCUMENT_ISSUANCE",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "UNKNOWN_ACTION"
}

// Transaction carries an action tag plus a payload whose shape is
// determined by the tag (spec §3). The payload is kept as raw JSON here
// and resolved to a concrete Go type by the typed Decode* accessors below,
// each of which checks the Action tag before decoding.
type Transaction struct {
	Action    Action          `json:"action"`
	RawPayload json.RawMessage `json:"payload"`
}

// GenesisPayload is the payload of ActionGenesisInitialization.
type GenesisPayload struct {
	Message string `json:"message"`
}

// NodeInitPayload is the payload of ActionNodeGeneralConsensusInit,
// recorded when C3 admits a miner.
type NodeInitPayload struct {
	MinerAddress  string `json:"miner_address"`
	SourceAddress string `json:"source_address"`
	SourcePort    int    `json:"source_port"`
}

// NegotiationConcludedPayload is the payload of
// ActionNodeGeneralConsensusConcludeNegotiationProcessing, recorded when
// C4 appends a confirmed block.
type NegotiationConcludedPayload struct {
	MinerAddress           string `json:"miner_address"`
	ConsensusNegotiationID string `json:"consensus_negotiation_id"`
}

// ConsensusPayload is the payload of ActionNodeGeneralConsensus, recorded
// by C5 on every completed confirm (spec §4.5 step 8).
type ConsensusPayload struct {
	MinerAddress           string `json:"miner_address"`
	MasterAddress           string `json:"master_address"`
	ConsensusNegotiationID string `json:"consensus_negotiation_id"`
}

// NewTransaction marshals payload and tags it with action. Callers never
// hand-build RawPayload directly.
func NewTransaction(action Action, payload interface{}) (Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{Action: action, RawPayload: raw}, nil
}

// DecodeGenesis, DecodeNodeInit, DecodeNegotiationConcluded, and
// DecodeConsensus resolve RawPayload back to its typed shape; each returns
// an error if called against a Transaction of the wrong Action, enforcing
// the exhaustive tagged-union discipline spec §9 asks for at append time.
func (t Transaction) DecodeGenesis() (GenesisPayload, error) {
	var p GenesisPayload
	if t.Action != ActionGenesisInitialization {
		return p, errWrongAction(ActionGenesisInitialization, t.Action)
	}
	err := json.Unmarshal(t.RawPayload, &p)
	return p, err
}

func (t Transaction) DecodeNodeInit() (NodeInitPayload, error) {
	var p NodeInitPayload
	if t.Action != ActionNodeGeneralConsensusInit {
		return p, errWrongAction(ActionNodeGeneralConsensusInit, t.Action)
	}
	err := json.Unmarshal(t.RawPayload, &p)
	return p, err
}

func (t Transaction) DecodeNegotiationConcluded() (NegotiationConcludedPayload, error) {
	var p NegotiationConcludedPayload
	if t.Action != ActionNodeGeneralConsensusConcludeNegotiationProcessing {
		return p, errWrongAction(ActionNodeGeneralConsensusConcludeNegotiationProcessing, t.Action)
	}
	err := json.Unmarshal(t.RawPayload, &p)
	return p, err
}

func (t Transaction) DecodeConsensus() (ConsensusPayload, error) {
	var p ConsensusPayload
	if t.Action != ActionNodeGeneralConsensus {
		return p, errWrongAction(ActionNodeGeneralConsensus, t.Action)
	}
	err := json.Unmarshal(t.RawPayload, &p)
	return p, err
}

func errWrongAction(want, have Action) error {
	return &wrongActionError{want: want, have: have}
}

type wrongActionError struct {
	want, have Action
}

func (e *wrongActionError) Error() string {
	return "chain: expected action " + e.want.String() + ", got " + e.have.String()
}
