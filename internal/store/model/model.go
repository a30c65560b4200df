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

// Package model defines the gorm-backed relational schema of the sealed
// store: users/tokens/acceptance codes (read-only boundary tables owned by
// out-of-scope subsystems) plus the tables this core owns outright.
package model

import "time"

// User is the narrow slice of the out-of-scope account table this core
// reads from during the handshake (spec §4.3 step 1).
type User struct {
	UniqueAddress string `gorm:"primaryKey;column:unique_address"`
	Email         string `gorm:"column:email;index"`
}

func (User) TableName() string { return "users" }

// AcceptanceCode is the narrow slice of the out-of-scope admin-issued
// one-time-code table (spec §4.3 step 2).
type AcceptanceCode struct {
	Code    string `gorm:"primaryKey;column:code"`
	ToEmail string `gorm:"column:to_email;index"`
}

func (AcceptanceCode) TableName() string { return "acceptance_codes" }

// SessionToken is the narrow slice of the out-of-scope generic
// authenticated session store (spec §4.3 step 3, spec §1 exclusion).
type SessionToken struct {
	Token    string `gorm:"primaryKey;column:token"`
	FromUser string `gorm:"column:from_user;index"`
}

func (SessionToken) TableName() string { return "tokens" }

// AssociatedNode is the persisted mirror of one cluster.Node (spec §3).
type AssociatedNode struct {
	UserAddress              string    `gorm:"primaryKey;column:user_address"`
	Certificate              []byte    `gorm:"column:certificate"`
	SourceAddress            string    `gorm:"column:source_address"`
	SourcePort               int       `gorm:"column:source_port"`
	Status                   string    `gorm:"column:status"`
	ConsensusSleepExpiration time.Time `gorm:"column:consensus_sleep_expiration"`
}

func (AssociatedNode) TableName() string { return "associated_nodes" }

// ConsensusNegotiation is one dispatch/mine/return cycle (spec §3).
type ConsensusNegotiation struct {
	ConsensusNegotiationID string `gorm:"primaryKey;column:consensus_negotiation_id"`
	BlockNoRef             uint64 `gorm:"column:block_no_ref;index"`
	PeerAddress            string `gorm:"column:peer_address"`
	Status                 string `gorm:"column:status"`
}

func (ConsensusNegotiation) TableName() string { return "consensus_negotiation" }

// FileSignature maps a persisted file name to the SHA-256 of its cleartext
// contents (spec §3 integrity invariant).
type FileSignature struct {
	FileName string `gorm:"primaryKey;column:file_name"`
	SHA256   string `gorm:"column:sha256"`
}

func (FileSignature) TableName() string { return "file_signatures" }

// TxContentMapping lets an out-of-scope reader (explorer) resolve a
// transaction's typed payload from its integer action tag without
// re-parsing the whole chain (SPEC_FULL §3 expansion).
type TxContentMapping struct {
	TxHash      string `gorm:"primaryKey;column:tx_hash"`
	BlockID     uint64 `gorm:"column:block_id;index"`
	Action      int    `gorm:"column:action"`
	PayloadJSON string `gorm:"column:payload_json"`
}

func (TxContentMapping) TableName() string { return "tx_content_mappings" }

// AllModels lists every table for gorm AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&AcceptanceCode{},
		&SessionToken{},
		&AssociatedNode{},
		&ConsensusNegotiation{},
		&FileSignature{},
		&TxContentMapping{},
	}
}
