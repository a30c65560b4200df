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

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// GenesisPrevHash is the fixed sentinel prev_hash_block of block 0: 64
// '0' hex digits, the width of a SHA-256 hex digest.
var GenesisPrevHash = strings.Repeat("0", 64)

// Contents is the sealed body of a Block: the transaction set plus the
// timestamp the Master stamped at build time. Both fields are immutable
// once id <= max_appended_id (spec §3 invariant).
type Contents struct {
	Timestamp    int64         `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
}

// Block is one entry of the chain. HashBlock is empty on the "raw" block
// dispatched to a miner and populated on the mined return (spec §4.4).
type Block struct {
	ID             uint64   `json:"id"`
	PrevHashBlock  string   `json:"prev_hash_block"`
	HashBlock      string   `json:"hash_block"`
	BlockSizeBytes int      `json:"block_size_bytes"`
	Nonce          uint64   `json:"nonce"`
	Contents       Contents `json:"contents"`
}

// canonical returns the JSON serialization of the block used for hashing,
// with HashBlock cleared (spec §6 "Block hash").
func (b Block) canonical() ([]byte, error) {
	clone := b
	clone.HashBlock = ""
	return json.Marshal(clone)
}

// CanonicalHash computes SHA-256 over the canonical serialization (HashBlock
// field cleared), returned as lowercase hex.
func (b Block) CanonicalHash() (string, error) {
	raw, err := b.canonical()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// MeetsDifficulty reports whether HashBlock begins with difficulty leading
// zero hex digits.
func (b Block) MeetsDifficulty(difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if len(b.HashBlock) < difficulty {
		return false
	}
	return strings.Count(b.HashBlock[:difficulty], "0") == difficulty
}

// VerifyHash reports whether HashBlock is both difficulty-matching and the
// true SHA-256 of the canonical serialization (spec §4.4 "Appending").
func (b Block) VerifyHash(difficulty int) (bool, error) {
	if !b.MeetsDifficulty(difficulty) {
		return false, nil
	}
	want, err := b.CanonicalHash()
	if err != nil {
		return false, err
	}
	return want == b.HashBlock, nil
}

// NewGenesisRaw builds the unsealed genesis block (id=0), ready to be
// dispatched to a miner the same as any other raw block.
func NewGenesisRaw(now time.Time, txs []Transaction) Block {
	body := Contents{Timestamp: now.Unix(), Transactions: txs}
	raw, _ := json.Marshal(body)
	return Block{
		ID:             0,
		PrevHashBlock:  GenesisPrevHash,
		HashBlock:      "",
		BlockSizeBytes: len(raw),
		Contents:       body,
	}
}
