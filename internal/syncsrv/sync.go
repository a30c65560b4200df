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

// Package syncsrv implements the Sync Server (C6): the chain-snapshot and
// hash-verification endpoints a miner's resync client polls after an
// IntegrityError (spec §4.6).
package syncsrv

import (
	"encoding/json"

	"github.com/rmarasigan-tip/folioblocks-1/internal/api/model"
	"github.com/rmarasigan-tip/folioblocks-1/internal/chain"
)

// ChainReader is the narrow slice of internal/store.Store this server
// needs: the current cleartext chain and its SHA-256.
type ChainReader interface {
	ChainCleartextSHA256() (hash string, cleartext []byte, err error)
}

// Server answers chain-sync requests against a ChainReader.
type Server struct {
	Chain ChainReader
}

// New builds a Server.
func New(chain ChainReader) *Server {
	return &Server{Chain: chain}
}

// RequestUpdate implements spec §4.6 "request_update": return the current
// hash and the full block array.
func (s *Server) RequestUpdate() (model.ChainSnapshot, error) {
	hash, cleartext, err := s.Chain.ChainCleartextSHA256()
	if err != nil {
		return model.ChainSnapshot{}, err
	}

	var doc struct {
		Chain []chain.Block `json:"chain"`
	}
	if err := json.Unmarshal(cleartext, &doc); err != nil {
		return model.ChainSnapshot{}, err
	}

	return model.ChainSnapshot{CurrentHash: hash, Content: doc.Chain}, nil
}

// VerifyHash implements spec §4.6 "verify_hash": reports whether candidate
// matches the server's current chain hash.
func (s *Server) VerifyHash(candidate string) (bool, error) {
	hash, _, err := s.Chain.ChainCleartextSHA256()
	if err != nil {
		return false, err
	}
	return hash == candidate, nil
}
