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

package minerrt

import (
	"context"

	"github.com/rmarasigan-tip/folioblocks-1/internal/chain"
)

// Mine searches monotonically increasing nonces, recomputing the canonical
// SHA-256 each time, until the leading-zero difficulty target is met (spec
// §4.4 "Mining", testable property #2: "the smallest nonce such that the
// sha256 prefix is 0000"). It stops early if ctx is cancelled.
func Mine(ctx context.Context, raw chain.Block, difficulty int) (chain.Block, error) {
	candidate := raw
	candidate.HashBlock = ""

	for nonce := uint64(0); ; nonce++ {
		select {
		case <-ctx.Done():
			return chain.Block{}, ctx.Err()
		default:
		}

		candidate.Nonce = nonce
		hash, err := candidate.CanonicalHash()
		if err != nil {
			return chain.Block{}, err
		}
		if meetsDifficulty(hash, difficulty) {
			candidate.HashBlock = hash
			return candidate, nil
		}
	}
}

func meetsDifficulty(hash string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if len(hash) < difficulty {
		return false
	}
	for i := 0; i < difficulty; i++ {
		if hash[i] != '0' {
			return false
		}
	}
	return true
}
