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

// Package xerr defines the consensus-core error taxonomy: a small set of
// kinds that every boundary (HTTP handler, background task) maps to a
// concrete outcome instead of propagating raw errors.
package xerr

import (
	"errors"
	"fmt"
)

// Kind is one of the error taxonomy buckets of the consensus core.
type Kind int

const (
	// KindConfiguration covers missing/corrupt key material or file layout.
	KindConfiguration Kind = iota
	// KindIntegrity covers a chain signature mismatch.
	KindIntegrity
	// KindAuthentication covers handshake lookup failures.
	KindAuthentication
	// KindProtocol covers block/id mismatches at confirmation time.
	KindProtocol
	// KindTransient covers peer unreachability and timeouts.
	KindTransient
	// KindFatalState covers invariant violations: id collisions, negative
	// ids, duplicated certificates.
	KindFatalState
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindIntegrity:
		return "integrity"
	case KindAuthentication:
		return "authentication"
	case KindProtocol:
		return "protocol"
	case KindTransient:
		return "transient"
	case KindFatalState:
		return "fatal_state"
	default:
		return "unknown"
	}
}

// Error is a tagged error value. Callers should match on Kind, not on
// message text.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a tagged Error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Sentinel values used across packages where no extra wrapping is needed.
var (
	ErrUnknownAncestor    = errors.New("unknown ancestor block")
	ErrInvalidDifficulty  = errors.New("hash does not meet difficulty target")
	ErrFieldMismatch      = errors.New("returned block fields do not match confirming copy")
	ErrIDDrift            = errors.New("returned block id does not match cached block id")
	ErrNoEligibleMiner    = errors.New("no eligible miner available")
	ErrNegotiationMissing = errors.New("no negotiation in progress for block")
	ErrPoolFull           = errors.New("cluster registry is at capacity")
	ErrChainUninitialized = errors.New("chain not yet initialized")
)
