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

package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/rmarasigan-tip/folioblocks-1/internal/store/model"
)

// Lookups implements internal/handshake's UserLookup, AcceptanceLookup and
// SessionLookup interfaces read-only against the relational store. The
// tables it reads are owned by out-of-scope subsystems (account
// generation, admin acceptance codes, session minting, spec §1); this core
// never writes to them.
type Lookups struct {
	DB *gorm.DB
}

func (l Lookups) EmailForAddress(ctx context.Context, address string) (string, bool, error) {
	var u model.User
	err := l.DB.WithContext(ctx).First(&u, "unique_address = ?", address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return u.Email, true, nil
}

func (l Lookups) EmailForCode(ctx context.Context, code string) (string, bool, error) {
	var a model.AcceptanceCode
	err := l.DB.WithContext(ctx).First(&a, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return a.ToEmail, true, nil
}

func (l Lookups) AddressForToken(ctx context.Context, token string) (string, bool, error) {
	var t model.SessionToken
	err := l.DB.WithContext(ctx).First(&t, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return t.FromUser, true, nil
}
