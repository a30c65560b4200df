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

package netclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmarasigan-tip/folioblocks-1/internal/xerr"
)

func TestPostJSONSucceedsFirstTry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"ok": "true"})
	}))
	defer srv.Close()

	c := New(3)
	c.BaseWait = time.Millisecond
	var out map[string]string
	status, err := c.PostJSON(context.Background(), srv.URL, nil, map[string]string{"hi": "there"}, &out)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "true", out["ok"])
}

func TestPostJSONRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := New(5)
	c.BaseWait = time.Millisecond
	status, err := c.PostJSON(context.Background(), srv.URL, nil, map[string]string{}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPostJSONDoesNotRetry4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := New(5)
	c.BaseWait = time.Millisecond
	status, err := c.PostJSON(context.Background(), srv.URL, nil, map[string]string{}, nil)
	require.NoError(t, err, "a 4xx is returned to the caller as a status, not as an error")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPostJSONExhaustsRetryBudgetAsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(2)
	c.BaseWait = time.Millisecond
	_, err := c.PostJSON(context.Background(), srv.URL, nil, map[string]string{}, nil)
	require.Error(t, err)
	assert.True(t, xerr.Is(err, xerr.KindTransient))
}
