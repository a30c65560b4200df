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

// Package netclient is the retrying outbound HTTP client used for
// Master-to-miner dispatch and miner-to-Master callbacks (spec §5).
package netclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rmarasigan-tip/folioblocks-1/internal/xerr"
	"github.com/rmarasigan-tip/folioblocks-1/internal/xlog"
)

// Client POSTs JSON bodies with a fixed retry budget and exponential
// back-off, per spec §5 ("3–5 is a sensible default for ordinary
// dispatch").
type Client struct {
	HTTP     *http.Client
	Attempts int
	BaseWait time.Duration
}

// New builds a Client with the given retry attempts (spec
// DispatchRetryAttempts, default 4).
func New(attempts int) *Client {
	return &Client{
		HTTP:     &http.Client{Timeout: 10 * time.Second},
		Attempts: attempts,
		BaseWait: 200 * time.Millisecond,
	}
}

// PostJSON marshals body, POSTs it to url with the given headers, retrying
// on transport errors and 5xx responses with exponential back-off. After
// the retry budget is exhausted it returns an xerr.KindTransient error so
// the caller can mark the peer NOT_REACHABLE.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body interface{}, out interface{}) (status int, err error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}

	var lastErr error
	wait := c.BaseWait

	for attempt := 1; attempt <= c.Attempts; attempt++ {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
		if reqErr != nil {
			return 0, reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, doErr := c.HTTP.Do(req)
		if doErr != nil {
			lastErr = doErr
			xlog.Warn("dispatch attempt failed", "url", url, "attempt", attempt, "err", doErr)
			time.Sleep(wait)
			wait *= 2
			continue
		}

		func() {
			defer resp.Body.Close()
			status = resp.StatusCode
			if resp.StatusCode >= 500 {
				data, _ := io.ReadAll(resp.Body)
				lastErr = fmt.Errorf("server error %d: %s", resp.StatusCode, string(data))
				return
			}

			data, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				lastErr = readErr
				return
			}
			// An empty body (204, or any empty-bodied 2xx such as the
			// miner's "lost the race" response) decodes to io.EOF if fed
			// through json.Decoder unconditionally; treat it as success
			// rather than a decode failure.
			if out != nil && len(data) > 0 {
				lastErr = json.Unmarshal(data, out)
			} else {
				lastErr = nil
			}
		}()

		if lastErr == nil {
			return status, nil
		}
		if status != 0 && status < 500 {
			// Client-side rejection (4xx): not retryable.
			return status, lastErr
		}

		xlog.Warn("dispatch attempt failed", "url", url, "attempt", attempt, "err", lastErr)
		time.Sleep(wait)
		wait *= 2
	}

	return status, xerr.New(xerr.KindTransient, "netclient.PostJSON", lastErr)
}
