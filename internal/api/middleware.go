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

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rmarasigan-tip/folioblocks-1/internal/xerr"
	"github.com/rmarasigan-tip/folioblocks-1/internal/xlog"
)

// requestLog logs method/path/status/latency for every request, mirroring
// the teacher's keyset logging convention instead of gin's default writer.
func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		xlog.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}

// errorKindStatus maps an xerr.Kind to the HTTP status spec §6 assigns it.
func errorKindStatus(kind xerr.Kind) int {
	switch kind {
	case xerr.KindAuthentication:
		return http.StatusUnprocessableEntity // 422
	case xerr.KindConfiguration:
		return http.StatusInternalServerError // 500
	case xerr.KindIntegrity:
		return http.StatusNotAcceptable // 406
	case xerr.KindProtocol:
		return http.StatusNotAcceptable // 406
	case xerr.KindTransient:
		return http.StatusServiceUnavailable // 503
	case xerr.KindFatalState:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the status spec §6 names for err's xerr.Kind, falling
// back to known sentinel errors and finally 500 for anything unrecognized.
func respondError(c *gin.Context, err error) {
	var tagged *xerr.Error
	if errors.As(err, &tagged) {
		c.JSON(errorKindStatus(tagged.Kind), gin.H{"error": tagged.Error()})
		return
	}

	switch {
	case errors.Is(err, xerr.ErrIDDrift):
		c.JSON(http.StatusNotAcceptable, gin.H{"error": err.Error()})
	case errors.Is(err, xerr.ErrFieldMismatch), errors.Is(err, xerr.ErrNegotiationMissing):
		// 204 carries no body (spec §4.5 "lost the race"); the miner side
		// treats an empty response as the expected outcome, not a failure.
		c.Status(http.StatusNoContent)
	case errors.Is(err, xerr.ErrChainUninitialized):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, xerr.ErrPoolFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		xlog.Error("unclassified error", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
