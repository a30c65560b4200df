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

// Package api wires the consensus core's HTTP surface (spec §6): the gin
// router, its error-kind-to-status middleware, and the handlers that
// translate wire DTOs into calls against the component packages.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apimodel "github.com/rmarasigan-tip/folioblocks-1/internal/api/model"
	"github.com/rmarasigan-tip/folioblocks-1/internal/chain"
	"github.com/rmarasigan-tip/folioblocks-1/internal/cluster"
	"github.com/rmarasigan-tip/folioblocks-1/internal/config"
	"github.com/rmarasigan-tip/folioblocks-1/internal/consensus"
	"github.com/rmarasigan-tip/folioblocks-1/internal/handshake"
	"github.com/rmarasigan-tip/folioblocks-1/internal/minerrt"
	"github.com/rmarasigan-tip/folioblocks-1/internal/store"
	gmodel "github.com/rmarasigan-tip/folioblocks-1/internal/store/model"
	"github.com/rmarasigan-tip/folioblocks-1/internal/syncsrv"
)

// Dependencies bundles the component graph a node's HTTP surface is wired
// against. Role decides which subset of routes is actually registered:
// a Master serves establish/dispatch/sync; a miner serves receive_raw_block.
type Dependencies struct {
	Config     config.Config
	Store      *store.Store
	Handshake  *handshake.Handshake // Master only
	Registry   *cluster.Registry    // Master only
	Builder    *chain.Builder       // Master only
	Dispatcher *consensus.Dispatcher // Master only
	Sync       *syncsrv.Server      // Master only
	Runtime    *minerrt.Runtime     // miner only
}

// NewRouter builds the gin.Engine for one node process, registering only
// the routes appropriate to deps.Config.Role (spec §6).
func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog())

	node := r.Group("/node")
	node.GET("/info", handleInfo(deps))

	if deps.Config.Role == config.RoleMaster {
		node.POST("/establish/receive_echo", handleEstablish(deps))
		node.POST("/blockchain/receive_hashed_block", handleReceiveHashedBlock(deps))
		node.POST("/blockchain/request_update", handleRequestUpdate(deps))
		node.POST("/blockchain/verify_hash", handleVerifyHash(deps))
	} else {
		node.POST("/blockchain/receive_raw_block", handleReceiveRawBlock(deps))
	}

	return r
}

// handleEstablish implements POST /node/establish/receive_echo (spec §4.3,
// §6): run the handshake, admit the miner into the cluster registry and the
// relational store, record NODE_GENERAL_CONSENSUS_INIT, and return the
// plaintext certificate.
func handleEstablish(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body apimodel.EstablishRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		req := handshake.Request{
			SourceHeader:     c.GetHeader("X-Source"),
			SessionHeader:    c.GetHeader("X-Session"),
			AcceptanceHeader: c.GetHeader("X-Acceptance"),
			SourceAddress:    body.SourceAddress,
			SourcePort:       body.SourcePort,
		}

		result, err := deps.Handshake.Admit(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}

		if err := deps.Registry.AdmitMiner(req.SourceHeader, result.EncryptedCertificate, body.SourceAddress, body.SourcePort); err != nil {
			respondError(c, err)
			return
		}

		row := gmodel.AssociatedNode{
			UserAddress:   req.SourceHeader,
			Certificate:   result.EncryptedCertificate,
			SourceAddress: body.SourceAddress,
			SourcePort:    body.SourcePort,
			Status:        string(cluster.StatusAvailable),
		}
		if err := deps.Store.DB.Save(&row).Error; err != nil {
			respondError(c, err)
			return
		}

		tx, err := chain.NewTransaction(chain.ActionNodeGeneralConsensusInit, chain.NodeInitPayload{
			MinerAddress:  req.SourceHeader,
			SourceAddress: body.SourceAddress,
			SourcePort:    body.SourcePort,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		deps.Builder.Enqueue(tx)

		c.JSON(http.StatusOK, apimodel.EstablishResponse{CertificateToken: result.PlaintextCertificate})
	}
}

// handleReceiveRawBlock implements the miner side of POST
// /node/blockchain/receive_raw_block (spec §4.4 "Mining"): accept the raw
// block, kick off mining in the background, and 202 immediately.
func handleReceiveRawBlock(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body apimodel.ConsensusFromMasterPayload
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		deps.Runtime.ReceiveRawBlock(body)
		c.Status(http.StatusAccepted)
	}
}

// handleReceiveHashedBlock implements POST
// /node/blockchain/receive_hashed_block (spec §4.5 "Confirm").
func handleReceiveHashedBlock(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body apimodel.ConsensusToMasterPayload
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusNotAcceptable, gin.H{"error": err.Error()})
			return
		}

		out, err := deps.Dispatcher.Confirm(c.Request.Context(), body)
		if err != nil {
			respondError(c, err)
			return
		}

		if err := deps.Store.SealChain(deps.Builder.AppendedChain()); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, out)
	}
}

// handleRequestUpdate implements POST /node/blockchain/request_update
// (spec §4.6).
func handleRequestUpdate(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot, err := deps.Sync.RequestUpdate()
		if err != nil {
			c.JSON(http.StatusNotAcceptable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snapshot)
	}
}

// handleVerifyHash implements POST /node/blockchain/verify_hash (spec §4.6).
func handleVerifyHash(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		candidate := c.GetHeader("X-Hash")
		ok, err := deps.Sync.VerifyHash(candidate)
		if err != nil {
			c.JSON(http.StatusNotAcceptable, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.Status(http.StatusNotAcceptable)
			return
		}
		c.Status(http.StatusOK)
	}
}

// handleInfo implements GET /node/info.
func handleInfo(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := apimodel.NodeInformation{
			Properties: apimodel.NodeProperties{
				Role:       string(deps.Config.Role),
				Address:    deps.Config.SourceAddress,
				Difficulty: deps.Config.Difficulty,
			},
		}

		if deps.Builder != nil {
			info.Statistics.ChainLength = len(deps.Builder.AppendedChain())
		}
		if deps.Registry != nil {
			info.Statistics.AdmittedMiners = deps.Registry.Len()
		}

		c.JSON(http.StatusOK, info)
	}
}
