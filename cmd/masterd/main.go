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

// Command masterd runs the Master coordinator: the consensus dispatcher,
// the association handshake, and the sync server, behind one gin HTTP
// surface (spec §2, role=master).
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rmarasigan-tip/folioblocks-1/internal/api"
	"github.com/rmarasigan-tip/folioblocks-1/internal/chain"
	"github.com/rmarasigan-tip/folioblocks-1/internal/cluster"
	"github.com/rmarasigan-tip/folioblocks-1/internal/config"
	"github.com/rmarasigan-tip/folioblocks-1/internal/consensus"
	"github.com/rmarasigan-tip/folioblocks-1/internal/handshake"
	"github.com/rmarasigan-tip/folioblocks-1/internal/store"
	"github.com/rmarasigan-tip/folioblocks-1/internal/syncsrv"
	"github.com/rmarasigan-tip/folioblocks-1/internal/xlog"
)

func main() {
	configPath := flag.String("config", ".env", "path to the .env-style configuration file")
	dev := flag.Bool("dev", false, "use human-readable development logging")
	flag.Parse()

	if *dev {
		xlog.SetDevelopment()
	}
	defer xlog.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		xlog.Critical("failed to load configuration", "err", err)
		os.Exit(1)
	}
	cfg.Role = config.RoleMaster

	sealed, err := store.OpenStore(cfg, true)
	if err != nil {
		xlog.Critical("failed to open sealed store", "err", err)
		os.Exit(1)
	}

	builder := chain.NewBuilder(cfg.Difficulty)
	blocks, err := sealed.LoadChain()
	if err != nil {
		xlog.Critical("failed to load chain", "err", err)
		os.Exit(1)
	}
	if len(blocks) == 0 {
		// No block 0 on disk yet: queue the GENESIS_INITIALIZATION
		// transaction and let it go through the normal
		// Seal -> dispatch -> mine -> Append path like every other
		// block, so hash_block still satisfies the difficulty invariant.
		genesisTx, txErr := chain.NewTransaction(chain.ActionGenesisInitialization, chain.GenesisPayload{
			Message: "genesis",
		})
		if txErr != nil {
			xlog.Critical("failed to build genesis transaction", "err", txErr)
			os.Exit(1)
		}
		builder.Enqueue(genesisTx)
	} else {
		builder.Restore(blocks)
	}

	registry := cluster.NewRegistry(cfg.MaxConnectedNodes)
	lookups := store.Lookups{DB: sealed.DB}
	hs := handshake.New(lookups, lookups, lookups, cfg.SecretKey, cfg.AuthKey)
	dispatcher := consensus.New(registry, builder, sealed.DB, consensus.Config{
		SelfAddress:       cfg.SourceAddress,
		BlockTimerSeconds: cfg.BlockTimerSeconds,
		Difficulty:        cfg.Difficulty,
		RetryAttempts:     cfg.DispatchRetryAttempts,
		StaleMultiplier:   cfg.StaleNegotiationMultiplier,
	})

	appendedIDs := make([]uint64, len(blocks))
	for i, blk := range blocks {
		appendedIDs[i] = blk.ID
	}
	if err := dispatcher.Hydrate(appendedIDs); err != nil {
		xlog.Critical("failed to reap orphaned negotiations", "err", err)
		os.Exit(1)
	}

	syncServer := syncsrv.New(sealed)

	router := api.NewRouter(api.Dependencies{
		Config:     cfg,
		Store:      sealed,
		Handshake:  hs,
		Registry:   registry,
		Builder:    builder,
		Dispatcher: dispatcher,
		Sync:       syncServer,
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: router}

	ctx, cancel := context.WithCancel(context.Background())
	go runScheduler(ctx, dispatcher, cfg.BlockTimerSeconds)

	go func() {
		xlog.Info("masterd listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			xlog.Critical("http server failed", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	xlog.Info("shutting down masterd")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		xlog.Warn("http server shutdown error", "err", err)
	}

	if err := sealed.SealChain(builder.AppendedChain()); err != nil {
		xlog.Warn("final chain seal failed", "err", err)
	}
	if err := sealed.Close(); err != nil {
		xlog.Warn("store close failed", "err", err)
	}
}

// runScheduler drives the single cooperative dispatch loop of spec §5,
// ticking at a fraction of the block timer so sealing and dispatch remain
// responsive.
func runScheduler(ctx context.Context, d *consensus.Dispatcher, blockTimerSeconds int) {
	interval := time.Duration(blockTimerSeconds) * time.Second / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Tick(ctx); err != nil {
				xlog.Warn("scheduler tick failed", "err", err)
			}
		}
	}
}
