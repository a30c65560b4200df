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

// Command minerd runs an Archival Miner peer: it establishes association
// with the Master, then serves receive_raw_block and mines on demand
// (spec §2, role=miner).
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
	"github.com/rmarasigan-tip/folioblocks-1/internal/config"
	"github.com/rmarasigan-tip/folioblocks-1/internal/minerrt"
	"github.com/rmarasigan-tip/folioblocks-1/internal/netclient"
	"github.com/rmarasigan-tip/folioblocks-1/internal/store"
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
	cfg.Role = config.RoleMiner

	sealed, err := store.OpenStore(cfg, false)
	if err != nil {
		xlog.Critical("failed to open sealed store", "err", err)
		os.Exit(1)
	}

	client := netclient.New(cfg.DispatchRetryAttempts)
	runtime := minerrt.New(cfg.SourceAddress, cfg.MasterAddress, cfg.Difficulty, client, sealed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	certificate, err := runtime.Establish(ctx, cfg.MinerSessionToken, cfg.MinerAcceptanceCode, cfg.SourcePort)
	if err != nil {
		xlog.Critical("failed to establish with master", "err", err)
		os.Exit(1)
	}
	xlog.Info("established with master", "certificate_length", len(certificate))

	router := api.NewRouter(api.Dependencies{
		Config:  cfg,
		Store:   sealed,
		Runtime: runtime,
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: router}

	go func() {
		xlog.Info("minerd listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			xlog.Critical("http server failed", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	xlog.Info("shutting down minerd")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		xlog.Warn("http server shutdown error", "err", err)
	}
	if err := sealed.Close(); err != nil {
		xlog.Warn("store close failed", "err", err)
	}
}
