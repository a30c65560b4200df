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

// Package config loads the .env-style key/value configuration of a node
// (Master or Archival Miner) and hands back one explicit root value — never
// ambient/package-level state, per the consensus core's design notes.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Role distinguishes a Master coordinator from an Archival Miner peer.
type Role string

const (
	RoleMaster Role = "master"
	RoleMiner  Role = "miner"
)

// Config is the fully resolved configuration of one node process.
type Config struct {
	Role Role

	// Key material, see spec §6 "Persisted state layout".
	AuthKey   string // 44-char Fernet-class symmetric key
	SecretKey string // 32-byte hex

	// Master-only, never dialed by this core (out of scope, see spec §1).
	EmailServerAddress string
	EmailServerPwd     string

	// Filesystem layout.
	DataDir        string
	ChainFileName  string
	RelationalFile string
	KeyFileName    string

	// Consensus tuning.
	Difficulty                int // N leading zero hex digits, default 4
	MaxConnectedNodes         int // MASTER_NODE_LIMIT_CONNECTED_NODES, default 4
	BlockTimerSeconds         int // default 7, see spec §9 open question
	DispatchRetryAttempts     int // default 4
	StaleNegotiationMultiplier int // default 10, per spec §5

	// Network binding.
	ListenAddr    string
	MasterAddress string // where miners reach the Master
	SourceAddress string // this node's own reachable address
	SourcePort    int

	// Miner-only handshake credentials, pre-provisioned by the out-of-scope
	// account/acceptance-code subsystems (spec §1, §4.3).
	MinerSessionToken    string
	MinerAcceptanceCode  string
}

// Default populates every tunable with the defaults named in spec.md,
// leaving identity/network fields empty for Load to fill in.
func Default() Config {
	return Config{
		Role:                      RoleMaster,
		ChainFileName:             "folioblocks-chain.json",
		RelationalFile:            "folioblocks-node.db",
		KeyFileName:               ".env",
		Difficulty:                4,
		MaxConnectedNodes:         4,
		BlockTimerSeconds:         7,
		DispatchRetryAttempts:     4,
		StaleNegotiationMultiplier: 10,
		ListenAddr:                ":9002",
	}
}

// Load reads configuration from the given .env-style file plus environment
// overrides (FOLIO_ prefixed), starting from Default().
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.SetEnvPrefix("FOLIO")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
	}

	if s := v.GetString("AUTH_KEY"); s != "" {
		cfg.AuthKey = s
	}
	if s := v.GetString("SECRET_KEY"); s != "" {
		cfg.SecretKey = s
	}
	cfg.EmailServerAddress = v.GetString("EMAIL_SERVER_ADDRESS")
	cfg.EmailServerPwd = v.GetString("EMAIL_SERVER_PWD")

	if s := v.GetString("DATA_DIR"); s != "" {
		cfg.DataDir = s
	}
	if n := v.GetInt("BLOCK_DIFFICULTY"); n > 0 {
		cfg.Difficulty = n
	}
	if n := v.GetInt("MASTER_NODE_LIMIT_CONNECTED_NODES"); n > 0 {
		cfg.MaxConnectedNodes = n
	}
	if n := v.GetInt("BLOCK_TIMER_SECONDS"); n > 0 {
		cfg.BlockTimerSeconds = n
	}
	if s := v.GetString("NODE_ROLE"); s != "" {
		cfg.Role = Role(strings.ToLower(s))
	}
	if s := v.GetString("MASTER_ADDRESS"); s != "" {
		cfg.MasterAddress = s
	}
	if s := v.GetString("SOURCE_ADDRESS"); s != "" {
		cfg.SourceAddress = s
	}
	if n := v.GetInt("SOURCE_PORT"); n > 0 {
		cfg.SourcePort = n
	}
	if s := v.GetString("LISTEN_ADDR"); s != "" {
		cfg.ListenAddr = s
	}
	cfg.MinerSessionToken = v.GetString("MINER_SESSION_TOKEN")
	cfg.MinerAcceptanceCode = v.GetString("MINER_ACCEPTANCE_CODE")

	return cfg, nil
}

// HasKeyMaterial reports whether both AUTH_KEY and SECRET_KEY are present,
// the third axis of the startup state machine in spec §4.1.
func (c Config) HasKeyMaterial() bool {
	return c.AuthKey != "" && c.SecretKey != ""
}
