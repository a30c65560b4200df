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

// Package store implements the Sealed Store (C1): the encrypted-at-rest
// envelope around the chain file and the relational state, plus the
// startup state machine of spec §4.1.
package store

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rmarasigan-tip/folioblocks-1/internal/chain"
	"github.com/rmarasigan-tip/folioblocks-1/internal/config"
	"github.com/rmarasigan-tip/folioblocks-1/internal/store/model"
	"github.com/rmarasigan-tip/folioblocks-1/internal/xerr"
	"github.com/rmarasigan-tip/folioblocks-1/internal/xlog"
)

// chainDocument is the on-disk cleartext shape of the chain file: a JSON
// object {"chain": [Block, ...]} (spec §6 "Persisted state layout").
type chainDocument struct {
	Chain []chain.Block `json:"chain"`
}

// Store owns both sealed artifacts: the chain file and the relational
// database. Every mutation of either goes through Store so the AEAD
// envelope and the integrity hash stay consistent.
type Store struct {
	mu sync.Mutex

	cfg       config.Config
	chainPath string
	dbPath    string
	tempDB    string // decrypted scratch copy of the relational file
	DB        *gorm.DB
	isMaster  bool
}

// GenerateKeyMaterial produces a fresh AUTH_KEY (44-char Fernet-class
// symmetric key, base64-url-encoded 32 random bytes) and SECRET_KEY
// (32-byte hex), the bootstrap row of spec §4.1's startup table.
func GenerateKeyMaterial() (authKey, secretKey string, err error) {
	rawAuth := make([]byte, 32)
	if _, err = rand.Read(rawAuth); err != nil {
		return "", "", err
	}
	// Fernet keys are url-safe base64 of 32 bytes, 44 chars with padding.
	authKey = base64.URLEncoding.EncodeToString(rawAuth)

	rawSecret := make([]byte, 32)
	if _, err = rand.Read(rawSecret); err != nil {
		return "", "", err
	}
	secretKey = hex.EncodeToString(rawSecret)
	return authKey, secretKey, nil
}

// WriteKeyFile persists AUTH_KEY/SECRET_KEY (and, for the Master,
// e-mail credentials) to the .env-style key file.
func WriteKeyFile(path, authKey, secretKey, emailAddr, emailPwd string, isMaster bool) error {
	var b []byte
	b = append(b, fmt.Sprintf("AUTH_KEY=%s\n", authKey)...)
	b = append(b, fmt.Sprintf("SECRET_KEY=%s\n", secretKey)...)
	if isMaster {
		b = append(b, fmt.Sprintf("EMAIL_SERVER_ADDRESS=%s\n", emailAddr)...)
		b = append(b, fmt.Sprintf("EMAIL_SERVER_PWD=%s\n", emailPwd)...)
	}
	return os.WriteFile(path, b, 0600)
}

// OpenStore implements the startup state machine of spec §4.1, keyed on
// {chain file present?, relational file present?, key material present?}.
func OpenStore(cfg config.Config, isMaster bool) (*Store, error) {
	chainPath := filepath.Join(cfg.DataDir, cfg.ChainFileName)
	dbPath := filepath.Join(cfg.DataDir, cfg.RelationalFile)

	_, chainErr := os.Stat(chainPath)
	chainPresent := chainErr == nil
	_, dbErr := os.Stat(dbPath)
	dbPresent := dbErr == nil
	keyPresent := cfg.HasKeyMaterial()

	switch {
	case !chainPresent && !dbPresent && !keyPresent:
		return bootstrap(cfg, chainPath, dbPath, isMaster)

	case chainPresent && dbPresent && keyPresent:
		return open(cfg, chainPath, dbPath, isMaster)

	case chainPresent && dbPresent && !keyPresent:
		return nil, xerr.New(xerr.KindConfiguration, "store.Open", fmt.Errorf("missing key material"))

	default:
		return nil, xerr.New(xerr.KindConfiguration, "store.Open", fmt.Errorf("corrupted layout: chain=%v db=%v key=%v", chainPresent, dbPresent, keyPresent))
	}
}

// bootstrap creates an empty relational schema, writes an empty chain,
// encrypts both, emits a fresh key file, and signals the caller must
// restart (spec §4.1 row 1: "then halt — require restart").
func bootstrap(cfg config.Config, chainPath, dbPath string, isMaster bool) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, err
	}

	authKey, secretKey, err := GenerateKeyMaterial()
	if err != nil {
		return nil, err
	}

	keyPath := filepath.Join(cfg.DataDir, cfg.KeyFileName)
	if err := WriteKeyFile(keyPath, authKey, secretKey, "", "", isMaster); err != nil {
		return nil, err
	}

	// Empty chain document.
	doc := chainDocument{Chain: []chain.Block{}}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	sealed, err := Seal(authKey, "chain", raw)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(chainPath, sealed, 0600); err != nil {
		return nil, err
	}

	// Empty relational schema in a scratch sqlite file, then seal it.
	tmp, err := os.CreateTemp("", "folioblocks-db-*.sqlite")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	db, err := gorm.Open(sqlite.Open(tmpPath), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		return nil, err
	}
	sqlDB, _ := db.DB()
	sqlDB.Close()

	dbBytes, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, err
	}
	sealedDB, err := Seal(authKey, "relational", dbBytes)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(dbPath, sealedDB, 0600); err != nil {
		return nil, err
	}

	xlog.Info("bootstrap complete, restart required", "data_dir", cfg.DataDir)
	return nil, xerr.New(xerr.KindConfiguration, "store.bootstrap", fmt.Errorf("bootstrapped fresh key material at %s, restart required", keyPath))
}

// open implements spec §4.1 row 2: decrypt relational file, fetch the
// recorded chain SHA-256, decrypt the chain, recompute SHA-256, and
// compare. On mismatch it logs a critical and, for the Master, returns an
// IntegrityError (the Master must refuse to continue); a miner logs a
// warning and continues. No resync is started from here.
func open(cfg config.Config, chainPath, dbPath string, isMaster bool) (*Store, error) {
	sealedDB, err := os.ReadFile(dbPath)
	if err != nil {
		return nil, err
	}
	dbBytes, err := Open(cfg.AuthKey, "relational", sealedDB)
	if err != nil {
		return nil, xerr.New(xerr.KindIntegrity, "store.open", err)
	}

	tmpPath := filepath.Join(os.TempDir(), "folioblocks-"+uuid.NewString()+".sqlite")
	if err := os.WriteFile(tmpPath, dbBytes, 0600); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(tmpPath), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		return nil, err
	}

	sealedChain, err := os.ReadFile(chainPath)
	if err != nil {
		return nil, err
	}
	chainBytes, err := Open(cfg.AuthKey, "chain", sealedChain)
	if err != nil {
		return nil, xerr.New(xerr.KindIntegrity, "store.open", err)
	}

	var sig model.FileSignature
	result := db.First(&sig, "file_name = ?", cfg.ChainFileName)

	recomputed := sha256Hex(chainBytes)
	if result.Error == nil && sig.SHA256 != recomputed {
		xlog.Critical("chain signature mismatch", "recorded", sig.SHA256, "recomputed", recomputed)
		if isMaster {
			return nil, xerr.New(xerr.KindIntegrity, "store.open", fmt.Errorf("chain signature mismatch, Master refuses to continue"))
		}
		xlog.Warn("continuing as miner, resync required")
	}

	s := &Store{
		cfg:       cfg,
		chainPath: chainPath,
		dbPath:    dbPath,
		tempDB:    tmpPath,
		DB:        db,
		isMaster:  isMaster,
	}
	return s, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// LoadChain decrypts and parses the current chain file.
func (s *Store) LoadChain() ([]chain.Block, error) {
	raw, err := os.ReadFile(s.chainPath)
	if err != nil {
		return nil, err
	}
	cleartext, err := Open(s.cfg.AuthKey, "chain", raw)
	if err != nil {
		return nil, xerr.New(xerr.KindIntegrity, "store.LoadChain", err)
	}
	var doc chainDocument
	if err := json.Unmarshal(cleartext, &doc); err != nil {
		return nil, err
	}
	return doc.Chain, nil
}

// ChainCleartextSHA256 returns the SHA-256 of the chain file's current
// cleartext bytes (used by the Sync Server, spec §4.6).
func (s *Store) ChainCleartextSHA256() (string, []byte, error) {
	raw, err := os.ReadFile(s.chainPath)
	if err != nil {
		return "", nil, err
	}
	cleartext, err := Open(s.cfg.AuthKey, "chain", raw)
	if err != nil {
		return "", nil, xerr.New(xerr.KindIntegrity, "store.ChainCleartextSHA256", err)
	}
	return sha256Hex(cleartext), cleartext, nil
}

// SealChain re-encrypts and persists blocks as the new chain file,
// recomputes its SHA-256, and updates the file_signatures row — the
// "recompute-and-seal" shutdown sequence of spec §4.1, also usable after
// every append so a crash mid-run still leaves a consistent file.
//
// The whole sequence runs without an intervening suspension point other
// than the file write and the DB statement, matching spec §5's
// "signature-recompute-and-seal at shutdown" critical section.
func (s *Store) SealChain(blocks []chain.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := chainDocument{Chain: blocks}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	digest := sha256Hex(raw)

	sealed, err := Seal(s.cfg.AuthKey, "chain", raw)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.chainPath, sealed, 0600); err != nil {
		return err
	}

	sig := model.FileSignature{FileName: s.cfg.ChainFileName, SHA256: digest}
	return s.DB.Save(&sig).Error
}

// Close performs the shutdown sequence: reseal the relational file and
// release the decrypted scratch copy.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}

	dbBytes, err := os.ReadFile(s.tempDB)
	if err != nil {
		return err
	}
	sealed, err := Seal(s.cfg.AuthKey, "relational", dbBytes)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.dbPath, sealed, 0600); err != nil {
		return err
	}
	return os.Remove(s.tempDB)
}
