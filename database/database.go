// Copyright 2026 Vigil Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/vigil-labs/heirloom/database/models"
)

// Config carries the collaborators for a Database.
type Config struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// DataDir is the on-disk storage location. When empty, both stores run
	// in memory, useful for testing.
	DataDir string
}

// Database bundles the two persistence backends: a SQLite metadata store
// holding plan and claim snapshots, and a Badger key-value store holding the
// append-only audit journal.
type Database struct {
	logger    *slog.Logger
	metadata  *gorm.DB
	journalDb *badger.DB
	planStore *PlanStore
	journal   *Journal
	gcTicker  *time.Ticker
	gcStopCh  chan struct{}
	gcWg      sync.WaitGroup
	dataDir   string
}

// New creates a Database. Both backends use in-memory storage when
// Config.DataDir is empty.
func New(config Config) (*Database, error) {
	db := &Database{
		logger:  config.Logger,
		dataDir: config.DataDir,
	}
	if db.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if config.DataDir != "" {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(config.DataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
	}
	if err := db.openMetadata(); err != nil {
		return nil, err
	}
	if err := db.openJournal(); err != nil {
		// Don't leave a dangling metadata handle behind
		_ = db.closeMetadata()
		return nil, err
	}
	planStore, err := newPlanStore(db.metadata, db.logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	db.planStore = planStore
	journal, err := newJournal(db.journalDb, db.logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	db.journal = journal
	return db, nil
}

func (d *Database) openMetadata() error {
	var metadataDb *gorm.DB
	var err error
	if d.dataDir == "" {
		// cache=shared allows multiple connections to share the same
		// in-memory database
		metadataDb, err = gorm.Open(
			sqlite.Open("file::memory:?cache=shared"),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
	} else {
		metadataDbPath := filepath.Join(d.dataDir, "metadata.sqlite")
		// WAL journal mode, disable sync on write
		metadataConnOpts := "_pragma=journal_mode(WAL)&_pragma=sync(OFF)"
		metadataDb, err = gorm.Open(
			sqlite.Open(
				fmt.Sprintf("file:%s?%s", metadataDbPath, metadataConnOpts),
			),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
	}
	if err != nil {
		return err
	}
	// Configure tracing for GORM
	if err := metadataDb.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return err
	}
	for _, model := range models.MigrateModels {
		d.logger.Debug(
			fmt.Sprintf("creating table: %#v", model),
			"component", "database",
		)
		if err := metadataDb.AutoMigrate(model); err != nil {
			return err
		}
	}
	d.metadata = metadataDb
	return nil
}

func (d *Database) openJournal() error {
	var badgerOpts badger.Options
	if d.dataDir == "" {
		badgerOpts = badger.DefaultOptions("").
			WithLogger(newBadgerLogger(d.logger)).
			// The default INFO logging is a bit verbose
			WithLoggingLevel(badger.WARNING).
			WithInMemory(true)
	} else {
		journalDir := filepath.Join(d.dataDir, "journal")
		badgerOpts = badger.DefaultOptions(journalDir).
			WithLogger(newBadgerLogger(d.logger)).
			WithLoggingLevel(badger.WARNING)
	}
	journalDb, err := badger.Open(badgerOpts)
	if err != nil {
		return err
	}
	d.journalDb = journalDb
	// Value log GC only makes sense for disk-backed stores
	if d.dataDir != "" {
		d.gcTicker = time.NewTicker(5 * time.Minute)
		d.gcStopCh = make(chan struct{})
		d.gcWg.Add(1)
		go d.journalGc(d.gcTicker, d.gcStopCh)
	}
	return nil
}

func (d *Database) journalGc(t *time.Ticker, stop <-chan struct{}) {
	defer d.gcWg.Done()
	for {
		select {
		case <-t.C:
		again:
			err := d.journalDb.RunValueLogGC(0.5)
			if err != nil {
				if !errors.Is(err, badger.ErrNoRewrite) {
					d.logger.Warn(
						fmt.Sprintf("journal DB: GC failure: %s", err),
						"component", "database",
					)
				}
			} else {
				// Run it again if it just ran successfully
				goto again
			}
		case <-stop:
			return
		}
	}
}

// PlanStore returns the SQLite-backed plan and claim snapshot store.
func (d *Database) PlanStore() *PlanStore {
	return d.planStore
}

// Journal returns the Badger-backed audit journal.
func (d *Database) Journal() *Journal {
	return d.journal
}

func (d *Database) closeMetadata() error {
	if d.metadata == nil {
		return nil
	}
	sqlDb, err := d.metadata.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return sqlDb.Close()
}

// Close shuts down both backends.
func (d *Database) Close() error {
	var errs []error
	if d.gcTicker != nil {
		d.gcTicker.Stop()
		close(d.gcStopCh)
		d.gcWg.Wait()
		d.gcTicker = nil
	}
	if d.journal != nil {
		d.journal.Close()
		errs = append(errs, d.journal.release())
	}
	if d.journalDb != nil {
		errs = append(errs, d.journalDb.Close())
		d.journalDb = nil
	}
	errs = append(errs, d.closeMetadata())
	d.metadata = nil
	return errors.Join(errs...)
}

// DB returns the underlying GORM database handle.
func (d *Database) DB() *gorm.DB {
	return d.metadata
}
