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
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/vigil-labs/heirloom/event"
)

const journalKeyPrefix = "entry:"

// JournalEntry is one persisted audit record.
type JournalEntry struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
}

// Journal is the append-only audit log, backed by Badger. It implements
// event.Subscriber so it can be registered on the event bus for every ledger
// event type; each delivered event becomes one immutable journal entry.
type Journal struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

func newJournal(db *badger.DB, logger *slog.Logger) (*Journal, error) {
	seq, err := db.GetSequence([]byte("journal_seq"), 64)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal sequence: %w", err)
	}
	return &Journal{
		db:     db,
		seq:    seq,
		logger: logger,
	}, nil
}

// Deliver implements event.Subscriber by appending the event to the journal.
func (j *Journal) Deliver(evt event.Event) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		// Drop events delivered during shutdown
		return nil
	}
	return j.append(evt)
}

// Close implements event.Subscriber. It stops accepting deliveries; the
// underlying Badger handle is owned and closed by the Database.
func (j *Journal) Close() {
	j.mu.Lock()
	j.closed = true
	j.mu.Unlock()
}

// release flushes unused sequence numbers back to the store before the
// Badger handle closes. Gaps in the sequence are harmless.
func (j *Journal) release() error {
	return j.seq.Release()
}

func (j *Journal) append(evt event.Event) error {
	seq, err := j.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to get journal sequence: %w", err)
	}
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}
	entry := JournalEntry{
		Type:      string(evt.Type),
		Data:      data,
		Seq:       seq,
		Timestamp: evt.Timestamp,
	}
	value, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}
	key := fmt.Appendf(nil, "%s%020d", journalKeyPrefix, seq)
	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

// Entries returns up to limit journal entries in append order, starting at
// the given sequence number. A limit of zero means no limit.
func (j *Journal) Entries(fromSeq uint64, limit int) ([]JournalEntry, error) {
	var entries []JournalEntry
	startKey := fmt.Appendf(nil, "%s%020d", journalKeyPrefix, fromSeq)
	err := j.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte(journalKeyPrefix)
		iter := txn.NewIterator(iterOpts)
		defer iter.Close()
		for iter.Seek(startKey); iter.Valid(); iter.Next() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var entry JournalEntry
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
