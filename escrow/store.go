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

package escrow

import "time"

// ClaimRecord is a committed beneficiary claim, scoped per (owner,
// beneficiary) pair.
type ClaimRecord struct {
	Owner       Identity
	Beneficiary Identity
	Amount      uint64
	ClaimedAt   time.Time
}

// Store persists plan snapshots and claim records. The in-memory ledger is
// the source of truth; the store is a write-behind snapshot reloaded at
// startup. Implementations must be safe for use from a single goroutine at
// a time (the ledger serializes all writes).
type Store interface {
	PutPlan(Plan) error
	PutClaim(ClaimRecord) error
	Plans() ([]Plan, error)
	Claims() ([]ClaimRecord, error)
}

// Transferrer is the external funds-transfer primitive. A transfer either
// fully succeeds or fully fails; the ledger rolls back the triggering claim
// when it fails.
type Transferrer interface {
	Transfer(to Identity, amount uint64) error
}

// TransferFunc adapts a function to the Transferrer interface.
type TransferFunc func(to Identity, amount uint64) error

func (f TransferFunc) Transfer(to Identity, amount uint64) error {
	return f(to, amount)
}

// TimeSource supplies the ledger's current-time reading. Each operation
// reads it exactly once at entry.
type TimeSource func() time.Time
