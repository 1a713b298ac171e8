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

package database_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-labs/heirloom/database"
	"github.com/vigil-labs/heirloom/escrow"
	"github.com/vigil-labs/heirloom/event"
)

func testPlan() escrow.Plan {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return escrow.Plan{
		Owner:            "owner",
		Beneficiaries:    []escrow.Identity{"alice", "bob"},
		Shares:           []uint64{60, 40},
		LockDuration:     30 * 24 * time.Hour,
		LastProofOfLife:  created,
		CreationTime:     created,
		TotalAmount:      100,
		FundedTotal:      100,
		IsActive:         true,
		EmergencyContact: "contact",
		Description:      "family plan",
	}
}

func TestDatabaseInMemory(t *testing.T) {
	db, err := database.New(database.Config{})
	require.NoError(t, err)
	require.NotNil(t, db.PlanStore())
	require.NotNil(t, db.Journal())
	require.NoError(t, db.Close())
}

func TestPlanStoreRoundTrip(t *testing.T) {
	db, err := database.New(database.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	defer db.Close()
	store := db.PlanStore()

	plan := testPlan()
	require.NoError(t, store.PutPlan(plan))

	plans, err := store.Plans()
	require.NoError(t, err)
	require.Len(t, plans, 1)
	got := plans[0]
	assert.Equal(t, plan.Owner, got.Owner)
	assert.Equal(t, plan.Beneficiaries, got.Beneficiaries)
	assert.Equal(t, plan.Shares, got.Shares)
	assert.Equal(t, plan.LockDuration, got.LockDuration)
	assert.Equal(t, plan.TotalAmount, got.TotalAmount)
	assert.Equal(t, plan.FundedTotal, got.FundedTotal)
	assert.Equal(t, plan.EmergencyContact, got.EmergencyContact)
	assert.True(t, got.IsActive)
	assert.True(t, got.LastProofOfLife.Equal(plan.LastProofOfLife))

	// Upsert replaces the row and its beneficiary entries
	plan.Beneficiaries = []escrow.Identity{"carol"}
	plan.Shares = []uint64{100}
	plan.TotalAmount = 150
	require.NoError(t, store.PutPlan(plan))

	plans, err = store.Plans()
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, []escrow.Identity{"carol"}, plans[0].Beneficiaries)
	assert.Equal(t, []uint64{100}, plans[0].Shares)
	assert.Equal(t, uint64(150), plans[0].TotalAmount)
}

func TestPlanStoreClaims(t *testing.T) {
	db, err := database.New(database.Config{})
	require.NoError(t, err)
	defer db.Close()
	store := db.PlanStore()

	claim := escrow.ClaimRecord{
		Owner:       "owner",
		Beneficiary: "alice",
		Amount:      60,
		ClaimedAt:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.PutClaim(claim))
	// Duplicate insert of the same pair is a no-op
	require.NoError(t, store.PutClaim(claim))

	claims, err := store.Claims()
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, claim.Owner, claims[0].Owner)
	assert.Equal(t, claim.Beneficiary, claims[0].Beneficiary)
	assert.Equal(t, claim.Amount, claims[0].Amount)
}

func TestJournalAppend(t *testing.T) {
	db, err := database.New(database.Config{})
	require.NoError(t, err)
	defer db.Close()
	journal := db.Journal()

	payload := escrow.ProofOfLifeEvent{
		Owner:     "owner",
		Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	for range 3 {
		evt := event.NewEvent(escrow.ProofOfLifeEventType, payload)
		require.NoError(t, journal.Deliver(evt))
	}

	entries, err := journal.Entries(0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, entry := range entries {
		assert.Equal(t, string(escrow.ProofOfLifeEventType), entry.Type)
		if i > 0 {
			assert.Greater(t, entry.Seq, entries[i-1].Seq)
		}
		var got escrow.ProofOfLifeEvent
		require.NoError(t, json.Unmarshal(entry.Data, &got))
		assert.Equal(t, escrow.Identity("owner"), got.Owner)
	}

	// Limit and offset
	entries, err = journal.Entries(entries[1].Seq, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestJournalClosedDropsDeliveries(t *testing.T) {
	db, err := database.New(database.Config{})
	require.NoError(t, err)
	defer db.Close()
	journal := db.Journal()

	journal.Close()
	evt := event.NewEvent(
		escrow.ProofOfLifeEventType,
		escrow.ProofOfLifeEvent{Owner: "owner"},
	)
	require.NoError(t, journal.Deliver(evt))
}

func TestLedgerStateSurvivesRestart(t *testing.T) {
	dataDir := t.TempDir()
	lockDuration := 30 * 24 * time.Hour
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	db, err := database.New(database.Config{DataDir: dataDir})
	require.NoError(t, err)
	ledger, err := escrow.NewLedger(escrow.LedgerConfig{
		Store:      db.PlanStore(),
		TimeSource: func() time.Time { return clock },
	})
	require.NoError(t, err)
	require.NoError(t, ledger.CreatePlan(
		"owner",
		[]escrow.Identity{"alice", "bob"},
		[]uint64{60, 40},
		lockDuration,
		"contact",
		"",
		100,
	))
	clock = clock.Add(lockDuration)
	amount, err := ledger.ClaimInheritance("alice", "owner")
	require.NoError(t, err)
	require.Equal(t, uint64(60), amount)
	require.NoError(t, db.Close())

	// Reopen and rebuild the ledger from persisted state
	db, err = database.New(database.Config{DataDir: dataDir})
	require.NoError(t, err)
	defer db.Close()
	ledger, err = escrow.NewLedger(escrow.LedgerConfig{
		Store:      db.PlanStore(),
		TimeSource: func() time.Time { return clock },
	})
	require.NoError(t, err)

	plan, err := ledger.GetPlanDetails("owner")
	require.NoError(t, err)
	assert.Equal(t, uint64(40), plan.TotalAmount)
	assert.True(t, plan.IsActive)
	// The claimed beneficiary stays revoked across restart
	assert.False(t, ledger.IsAuthorized("owner", "alice"))
	assert.True(t, ledger.IsAuthorized("owner", "bob"))
	assert.Equal(t, uint64(60), ledger.ClaimedAmount("alice"))
	_, err = ledger.ClaimInheritance("alice", "owner")
	assert.ErrorIs(t, err, escrow.ErrUnauthorizedAccess)

	stats := ledger.GetStats()
	assert.Equal(t, uint64(1), stats.ActivePlans)
	assert.Equal(t, uint64(40), stats.TotalLocked)

	// The funded total survives restart: bob's payout is 40% of the
	// original 100, not of the 40 remaining
	amount, err = ledger.ClaimInheritance("bob", "owner")
	require.NoError(t, err)
	assert.Equal(t, uint64(40), amount)
	plan, err = ledger.GetPlanDetails("owner")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), plan.TotalAmount)
	assert.False(t, plan.IsActive)
}
