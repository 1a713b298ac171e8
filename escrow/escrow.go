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

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vigil-labs/heirloom/event"
)

// LedgerConfig carries the collaborators for a Ledger. Only the zero value
// of optional fields is replaced with defaults: a discarding logger, a
// wall-clock time source, and a transfer primitive that always succeeds
// (in-process settlement).
type LedgerConfig struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Store        Store
	Transferrer  Transferrer
	TimeSource   TimeSource
}

// authKey indexes the authorization matrix and claim records.
type authKey struct {
	owner       Identity
	beneficiary Identity
}

// Stats are the ledger-wide aggregates.
type Stats struct {
	ActivePlans uint64
	TotalLocked uint64
}

// Ledger is the escrow state machine: a mapping from depositor identity to
// exactly one inheritance plan, a derived authorization index for O(1)
// beneficiary lookups, per-(owner,beneficiary) claim records, and aggregate
// statistics. All operations are atomic under the ledger mutex; each reads
// the current time once at entry.
type Ledger struct {
	config      LedgerConfig
	logger      *slog.Logger
	eventBus    *event.EventBus
	store       Store
	transferrer Transferrer
	now         TimeSource
	metrics     struct {
		activePlans    prometheus.Gauge
		totalLocked    prometheus.Gauge
		claimsExecuted prometheus.Counter
		proofsOfLife   prometheus.Counter
	}
	mu            sync.RWMutex
	plans         map[Identity]*Plan
	authorized    map[authKey]bool
	claims        map[authKey]ClaimRecord
	claimedTotals map[Identity]uint64
	activePlans   uint64
	totalLocked   uint64
}

// NewLedger creates a Ledger and, when a Store is configured, reloads
// persisted plans and claim records and rebuilds the authorization index
// and aggregates from them.
func NewLedger(config LedgerConfig) (*Ledger, error) {
	l := &Ledger{
		config:        config,
		eventBus:      config.EventBus,
		store:         config.Store,
		transferrer:   config.Transferrer,
		now:           config.TimeSource,
		plans:         make(map[Identity]*Plan),
		authorized:    make(map[authKey]bool),
		claims:        make(map[authKey]ClaimRecord),
		claimedTotals: make(map[Identity]uint64),
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		l.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		l.logger = config.Logger
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.transferrer == nil {
		l.transferrer = TransferFunc(
			func(Identity, uint64) error { return nil },
		)
	}
	// Init metrics
	promautoFactory := promauto.With(config.PromRegistry)
	l.metrics.activePlans = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "heirloom_escrow_active_plans",
		Help: "current count of active inheritance plans",
	})
	l.metrics.totalLocked = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "heirloom_escrow_total_locked",
		Help: "total unclaimed amount across all plans",
	})
	l.metrics.claimsExecuted = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "heirloom_escrow_claims_total",
			Help: "total successful beneficiary claims",
		},
	)
	l.metrics.proofsOfLife = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "heirloom_escrow_proofs_of_life_total",
			Help: "total proof-of-life submissions",
		},
	)
	if l.store != nil {
		if err := l.load(); err != nil {
			return nil, fmt.Errorf("failed to load ledger state: %w", err)
		}
	}
	return l, nil
}

// load rebuilds in-memory state from the store.
func (l *Ledger) load() error {
	plans, err := l.store.Plans()
	if err != nil {
		return err
	}
	claims, err := l.store.Claims()
	if err != nil {
		return err
	}
	for i := range plans {
		plan := plans[i].snapshot()
		l.plans[plan.Owner] = &plan
		if plan.IsActive {
			l.activePlans++
		}
		l.totalLocked += plan.TotalAmount
		for _, b := range plan.Beneficiaries {
			l.authorized[authKey{owner: plan.Owner, beneficiary: b}] = true
		}
	}
	for _, c := range claims {
		key := authKey{owner: c.Owner, beneficiary: c.Beneficiary}
		l.claims[key] = c
		l.claimedTotals[c.Beneficiary] += c.Amount
		// A claimed beneficiary is no longer authorized
		delete(l.authorized, key)
	}
	l.metrics.activePlans.Set(float64(l.activePlans))
	l.metrics.totalLocked.Set(float64(l.totalLocked))
	l.logger.Info(
		"loaded ledger state",
		"component", "escrow",
		"plans", len(l.plans),
		"claims", len(l.claims),
	)
	return nil
}

// CreatePlan locks an initial deposit for the caller with the given
// beneficiaries and percentage shares. Exactly one plan may exist per owner
// identity.
func (l *Ledger) CreatePlan(
	caller Identity,
	beneficiaries []Identity,
	shares []uint64,
	lockDuration time.Duration,
	emergencyContact Identity,
	description string,
	deposit uint64,
) error {
	if deposit == 0 {
		return ErrInsufficientFunds
	}
	if caller.IsZero() {
		return &ValidationError{Reason: "null owner identity"}
	}
	if emergencyContact.IsZero() {
		return &ValidationError{Reason: "null emergency contact"}
	}
	if emergencyContact == caller {
		return &ValidationError{
			Reason: "emergency contact cannot be the owner",
		}
	}
	if err := validateLockDuration(lockDuration); err != nil {
		return err
	}
	if err := validateBeneficiaries(beneficiaries, shares, emergencyContact); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.plans[caller]; ok {
		return &ValidationError{
			Reason: fmt.Sprintf("plan already exists for owner %s", caller),
		}
	}
	now := l.now()
	plan := &Plan{
		Owner:            caller,
		Beneficiaries:    append([]Identity(nil), beneficiaries...),
		Shares:           append([]uint64(nil), shares...),
		LockDuration:     lockDuration,
		LastProofOfLife:  now,
		CreationTime:     now,
		TotalAmount:      deposit,
		FundedTotal:      deposit,
		IsActive:         true,
		EmergencyContact: emergencyContact,
		Description:      description,
	}
	l.plans[caller] = plan
	for _, b := range plan.Beneficiaries {
		l.authorized[authKey{owner: caller, beneficiary: b}] = true
	}
	l.activePlans++
	l.totalLocked += deposit
	l.metrics.activePlans.Inc()
	l.metrics.totalLocked.Add(float64(deposit))
	l.persistPlan(plan)
	l.logger.Info(
		"plan created",
		"component", "escrow",
		"owner", caller,
		"beneficiaries", len(beneficiaries),
		"deposit", deposit,
	)
	l.publish(
		PlanCreatedEventType,
		PlanCreatedEvent{
			Owner:            caller,
			Beneficiaries:    append([]Identity(nil), beneficiaries...),
			Shares:           append([]uint64(nil), shares...),
			LockDuration:     lockDuration,
			EmergencyContact: emergencyContact,
			Deposit:          deposit,
			Timestamp:        now,
		},
	)
	return nil
}

// SubmitProofOfLife resets the caller's inactivity clock. It is a pure
// liveness signal and moves no funds.
func (l *Ledger) SubmitProofOfLife(caller Identity) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	plan, ok := l.plans[caller]
	if !ok {
		return ErrInheritanceNotFound
	}
	if !plan.IsActive {
		return &ValidationError{Reason: "plan is not active"}
	}
	if plan.EmergencyMode {
		return ErrEmergencyModeActive
	}
	now := l.now()
	plan.LastProofOfLife = now
	l.metrics.proofsOfLife.Inc()
	l.persistPlan(plan)
	l.logger.Debug(
		"proof of life submitted",
		"component", "escrow",
		"owner", caller,
	)
	l.publish(
		ProofOfLifeEventType,
		ProofOfLifeEvent{
			Owner:     caller,
			Timestamp: now,
		},
	)
	return nil
}

// ClaimInheritance transfers the caller's share of the plan's funded total
// out of the named owner's plan. State is mutated before the external
// transfer is invoked so a reentrant call observes post-claim state; a
// failed transfer rolls the whole operation back.
func (l *Ledger) ClaimInheritance(
	caller Identity,
	owner Identity,
) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	plan, ok := l.plans[owner]
	if !ok {
		return 0, ErrInheritanceNotFound
	}
	key := authKey{owner: owner, beneficiary: caller}
	if !l.authorized[key] {
		return 0, ErrUnauthorizedAccess
	}
	if plan.EmergencyMode {
		return 0, ErrEmergencyModeActive
	}
	if !plan.IsActive {
		return 0, &ValidationError{Reason: "plan is not active"}
	}
	now := l.now()
	if claimableAt := plan.ClaimableAt(); now.Before(claimableAt) {
		return 0, &TimeLockNotExpiredError{
			Remaining: claimableAt.Sub(now),
		}
	}
	if _, claimed := l.claims[key]; claimed {
		return 0, ErrUnauthorizedAccess
	}
	share := plan.ShareOf(caller)
	// Shares apply to the funded total, not the remaining balance, so claim
	// order does not change payouts. The cap only bites when shares were
	// redistributed after earlier claims.
	amount := plan.FundedTotal * share / ShareTotal
	if amount > plan.TotalAmount {
		amount = plan.TotalAmount
	}

	// Checks done; apply effects before the external transfer so that a
	// reentrant call observes post-claim state.
	record := ClaimRecord{
		Owner:       owner,
		Beneficiary: caller,
		Amount:      amount,
		ClaimedAt:   now,
	}
	l.claims[key] = record
	l.claimedTotals[caller] += amount
	plan.TotalAmount -= amount
	l.totalLocked -= amount
	delete(l.authorized, key)
	planClosed := false
	if plan.TotalAmount == 0 {
		plan.IsActive = false
		l.activePlans--
		planClosed = true
	}

	if err := l.transferrer.Transfer(caller, amount); err != nil {
		// Roll back the entire claim; no partial effects survive
		delete(l.claims, key)
		l.claimedTotals[caller] -= amount
		if l.claimedTotals[caller] == 0 {
			delete(l.claimedTotals, caller)
		}
		plan.TotalAmount += amount
		l.totalLocked += amount
		l.authorized[key] = true
		if planClosed {
			plan.IsActive = true
			l.activePlans++
		}
		l.logger.Warn(
			"claim transfer failed, rolled back",
			"component", "escrow",
			"owner", owner,
			"beneficiary", caller,
			"amount", amount,
			"error", err,
		)
		return 0, &TransferFailedError{
			To:     caller,
			Amount: amount,
			Err:    err,
		}
	}

	l.metrics.claimsExecuted.Inc()
	l.metrics.totalLocked.Sub(float64(amount))
	if planClosed {
		l.metrics.activePlans.Dec()
	}
	l.persistPlan(plan)
	l.persistClaim(record)
	l.logger.Info(
		"claim executed",
		"component", "escrow",
		"owner", owner,
		"beneficiary", caller,
		"amount", amount,
		"remaining", plan.TotalAmount,
	)
	l.publish(
		ClaimExecutedEventType,
		ClaimExecutedEvent{
			Owner:       owner,
			Beneficiary: caller,
			Amount:      amount,
			Remaining:   plan.TotalAmount,
			PlanClosed:  planClosed,
			Timestamp:   now,
		},
	)
	return amount, nil
}

// AddFunds tops up the caller's locked balance. Allowed during emergency
// mode; never reactivates a drained plan.
func (l *Ledger) AddFunds(caller Identity, amount uint64) error {
	if amount == 0 {
		return ErrInsufficientFunds
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	plan, ok := l.plans[caller]
	if !ok {
		return ErrInheritanceNotFound
	}
	if !plan.IsActive {
		return &ValidationError{Reason: "plan is not active"}
	}
	now := l.now()
	plan.TotalAmount += amount
	plan.FundedTotal += amount
	l.totalLocked += amount
	l.metrics.totalLocked.Add(float64(amount))
	l.persistPlan(plan)
	l.logger.Info(
		"funds added",
		"component", "escrow",
		"owner", caller,
		"amount", amount,
		"total", plan.TotalAmount,
	)
	l.publish(
		FundsAddedEventType,
		FundsAddedEvent{
			Owner:     caller,
			Amount:    amount,
			NewTotal:  plan.TotalAmount,
			Timestamp: now,
		},
	)
	return nil
}

// ActivateEmergencyRecovery pauses claims on the named owner's plan. Only
// the plan's designated emergency contact may do this.
func (l *Ledger) ActivateEmergencyRecovery(
	caller Identity,
	owner Identity,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	plan, ok := l.plans[owner]
	if !ok {
		return ErrInheritanceNotFound
	}
	if caller != plan.EmergencyContact {
		return ErrUnauthorizedAccess
	}
	if !plan.IsActive {
		return &ValidationError{Reason: "plan is not active"}
	}
	if plan.EmergencyMode {
		return &ValidationError{Reason: "already in emergency mode"}
	}
	now := l.now()
	plan.EmergencyMode = true
	l.persistPlan(plan)
	l.logger.Warn(
		"emergency mode activated",
		"component", "escrow",
		"owner", owner,
		"contact", caller,
	)
	l.publish(
		EmergencyActivatedEventType,
		EmergencyActivatedEvent{
			Owner:     owner,
			Contact:   caller,
			Timestamp: now,
		},
	)
	return nil
}

// DeactivateEmergencyRecovery lifts the claim pause on the caller's own
// plan.
func (l *Ledger) DeactivateEmergencyRecovery(caller Identity) error {
	return l.DeactivateEmergencyRecoveryFor(caller, caller)
}

// DeactivateEmergencyRecoveryFor lifts the claim pause on the named owner's
// plan. The caller must be the plan owner or its emergency contact.
func (l *Ledger) DeactivateEmergencyRecoveryFor(
	caller Identity,
	owner Identity,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	plan, ok := l.plans[owner]
	if !ok {
		return ErrInheritanceNotFound
	}
	if caller != plan.Owner && caller != plan.EmergencyContact {
		return ErrUnauthorizedAccess
	}
	if !plan.EmergencyMode {
		return &ValidationError{Reason: "not in emergency mode"}
	}
	now := l.now()
	plan.EmergencyMode = false
	l.persistPlan(plan)
	l.logger.Info(
		"emergency mode deactivated",
		"component", "escrow",
		"owner", owner,
		"caller", caller,
	)
	l.publish(
		EmergencyDeactivatedEventType,
		EmergencyDeactivatedEvent{
			Owner:     owner,
			Caller:    caller,
			Timestamp: now,
		},
	)
	return nil
}

// UpdateBeneficiaries replaces the caller's beneficiary list and shares,
// validated exactly as at plan creation. Claim records are untouched: a
// previously-claimed beneficiary who is re-added is not re-authorized.
func (l *Ledger) UpdateBeneficiaries(
	caller Identity,
	newBeneficiaries []Identity,
	newShares []uint64,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	plan, ok := l.plans[caller]
	if !ok {
		return ErrInheritanceNotFound
	}
	if plan.EmergencyMode {
		return ErrEmergencyModeActive
	}
	if err := validateBeneficiaries(
		newBeneficiaries,
		newShares,
		plan.EmergencyContact,
	); err != nil {
		return err
	}
	now := l.now()
	for _, b := range plan.Beneficiaries {
		delete(l.authorized, authKey{owner: caller, beneficiary: b})
	}
	plan.Beneficiaries = append([]Identity(nil), newBeneficiaries...)
	plan.Shares = append([]uint64(nil), newShares...)
	for _, b := range plan.Beneficiaries {
		key := authKey{owner: caller, beneficiary: b}
		if _, claimed := l.claims[key]; claimed {
			continue
		}
		l.authorized[key] = true
	}
	l.persistPlan(plan)
	l.logger.Info(
		"beneficiaries updated",
		"component", "escrow",
		"owner", caller,
		"beneficiaries", len(newBeneficiaries),
	)
	l.publish(
		BeneficiariesUpdatedEventType,
		BeneficiariesUpdatedEvent{
			Owner:         caller,
			Beneficiaries: append([]Identity(nil), newBeneficiaries...),
			Shares:        append([]uint64(nil), newShares...),
			Timestamp:     now,
		},
	)
	return nil
}

// GetPlanDetails returns a snapshot of the named owner's plan.
func (l *Ledger) GetPlanDetails(owner Identity) (Plan, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	plan, ok := l.plans[owner]
	if !ok {
		return Plan{}, ErrInheritanceNotFound
	}
	return plan.snapshot(), nil
}

// CanClaim reports whether the named owner's plan is currently claimable:
// active, not in emergency mode, holding funds, with the time lock expired.
func (l *Ledger) CanClaim(owner Identity) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	plan, ok := l.plans[owner]
	if !ok {
		return false
	}
	return plan.IsActive &&
		!plan.EmergencyMode &&
		plan.TotalAmount > 0 &&
		!l.now().Before(plan.ClaimableAt())
}

// TimeUntilClaimable returns the remaining lock time for the named owner's
// plan, or zero if the plan is already claimable or inactive.
func (l *Ledger) TimeUntilClaimable(owner Identity) (time.Duration, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	plan, ok := l.plans[owner]
	if !ok {
		return 0, ErrInheritanceNotFound
	}
	if !plan.IsActive {
		return 0, nil
	}
	now := l.now()
	claimableAt := plan.ClaimableAt()
	if !now.Before(claimableAt) {
		return 0, nil
	}
	return claimableAt.Sub(now), nil
}

// GetBeneficiaryShare returns the share percentage for the given
// (owner, beneficiary) pair, or zero if not found.
func (l *Ledger) GetBeneficiaryShare(
	owner Identity,
	beneficiary Identity,
) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	plan, ok := l.plans[owner]
	if !ok {
		return 0
	}
	return plan.ShareOf(beneficiary)
}

// GetStats returns the ledger-wide aggregates.
func (l *Ledger) GetStats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Stats{
		ActivePlans: l.activePlans,
		TotalLocked: l.totalLocked,
	}
}

// IsAuthorized reports whether the given identity is currently an unclaimed
// beneficiary of the named owner's plan.
func (l *Ledger) IsAuthorized(owner Identity, beneficiary Identity) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.authorized[authKey{owner: owner, beneficiary: beneficiary}]
}

// ClaimedAmount returns the cumulative amount claimed by a beneficiary
// across all plans.
func (l *Ledger) ClaimedAmount(beneficiary Identity) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.claimedTotals[beneficiary]
}

func (l *Ledger) persistPlan(plan *Plan) {
	if l.store == nil {
		return
	}
	if err := l.store.PutPlan(plan.snapshot()); err != nil {
		l.logger.Warn(
			"failed to persist plan snapshot",
			"component", "escrow",
			"owner", plan.Owner,
			"error", err,
		)
	}
}

func (l *Ledger) persistClaim(record ClaimRecord) {
	if l.store == nil {
		return
	}
	if err := l.store.PutClaim(record); err != nil {
		l.logger.Warn(
			"failed to persist claim record",
			"component", "escrow",
			"owner", record.Owner,
			"beneficiary", record.Beneficiary,
			"error", err,
		)
	}
}

func (l *Ledger) publish(eventType event.EventType, data any) {
	if l.eventBus == nil {
		return
	}
	l.eventBus.Publish(eventType, event.NewEvent(eventType, data))
}
