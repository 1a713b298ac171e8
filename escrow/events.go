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
	"time"

	"github.com/vigil-labs/heirloom/event"
)

// Event types published by the ledger. Every mutating operation emits
// exactly one event; these are the observable audit log.
const (
	PlanCreatedEventType          event.EventType = "escrow.plan_created"
	ProofOfLifeEventType          event.EventType = "escrow.proof_of_life"
	ClaimExecutedEventType        event.EventType = "escrow.claim_executed"
	FundsAddedEventType           event.EventType = "escrow.funds_added"
	EmergencyActivatedEventType   event.EventType = "escrow.emergency_activated"
	EmergencyDeactivatedEventType event.EventType = "escrow.emergency_deactivated"
	BeneficiariesUpdatedEventType event.EventType = "escrow.beneficiaries_updated"
)

// EventTypes returns all event types published by the ledger, for consumers
// that subscribe to the full audit stream.
func EventTypes() []event.EventType {
	return []event.EventType{
		PlanCreatedEventType,
		ProofOfLifeEventType,
		ClaimExecutedEventType,
		FundsAddedEventType,
		EmergencyActivatedEventType,
		EmergencyDeactivatedEventType,
		BeneficiariesUpdatedEventType,
	}
}

// PlanCreatedEvent is emitted when a depositor locks funds in a new plan.
type PlanCreatedEvent struct {
	Owner            Identity
	Beneficiaries    []Identity
	Shares           []uint64
	LockDuration     time.Duration
	EmergencyContact Identity
	Deposit          uint64
	Timestamp        time.Time
}

// ProofOfLifeEvent is emitted when the depositor re-asserts activity,
// resetting the claim countdown.
type ProofOfLifeEvent struct {
	Owner     Identity
	Timestamp time.Time
}

// ClaimExecutedEvent is emitted after a beneficiary claim has been applied
// and the outbound transfer has succeeded.
type ClaimExecutedEvent struct {
	Owner       Identity
	Beneficiary Identity
	Amount      uint64
	Remaining   uint64
	PlanClosed  bool
	Timestamp   time.Time
}

// FundsAddedEvent is emitted when the depositor tops up the locked balance.
type FundsAddedEvent struct {
	Owner     Identity
	Amount    uint64
	NewTotal  uint64
	Timestamp time.Time
}

// EmergencyActivatedEvent is emitted when the emergency contact pauses
// claims on a plan.
type EmergencyActivatedEvent struct {
	Owner     Identity
	Contact   Identity
	Timestamp time.Time
}

// EmergencyDeactivatedEvent is emitted when the owner or emergency contact
// lifts the claim pause.
type EmergencyDeactivatedEvent struct {
	Owner     Identity
	Caller    Identity
	Timestamp time.Time
}

// BeneficiariesUpdatedEvent is emitted when the owner replaces the
// beneficiary list.
type BeneficiariesUpdatedEvent struct {
	Owner         Identity
	Beneficiaries []Identity
	Shares        []uint64
	Timestamp     time.Time
}
