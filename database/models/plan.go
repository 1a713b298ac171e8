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

package models

import "time"

// MigrateModels is the list of model objects that should have DB migrations applied
var MigrateModels = []any{
	&Plan{},
	&PlanBeneficiary{},
	&Claim{},
}

// Plan is a persisted inheritance plan snapshot. Exactly one row exists per
// owner identity.
type Plan struct {
	Owner            string `gorm:"uniqueIndex"`
	EmergencyContact string
	Description      string
	ID               uint  `gorm:"primarykey"`
	LockDuration     int64 // nanoseconds
	LastProofOfLife  time.Time
	CreationTime     time.Time
	TotalAmount      uint64
	FundedTotal      uint64
	IsActive         bool
	EmergencyMode    bool

	Beneficiaries []PlanBeneficiary `gorm:"foreignKey:PlanID"`
}

func (Plan) TableName() string {
	return "plan"
}

// PlanBeneficiary is one beneficiary entry of a plan. Position preserves the
// list ordering, which determines claim share lookup.
type PlanBeneficiary struct {
	Beneficiary string `gorm:"index"`
	ID          uint   `gorm:"primarykey"`
	PlanID      uint   `gorm:"index"`
	Position    int
	Share       uint64
}

func (PlanBeneficiary) TableName() string {
	return "plan_beneficiary"
}

// Claim is a committed beneficiary claim. The (owner, beneficiary) pair is
// unique: a beneficiary claims at most once per plan.
type Claim struct {
	Owner       string `gorm:"uniqueIndex:idx_claim_pair"`
	Beneficiary string `gorm:"uniqueIndex:idx_claim_pair"`
	ID          uint   `gorm:"primarykey"`
	Amount      uint64
	ClaimedAt   time.Time
}

func (Claim) TableName() string {
	return "claim"
}
