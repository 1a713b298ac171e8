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

package api

import (
	"time"

	"github.com/vigil-labs/heirloom/escrow"
)

// Ledger is the escrow ledger surface the API exposes. *escrow.Ledger
// implements it; tests may substitute their own.
type Ledger interface {
	CreatePlan(
		caller escrow.Identity,
		beneficiaries []escrow.Identity,
		shares []uint64,
		lockDuration time.Duration,
		emergencyContact escrow.Identity,
		description string,
		deposit uint64,
	) error
	SubmitProofOfLife(caller escrow.Identity) error
	ClaimInheritance(caller, owner escrow.Identity) (uint64, error)
	AddFunds(caller escrow.Identity, amount uint64) error
	ActivateEmergencyRecovery(caller, owner escrow.Identity) error
	DeactivateEmergencyRecoveryFor(caller, owner escrow.Identity) error
	UpdateBeneficiaries(
		caller escrow.Identity,
		newBeneficiaries []escrow.Identity,
		newShares []uint64,
	) error
	GetPlanDetails(owner escrow.Identity) (escrow.Plan, error)
	CanClaim(owner escrow.Identity) bool
	TimeUntilClaimable(owner escrow.Identity) (time.Duration, error)
	GetBeneficiaryShare(owner, beneficiary escrow.Identity) uint64
	GetStats() escrow.Stats
}

// ErrorResponse is the error format returned by all endpoints.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

// RootResponse is returned by GET /.
type RootResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

// BeneficiaryEntry pairs a beneficiary identity with its percentage share.
type BeneficiaryEntry struct {
	Identity string `json:"identity"`
	Share    uint64 `json:"share"`
}

// CreatePlanRequest is the body for POST /api/v1/plans. The caller identity
// from X-Caller-Id becomes the plan owner.
type CreatePlanRequest struct {
	Beneficiaries    []string `json:"beneficiaries"`
	Shares           []uint64 `json:"shares"`
	EmergencyContact string   `json:"emergency_contact"`
	Description      string   `json:"description"`
	LockDurationSecs uint64   `json:"lock_duration_secs"`
	Deposit          uint64   `json:"deposit"`
}

// PlanResponse is the JSON rendering of a plan snapshot.
type PlanResponse struct {
	Owner            string             `json:"owner"`
	Beneficiaries    []BeneficiaryEntry `json:"beneficiaries"`
	EmergencyContact string             `json:"emergency_contact"`
	Description      string             `json:"description,omitempty"`
	LockDurationSecs uint64             `json:"lock_duration_secs"`
	LastProofOfLife  time.Time          `json:"last_proof_of_life"`
	CreationTime     time.Time          `json:"creation_time"`
	TotalAmount      uint64             `json:"total_amount"`
	FundedTotal      uint64             `json:"funded_total"`
	IsActive         bool               `json:"is_active"`
	EmergencyMode    bool               `json:"emergency_mode"`
}

// AddFundsRequest is the body for POST /api/v1/funds.
type AddFundsRequest struct {
	Amount uint64 `json:"amount"`
}

// UpdateBeneficiariesRequest is the body for POST /api/v1/beneficiaries.
type UpdateBeneficiariesRequest struct {
	Beneficiaries []string `json:"beneficiaries"`
	Shares        []uint64 `json:"shares"`
}

// DeactivateEmergencyRequest is the body for
// POST /api/v1/emergency/deactivate. Owner is optional; it defaults to the
// caller (the owner deactivating their own plan).
type DeactivateEmergencyRequest struct {
	Owner string `json:"owner,omitempty"`
}

// ClaimResponse is returned by POST /api/v1/plans/{owner}/claim.
type ClaimResponse struct {
	Owner       string `json:"owner"`
	Beneficiary string `json:"beneficiary"`
	Amount      uint64 `json:"amount"`
}

// CanClaimResponse is returned by GET /api/v1/plans/{owner}/can-claim.
type CanClaimResponse struct {
	CanClaim bool `json:"can_claim"`
}

// CountdownResponse is returned by GET /api/v1/plans/{owner}/countdown.
type CountdownResponse struct {
	RemainingSecs uint64 `json:"remaining_secs"`
}

// ShareResponse is returned by GET /api/v1/plans/{owner}/share.
type ShareResponse struct {
	Beneficiary string `json:"beneficiary"`
	Share       uint64 `json:"share"`
}

// StatsResponse is returned by GET /api/v1/stats.
type StatsResponse struct {
	ActivePlans uint64 `json:"active_plans"`
	TotalLocked uint64 `json:"total_locked"`
}
