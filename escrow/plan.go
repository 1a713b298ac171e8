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
	"slices"
	"time"
)

const (
	// MaxBeneficiaries is the maximum number of beneficiaries per plan
	MaxBeneficiaries = 20
	// ShareTotal is the required sum of all beneficiary shares
	ShareTotal = 100
	// MinLockDuration is the minimum inactivity period before claims open
	MinLockDuration = 30 * 24 * time.Hour
	// MaxLockDuration is the maximum configurable inactivity period
	MaxLockDuration = 3650 * 24 * time.Hour
)

// Identity is an opaque, already-authenticated caller identity. The zero
// value is treated as null and rejected wherever an identity is required.
type Identity string

func (i Identity) IsZero() bool {
	return i == ""
}

// Plan is a single inheritance record. Exactly one plan exists per owner
// identity. All fields are snapshots when returned from ledger queries;
// mutating a returned Plan has no effect on ledger state. FundedTotal is the
// cumulative amount ever deposited (initial deposit plus top-ups) and is the
// base that beneficiary shares apply to; TotalAmount is the remaining
// unclaimed balance.
type Plan struct {
	Owner            Identity
	Beneficiaries    []Identity
	Shares           []uint64
	LockDuration     time.Duration
	LastProofOfLife  time.Time
	CreationTime     time.Time
	TotalAmount      uint64
	FundedTotal      uint64
	IsActive         bool
	EmergencyMode    bool
	EmergencyContact Identity
	Description      string
}

// ShareOf returns the share percentage for the given beneficiary, matching
// by first occurrence. Returns 0 if the identity is not a beneficiary.
func (p *Plan) ShareOf(beneficiary Identity) uint64 {
	for i, b := range p.Beneficiaries {
		if b == beneficiary {
			return p.Shares[i]
		}
	}
	return 0
}

// ClaimableAt returns the earliest time at which claims open, based on the
// last recorded proof of life.
func (p *Plan) ClaimableAt() time.Time {
	return p.LastProofOfLife.Add(p.LockDuration)
}

// snapshot returns a deep copy safe to hand outside the ledger lock.
func (p *Plan) snapshot() Plan {
	ret := *p
	ret.Beneficiaries = slices.Clone(p.Beneficiaries)
	ret.Shares = slices.Clone(p.Shares)
	return ret
}

// validateBeneficiaries checks a beneficiary/share list against the plan
// invariants shared by plan creation and beneficiary updates. The emergency
// contact must not appear in the list.
func validateBeneficiaries(
	beneficiaries []Identity,
	shares []uint64,
	emergencyContact Identity,
) error {
	if len(beneficiaries) == 0 {
		return &ValidationError{Reason: "at least one beneficiary required"}
	}
	if len(beneficiaries) > MaxBeneficiaries {
		return &ValidationError{
			Reason: fmt.Sprintf(
				"too many beneficiaries: %d > %d",
				len(beneficiaries),
				MaxBeneficiaries,
			),
		}
	}
	if len(beneficiaries) != len(shares) {
		return &ValidationError{
			Reason: "beneficiary and share counts differ",
		}
	}
	seen := make(map[Identity]struct{}, len(beneficiaries))
	var shareSum uint64
	for i, b := range beneficiaries {
		if b.IsZero() {
			return &ValidationError{Reason: "null beneficiary identity"}
		}
		if b == emergencyContact {
			return &ValidationError{
				Reason: "emergency contact cannot be a beneficiary",
			}
		}
		if _, ok := seen[b]; ok {
			return &ValidationError{
				Reason: fmt.Sprintf("duplicate beneficiary: %s", b),
			}
		}
		seen[b] = struct{}{}
		if shares[i] == 0 || shares[i] > ShareTotal {
			return &ValidationError{
				Reason: fmt.Sprintf(
					"share for %s out of range (0,100]: %d",
					b,
					shares[i],
				),
			}
		}
		shareSum += shares[i]
	}
	if shareSum != ShareTotal {
		return &ValidationError{
			Reason: fmt.Sprintf(
				"shares must sum to %d, got %d",
				ShareTotal,
				shareSum,
			),
		}
	}
	return nil
}

// validateLockDuration checks the configured inactivity period bounds.
func validateLockDuration(lockDuration time.Duration) error {
	if lockDuration < MinLockDuration || lockDuration > MaxLockDuration {
		return &ValidationError{
			Reason: fmt.Sprintf(
				"lock duration %s outside [%s, %s]",
				lockDuration,
				MinLockDuration,
				MaxLockDuration,
			),
		}
	}
	return nil
}
