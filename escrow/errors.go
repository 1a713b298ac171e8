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
	"errors"
	"fmt"
	"time"
)

// Error kinds surfaced by ledger operations. Every rejection is one of
// these; detail-carrying error types below unwrap to them so callers can
// match with errors.Is.
var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrUnauthorizedAccess  = errors.New("unauthorized access")
	ErrInvalidParameters   = errors.New("invalid parameters")
	ErrInheritanceNotFound = errors.New("inheritance plan not found")
	ErrTimeLockNotExpired  = errors.New("time lock not expired")
	ErrEmergencyModeActive = errors.New("emergency mode active")
)

// ValidationError reports a violated precondition with a human-readable
// reason. It unwraps to ErrInvalidParameters.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameters: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidParameters
}

// TimeLockNotExpiredError is returned when a claim is attempted before the
// plan's inactivity period has elapsed. It unwraps to ErrTimeLockNotExpired.
type TimeLockNotExpiredError struct {
	Remaining time.Duration
}

func (e *TimeLockNotExpiredError) Error() string {
	return fmt.Sprintf(
		"time lock not expired: %s remaining",
		e.Remaining,
	)
}

func (e *TimeLockNotExpiredError) Unwrap() error {
	return ErrTimeLockNotExpired
}

// TransferFailedError is returned when the external funds-transfer primitive
// reports failure during a claim. The claim's state changes are rolled back
// before this is surfaced. It unwraps to ErrInsufficientFunds.
type TransferFailedError struct {
	To     Identity
	Amount uint64
	Err    error
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf(
		"transfer of %d to %s failed: %v",
		e.Amount,
		e.To,
		e.Err,
	)
}

func (e *TransferFailedError) Unwrap() error {
	return ErrInsufficientFunds
}
