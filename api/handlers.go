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
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/vigil-labs/heirloom/escrow"
)

const apiVersion = "0.1.0"

// callerHeader carries the pre-authenticated caller identity.
const callerHeader = "X-Caller-Id"

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response.
func writeError(
	w http.ResponseWriter,
	status int,
	errStr string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}

// writeLedgerError maps ledger error kinds to HTTP statuses.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, escrow.ErrInvalidParameters):
		writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, escrow.ErrInsufficientFunds):
		writeError(
			w,
			http.StatusPaymentRequired,
			"Payment Required",
			err.Error(),
		)
	case errors.Is(err, escrow.ErrUnauthorizedAccess):
		writeError(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, escrow.ErrInheritanceNotFound):
		writeError(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, escrow.ErrTimeLockNotExpired),
		errors.Is(err, escrow.ErrEmergencyModeActive):
		writeError(w, http.StatusConflict, "Conflict", err.Error())
	default:
		writeError(
			w,
			http.StatusInternalServerError,
			"Internal Server Error",
			err.Error(),
		)
	}
}

// caller extracts the pre-authenticated caller identity. Writes a 401
// response and returns false when the header is missing.
func (a *Api) caller(
	w http.ResponseWriter,
	r *http.Request,
) (escrow.Identity, bool) {
	caller := r.Header.Get(callerHeader)
	if caller == "" {
		writeError(
			w,
			http.StatusUnauthorized,
			"Unauthorized",
			"missing "+callerHeader+" header",
		)
		return "", false
	}
	return escrow.Identity(caller), true
}

// decodeBody decodes a JSON request body. An empty body leaves the target
// at its zero value. Writes a 400 response and returns false on malformed
// input.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && errors.Is(err, io.EOF) {
		return true
	}
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"malformed request body",
		)
		return false
	}
	return true
}

func identities(names []string) []escrow.Identity {
	out := make([]escrow.Identity, 0, len(names))
	for _, name := range names {
		out = append(out, escrow.Identity(name))
	}
	return out
}

func planResponse(plan escrow.Plan) PlanResponse {
	resp := PlanResponse{
		Owner:            string(plan.Owner),
		EmergencyContact: string(plan.EmergencyContact),
		Description:      plan.Description,
		LockDurationSecs: uint64(plan.LockDuration / time.Second),
		LastProofOfLife:  plan.LastProofOfLife,
		CreationTime:     plan.CreationTime,
		TotalAmount:      plan.TotalAmount,
		FundedTotal:      plan.FundedTotal,
		IsActive:         plan.IsActive,
		EmergencyMode:    plan.EmergencyMode,
	}
	for i, b := range plan.Beneficiaries {
		resp.Beneficiaries = append(resp.Beneficiaries, BeneficiaryEntry{
			Identity: string(b),
			Share:    plan.Shares[i],
		})
	}
	return resp
}

// handleRoot handles GET / and returns API metadata.
func (a *Api) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Service: "heirloom",
		Version: apiVersion,
	})
}

// handleHealth handles GET /health.
func (a *Api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		IsHealthy: true,
	})
}

// handleCreatePlan handles POST /api/v1/plans. The caller becomes the plan
// owner.
func (a *Api) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req CreatePlanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := a.ledger.CreatePlan(
		caller,
		identities(req.Beneficiaries),
		req.Shares,
		time.Duration(req.LockDurationSecs)*time.Second, //nolint:gosec
		escrow.Identity(req.EmergencyContact),
		req.Description,
		req.Deposit,
	)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	plan, err := a.ledger.GetPlanDetails(caller)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, planResponse(plan))
}

// handleProofOfLife handles POST /api/v1/proof-of-life.
func (a *Api) handleProofOfLife(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	if err := a.ledger.SubmitProofOfLife(caller); err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddFunds handles POST /api/v1/funds.
func (a *Api) handleAddFunds(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req AddFundsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.ledger.AddFunds(caller, req.Amount); err != nil {
		writeLedgerError(w, err)
		return
	}
	plan, err := a.ledger.GetPlanDetails(caller)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse(plan))
}

// handleUpdateBeneficiaries handles POST /api/v1/beneficiaries.
func (a *Api) handleUpdateBeneficiaries(
	w http.ResponseWriter,
	r *http.Request,
) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req UpdateBeneficiariesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := a.ledger.UpdateBeneficiaries(
		caller,
		identities(req.Beneficiaries),
		req.Shares,
	)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	plan, err := a.ledger.GetPlanDetails(caller)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse(plan))
}

// handleClaim handles POST /api/v1/plans/{owner}/claim.
func (a *Api) handleClaim(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	owner := escrow.Identity(r.PathValue("owner"))
	amount, err := a.ledger.ClaimInheritance(caller, owner)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClaimResponse{
		Owner:       string(owner),
		Beneficiary: string(caller),
		Amount:      amount,
	})
}

// handleActivateEmergency handles POST /api/v1/plans/{owner}/emergency.
func (a *Api) handleActivateEmergency(
	w http.ResponseWriter,
	r *http.Request,
) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	owner := escrow.Identity(r.PathValue("owner"))
	if err := a.ledger.ActivateEmergencyRecovery(caller, owner); err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeactivateEmergency handles POST /api/v1/emergency/deactivate.
func (a *Api) handleDeactivateEmergency(
	w http.ResponseWriter,
	r *http.Request,
) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req DeactivateEmergencyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	owner := escrow.Identity(req.Owner)
	if owner.IsZero() {
		owner = caller
	}
	err := a.ledger.DeactivateEmergencyRecoveryFor(caller, owner)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetPlan handles GET /api/v1/plans/{owner}.
func (a *Api) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	owner := escrow.Identity(r.PathValue("owner"))
	plan, err := a.ledger.GetPlanDetails(owner)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse(plan))
}

// handleCanClaim handles GET /api/v1/plans/{owner}/can-claim.
func (a *Api) handleCanClaim(w http.ResponseWriter, r *http.Request) {
	owner := escrow.Identity(r.PathValue("owner"))
	writeJSON(w, http.StatusOK, CanClaimResponse{
		CanClaim: a.ledger.CanClaim(owner),
	})
}

// handleCountdown handles GET /api/v1/plans/{owner}/countdown.
func (a *Api) handleCountdown(w http.ResponseWriter, r *http.Request) {
	owner := escrow.Identity(r.PathValue("owner"))
	remaining, err := a.ledger.TimeUntilClaimable(owner)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountdownResponse{
		RemainingSecs: uint64(remaining / time.Second), //nolint:gosec
	})
}

// handleShare handles GET /api/v1/plans/{owner}/share. The beneficiary query
// parameter defaults to the caller identity.
func (a *Api) handleShare(w http.ResponseWriter, r *http.Request) {
	owner := escrow.Identity(r.PathValue("owner"))
	beneficiary := escrow.Identity(r.URL.Query().Get("beneficiary"))
	if beneficiary.IsZero() {
		beneficiary = escrow.Identity(r.Header.Get(callerHeader))
	}
	if beneficiary.IsZero() {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"missing beneficiary",
		)
		return
	}
	writeJSON(w, http.StatusOK, ShareResponse{
		Beneficiary: string(beneficiary),
		Share:       a.ledger.GetBeneficiaryShare(owner, beneficiary),
	})
}

// handleStats handles GET /api/v1/stats.
func (a *Api) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := a.ledger.GetStats()
	writeJSON(w, http.StatusOK, StatsResponse{
		ActivePlans: stats.ActivePlans,
		TotalLocked: stats.TotalLocked,
	})
}
