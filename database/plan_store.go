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
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vigil-labs/heirloom/database/models"
	"github.com/vigil-labs/heirloom/escrow"
)

// PlanStore persists ledger plan snapshots and claim records in the SQLite
// metadata store. It implements escrow.Store.
type PlanStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

func newPlanStore(db *gorm.DB, logger *slog.Logger) (*PlanStore, error) {
	if db == nil {
		return nil, errors.New("nil database handle")
	}
	return &PlanStore{
		db:     db,
		logger: logger,
	}, nil
}

// PutPlan upserts the snapshot for the plan's owner, replacing its
// beneficiary rows.
func (s *PlanStore) PutPlan(plan escrow.Plan) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Plan
		result := tx.Where("owner = ?", string(plan.Owner)).First(&existing)
		if result.Error != nil {
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return result.Error
			}
			record := planToModel(plan)
			return tx.Create(&record).Error
		}
		record := planToModel(plan)
		record.ID = existing.ID
		if err := tx.
			Where("plan_id = ?", existing.ID).
			Delete(&models.PlanBeneficiary{}).Error; err != nil {
			return err
		}
		return tx.Save(&record).Error
	})
}

// PutClaim inserts a claim record. Re-inserting the same (owner, beneficiary)
// pair is a no-op, which makes snapshot replays after restart safe.
func (s *PlanStore) PutClaim(claim escrow.ClaimRecord) error {
	record := models.Claim{
		Owner:       string(claim.Owner),
		Beneficiary: string(claim.Beneficiary),
		Amount:      claim.Amount,
		ClaimedAt:   claim.ClaimedAt,
	}
	return s.db.
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "owner"},
				{Name: "beneficiary"},
			},
			DoNothing: true,
		}).
		Create(&record).Error
}

// Plans returns all persisted plan snapshots.
func (s *PlanStore) Plans() ([]escrow.Plan, error) {
	var records []models.Plan
	result := s.db.
		Preload("Beneficiaries", func(db *gorm.DB) *gorm.DB {
			return db.Order("position")
		}).
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	plans := make([]escrow.Plan, 0, len(records))
	for i := range records {
		plans = append(plans, planFromModel(&records[i]))
	}
	return plans, nil
}

// Claims returns all persisted claim records.
func (s *PlanStore) Claims() ([]escrow.ClaimRecord, error) {
	var records []models.Claim
	result := s.db.Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	claims := make([]escrow.ClaimRecord, 0, len(records))
	for _, record := range records {
		claims = append(claims, escrow.ClaimRecord{
			Owner:       escrow.Identity(record.Owner),
			Beneficiary: escrow.Identity(record.Beneficiary),
			Amount:      record.Amount,
			ClaimedAt:   record.ClaimedAt,
		})
	}
	return claims, nil
}

func planToModel(plan escrow.Plan) models.Plan {
	record := models.Plan{
		Owner:            string(plan.Owner),
		EmergencyContact: string(plan.EmergencyContact),
		Description:      plan.Description,
		LockDuration:     int64(plan.LockDuration),
		LastProofOfLife:  plan.LastProofOfLife,
		CreationTime:     plan.CreationTime,
		TotalAmount:      plan.TotalAmount,
		FundedTotal:      plan.FundedTotal,
		IsActive:         plan.IsActive,
		EmergencyMode:    plan.EmergencyMode,
	}
	for i, b := range plan.Beneficiaries {
		record.Beneficiaries = append(
			record.Beneficiaries,
			models.PlanBeneficiary{
				Beneficiary: string(b),
				Position:    i,
				Share:       plan.Shares[i],
			},
		)
	}
	return record
}

func planFromModel(record *models.Plan) escrow.Plan {
	plan := escrow.Plan{
		Owner:            escrow.Identity(record.Owner),
		EmergencyContact: escrow.Identity(record.EmergencyContact),
		Description:      record.Description,
		LockDuration:     time.Duration(record.LockDuration),
		LastProofOfLife:  record.LastProofOfLife,
		CreationTime:     record.CreationTime,
		TotalAmount:      record.TotalAmount,
		FundedTotal:      record.FundedTotal,
		IsActive:         record.IsActive,
		EmergencyMode:    record.EmergencyMode,
	}
	for _, b := range record.Beneficiaries {
		plan.Beneficiaries = append(
			plan.Beneficiaries,
			escrow.Identity(b.Beneficiary),
		)
		plan.Shares = append(plan.Shares, b.Share)
	}
	return plan
}
