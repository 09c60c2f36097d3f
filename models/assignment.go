package models

import (
	"context"
	"errors"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/crm_backend/config"
	"bitbucket.org/mmdatafocus/crm_backend/utils"
	"gorm.io/gorm"
)

// Assignment pairs one account with the owner it should move to.
type Assignment struct {
	AccountId int `json:"account_id"`
	OwnerId   int `json:"owner_id"`
}

// AssignmentReport summarizes a bulk apply. Failures never abort the batch;
// each item lands in exactly one bucket.
type AssignmentReport struct {
	Assigned int            `json:"assigned"`
	Skipped  int            `json:"skipped"`
	Failed   int            `json:"failed"`
	Errors   map[int]string `json:"errors,omitempty"`
	Applied  []Assignment   `json:"applied,omitempty"`
}

type BulkAssignInput struct {
	Strategy AssignmentStrategy `json:"strategy" binding:"required"`
	// AccountIds narrows the unassigned pool; MANUAL requires it.
	AccountIds []int `json:"account_ids"`
	// OwnerIds narrows the owner pool; empty means every active owner.
	OwnerIds []int `json:"owner_ids"`
}

// ResolveAssignments computes account/owner pairs for one strategy without
// touching the database.
//
// ownerIds is the eligible pool in the caller's order; every strategy cycles
// owners[i%K] over its own account ordering:
//   - MANUAL keeps the accounts exactly as given.
//   - ROUND_ROBIN walks accounts by id ascending.
//   - BY_PRIORITY walks by priority rank descending, then oldest last contact
//     first (never contacted sorts oldest), then id, so the most neglected
//     critical accounts are spread across the pool first.
func ResolveAssignments(accounts []*Account, ownerIds []int, strategy AssignmentStrategy) ([]Assignment, error) {

	if !strategy.IsValid() {
		return nil, errors.New("invalid assignment strategy")
	}
	if len(ownerIds) == 0 {
		return nil, ErrorEmptyOwnerPool
	}
	if len(accounts) == 0 {
		return nil, ErrorNoEligibleAccounts
	}

	ordered := make([]*Account, len(accounts))
	copy(ordered, accounts)

	switch strategy {
	case AssignmentStrategyManual:
		// caller-given order
	case AssignmentStrategyRoundRobin:
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	case AssignmentStrategyByPriority:
		sort.SliceStable(ordered, func(i, j int) bool {
			a, b := ordered[i], ordered[j]
			if a.Priority.Rank() != b.Priority.Rank() {
				return a.Priority.Rank() > b.Priority.Rank()
			}
			if !lastContactEqual(a.LastContactDate, b.LastContactDate) {
				return lastContactBefore(a.LastContactDate, b.LastContactDate)
			}
			return a.ID < b.ID
		})
	}

	assignments := make([]Assignment, 0, len(ordered))
	for i, account := range ordered {
		assignments = append(assignments, Assignment{
			AccountId: account.ID,
			OwnerId:   ownerIds[i%len(ownerIds)],
		})
	}
	return assignments, nil
}

func lastContactEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// nil sorts first: an account never contacted is the most neglected
func lastContactBefore(a, b *time.Time) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return a.Before(*b)
}

// ApplyAssignments writes resolved pairs one at a time. An item that fails
// (account vanished, already owned, stale version) is reported and the rest
// of the batch continues.
func ApplyAssignments(ctx context.Context, assignments []Assignment) (*AssignmentReport, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	report := AssignmentReport{Errors: make(map[int]string)}
	db := config.GetDB()
	now := time.Now()

	for _, assignment := range assignments {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var account Account
			if err := tx.Where("business_id = ?", businessId).
				First(&account, assignment.AccountId).Error; err != nil {
				return utils.ErrorRecordNotFound
			}
			if account.AccountOwnerId != 0 {
				return ErrorAccountNotUnassigned
			}

			result := tx.Model(&Account{}).
				Where("id = ? AND version = ?", account.ID, account.Version).
				Updates(map[string]interface{}{
					"AccountOwnerId": assignment.OwnerId,
					"Version":        account.Version + 1,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return errors.New("account changed concurrently")
			}

			return PublishCrmEvent(ctx, tx, businessId, now, account.ID,
				CrmEventReferenceTypeAssignment, &assignment, nil, CrmEventActionCreate)
		})
		switch {
		case err == nil:
			report.Assigned++
			report.Applied = append(report.Applied, assignment)
			if err := utils.RemoveRedisItem[Account](assignment.AccountId); err != nil {
				report.Errors[assignment.AccountId] = err.Error()
			}
		case errors.Is(err, ErrorAccountNotUnassigned):
			report.Skipped++
			report.Errors[assignment.AccountId] = err.Error()
		default:
			report.Failed++
			report.Errors[assignment.AccountId] = err.Error()
		}
	}
	if len(report.Errors) == 0 {
		report.Errors = nil
	}
	return &report, nil
}

// BulkAssignAccounts resolves and applies assignments for the business's
// unassigned accounts (or an explicit subset).
func BulkAssignAccounts(ctx context.Context, input *BulkAssignInput) (*AssignmentReport, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if !config.AssignmentStrategyEnabled(string(input.Strategy)) {
		return nil, errors.New("assignment strategy is disabled")
	}
	if input.Strategy == AssignmentStrategyManual && len(input.AccountIds) == 0 {
		return nil, errors.New("manual assignment requires explicit account ids")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Where("account_owner_id = 0").
		Where("is_active = ?", true)
	if len(input.AccountIds) > 0 {
		dbCtx = dbCtx.Where("id IN ?", input.AccountIds)
	}
	var accounts []*Account
	if err := dbCtx.Find(&accounts).Error; err != nil {
		return nil, err
	}

	activeOwnerIds, err := GetActiveOwnerIds(ctx)
	if err != nil {
		return nil, err
	}

	var ownerIds []int
	if len(input.OwnerIds) > 0 {
		for _, id := range input.OwnerIds {
			if id == 0 || !activeOwnerIds[id] {
				return nil, ErrorInvalidAssignee
			}
			ownerIds = append(ownerIds, id)
		}
	} else {
		for id, active := range activeOwnerIds {
			if active {
				ownerIds = append(ownerIds, id)
			}
		}
		sort.Ints(ownerIds)
	}

	assignments, err := ResolveAssignments(accounts, ownerIds, input.Strategy)
	if err != nil {
		return nil, err
	}
	return ApplyAssignments(ctx, assignments)
}
