package models

import (
	"context"
	"errors"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/crm_backend/config"
	"bitbucket.org/mmdatafocus/crm_backend/utils"
)

// FollowUpQueues is the dashboard partition of accounts that are due for
// contact. Buckets never overlap and accounts beyond the upcoming window are
// not listed at all.
type FollowUpQueues struct {
	Overdue  []*Account `json:"overdue"`
	DueToday []*Account `json:"due_today"`
	Upcoming []*Account `json:"upcoming"`
}

// ClassifyFollowUps partitions accounts by their next follow-up date relative
// to now, using day bounds in the given location.
//
// Accounts are skipped entirely when they have no next follow-up date, their
// crm status is not schedulable, or they are deactivated. windowDays bounds
// the upcoming bucket; 0 days means due-today is the horizon.
func ClassifyFollowUps(accounts []*Account, now time.Time, loc *time.Location, windowDays int) FollowUpQueues {

	if loc == nil {
		loc = time.UTC
	}
	localNow := now.In(loc)
	startOfToday := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, loc)
	endOfToday := startOfToday.AddDate(0, 0, 1)
	windowEnd := startOfToday.AddDate(0, 0, windowDays+1)

	queues := FollowUpQueues{
		Overdue:  make([]*Account, 0),
		DueToday: make([]*Account, 0),
		Upcoming: make([]*Account, 0),
	}
	for _, account := range accounts {
		if account == nil || account.NextFollowUpDate == nil {
			continue
		}
		if !account.CrmStatus.IsSchedulable() {
			continue
		}
		if account.IsActive != nil && !*account.IsActive {
			continue
		}

		due := account.NextFollowUpDate.In(loc)
		switch {
		case due.Before(startOfToday):
			queues.Overdue = append(queues.Overdue, account)
		case due.Before(endOfToday):
			queues.DueToday = append(queues.DueToday, account)
		case due.Before(windowEnd):
			queues.Upcoming = append(queues.Upcoming, account)
		}
	}

	sortQueue(queues.Overdue)
	sortQueue(queues.DueToday)
	sortQueue(queues.Upcoming)
	return queues
}

// earliest date first, then higher priority, then id for a stable listing
func sortQueue(accounts []*Account) {
	sort.SliceStable(accounts, func(i, j int) bool {
		a, b := accounts[i], accounts[j]
		if !a.NextFollowUpDate.Equal(*b.NextFollowUpDate) {
			return a.NextFollowUpDate.Before(*b.NextFollowUpDate)
		}
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		return a.ID < b.ID
	})
}

// GetFollowUpDashboard loads the business's schedulable accounts and
// classifies them in the business timezone. ownerId narrows the dashboard to
// one owner's book of accounts.
func GetFollowUpDashboard(ctx context.Context, windowDays *int, ownerId *int) (*FollowUpQueues, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return nil, err
	}

	window := business.UpcomingWindowDays
	if windowDays != nil {
		if *windowDays < 0 {
			return nil, errors.New("window days must not be negative")
		}
		window = *windowDays
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Where("next_follow_up_date IS NOT NULL").
		Where("crm_status IN ?", []CrmStatus{CrmStatusActive, CrmStatusAtRisk}).
		Where("is_active = ?", true)
	if ownerId != nil {
		dbCtx = dbCtx.Where("account_owner_id = ?", *ownerId)
	}

	var accounts []*Account
	if err := dbCtx.Find(&accounts).Error; err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(business.Timezone)
	if err != nil {
		loc = time.UTC
	}
	queues := ClassifyFollowUps(accounts, time.Now(), loc, window)
	return &queues, nil
}
