package models_test

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/crm_backend/models"
	"bitbucket.org/mmdatafocus/crm_backend/utils"
)

func queueAccount(id int, priority models.CrmPriority, due time.Time) *models.Account {
	return &models.Account{
		ID:               id,
		CrmStatus:        models.CrmStatusActive,
		Priority:         priority,
		NextFollowUpDate: &due,
		IsActive:         utils.NewTrue(),
	}
}

func TestClassifyFollowUps_Partition(t *testing.T) {
	now := time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)

	overdue := queueAccount(1, models.CrmPriorityNormal, date(2024, time.June, 14))
	dueMidnight := queueAccount(2, models.CrmPriorityNormal, date(2024, time.June, 15))
	dueLate := queueAccount(3, models.CrmPriorityNormal, time.Date(2024, time.June, 15, 23, 59, 59, 0, time.UTC))
	upcoming := queueAccount(4, models.CrmPriorityNormal, date(2024, time.June, 20))
	lastOfWindow := queueAccount(5, models.CrmPriorityNormal, date(2024, time.June, 22))
	beyondWindow := queueAccount(6, models.CrmPriorityNormal, date(2024, time.June, 23))

	queues := models.ClassifyFollowUps([]*models.Account{
		overdue, dueMidnight, dueLate, upcoming, lastOfWindow, beyondWindow,
	}, now, time.UTC, 7)

	if len(queues.Overdue) != 1 || queues.Overdue[0].ID != 1 {
		t.Fatalf("expected only account 1 overdue, got %d entries", len(queues.Overdue))
	}
	if len(queues.DueToday) != 2 {
		t.Fatalf("expected accounts 2 and 3 due today, got %d entries", len(queues.DueToday))
	}
	if len(queues.Upcoming) != 2 {
		t.Fatalf("expected accounts 4 and 5 upcoming, got %d entries", len(queues.Upcoming))
	}
	for _, a := range queues.Upcoming {
		if a.ID == 6 {
			t.Fatalf("account beyond the window must not be listed")
		}
	}
}

func TestClassifyFollowUps_SkipsUnschedulableAccounts(t *testing.T) {
	now := time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)
	due := date(2024, time.June, 10)

	paused := queueAccount(1, models.CrmPriorityNormal, due)
	paused.CrmStatus = models.CrmStatusPaused
	cancelled := queueAccount(2, models.CrmPriorityNormal, due)
	cancelled.CrmStatus = models.CrmStatusCancelled
	deactivated := queueAccount(3, models.CrmPriorityNormal, due)
	deactivated.IsActive = utils.NewFalse()
	noDate := queueAccount(4, models.CrmPriorityNormal, due)
	noDate.NextFollowUpDate = nil
	atRisk := queueAccount(5, models.CrmPriorityNormal, due)
	atRisk.CrmStatus = models.CrmStatusAtRisk

	queues := models.ClassifyFollowUps([]*models.Account{
		paused, cancelled, deactivated, noDate, atRisk,
	}, now, time.UTC, 7)

	if len(queues.Overdue) != 1 || queues.Overdue[0].ID != 5 {
		t.Fatalf("expected only the AT_RISK account, got %+v", queues.Overdue)
	}
	if len(queues.DueToday) != 0 || len(queues.Upcoming) != 0 {
		t.Fatalf("expected empty due-today and upcoming buckets")
	}
}

func TestClassifyFollowUps_SortOrder(t *testing.T) {
	now := time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)

	// Same bucket: earlier date first, then priority rank, then id.
	a := queueAccount(10, models.CrmPriorityNormal, date(2024, time.June, 12))
	b := queueAccount(11, models.CrmPriorityCritical, date(2024, time.June, 13))
	c := queueAccount(12, models.CrmPriorityHighValue, date(2024, time.June, 13))
	d := queueAccount(9, models.CrmPriorityHighValue, date(2024, time.June, 13))

	queues := models.ClassifyFollowUps([]*models.Account{c, a, d, b}, now, time.UTC, 7)

	wantOrder := []int{10, 11, 9, 12}
	if len(queues.Overdue) != len(wantOrder) {
		t.Fatalf("expected %d overdue accounts, got %d", len(wantOrder), len(queues.Overdue))
	}
	for i, want := range wantOrder {
		if queues.Overdue[i].ID != want {
			t.Fatalf("position %d: expected account %d, got %d", i, want, queues.Overdue[i].ID)
		}
	}
}

func TestClassifyFollowUps_UsesBusinessTimezoneDayBounds(t *testing.T) {
	yangon := time.FixedZone("Asia/Yangon", 6*3600+1800)
	// 01:00 June 16 in Yangon is still 18:30 June 15 UTC.
	now := time.Date(2024, time.June, 15, 18, 30, 0, 0, time.UTC)

	// Due at June 15 23:00 Yangon time: already overdue locally.
	due := time.Date(2024, time.June, 15, 23, 0, 0, 0, yangon)
	account := queueAccount(1, models.CrmPriorityNormal, due)

	queues := models.ClassifyFollowUps([]*models.Account{account}, now, yangon, 7)
	if len(queues.Overdue) != 1 {
		t.Fatalf("expected account overdue in business timezone, got overdue=%d dueToday=%d",
			len(queues.Overdue), len(queues.DueToday))
	}

	// The same instant evaluated in UTC is still within June 15.
	queues = models.ClassifyFollowUps([]*models.Account{account}, now, time.UTC, 7)
	if len(queues.DueToday) != 1 {
		t.Fatalf("expected account due today in UTC, got overdue=%d dueToday=%d",
			len(queues.Overdue), len(queues.DueToday))
	}
}

func TestClassifyFollowUps_ZeroWindowExcludesTomorrow(t *testing.T) {
	now := time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)
	today := queueAccount(1, models.CrmPriorityNormal, date(2024, time.June, 15))
	tomorrow := queueAccount(2, models.CrmPriorityNormal, date(2024, time.June, 16))

	queues := models.ClassifyFollowUps([]*models.Account{today, tomorrow}, now, time.UTC, 0)
	if len(queues.DueToday) != 1 || queues.DueToday[0].ID != 1 {
		t.Fatalf("expected only today's account, got %d entries", len(queues.DueToday))
	}
	if len(queues.Upcoming) != 0 {
		t.Fatalf("window of zero days must not list tomorrow")
	}
}
