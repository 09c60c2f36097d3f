package models_test

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/crm_backend/models"
)

func unassigned(id int, priority models.CrmPriority) *models.Account {
	return &models.Account{ID: id, Priority: priority, CrmStatus: models.CrmStatusActive}
}

func TestResolveAssignments_RoundRobinDistribution(t *testing.T) {
	accounts := []*models.Account{
		unassigned(5, models.CrmPriorityNormal),
		unassigned(1, models.CrmPriorityNormal),
		unassigned(3, models.CrmPriorityNormal),
		unassigned(2, models.CrmPriorityNormal),
		unassigned(4, models.CrmPriorityNormal),
	}

	got, err := models.ResolveAssignments(accounts, []int{10, 20}, models.AssignmentStrategyRoundRobin)
	if err != nil {
		t.Fatalf("ResolveAssignments: %v", err)
	}

	// Accounts walk in id order regardless of input order, so the pairing is
	// fixed.
	want := []models.Assignment{
		{AccountId: 1, OwnerId: 10},
		{AccountId: 2, OwnerId: 20},
		{AccountId: 3, OwnerId: 10},
		{AccountId: 4, OwnerId: 20},
		{AccountId: 5, OwnerId: 10},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d assignments, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}

	// 5 accounts over 2 owners: one owner gets 3, the other 2.
	perOwner := map[int]int{}
	for _, a := range got {
		perOwner[a.OwnerId]++
	}
	if perOwner[10] != 3 || perOwner[20] != 2 {
		t.Fatalf("expected 3/2 split, got %+v", perOwner)
	}
}

func TestResolveAssignments_ByPriorityOrdering(t *testing.T) {
	older := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

	neverContacted := unassigned(1, models.CrmPriorityCritical)
	staleCritical := unassigned(2, models.CrmPriorityCritical)
	staleCritical.LastContactDate = &older
	freshCritical := unassigned(3, models.CrmPriorityCritical)
	freshCritical.LastContactDate = &newer
	highValue := unassigned(4, models.CrmPriorityHighValue)
	normal := unassigned(5, models.CrmPriorityNormal)

	got, err := models.ResolveAssignments(
		[]*models.Account{normal, freshCritical, highValue, staleCritical, neverContacted},
		[]int{10, 20},
		models.AssignmentStrategyByPriority,
	)
	if err != nil {
		t.Fatalf("ResolveAssignments: %v", err)
	}

	// Critical first; within a rank, never contacted counts as oldest.
	// Owners rotate over that ordering.
	want := []models.Assignment{
		{AccountId: 1, OwnerId: 10},
		{AccountId: 2, OwnerId: 20},
		{AccountId: 3, OwnerId: 10},
		{AccountId: 4, OwnerId: 20},
		{AccountId: 5, OwnerId: 10},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestResolveAssignments_ManualCyclesCallerOrder(t *testing.T) {
	accounts := []*models.Account{
		unassigned(7, models.CrmPriorityNormal),
		unassigned(3, models.CrmPriorityNormal),
		unassigned(9, models.CrmPriorityNormal),
	}

	// Manual keeps the caller's account order and cycles the selected owners.
	got, err := models.ResolveAssignments(accounts, []int{40, 50}, models.AssignmentStrategyManual)
	if err != nil {
		t.Fatalf("ResolveAssignments: %v", err)
	}
	want := []models.Assignment{
		{AccountId: 7, OwnerId: 40},
		{AccountId: 3, OwnerId: 50},
		{AccountId: 9, OwnerId: 40},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestResolveAssignments_SingleOwnerTakesEverything(t *testing.T) {
	accounts := []*models.Account{
		unassigned(1, models.CrmPriorityNormal),
		unassigned(2, models.CrmPriorityNormal),
	}
	got, err := models.ResolveAssignments(accounts, []int{10}, models.AssignmentStrategyManual)
	if err != nil {
		t.Fatalf("ResolveAssignments: %v", err)
	}
	for _, a := range got {
		if a.OwnerId != 10 {
			t.Fatalf("expected every account on owner 10, got %+v", got)
		}
	}
}

func TestResolveAssignments_Guards(t *testing.T) {
	accounts := []*models.Account{unassigned(1, models.CrmPriorityNormal)}

	_, err := models.ResolveAssignments(accounts, nil, models.AssignmentStrategyRoundRobin)
	if !errors.Is(err, models.ErrorEmptyOwnerPool) {
		t.Fatalf("expected ErrorEmptyOwnerPool, got %v", err)
	}

	_, err = models.ResolveAssignments(nil, []int{10}, models.AssignmentStrategyRoundRobin)
	if !errors.Is(err, models.ErrorNoEligibleAccounts) {
		t.Fatalf("expected ErrorNoEligibleAccounts, got %v", err)
	}

	_, err = models.ResolveAssignments(accounts, []int{10}, models.AssignmentStrategy("LOTTERY"))
	if err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}
