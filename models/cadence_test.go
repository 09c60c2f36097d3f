package models_test

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/crm_backend/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func TestComputeNextFollowUpDate_MonthEndClamping(t *testing.T) {
	cases := []struct {
		name      string
		reference time.Time
		months    int
		want      time.Time
	}{
		{"jan 31 plus one month leap year", date(2024, time.January, 31), 1, date(2024, time.February, 29)},
		{"jan 31 plus one month non leap", date(2025, time.January, 31), 1, date(2025, time.February, 28)},
		{"jan 30 plus one month", date(2024, time.January, 30), 1, date(2024, time.February, 29)},
		{"mid month untouched", date(2024, time.January, 20), 3, date(2024, time.April, 20)},
		{"may 31 plus one month", date(2024, time.May, 31), 1, date(2024, time.June, 30)},
		{"dec wraps into next year", date(2024, time.December, 15), 2, date(2025, time.February, 15)},
		{"oct 31 plus four months", date(2024, time.October, 31), 4, date(2025, time.February, 28)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := models.ComputeNextFollowUpDateWithDefault(tc.reference, intPtr(tc.months), nil, 0)
			if err != nil {
				t.Fatalf("ComputeNextFollowUpDateWithDefault: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestComputeNextFollowUpDate_TimesPerYear(t *testing.T) {
	ref := date(2024, time.March, 10)
	cases := []struct {
		name         string
		timesPerYear int
		wantMonths   int
	}{
		{"quarterly", 4, 3},
		{"five per year rounds to two months", 5, 2},
		{"monthly", 12, 1},
		{"weekly never drops below one month", 52, 1},
		{"yearly", 1, 12},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := models.ComputeNextFollowUpDateWithDefault(ref, nil, intPtr(tc.timesPerYear), 0)
			if err != nil {
				t.Fatalf("ComputeNextFollowUpDateWithDefault: %v", err)
			}
			want := ref.AddDate(0, tc.wantMonths, 0)
			if !got.Equal(want) {
				t.Fatalf("timesPerYear=%d: expected %s, got %s", tc.timesPerYear, want, got)
			}
		})
	}
}

func TestComputeNextFollowUpDate_FrequencyWinsOverTimesPerYear(t *testing.T) {
	ref := date(2024, time.June, 1)
	got, err := models.ComputeNextFollowUpDateWithDefault(ref, intPtr(6), intPtr(12), 0)
	if err != nil {
		t.Fatalf("ComputeNextFollowUpDateWithDefault: %v", err)
	}
	if want := date(2024, time.December, 1); !got.Equal(want) {
		t.Fatalf("expected frequencyMonths to win, want %s got %s", want, got)
	}
}

func TestComputeNextFollowUpDate_DefaultFallback(t *testing.T) {
	ref := date(2024, time.June, 1)
	got, err := models.ComputeNextFollowUpDateWithDefault(ref, nil, nil, 3)
	if err != nil {
		t.Fatalf("ComputeNextFollowUpDateWithDefault: %v", err)
	}
	if want := date(2024, time.September, 1); !got.Equal(want) {
		t.Fatalf("expected default fallback of 3 months, want %s got %s", want, got)
	}
}

func TestComputeNextFollowUpDate_InvalidConfig(t *testing.T) {
	ref := date(2024, time.June, 1)
	cases := []struct {
		name          string
		months        *int
		timesPerYear  *int
		defaultMonths int
	}{
		{"zero frequency", intPtr(0), nil, 3},
		{"negative frequency", intPtr(-2), nil, 3},
		{"zero times per year", nil, intPtr(0), 3},
		{"nothing set and no default", nil, nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := models.ComputeNextFollowUpDateWithDefault(ref, tc.months, tc.timesPerYear, tc.defaultMonths)
			if !errors.Is(err, models.ErrorInvalidCadenceConfig) {
				t.Fatalf("expected ErrorInvalidCadenceConfig, got %v", err)
			}
		})
	}
}

func TestComputeNextFollowUpDate_PreservesClockAndLocation(t *testing.T) {
	loc := time.FixedZone("Asia/Yangon", 6*3600+1800)
	ref := time.Date(2024, time.January, 31, 14, 30, 45, 0, loc)
	got, err := models.ComputeNextFollowUpDateWithDefault(ref, intPtr(1), nil, 0)
	if err != nil {
		t.Fatalf("ComputeNextFollowUpDateWithDefault: %v", err)
	}
	want := time.Date(2024, time.February, 29, 14, 30, 45, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if got.Location() != loc {
		t.Fatalf("expected location %v to survive, got %v", loc, got.Location())
	}
}
