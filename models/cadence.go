package models

import (
	"math"
	"time"

	"bitbucket.org/mmdatafocus/crm_backend/config"
)

// ComputeNextFollowUpDate returns the next follow-up due date for an account's
// cadence config, counted from referenceDate.
//
// Precedence: frequencyMonths wins over timesPerYear when both are set.
// timesPerYear converts to round(12/n) months, minimum 1. When neither is set
// the deployment default applies; a default of 0 disables the fallback and the
// call fails with ErrorInvalidCadenceConfig.
//
// Pure: same inputs always yield the same output.
func ComputeNextFollowUpDate(referenceDate time.Time, frequencyMonths *int, timesPerYear *int) (time.Time, error) {
	return computeNextFollowUpDate(referenceDate, frequencyMonths, timesPerYear, config.DefaultFollowUpFrequencyMonths())
}

// ComputeNextFollowUpDateWithDefault is the variant used when the business
// carries its own fallback cadence.
func ComputeNextFollowUpDateWithDefault(referenceDate time.Time, frequencyMonths *int, timesPerYear *int, defaultMonths int) (time.Time, error) {
	return computeNextFollowUpDate(referenceDate, frequencyMonths, timesPerYear, defaultMonths)
}

func computeNextFollowUpDate(referenceDate time.Time, frequencyMonths *int, timesPerYear *int, defaultMonths int) (time.Time, error) {
	if frequencyMonths != nil {
		if *frequencyMonths < 1 {
			return time.Time{}, ErrorInvalidCadenceConfig
		}
		return addMonthsClamped(referenceDate, *frequencyMonths), nil
	}

	if timesPerYear != nil {
		if *timesPerYear < 1 {
			return time.Time{}, ErrorInvalidCadenceConfig
		}
		months := int(math.Round(12.0 / float64(*timesPerYear)))
		if months < 1 {
			months = 1
		}
		return addMonthsClamped(referenceDate, months), nil
	}

	if defaultMonths < 1 {
		return time.Time{}, ErrorInvalidCadenceConfig
	}
	return addMonthsClamped(referenceDate, defaultMonths), nil
}

// addMonthsClamped adds calendar months with month-end clamping: when the
// reference day does not exist in the target month, the result is the target
// month's last day (Jan 31 + 1 month = Feb 28/29). time.AddDate alone
// normalizes overflow into the next month, which is wrong here.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := daysInMonth(firstOfTarget.Year(), firstOfTarget.Month(), t.Location())
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month, loc *time.Location) int {
	// day 0 of the next month is the last day of this month
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
