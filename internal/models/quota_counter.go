package models

import "time"

// DateLayout is the calendar-day format used for quota resets.
const DateLayout = "2006-01-02"

// QuotaCounter tracks a caller's daily check consumption.
// DailyChecks resets to zero whenever the wall-clock date differs from
// LastResetDate; the reset is applied by the rate limiter, not the store.
type QuotaCounter struct {
	OwnerID       string    `json:"ownerId"`
	DailyChecks   int       `json:"dailyChecks"`
	LastCheckTime time.Time `json:"lastCheckTime"`
	LastResetDate string    `json:"lastResetDate"`
}
