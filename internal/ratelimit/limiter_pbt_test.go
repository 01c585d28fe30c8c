package ratelimit

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestBatchSizeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	limiter := NewLimiter(nil)

	properties.Property("sizes within the ceiling are valid", prop.ForAll(
		func(size int) bool {
			return limiter.ValidateBatchSize(size).Valid
		},
		gen.IntRange(1, MaxBatchSize),
	))

	properties.Property("sizes past the ceiling are rejected with a reason", prop.ForAll(
		func(size int) bool {
			verdict := limiter.ValidateBatchSize(size)
			return !verdict.Valid && verdict.Reason != ""
		},
		gen.IntRange(MaxBatchSize+1, MaxBatchSize*100),
	))

	properties.Property("non-positive sizes are rejected", prop.ForAll(
		func(size int) bool {
			return !limiter.ValidateBatchSize(-size).Valid
		},
		gen.IntRange(0, 1<<30),
	))

	properties.TestingRun(t)
}

func TestMidnightWaitProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// The daily-limit wait hint always lands inside (0, 24h] and waiting it
	// out always crosses a calendar-day boundary.
	properties.Property("wait hint crosses the day boundary", prop.ForAll(
		func(offsetSeconds int64) bool {
			now := base.Add(time.Duration(offsetSeconds) * time.Second)
			wait := millisUntilNextMidnight(now)
			if wait <= 0 || wait > 24*time.Hour.Milliseconds() {
				return false
			}
			after := now.Add(time.Duration(wait) * time.Millisecond)
			return after.Format("2006-01-02") != now.Format("2006-01-02")
		},
		gen.Int64Range(0, 365*24*3600),
	))

	properties.TestingRun(t)
}
