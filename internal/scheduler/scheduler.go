// Package scheduler decides when the engine should run its next trading
// cycle. It is a pure function of wall-clock time and recently observed
// trade activity -- it never sleeps or blocks itself; the engine controller
// owns the actual ticker loop and asks the scheduler for the interval to use.
package scheduler

import (
	"time"
)

// Decision is the scheduler's verdict for the current instant.
type Decision struct {
	ShouldTradeNow bool
	Reason         string
}

// Schedule evaluates wall-clock conditions against the configured trading
// window and minimum trade spacing.
type Schedule struct {
	peakStartHourUTC int
	peakEndHourUTC   int
	minTradeInterval time.Duration
}

// NewSchedule constructs a Schedule. Hours are in [0,23] UTC; if
// peakStartHourUTC == peakEndHourUTC the whole day counts as peak (the
// window check is skipped).
func NewSchedule(peakStartHourUTC, peakEndHourUTC int, minTradeInterval time.Duration) *Schedule {
	return &Schedule{
		peakStartHourUTC: peakStartHourUTC,
		peakEndHourUTC:   peakEndHourUTC,
		minTradeInterval: minTradeInterval,
	}
}

// ShouldTradeNow reports whether the engine should proceed with a trade
// this cycle, given the time of the last trade.
func (s *Schedule) ShouldTradeNow(now time.Time, lastTradeTime time.Time) Decision {
	if !lastTradeTime.IsZero() {
		elapsed := now.Sub(lastTradeTime)
		if elapsed < s.minTradeInterval {
			return Decision{
				ShouldTradeNow: false,
				Reason:         "minimum trade interval not yet elapsed",
			}
		}
	}
	return Decision{ShouldTradeNow: true, Reason: "minimum trade interval elapsed"}
}

// DynamicCycleInterval widens the base cycle interval outside the peak
// trading window (lower urgency, spend fewer LLM calls) and leaves it
// unchanged inside the window.
func (s *Schedule) DynamicCycleInterval(now time.Time, base time.Duration) time.Duration {
	if s.isPeakWindow(now) {
		return base
	}
	return base * 2
}

// TimeUntilNextPeak returns how long until the start of the next peak
// trading window; zero if currently inside one.
func (s *Schedule) TimeUntilNextPeak(now time.Time) time.Duration {
	if s.isPeakWindow(now) {
		return 0
	}

	nowUTC := now.UTC()
	next := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day(), s.peakStartHourUTC, 0, 0, 0, time.UTC)
	if !next.After(nowUTC) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(nowUTC)
}

func (s *Schedule) isPeakWindow(now time.Time) bool {
	if s.peakStartHourUTC == s.peakEndHourUTC {
		return true
	}
	hour := now.UTC().Hour()
	if s.peakStartHourUTC < s.peakEndHourUTC {
		return hour >= s.peakStartHourUTC && hour < s.peakEndHourUTC
	}
	// window wraps midnight, e.g. 22 -> 6
	return hour >= s.peakStartHourUTC || hour < s.peakEndHourUTC
}
