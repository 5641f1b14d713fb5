// Package marketclock maps wall-clock time to the engine's market-state
// enumeration and gates all scheduling, grounded on the teacher pack's
// NitinKhare-trader/internal/market/calendar.go (holiday calendar,
// minutes-since-midnight open/close comparison, TimeUntilNextSession) but
// generalized from NSE's single open/close window to the six states
// this engine's Scheduler dispatches against.
package marketclock

import (
	"context"
	"fmt"
	"time"

	"github.com/nyxtrader/decisioncore/internal/core"
)

// Session boundaries, expressed as minutes since midnight in the market
// timezone, per spec: ACTIVE_TRADING 09:30-15:30, MARKET_CLOSING
// 15:30-16:30, EVENING_ANALYSIS 16:30-22:00, OVERNIGHT_SLEEP 22:00-06:00
// (wraps), PREMARKET_PREP 06:00-09:30.
const (
	activeOpenMin  = 9*60 + 30
	activeCloseMin = 15*60 + 30
	closingEndMin  = 16*60 + 30
	eveningEndMin  = 22 * 60
)

// HolidayCalendar reports whether a date is a market holiday. Weekends are
// handled internally by Clock and need not be included.
type HolidayCalendar interface {
	IsHoliday(date time.Time) bool
}

// StaticHolidays is a HolidayCalendar backed by a fixed YYYY-MM-DD set,
// suitable for a JSON-loaded holiday list the way the teacher's Calendar
// loads one from a file.
type StaticHolidays map[string]string // date -> reason

func (h StaticHolidays) IsHoliday(date time.Time) bool {
	_, ok := h[date.Format("2006-01-02")]
	return ok
}

// OpenTruthSource is the Broker collaborator's market-open signal.
// MarketClock prefers this when available and falls back to its own
// wall-clock/calendar model otherwise.
type OpenTruthSource interface {
	IsMarketOpen(ctx context.Context) (bool, error)
}

// Clock maps wall-clock instants in a fixed timezone to a core.MarketState.
type Clock struct {
	loc      *time.Location
	holidays HolidayCalendar
	broker   OpenTruthSource // optional
}

// New builds a Clock for the given IANA timezone name (e.g.
// "America/New_York"). holidays may be nil (weekends-only calendar).
// broker may be nil (falls back to wall-clock/calendar only).
func New(timezone string, holidays HolidayCalendar, broker OpenTruthSource) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("marketclock: load location %q: %w", timezone, err)
	}
	if holidays == nil {
		holidays = StaticHolidays{}
	}
	return &Clock{loc: loc, holidays: holidays, broker: broker}, nil
}

func (c *Clock) isTradingDay(t time.Time) bool {
	d := t.In(c.loc)
	if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		return false
	}
	return !c.holidays.IsHoliday(d)
}

func minutesSinceMidnight(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Location returns the market timezone Clock was built with, so callers
// can derive a trading-date string consistent with the clock's own
// session-boundary math instead of guessing at a timezone independently.
func (c *Clock) Location() *time.Location { return c.loc }

// NowState returns the MarketState for the current instant. When a
// broker is configured and answers, its IsMarketOpen signal overrides the
// wall-clock classification for the ACTIVE_TRADING boundary only (the
// other four states are always wall-clock derived, since the Broker only
// knows open/closed, not which off-hours bucket it is). When the broker
// is configured but errors, NowState returns UNKNOWN per spec: the
// Scheduler MUST treat UNKNOWN as non-tradeable.
func (c *Clock) NowState(ctx context.Context, now time.Time) core.MarketState {
	state := c.classify(now)

	if c.broker == nil {
		return state
	}

	open, err := c.broker.IsMarketOpen(ctx)
	if err != nil {
		return core.StateUnknown
	}
	if state == core.StateActiveTrading && !open {
		// Broker disagrees (e.g. an unscheduled halt): do not claim tradeable.
		return core.StateMarketClosing
	}
	return state
}

// classify is the pure wall-clock/calendar classification, used directly
// by NowState when no broker is wired and by tests.
func (c *Clock) classify(now time.Time) core.MarketState {
	t := now.In(c.loc)
	mins := minutesSinceMidnight(t)
	tradingDay := c.isTradingDay(t)

	switch {
	case tradingDay && mins >= activeOpenMin && mins < activeCloseMin:
		return core.StateActiveTrading
	case tradingDay && mins >= activeCloseMin && mins < closingEndMin:
		return core.StateMarketClosing
	case tradingDay && mins >= closingEndMin && mins < eveningEndMin:
		return core.StateEveningAnalysis
	default:
		return c.overnightOrPremarket(t, mins)
	}
}

// overnightOrPremarket resolves the 22:00->06:00->09:30 band, including
// the weekend/holiday collapse: night hours always OVERNIGHT_SLEEP,
// 06:00-09:30 is PREMARKET_PREP on a trading day and OVERNIGHT_SLEEP
// (trading suppressed) otherwise — WEEKEND/HOLIDAY never exposes
// PREMARKET_PREP since there is no session to prepare for.
func (c *Clock) overnightOrPremarket(t time.Time, mins int) core.MarketState {
	const premarketStartMin = 6 * 60
	if mins >= premarketStartMin && mins < activeOpenMin {
		if c.isTradingDay(t) {
			return core.StatePremarketPrep
		}
		return core.StateOvernightSleep
	}
	return core.StateOvernightSleep
}

// IsTradeable reports whether the current state permits TradingAgent
// cycles. Only ACTIVE_TRADING is tradeable; UNKNOWN is always non-tradeable.
func (c *Clock) IsTradeable(ctx context.Context, now time.Time) bool {
	return c.NowState(ctx, now) == core.StateActiveTrading
}

// TimeUntil returns the duration from now until the next instant the
// Clock would classify as target, searching minute-by-minute up to 8
// days ahead (covers any holiday run without a dedicated calendar walk,
// mirroring the teacher's iterate-days-ahead pattern in
// TimeUntilNextSession, generalized to minute granularity since target
// may be an intraday boundary rather than only the next session open).
func (c *Clock) TimeUntil(ctx context.Context, now time.Time, target core.MarketState) time.Duration {
	if c.NowState(ctx, now) == target {
		return 0
	}
	t := now.In(c.loc)
	horizon := t.Add(8 * 24 * time.Hour)
	for cursor := t.Add(time.Minute).Truncate(time.Minute); cursor.Before(horizon); cursor = cursor.Add(time.Minute) {
		if c.classify(cursor) == target {
			return cursor.Sub(t)
		}
	}
	return 8 * 24 * time.Hour
}
