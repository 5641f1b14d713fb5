package scheduler

import "time"

// Schedule decides whether a task is due, given when it last fired and
// the current instant. Implementations are pure and stateless.
type Schedule interface {
	// Due reports whether the task should fire now. last is the zero
	// time if the task has never fired.
	Due(last, now time.Time) bool

	// NextFire estimates the next instant this schedule will be due,
	// used only to size the scheduler's sleep-until-min(...) interval;
	// it is advisory, not authoritative (Due is re-checked on wake).
	NextFire(last, now time.Time) time.Time
}

// Every fires repeatedly at a fixed interval, first firing immediately
// (spec.md 4.I's "every 5 min"/"every 30 min"/"every 2 h" cadences).
type Every struct {
	Interval time.Duration
}

func (e Every) Due(last, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= e.Interval
}

func (e Every) NextFire(last, now time.Time) time.Time {
	if last.IsZero() {
		return now
	}
	return last.Add(e.Interval)
}

// DailyAt fires once per day at or after Hour:Min, local to now's
// location (spec.md 4.I's "15:00 once"/"16:00 once" cadences).
type DailyAt struct {
	Hour, Min int
}

func (d DailyAt) Due(last, now time.Time) bool {
	fireTime := time.Date(now.Year(), now.Month(), now.Day(), d.Hour, d.Min, 0, 0, now.Location())
	if now.Before(fireTime) {
		return false
	}
	return last.Before(fireTime)
}

func (d DailyAt) NextFire(last, now time.Time) time.Time {
	fireTime := time.Date(now.Year(), now.Month(), now.Day(), d.Hour, d.Min, 0, 0, now.Location())
	if now.Before(fireTime) {
		return fireTime
	}
	return fireTime.Add(24 * time.Hour)
}

// WeeklyAt fires once per week, on Weekday at or after Hour:Min
// (spec.md 4.I's "Friday 18:00" WeeklySelfCritique cadence).
type WeeklyAt struct {
	Weekday   time.Weekday
	Hour, Min int
}

func (w WeeklyAt) Due(last, now time.Time) bool {
	if now.Weekday() != w.Weekday {
		return false
	}
	fireTime := time.Date(now.Year(), now.Month(), now.Day(), w.Hour, w.Min, 0, 0, now.Location())
	if now.Before(fireTime) {
		return false
	}
	return last.Before(fireTime)
}

func (w WeeklyAt) NextFire(last, now time.Time) time.Time {
	for days := 0; days <= 7; days++ {
		candidate := now.AddDate(0, 0, days)
		if candidate.Weekday() != w.Weekday {
			continue
		}
		fireTime := time.Date(candidate.Year(), candidate.Month(), candidate.Day(), w.Hour, w.Min, 0, 0, now.Location())
		if !fireTime.Before(now) {
			return fireTime
		}
	}
	return now.AddDate(0, 0, 7)
}
