// Package cron names recurring timer intervals as schedules instead of
// bare time.Duration literals, so a background loop's cadence reads as
// "every 24h" rather than a magic constant buried in a ticker call.
package cron

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// Schedule is a parsed recurring run-time rule: a fixed interval or a
// cron expression.
type Schedule struct {
	kind     string
	cronExpr string
	every    time.Duration
	at       time.Time
	timezone string
}

// Every builds a fixed-interval schedule, e.g. Every(24 * time.Hour) for
// "once per day".
func Every(d time.Duration) Schedule {
	return Schedule{kind: "every", every: d}
}

// Parse builds a schedule from a standard or extended cron expression
// (accepts robfig/cron's Descriptor shorthands like "@every 24h" and
// "@daily" as well as plain 5/6-field expressions), in timezone tz
// (empty means the clock's own location).
func Parse(expr, tz string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Schedule{}, fmt.Errorf("cron expression is required")
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return Schedule{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return Schedule{kind: "cron", cronExpr: expr, timezone: strings.TrimSpace(tz)}, nil
}

// Next returns the next run time strictly after now. The bool is false
// when no run time can be computed: with an error for a zero Schedule, an
// every schedule without a positive duration, or an unparsable
// expression, and without one when the cron expression yields no
// further time.
func (s Schedule) Next(now time.Time) (time.Time, bool, error) {
	switch s.kind {
	case "every":
		if s.every <= 0 {
			return time.Time{}, false, fmt.Errorf("every schedule missing duration")
		}
		return now.Add(s.every), true, nil
	case "cron":
		loc := now.Location()
		if s.timezone != "" {
			if tz, err := time.LoadLocation(s.timezone); err == nil {
				loc = tz
			}
		}
		schedule, err := cronParser.Parse(s.cronExpr)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("parse cron expression: %w", err)
		}
		next := schedule.Next(now.In(loc))
		return next, !next.IsZero(), nil
	default:
		return time.Time{}, false, fmt.Errorf("unscheduled")
	}
}
