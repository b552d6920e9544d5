package cron

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"emblem/internal/services"
)

// parser accepts standard 5-field cron expressions (minute through weekday).
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Location resolves a schedule's timezone name. Empty and "Local" map to the
// process timezone.
func Location(name string) (*time.Location, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || strings.EqualFold(trimmed, "Local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(trimmed)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "cron", "load timezone", trimmed, err)
	}
	return loc, nil
}

// NextAfter computes the first fire time of expr strictly after the given
// instant, evaluated in the schedule's timezone. The result is in UTC.
func NextAfter(expr, timezone string, after time.Time) (time.Time, error) {
	schedule, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, services.Wrap(services.ErrValidation, "cron", "parse expression", expr, err)
	}
	loc, err := Location(timezone)
	if err != nil {
		return time.Time{}, err
	}
	next := schedule.Next(after.In(loc))
	if next.IsZero() {
		return time.Time{}, services.Wrap(services.ErrValidation, "cron", "parse expression",
			fmt.Sprintf("%q has no future fire time", expr), nil)
	}
	return next.UTC(), nil
}

// Validate rejects expressions that fail to parse or never fire again.
func Validate(expr, timezone string) error {
	_, err := NextAfter(expr, timezone, time.Now())
	return err
}
