// Package schedule decides whether a virtual timestamp falls on a periodic
// balance-increment slot.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Predicate reports whether t matches a schedule.
type Predicate interface {
	Matches(t time.Time) bool
}

// Func adapts a plain function to Predicate.
type Func func(time.Time) bool

func (f Func) Matches(t time.Time) bool { return f(t) }

type never struct{}

func (never) Matches(time.Time) bool { return false }

// Never matches nothing. It is comparable, so callers may test p == Never.
var Never Predicate = never{}

// Cron matches the minutes selected by a standard five-field cron expression.
// Descriptors such as "@daily" and "@weekly" are accepted too.
type Cron struct {
	expr  string
	sched cron.Schedule
}

// ParseCron parses expr. An empty expression is an error; use Never instead.
func ParseCron(expr string) (*Cron, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("schedule: empty cron expression")
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule: parse %q: %w", expr, err)
	}
	return &Cron{expr: expr, sched: sched}, nil
}

// Matches reports whether the minute containing t is a firing time.
func (c *Cron) Matches(t time.Time) bool {
	minute := t.Truncate(time.Minute)
	return c.sched.Next(minute.Add(-time.Second)).Equal(minute)
}

func (c *Cron) String() string { return c.expr }

// Parse returns Never for a blank expression and a Cron otherwise.
func Parse(expr string) (Predicate, error) {
	if strings.TrimSpace(expr) == "" {
		return Never, nil
	}
	return ParseCron(expr)
}
