package schedule

import (
	"testing"
	"time"
)

func TestCronMatches(t *testing.T) {
	tests := []struct {
		expr string
		at   time.Time
		want bool
	}{
		{"0 9 * * *", time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), true},
		{"0 9 * * *", time.Date(2024, 3, 4, 9, 0, 30, 0, time.UTC), true},
		{"0 9 * * *", time.Date(2024, 3, 4, 9, 1, 0, 0, time.UTC), false},
		{"0 0 1 * *", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), true},
		{"0 0 1 * *", time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), false},
		{"*/15 * * * *", time.Date(2024, 4, 2, 13, 45, 0, 0, time.UTC), true},
		{"*/15 * * * *", time.Date(2024, 4, 2, 13, 46, 0, 0, time.UTC), false},
		{"@daily", time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.expr+" "+tt.at.Format(time.RFC3339), func(t *testing.T) {
			c, err := ParseCron(tt.expr)
			if err != nil {
				t.Fatalf("ParseCron returned error: %v", err)
			}
			if got := c.Matches(tt.at); got != tt.want {
				t.Fatalf("Matches=%v, expected %v", got, tt.want)
			}
		})
	}
}

func TestParseCronRejectsGarbage(t *testing.T) {
	for _, expr := range []string{"", "  ", "not a cron", "61 * * * *"} {
		if _, err := ParseCron(expr); err == nil {
			t.Fatalf("ParseCron(%q) succeeded, expected error", expr)
		}
	}
}

func TestNeverAndFunc(t *testing.T) {
	now := time.Now()
	if Never.Matches(now) {
		t.Fatalf("Never matched %v", now)
	}
	var p Predicate = Never
	if p != Never {
		t.Fatalf("Never is not equal to itself")
	}
	always := Func(func(time.Time) bool { return true })
	if !always.Matches(now) {
		t.Fatalf("Func did not forward")
	}
}

func TestParse(t *testing.T) {
	p, err := Parse(" ")
	if err != nil || p != Never {
		t.Fatalf("Parse(blank)=%v, %v, expected Never", p, err)
	}
	p, err = Parse("@daily")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !p.Matches(time.Date(2024, 1, 2, 0, 0, 30, 0, time.UTC)) {
		t.Fatalf("@daily did not match midnight")
	}
	if _, err := Parse("nonsense"); err == nil {
		t.Fatalf("expected error for nonsense")
	}
}
