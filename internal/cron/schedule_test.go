package cron

import (
	"testing"
	"time"
)

func TestScheduleEvery(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	sched := Every(5 * time.Minute)
	next, ok, err := sched.Next(now)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !ok {
		t.Fatal("expected schedule to be valid")
	}
	if want := now.Add(5 * time.Minute); !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestScheduleParseCron(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	sched, err := Parse("0 */5 * * *", "")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	next, ok, err := sched.Next(now)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !ok {
		t.Fatal("expected schedule to be valid")
	}
	if !next.After(now) {
		t.Fatal("expected next run after now")
	}
}

func TestScheduleParseDescriptor(t *testing.T) {
	if _, err := Parse("@every 24h", ""); err != nil {
		t.Fatalf("Parse(@every) error = %v", err)
	}
	if _, err := Parse("@daily", ""); err != nil {
		t.Fatalf("Parse(@daily) error = %v", err)
	}
}

func TestScheduleParseEmptyErrors(t *testing.T) {
	if _, err := Parse("", ""); err == nil {
		t.Fatal("expected error for empty expression")
	}
}

func TestScheduleParseInvalidErrors(t *testing.T) {
	if _, err := Parse("not a cron expression", ""); err == nil {
		t.Fatal("expected error for invalid expression")
	}
}
