package cron

import (
	"errors"
	"testing"
	"time"
)

func TestTickDelayRetriesFailuresSooner(t *testing.T) {
	s := &Scheduler{interval: time.Minute, errorRetry: 10 * time.Second}

	if got := s.tickDelay(nil); got != time.Minute {
		t.Fatalf("clean tick delay = %s, want %s", got, time.Minute)
	}
	if got := s.tickDelay(errors.New("database is locked")); got != 10*time.Second {
		t.Fatalf("failed tick delay = %s, want %s", got, 10*time.Second)
	}
}

func TestTickDelayNeverExceedsTickInterval(t *testing.T) {
	s := &Scheduler{interval: 5 * time.Second, errorRetry: time.Minute}

	if got := s.tickDelay(errors.New("boom")); got != 5*time.Second {
		t.Fatalf("failed tick delay = %s, want %s", got, 5*time.Second)
	}
}
