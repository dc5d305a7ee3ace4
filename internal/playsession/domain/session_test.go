package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"active", StatusActive},
		{"Ended", StatusEnded},
		{"TimedOut", StatusTimedOut},
		{"timed_out", StatusTimedOut},
		{" CRASHED ", StatusCrashed},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseStatus("paused"); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("ParseStatus(paused) err = %v", err)
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	if StatusActive.IsTerminal() {
		t.Error("active must not be terminal")
	}
	for _, s := range []Status{StatusEnded, StatusTimedOut, StatusCrashed} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestDurationSeconds_Rounds(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		end  time.Duration
		want int
	}{
		{0, 0},
		{1499 * time.Millisecond, 1},
		{1500 * time.Millisecond, 2},
		{90*time.Second + 400*time.Millisecond, 90},
	}
	for _, tt := range tests {
		if got := DurationSeconds(start, start.Add(tt.end)); got != tt.want {
			t.Errorf("DurationSeconds(+%v) = %d, want %d", tt.end, got, tt.want)
		}
	}
}

func TestSession_CloseOnce(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	s := &Session{ProjectID: "p", StartTime: start, Status: StatusActive}
	s.Close(start.Add(30 * time.Second))
	s.Close(start.Add(time.Hour))
	if s.EndTime == nil || !s.EndTime.Equal(start.Add(30*time.Second)) || *s.DurationSeconds != 30 {
		t.Fatalf("Close should apply once: end=%v duration=%v", s.EndTime, s.DurationSeconds)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
