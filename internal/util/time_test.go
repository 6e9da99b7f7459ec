package util

import (
	"testing"
	"time"
)

func TestFormatKST(t *testing.T) {
	ts := time.Date(2026, 3, 1, 0, 30, 0, 0, time.UTC)
	if got := FormatKST(ts, "2006-01-02 15:04"); got != "2026-03-01 09:30" {
		t.Fatalf("FormatKST = %q, want KST (+9) rendering", got)
	}
}

func TestFormatKSTZeroTime(t *testing.T) {
	if got := FormatKST(time.Time{}, "2006-01-02"); got != "-" {
		t.Fatalf("zero time should render as dash, got %q", got)
	}
}
