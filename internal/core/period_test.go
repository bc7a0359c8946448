package core

import (
	"errors"
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	cases := []struct {
		in  string
		out Period
		ok  bool
	}{
		{"07/2025", Period{2025, time.July}, true},
		{"7/2025", Period{2025, time.July}, true},
		{" 12/2024 ", Period{2024, time.December}, true},
		{"13/2025", Period{}, false},
		{"0/2025", Period{}, false},
		{"07-2025", Period{}, false},
		{"2025/07", Period{}, false},
		{"07/25", Period{}, false},
		{"", Period{}, false},
	}
	for _, tc := range cases {
		got, err := ParsePeriod(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestPeriodContains(t *testing.T) {
	p := Period{Year: 2025, Month: time.July}
	if !p.Contains(time.Date(2025, 7, 1, 15, 30, 0, 0, time.UTC)) {
		t.Fatalf("first of month should be inside")
	}
	if !p.Contains(time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("last of month should be inside")
	}
	if p.Contains(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("next month should be outside")
	}
}

func TestParseDueDate(t *testing.T) {
	today := time.Date(2025, 7, 10, 13, 0, 0, 0, time.UTC)

	d, err := ParseDueDate("25/12/2025", today)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d != time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected date %v", d)
	}

	// Today is allowed
	if _, err := ParseDueDate("10/07/2025", today); err != nil {
		t.Fatalf("today should be allowed, got %v", err)
	}

	if _, err := ParseDueDate("09/07/2025", today); !errors.Is(err, ErrPastDueDate) {
		t.Fatalf("expected ErrPastDueDate, got %v", err)
	}
	if _, err := ParseDueDate("2025-12-25", today); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}
