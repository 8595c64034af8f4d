package services

import (
	"testing"

	"salesbot/internal/errors"
	"salesbot/internal/models"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in       string
		kind     models.PeriodKind
		previous string
		wantErr  bool
	}{
		{in: "2023-06-15", kind: models.PeriodDay, previous: "2023-06-14"},
		{in: "2023-03-01", kind: models.PeriodDay, previous: "2023-02-28"},
		{in: "2024-01-01", kind: models.PeriodDay, previous: "2023-12-31"},
		{in: "2023-06", kind: models.PeriodMonth, previous: "2023-05"},
		{in: "2023-01", kind: models.PeriodMonth, previous: "2022-12"},
		{in: "2023/06", wantErr: true},
		{in: "2023-13", wantErr: true},
		{in: "2023-02-30", wantErr: true},
		{in: "June", wantErr: true},
		{in: "", wantErr: true},
		{in: " 2023-06", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParsePeriod(tt.in)
			if tt.wantErr {
				if !errors.IsFormat(err) {
					t.Fatalf("ParsePeriod(%q) error = %v, want FORMAT_ERROR", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePeriod(%q) unexpected error: %v", tt.in, err)
			}
			if p.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", p.Kind, tt.kind)
			}
			if got := p.Previous().Key; got != tt.previous {
				t.Errorf("Previous() = %s, want %s", got, tt.previous)
			}
		})
	}
}

func TestParseDayAndMonthAreStrict(t *testing.T) {
	if _, err := ParseMonth("2023-06-01"); !errors.IsFormat(err) {
		t.Errorf("ParseMonth(day) error = %v, want FORMAT_ERROR", err)
	}
	if _, err := ParseDay("2023-06"); !errors.IsFormat(err) {
		t.Errorf("ParseDay(month) error = %v, want FORMAT_ERROR", err)
	}
}

func TestPeriod_PreviousMonthIntoFebruary(t *testing.T) {
	p, err := ParseMonth("2023-03")
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Previous().Key; got != "2023-02" {
		t.Errorf("Previous() = %s, want 2023-02", got)
	}
}
