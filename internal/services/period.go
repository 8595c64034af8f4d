package services

import (
	"fmt"
	"regexp"
	"time"

	"salesbot/internal/errors"
	"salesbot/internal/models"
)

const (
	DayLayout   = "2006-01-02"
	MonthLayout = "2006-01"
)

var (
	dayPattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)
)

// Period is a validated day or month key.
type Period struct {
	Kind  models.PeriodKind
	Key   string
	Start time.Time
}

func ParseDay(s string) (Period, error) {
	if !dayPattern.MatchString(s) {
		return Period{}, errors.Format(fmt.Sprintf("%q is not a date in the format yyyy-mm-dd", s))
	}
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Period{}, errors.FormatWrap(err, fmt.Sprintf("%q is not a valid calendar date", s))
	}
	return Period{Kind: models.PeriodDay, Key: s, Start: t}, nil
}

func ParseMonth(s string) (Period, error) {
	if !monthPattern.MatchString(s) {
		return Period{}, errors.Format(fmt.Sprintf("%q is not a month in the format yyyy-mm", s))
	}
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return Period{}, errors.FormatWrap(err, fmt.Sprintf("%q is not a valid month", s))
	}
	return Period{Kind: models.PeriodMonth, Key: s, Start: t}, nil
}

// ParsePeriod accepts either a day or a month key and picks the mode from
// the layout.
func ParsePeriod(s string) (Period, error) {
	switch {
	case dayPattern.MatchString(s):
		return ParseDay(s)
	case monthPattern.MatchString(s):
		return ParseMonth(s)
	default:
		return Period{}, errors.Format(fmt.Sprintf("%q is neither yyyy-mm-dd nor yyyy-mm", s))
	}
}

// Previous returns the previous calendar day or month.
func (p Period) Previous() Period {
	if p.Kind == models.PeriodDay {
		t := p.Start.AddDate(0, 0, -1)
		return Period{Kind: p.Kind, Key: t.Format(DayLayout), Start: t}
	}
	// Start is always the first of the month, so AddDate cannot overflow
	// into the wrong month.
	t := p.Start.AddDate(0, -1, 0)
	return Period{Kind: p.Kind, Key: t.Format(MonthLayout), Start: t}
}

func (p Period) Contains(r models.Record) bool {
	if p.Kind == models.PeriodDay {
		return r.Date == p.Key
	}
	return r.YearMonth == p.Key
}
