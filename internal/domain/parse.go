package domain

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingCountry = errors.New("missing country")
	ErrInvalidISO3    = errors.New("invalid ISO3 code")
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidCount   = errors.New("invalid count")
)

var (
	// iso3Re matches an ISO 3166-1 alpha-3 code, e.g. "NOR".
	iso3Re = regexp.MustCompile(`^[A-Z]{3}$`)

	// nonWordRe collapses anything that is not a lowercase letter or digit.
	nonWordRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// dateLayouts are tried in order. The JHU feed has used every one of these
// at some point in its history.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"1/2/06",
	"01/02/2006",
	"1/2/2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseRecord validates a RawRow and converts it into a CaseRecord. An empty
// Confirmed or Deaths field counts as zero.
func ParseRecord(row RawRow) (CaseRecord, error) {
	country := strings.TrimSpace(row.Country)
	if country == "" {
		return CaseRecord{}, ErrMissingCountry
	}

	iso := strings.TrimSpace(row.ISO3)
	if !ValidISO3(iso) {
		return CaseRecord{}, fmt.Errorf("%w: %q", ErrInvalidISO3, row.ISO3)
	}

	date, err := ParseDate(row.Date)
	if err != nil {
		return CaseRecord{}, err
	}

	confirmed, err := ParseCount(row.Confirmed)
	if err != nil {
		return CaseRecord{}, fmt.Errorf("confirmed: %w", err)
	}
	deaths, err := ParseCount(row.Deaths)
	if err != nil {
		return CaseRecord{}, fmt.Errorf("deaths: %w", err)
	}

	return CaseRecord{
		Country:    country,
		ISO3:       iso,
		Date:       date,
		Cumulative: confirmed,
		Deaths:     deaths,
	}, nil
}

// ValidISO3 reports whether code is shaped like an alpha-3 country code.
// Membership in the ISO table is checked by the loader when one is configured.
func ValidISO3(code string) bool {
	return iso3Re.MatchString(code)
}

// ParseDate parses any of the supported layouts and truncates to midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return TruncateDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// TruncateDay returns midnight UTC of t's calendar day.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseCount parses a non-negative integer count. Integral floats such as
// "1234.0" are accepted because pandas writes them when a column held NaN.
func ParseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if v < 0 {
			return 0, fmt.Errorf("%w: negative %d", ErrInvalidCount, v)
		}
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCount, s)
	}
	return int64(f), nil
}

// CleanColumnName normalizes a CSV header the way the dashboard keys columns:
// trimmed, lowercased, runs of other characters folded into "_".
// "Country/Region" -> "country_region", "Long_" -> "long".
func CleanColumnName(s string) string {
	s = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
	s = nonWordRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
