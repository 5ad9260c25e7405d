package meta

import (
	"fmt"
	"regexp"
	"strconv"
)

// TimePeriod is a per-version declaration of one distinct
// (time_period, time_identifier) pair, with both parts canonicalized.
type TimePeriod struct {
	// Period is the canonical period string, e.g. "2020" or "2020/21".
	Period string
	// Identifier is the canonical identifier label, e.g. "Academic year".
	Identifier string
}

var timeIdentifierLabels = map[string]string{
	"AY":   "Academic year",
	"AYQ1": "Academic year Q1",
	"AYQ2": "Academic year Q2",
	"AYQ3": "Academic year Q3",
	"AYQ4": "Academic year Q4",
	"CY":   "Calendar year",
	"CYQ1": "Calendar year Q1",
	"CYQ2": "Calendar year Q2",
	"CYQ3": "Calendar year Q3",
	"CYQ4": "Calendar year Q4",
	"FY":   "Financial year",
	"FYQ1": "Financial year Q1",
	"FYQ2": "Financial year Q2",
	"FYQ3": "Financial year Q3",
	"FYQ4": "Financial year Q4",
	"RY":   "Reporting year",
	"T1":   "Autumn term",
	"T1T2": "Autumn and spring term",
	"T2":   "Spring term",
	"T3":   "Summer term",
	"P1":   "Part 1 (April to September)",
	"P2":   "Part 2 (October to March)",
}

var (
	weekIdentifier  = regexp.MustCompile(`^W([1-9]|[1-4][0-9]|5[0-2])$`)
	monthIdentifier = regexp.MustCompile(`^M([1-9]|1[0-2])$`)
	spanPeriod      = regexp.MustCompile(`^[0-9]{6}$`)
	yearPeriod      = regexp.MustCompile(`^[0-9]{4}$`)
)

// NewTimePeriod canonicalizes a raw (time_period, time_identifier) pair from
// the data file. Unmappable values are a data malformation, not a skip.
func NewTimePeriod(rawPeriod, rawIdentifier string) (TimePeriod, error) {
	period, err := FormatPeriod(rawPeriod)
	if err != nil {
		return TimePeriod{}, err
	}
	label, err := TimeIdentifierLabel(rawIdentifier)
	if err != nil {
		return TimePeriod{}, err
	}
	return TimePeriod{Period: period, Identifier: label}, nil
}

// FormatPeriod canonicalizes a raw time_period value. Four digits are a
// single year; six digits are a spanning period rendered "YYYY/YY"
// (e.g. "202021" becomes "2020/21").
func FormatPeriod(raw string) (string, error) {
	switch {
	case yearPeriod.MatchString(raw):
		return raw, nil
	case spanPeriod.MatchString(raw):
		start, err := strconv.Atoi(raw[:4])
		if err != nil {
			return "", fmt.Errorf("invalid time_period %q: %w", raw, err)
		}
		end, err := strconv.Atoi(raw[4:])
		if err != nil {
			return "", fmt.Errorf("invalid time_period %q: %w", raw, err)
		}
		if (start+1)%100 != end {
			return "", fmt.Errorf("invalid time_period %q: years are not consecutive", raw)
		}
		return fmt.Sprintf("%s/%s", raw[:4], raw[4:]), nil
	default:
		return "", fmt.Errorf("invalid time_period %q", raw)
	}
}

// TimeIdentifierLabel maps a time_identifier code to its canonical label.
func TimeIdentifierLabel(code string) (string, error) {
	if label, ok := timeIdentifierLabels[code]; ok {
		return label, nil
	}
	if m := weekIdentifier.FindStringSubmatch(code); m != nil {
		return "Week " + m[1], nil
	}
	if m := monthIdentifier.FindStringSubmatch(code); m != nil {
		return "Month " + m[1], nil
	}
	return "", fmt.Errorf("unknown time_identifier %q", code)
}
