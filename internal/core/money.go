// Package core holds the operation domain: records, validation, the
// term-to-end-date arithmetic and the monthly aggregation used by charts.
//
// This file contains the numeric parsing shared by the form and the CLI.
package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidTerm   = errors.New("invalid term")
)

// ParseAmount converts user input to a decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators as long as
// only one separator is present. Signs and exponents follow strconv rules.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("1e3")   -> 1000, nil
//	ParseAmount("abc")   -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	v, ok := parseNumber(s)
	if !ok {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// ParseTerm converts user input to a whole number of months, truncating
// fractional values toward zero.
func ParseTerm(s string) (int, error) {
	v, ok := parseNumber(s)
	if !ok {
		return 0, ErrInvalidTerm
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, ErrInvalidTerm
	}
	return int(math.Trunc(v)), nil
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// FormatAmount renders an amount with thousands separators and at most two
// decimals, e.g. 1234567.5 -> "1,234,567.5".
func FormatAmount(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if frac != "" {
		out += "." + frac
	}
	if neg {
		return "-" + out
	}
	return out
}
