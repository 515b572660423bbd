package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const nbsp = " "

// normalizeCell trims, removes non-breaking spaces and collapses whitespace.
func normalizeCell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, nbsp, " ")
	return strings.Join(strings.Fields(s), " ")
}

func allEmptyRow(row []string) bool {
	for _, cell := range row {
		if normalizeCell(cell) != "" {
			return false
		}
	}
	return true
}

// parseDate tries multiple date formats. dd/mm layouts come before mm/dd:
// both bank exports use day-first dates and a swapped parse is worse than
// a failed one.
func parseDate(s string) (time.Time, error) {
	s = normalizeCell(s)
	if s == "" {
		return time.Time{}, errors.New("empty date string")
	}
	layouts := []string{
		// dd/mm/yyyy variants - MUST BE FIRST
		"02/01/2006", "2/1/2006", "02/01/06", "2/1/06",
		"02.01.2006", "2.1.2006", "02-01-2006", "2-1-2006",
		// ISO and RFC variants
		"2006-01-02", "2006/01/02", "2006.01.02",
		"2006-01-02 15:04:05", time.RFC3339, "2006-01-02T15:04:05",
		// Named month variants
		"02-Jan-2006", "02-Jan-06", "02/Jan/2006", "2 Jan 2006", "2 January 2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() < 100 {
				t = t.AddDate(2000, 0, 0)
			}
			return t, nil
		}
	}
	if t, err := parseExcelSerialDate(s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("could not parse date: %s", s)
}

// parseExcelSerialDate converts an Excel serial date (possibly with a
// fractional day time) into a time.Time. Excel counts from 1899-12-30 and
// includes the nonexistent 1900-02-29.
func parseExcelSerialDate(s string) (time.Time, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return time.Time{}, err
	}
	if f < 1 || f > 200000 { // sanity window: 1900..ca. 2447
		return time.Time{}, fmt.Errorf("not an excel serial date: %s", s)
	}
	days := int(f)
	frac := f - float64(days)
	// The 1899-12-30 epoch already absorbs Excel's fake 1900-02-29 for
	// every date past February 1900.
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	d := base.AddDate(0, 0, days)
	return d.Add(time.Duration(frac * float64(24*time.Hour))), nil
}

// parseAmount reads a monetary cell tolerating thousands separators,
// decimal commas, currency symbols and accounting-style parentheses.
func parseAmount(s string) (decimal.Decimal, error) {
	v := normalizeCell(s)
	if v == "" {
		return decimal.Zero, errors.New("empty amount")
	}
	negative := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		negative = true
		v = v[1 : len(v)-1]
	}
	// Keep only digits, separators and sign; drops currency symbols and spaces.
	var b strings.Builder
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	v = b.String()
	if v == "" || v == "-" {
		return decimal.Zero, fmt.Errorf("no numeric content in amount: %s", s)
	}

	lastComma := strings.LastIndex(v, ",")
	lastDot := strings.LastIndex(v, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// Both present: the rightmost separator is the decimal mark.
		if lastComma > lastDot {
			v = strings.ReplaceAll(v, ".", "")
			idx := strings.LastIndex(v, ",")
			v = strings.ReplaceAll(v[:idx], ",", "") + "." + v[idx+1:]
		} else {
			v = strings.ReplaceAll(v, ",", "")
		}
	case lastComma >= 0:
		// Lone comma: decimal mark unless it reads as a thousands group.
		digitsAfter := len(v) - lastComma - 1
		if strings.Count(v, ",") == 1 && digitsAfter != 3 {
			v = strings.Replace(v, ",", ".", 1)
		} else {
			v = strings.ReplaceAll(v, ",", "")
		}
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not parse amount %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// looksLikeTaxID reports whether a counterparty cell carries a Georgian
// national tax id (9 digits for organizations, 11 for individuals) instead
// of a display name.
func looksLikeTaxID(s string) bool {
	s = normalizeCell(s)
	if len(s) != 9 && len(s) != 11 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
