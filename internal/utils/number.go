package utils

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// unknownMarkers are placeholder strings found in listing exports that mean "no value".
var unknownMarkers = map[string]struct{}{
	"":     {},
	"-":    {},
	"n/a":  {},
	"na":   {},
	"null": {},
	"none": {},
	"nan":  {},
}

// ParseNumber parses a possibly delimited numeric string ("$1,234,567", "1 200")
// into a non-negative finite number. Anything else yields nil.
func ParseNumber(s string) *float64 {
	cleaned := strings.TrimSpace(s)
	if _, ok := unknownMarkers[strings.ToLower(cleaned)]; ok {
		return nil
	}

	cleaned = strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', '_', ' ', '\u00a0':
			return -1
		}
		return r
	}, cleaned)
	if cleaned == "" {
		return nil
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil
	}
	return &v
}

// ParseNumberPtr is ParseNumber over a nullable column.
func ParseNumberPtr(s *string) *float64 {
	if s == nil {
		return nil
	}
	return ParseNumber(*s)
}

// ParseYear parses a construction year. Zero or negative years are treated as unknown.
func ParseYear(s string) *int {
	v := ParseNumber(s)
	if v == nil || *v < 1 || *v > math.MaxInt32 {
		return nil
	}
	year := int(*v)
	return &year
}

// ParseYearPtr is ParseYear over a nullable column.
func ParseYearPtr(s *string) *int {
	if s == nil {
		return nil
	}
	return ParseYear(*s)
}

// TruncateRunes returns at most n runes of s and whether anything was cut.
func TruncateRunes(s string, n int) (string, bool) {
	if n <= 0 {
		return "", s != ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}

// TruncateBytes returns at most n bytes of s, cut on a rune boundary, and whether
// anything was cut.
func TruncateBytes(s string, n int) (string, bool) {
	if len(s) <= n {
		return s, false
	}
	if n <= 0 {
		return "", true
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}

// FormatAmount renders a number with thousands separators and no trailing zeros,
// e.g. 1234567 -> "1,234,567" and 950.5 -> "950.5".
func FormatAmount(v float64) string {
	raw := strconv.FormatFloat(v, 'f', -1, 64)
	intPart, frac, hasFrac := strings.Cut(raw, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
