package validate

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/okian/catalog/internal/domain/model"
)

// ErrUnsupportedDatetime is returned for a timestamp in no accepted layout.
var ErrUnsupportedDatetime = errors.New("unsupported datetime layout")

// Layouts carrying their own offset.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
}

// Layouts interpreted in the configured location.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseDatetime parses an event timestamp. Timestamps with an offset keep it;
// naive timestamps are read in loc. A date without a time is rejected.
func ParseDatetime(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrUnsupportedDatetime
}

// Currency codes written before or after the amount, as in "EUR 10" or
// "10 eur".
var (
	leadingCode  = regexp.MustCompile(`(?i)^[a-z]{3}\s*(\d.*)$`)
	trailingCode = regexp.MustCompile(`(?i)^(.*\d)\s*[a-z]{3}$`)
)

func parsePrice(field, raw string) (*float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	switch strings.ToLower(s) {
	case "free", "gratis", "grátis", "0":
		zero := 0.0
		return &zero, nil
	}
	s = strings.TrimSpace(strings.Trim(s, "€$£"))
	if m := leadingCode.FindStringSubmatch(s); m != nil {
		s = m[1]
	} else if m := trailingCode.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = strings.TrimSpace(strings.Trim(s, "€$£"))
	s = strings.NewReplacer(" ", "", "\u00a0", "", "'", "").Replace(s)
	s = decimalPoint(s)

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, reject(model.ReasonParseError, "%s %q is not a number", field, raw)
	}
	if f < 0 {
		return nil, reject(model.ReasonParseError, "%s %q is negative", field, raw)
	}
	return &f, nil
}

// decimalPoint rewrites an amount so "." is the only separator left. When
// both "." and "," appear, the last one is the decimal mark and the other
// groups thousands. A separator that repeats only groups thousands. A single
// "," is a decimal mark.
func decimalPoint(s string) string {
	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ",") > 1:
		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	case comma >= 0:
		return strings.Replace(s, ",", ".", 1)
	}
	return s
}

func parseCoordinate(field, raw string, limit float64) (*float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsNaN(f) {
		return nil, reject(model.ReasonParseError, "%s %q is not a number", field, raw)
	}
	if math.Abs(f) > limit {
		return nil, reject(model.ReasonParseError, "%s %q out of range", field, raw)
	}
	return &f, nil
}
