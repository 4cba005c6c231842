package normalize

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseBool reads "true", "1" or "yes" (any case) as true and "false",
// "0" or "no" as false. Anything else, including empty, yields def.
func ParseBool(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return def
	}
}

// groupedThousands matches integers written with comma grouping, "1,234".
var groupedThousands = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+$`)

// ParseNumber returns nil for empty, unparseable or non-finite input, never
// zero. A decimal comma is accepted ("12,50"); comma grouping is not a
// decimal ("1,234" and "1,234.50").
func ParseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	switch {
	case strings.Contains(s, "."), groupedThousands.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ParseTags splits on commas, trims, lowercases and drops empties and
// repeats, keeping first-seen order.
func ParseTags(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		t := strings.ToLower(strings.TrimSpace(p))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ParseList is ParseTags without lowercasing, for names and aliases.
func ParseList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

var errUnsupportedTime = errors.New("unsupported time format")

// zonedLayouts carry their own offset; localLayouts are read in loc. A bare
// date is always midnight UTC so that it reads as a placeholder day.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04Z07:00",
		"2006-01-02 15:04:05Z07:00",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
)

// ParseTime parses the timestamp formats seen in feeds. Values without an
// offset are read in loc (UTC when nil). The result is in UTC.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errUnsupportedTime
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, errUnsupportedTime
}

// parseOptionalTime is ParseTime for fields where garbage means absent.
func parseOptionalTime(s string, loc *time.Location) *time.Time {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := ParseTime(s, loc)
	if err != nil {
		return nil
	}
	return &t
}
