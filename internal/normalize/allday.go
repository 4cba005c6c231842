package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DefaultAllDayStart is used when nothing in the row names a time.
const DefaultAllDayStart = "10:00"

var (
	opensAtRe = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?(?::(\d{2}))?$`)

	// Tried in order against each description; first hit wins.
	timeCascade = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d{1,2}:\d{2})\s*[-–—]\s*\d{1,2}:\d{2}\b`),
		regexp.MustCompile(`(?i)\b(?:opens(?:\s+at)?|daily)\s+(\d{1,2}:\d{2})\b`),
		regexp.MustCompile(`\b(\d{1,2}:\d{2})\b`),
	}
	hourShorthandRe = regexp.MustCompile(`(?i)\b(\d{1,2})h\b`)
)

// IsPlaceholderStart reports whether start looks like a date with no real
// time of day: exactly midnight UTC. A genuine midnight start looks the
// same and is treated identically.
func IsPlaceholderStart(start time.Time) bool {
	u := start.UTC()
	return u.Hour() == 0 && u.Minute() == 0
}

// InferStartTime picks an "HH:MM" start for an all-day row from the
// explicit opens-at value, then the short and long descriptions, then
// DefaultAllDayStart.
func InferStartTime(opensAt, short, long string) string {
	if hhmm, ok := parseOpensAt(opensAt); ok {
		return hhmm
	}
	for _, text := range []string{short, long} {
		if text == "" {
			continue
		}
		if hhmm, ok := scanText(text); ok {
			return hhmm
		}
	}
	return DefaultAllDayStart
}

// ResolveAllDay collapses an all-day row into a time-bounded one. When the
// row is flagged all-day and start is a placeholder, start moves to the
// inferred time on the same UTC date; a missing or now-earlier end becomes
// start plus one hour. Rows that do not trigger are returned unchanged.
func ResolveAllDay(allDay bool, start time.Time, end *time.Time, opensAt, short, long string) (time.Time, *time.Time) {
	if !allDay || !IsPlaceholderStart(start) {
		return start, end
	}

	hhmm := InferStartTime(opensAt, short, long)
	h, m, _ := splitHHMM(hhmm)
	u := start.UTC()
	newStart := time.Date(u.Year(), u.Month(), u.Day(), h, m, 0, 0, time.UTC)

	if end == nil || end.Before(newStart) {
		e := newStart.Add(time.Hour)
		end = &e
	}
	return newStart, end
}

func parseOpensAt(s string) (string, bool) {
	m := opensAtRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	minutes := m[2]
	if minutes == "" {
		minutes = "00"
	}
	return formatHHMM(m[1], minutes)
}

func scanText(text string) (string, bool) {
	for _, re := range timeCascade {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if hhmm, ok := normalizeHHMM(m[1]); ok {
				return hhmm, true
			}
		}
	}
	for _, m := range hourShorthandRe.FindAllStringSubmatch(text, -1) {
		if hhmm, ok := formatHHMM(m[1], "00"); ok {
			return hhmm, true
		}
	}
	return "", false
}

func normalizeHHMM(s string) (string, bool) {
	h, m, ok := splitHHMM(s)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, m), true
}

func formatHHMM(hour, minute string) (string, bool) {
	return normalizeHHMM(hour + ":" + minute)
}

func splitHHMM(s string) (int, int, bool) {
	var hs, ms string
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			hs, ms = s[:i], s[i+1:]
			break
		}
	}
	h, err1 := strconv.Atoi(hs)
	m, err2 := strconv.Atoi(ms)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}
