// Package normalize turns raw feed rows into typed events, venues and
// collections.
package normalize

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "cityevents/internal/log"
	"cityevents/internal/model"
)

// Normalizer converts event rows. DefaultLocation applies to timestamps
// without an offset when the row carries no usable timezone.
type Normalizer struct {
	DefaultLocation *time.Location
}

// NewNormalizer returns a Normalizer reading zoneless timestamps in loc.
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{DefaultLocation: loc}
}

// Normalize converts one raw event row. A row missing its id, title or a
// parseable start is returned as a quarantine entry instead. The returned
// event has no venue key yet.
func (n *Normalizer) Normalize(row model.RawRow, line int) (model.Event, *model.QuarantinedRow) {
	rec := RecordFromRow(row)

	if reason, bad := n.check(rec); bad {
		return model.Event{}, &model.QuarantinedRow{Row: row, Line: line, Reason: reason}
	}

	loc := n.location(rec.Timezone)
	start, _ := ParseTime(rec.StartDatetime, loc)
	end := parseOptionalTime(rec.EndDatetime, loc)
	if end != nil && end.Before(start) {
		appLog.Debug("dropping end before start", "event_id", rec.EventID, "line", line)
		end = nil
	}

	allDay := ParseBool(rec.IsAllDay, false)
	start, end = ResolveAllDay(allDay, start, end, rec.OpensAt, rec.DescriptionShort, rec.DescriptionLong)

	ev := model.Event{
		EventID:          rec.EventID,
		DedupeKey:        rec.DedupeKey,
		SourceEventID:    rec.SourceEventID,
		Title:            rec.Title,
		DescriptionShort: rec.DescriptionShort,
		DescriptionLong:  rec.DescriptionLong,
		Start:            start,
		End:              end,
		Timezone:         rec.Timezone,
		Status:           MapStatus(rec.Status),
		// All-day rows leave here time-bounded.
		IsAllDay:       false,
		RecurrenceRule: validRRule(rec.RecurrenceRule, rec.EventID),
		VenueID:        rec.VenueID,
		VenueName:      rec.VenueName,
		VenueAddress:   rec.VenueAddress,
		VenueHandle:    rec.VenueHandle,
		Neighborhood:   rec.Neighborhood,
		City:           rec.City,
		Category:       rec.Category,
		Tags:           ParseTags(rec.Tags),
		PriceMin:       ParseNumber(rec.PriceMin),
		PriceMax:       ParseNumber(rec.PriceMax),
		Currency:       strings.ToUpper(rec.Currency),
		ImageURL:       rec.ImageURL,
		TicketURL:      rec.TicketURL,
		SourceName:     rec.SourceName,
		SourceURL:      rec.SourceURL,
		LastSeenAt:     parseOptionalTime(rec.LastSeenAt, time.UTC),
		UpdatedAt:      parseOptionalTime(rec.UpdatedAt, time.UTC),
	}
	ev.IsFree = ParseBool(rec.IsFree, isZeroPrice(ev.PriceMin, ev.PriceMax))
	return ev, nil
}

func (n *Normalizer) check(rec Record) (model.ReasonCode, bool) {
	switch {
	case rec.EventID == "":
		return model.ReasonMissingID, true
	case rec.Title == "":
		return model.ReasonMissingTitle, true
	case rec.StartDatetime == "":
		return model.ReasonMissingStart, true
	}
	if _, err := ParseTime(rec.StartDatetime, n.location(rec.Timezone)); err != nil {
		return model.ReasonInvalidStart, true
	}
	return "", false
}

func (n *Normalizer) location(tz string) *time.Location {
	if tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	if n.DefaultLocation != nil {
		return n.DefaultLocation
	}
	return time.UTC
}

// validRRule keeps a recurrence rule only when rrule-go can parse it.
func validRRule(s, eventID string) string {
	if s == "" {
		return ""
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "RRULE:")
	if _, err := rrule.StrToRRule(s); err != nil {
		appLog.Debug("dropping invalid recurrence rule", "event_id", eventID, "rrule", s, "err", err)
		return ""
	}
	return s
}

func isZeroPrice(min, max *float64) bool {
	if min == nil && max == nil {
		return false
	}
	if min != nil && *min != 0 {
		return false
	}
	if max != nil && *max != 0 {
		return false
	}
	return true
}
