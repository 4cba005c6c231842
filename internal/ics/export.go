// Package ics publishes normalized events as an iCalendar feed and expands
// recurring events into dated occurrences.
package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "cityevents/internal/log"
	"cityevents/internal/model"
)

const productID = "-//cityevents//events feed//EN"

// Export serializes events as a PUBLISH calendar named name. Events without
// an end get a one hour duration.
func Export(events []model.Event, name string, venues []model.Venue) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetName(name)
		cal.SetXWRCalName(name)
	}

	geo := make(map[string]model.Venue, len(venues))
	for _, v := range venues {
		if v.Latitude != nil && v.Longitude != nil {
			geo[v.VenueID] = v
		}
	}

	stamp := time.Now().UTC()
	for _, ev := range events {
		ve := cal.AddEvent(uid(ev))
		ve.SetDtStampTime(stamp)
		if ev.UpdatedAt != nil {
			ve.SetModifiedAt(ev.UpdatedAt.UTC())
		}
		ve.SetStartAt(ev.Start.UTC())
		ve.SetEndAt(endOf(ev).UTC())
		ve.SetSummary(ev.Title)
		if d := description(ev); d != "" {
			ve.SetDescription(d)
		}
		if loc := location(ev); loc != "" {
			ve.SetLocation(loc)
		}
		if u := firstNonEmpty(ev.TicketURL, ev.SourceURL); u != "" {
			ve.SetURL(u)
		}
		ve.SetStatus(objectStatus(ev.Status))
		if ev.RecurrenceRule != "" {
			ve.AddRrule(ev.RecurrenceRule)
		}
		if ev.Category != "" {
			ve.AddCategory(ev.Category)
		}
		for _, t := range ev.Tags {
			ve.AddCategory(t)
		}
		if v, ok := geo[ev.VenueKey]; ok {
			ve.SetGeo(*v.Latitude, *v.Longitude)
		}
	}

	appLog.Debug("ics export completed", "name", name, "event_count", len(events))
	return cal.Serialize()
}

func uid(ev model.Event) string {
	return ev.EventID + "@cityevents"
}

func endOf(ev model.Event) time.Time {
	if ev.End != nil {
		return *ev.End
	}
	return ev.Start.Add(time.Hour)
}

func description(ev model.Event) string {
	return firstNonEmpty(ev.DescriptionLong, ev.DescriptionShort)
}

func location(ev model.Event) string {
	parts := make([]string, 0, 2)
	if ev.VenueName != "" {
		parts = append(parts, ev.VenueName)
	}
	if ev.VenueAddress != "" {
		parts = append(parts, ev.VenueAddress)
	}
	return strings.Join(parts, ", ")
}

// objectStatus maps the event status onto VEVENT STATUS. Postponed and
// draft events are tentative; everything else that still happens is
// confirmed.
func objectStatus(s model.Status) ical.ObjectStatus {
	switch s {
	case model.StatusCancelled:
		return ical.ObjectStatusCancelled
	case model.StatusPostponed, model.StatusDraft:
		return ical.ObjectStatusTentative
	default:
		return ical.ObjectStatusConfirmed
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
