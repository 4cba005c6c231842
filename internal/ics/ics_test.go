package ics

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"cityevents/internal/model"
)

var start = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

func TestExport_RoundTrip(t *testing.T) {
	end := start.Add(3 * time.Hour)
	lat, lng := 38.7, -9.14
	events := []model.Event{
		{
			EventID:        "e1",
			Title:          "Jazz Night",
			Start:          start,
			End:            &end,
			Status:         model.StatusScheduled,
			VenueKey:       "bleza",
			VenueName:      "B.Leza",
			Category:       "music",
			Tags:           []string{"jazz"},
			RecurrenceRule: "FREQ=WEEKLY;COUNT=4",
			TicketURL:      "https://tickets.example/e1",
		},
		{
			EventID: "e2",
			Title:   "Cancelled show",
			Start:   start.Add(24 * time.Hour),
			Status:  model.StatusCancelled,
		},
	}
	venues := []model.Venue{{VenueID: "bleza", Latitude: &lat, Longitude: &lng}}

	out := Export(events, "Lisbon events", venues)

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar: %v", err)
	}
	got := cal.Events()
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}

	first := got[0]
	if p := first.GetProperty(ical.ComponentPropertySummary); p == nil || p.Value != "Jazz Night" {
		t.Errorf("summary = %v", p)
	}
	if p := first.GetProperty(ical.ComponentPropertyRrule); p == nil || p.Value != "FREQ=WEEKLY;COUNT=4" {
		t.Errorf("rrule = %v", p)
	}
	if p := first.GetProperty(ical.ComponentPropertyStatus); p == nil || p.Value != "CONFIRMED" {
		t.Errorf("status = %v", p)
	}
	if p := first.GetProperty(ical.ComponentPropertyUrl); p == nil || p.Value != "https://tickets.example/e1" {
		t.Errorf("url = %v", p)
	}
	if ps := first.GetProperties(ical.ComponentPropertyCategories); len(ps) != 2 {
		t.Errorf("categories = %d, want 2", len(ps))
	}
	if first.GetProperty(ical.ComponentPropertyGeo) == nil {
		t.Error("geo missing for a venue with coordinates")
	}
	if s, err := first.GetStartAt(); err != nil || !s.Equal(start) {
		t.Errorf("start = %v, %v", s, err)
	}

	second := got[1]
	if p := second.GetProperty(ical.ComponentPropertyStatus); p == nil || p.Value != "CANCELLED" {
		t.Errorf("status = %v", p)
	}
	if e, err := second.GetEndAt(); err != nil || !e.Equal(start.Add(25*time.Hour)) {
		t.Errorf("synthesized end = %v, %v", e, err)
	}
}

func TestExpand(t *testing.T) {
	end := start.Add(2 * time.Hour)
	events := []model.Event{
		{EventID: "weekly", Title: "Weekly", Start: start, End: &end, RecurrenceRule: "FREQ=WEEKLY;COUNT=10"},
		{EventID: "once", Title: "Once", Start: start.Add(36 * time.Hour)},
		{EventID: "outside", Title: "Outside", Start: start.AddDate(0, 2, 0)},
		{EventID: "gone", Title: "Gone", Start: start, Status: model.StatusCancelled},
	}

	res, err := Expand(events, ExpandConfig{
		RangeStart: start,
		RangeEnd:   start.AddDate(0, 0, 15),
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	var keys []string
	for _, o := range res.Occurrences {
		keys = append(keys, o.EventID+"@"+o.Start.Format("01-02"))
	}
	want := "weekly@05-01,once@05-03,weekly@05-08,weekly@05-15"
	if strings.Join(keys, ",") != want {
		t.Errorf("occurrences = %v, want %s", keys, want)
	}
	for _, o := range res.Occurrences {
		if o.EventID == "weekly" && o.End.Sub(o.Start) != 2*time.Hour {
			t.Errorf("duration not preserved: %v", o.End.Sub(o.Start))
		}
	}
}

func TestExpand_CapAndBadRange(t *testing.T) {
	events := []model.Event{{EventID: "daily", Title: "Daily", Start: start, RecurrenceRule: "FREQ=DAILY"}}
	res, err := Expand(events, ExpandConfig{
		RangeStart:             start,
		RangeEnd:               start.AddDate(1, 0, 0),
		MaxOccurrencesPerEvent: 5,
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(res.Occurrences) != 5 {
		t.Errorf("got %d occurrences, want 5", len(res.Occurrences))
	}
	if len(res.TruncatedEvents) != 1 || res.TruncatedEvents[0] != "daily" {
		t.Errorf("truncated = %v", res.TruncatedEvents)
	}

	if _, err := Expand(events, ExpandConfig{RangeStart: start, RangeEnd: start.Add(-time.Hour)}); err == nil {
		t.Error("expected an error for an inverted range")
	}
}
