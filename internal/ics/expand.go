package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "cityevents/internal/log"
	"cityevents/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 500
)

// Occurrence is one dated instance of an event.
type Occurrence struct {
	EventID  string    `json:"event_id"`
	Title    string    `json:"title"`
	VenueKey string    `json:"venue_key"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	// InstanceKey is unique per event instance.
	InstanceKey string `json:"instance_key"`
}

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone occurrences are reported in. If nil,
	// UTC is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the inclusive time window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps one event's expansion. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the occurrences and the events that hit the cap.
type ExpandResult struct {
	Occurrences     []Occurrence `json:"occurrences"`
	TruncatedEvents []string     `json:"truncated_events,omitempty"`
}

// Expand turns events into occurrences within [RangeStart, RangeEnd],
// sorted by start. Events without a recurrence rule yield at most one
// occurrence; recurring ones keep their original duration.
func Expand(events []model.Event, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.UTC
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	result.Occurrences = make([]Occurrence, 0, len(events))
	for _, ev := range events {
		if ev.Status == model.StatusCancelled {
			continue
		}
		occ, hitCap := expandEvent(ev, cfg)
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.EventID)
			appLog.Warn("expand: truncated occurrences due to cap",
				"event_id", ev.EventID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
		result.Occurrences = append(result.Occurrences, occ...)
	}

	sort.SliceStable(result.Occurrences, func(i, j int) bool {
		a, b := result.Occurrences[i], result.Occurrences[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.EventID < b.EventID
	})
	return result, nil
}

func expandEvent(ev model.Event, cfg ExpandConfig) ([]Occurrence, bool) {
	end := endOf(ev)
	if ev.RecurrenceRule == "" {
		if !timeRangesOverlap(ev.Start, end, cfg.RangeStart, cfg.RangeEnd) {
			return nil, false
		}
		return []Occurrence{makeOccurrence(ev, ev.Start, end, cfg.DisplayLocation)}, false
	}

	r, err := rrule.StrToRRule(ev.RecurrenceRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "event_id", ev.EventID, "rrule", ev.RecurrenceRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	dur := end.Sub(ev.Start)
	// Widen the window so an instance already running at RangeStart is kept.
	starts := r.Between(cfg.RangeStart.Add(-dur), cfg.RangeEnd, true)

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]Occurrence, 0, len(starts))
	for _, s := range starts {
		out = append(out, makeOccurrence(ev, s, s.Add(dur), cfg.DisplayLocation))
	}
	return out, hitCap
}

func makeOccurrence(ev model.Event, start, end time.Time, displayLoc *time.Location) Occurrence {
	startLocal := start.In(displayLoc)
	return Occurrence{
		EventID:     ev.EventID,
		Title:       ev.Title,
		VenueKey:    ev.VenueKey,
		Start:       startLocal,
		End:         end.In(displayLoc),
		InstanceKey: ev.EventID + "/" + startLocal.UTC().Format(time.RFC3339),
	}
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
