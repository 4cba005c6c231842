package pipeline

import (
	"sort"

	"cityevents/internal/model"
)

// CapPerVenue keeps at most limit events per venue key, preferring the
// earliest starts, and returns everything sorted by start. Events without a
// venue key each form their own group so they are never dropped. A limit
// of zero or less disables the cap. The second value is how many events
// were dropped.
func CapPerVenue(events []model.Event, limit int) ([]model.Event, int) {
	out := make([]model.Event, 0, len(events))
	if limit <= 0 {
		out = append(out, events...)
		sortByStart(out)
		return out, 0
	}

	groups := make(map[string][]model.Event)
	var order []string
	for _, e := range events {
		key := e.VenueKey
		if key == "" {
			key = "\x00event:" + e.EventID
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e)
	}

	dropped := 0
	for _, key := range order {
		g := groups[key]
		sortByStart(g)
		if len(g) > limit {
			dropped += len(g) - limit
			g = g[:limit]
		}
		out = append(out, g...)
	}
	sortByStart(out)
	return out, dropped
}

// sortByStart orders by start, then event id so equal starts are stable
// across runs.
func sortByStart(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].EventID < events[j].EventID
	})
}
