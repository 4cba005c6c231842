package normalize

import (
	"sort"
	"strings"

	"cityevents/internal/model"
)

// Record is the typed view of an event row over the known column superset.
// Every field holds the trimmed raw string; typing happens in Normalize.
type Record struct {
	EventID          string
	DedupeKey        string
	SourceEventID    string
	Title            string
	DescriptionShort string
	DescriptionLong  string
	StartDatetime    string
	EndDatetime      string
	Timezone         string
	IsAllDay         string
	OpensAt          string
	RecurrenceRule   string
	Status           string
	VenueID          string
	VenueName        string
	VenueAddress     string
	VenueHandle      string
	Neighborhood     string
	City             string
	Category         string
	Tags             string
	PriceMin         string
	PriceMax         string
	Currency         string
	IsFree           string
	ImageURL         string
	TicketURL        string
	SourceName       string
	SourceURL        string
	LastSeenAt       string
	UpdatedAt        string
}

// eventColumns maps every accepted header name, canonical or legacy, to the
// canonical column it fills. Canonical names come first in each group.
var eventColumns = map[string]string{
	"event_id":          "event_id",
	"id":                "event_id",
	"dedupe_key":        "dedupe_key",
	"source_event_id":   "source_event_id",
	"external_id":       "source_event_id",
	"title":             "title",
	"name":              "title",
	"description_short": "description_short",
	"summary":           "description_short",
	"description_long":  "description_long",
	"description":       "description_long",
	"start_datetime":    "start_datetime",
	"start":             "start_datetime",
	"end_datetime":      "end_datetime",
	"end":               "end_datetime",
	"timezone":          "timezone",
	"tz":                "timezone",
	"is_all_day":        "is_all_day",
	"all_day":           "is_all_day",
	"opens_at":          "opens_at",
	"doors_open":        "opens_at",
	"recurrence_rule":   "recurrence_rule",
	"rrule":             "recurrence_rule",
	"status":            "status",
	"venue_id":          "venue_id",
	"venue_name":        "venue_name",
	"venue":             "venue_name",
	"venue_address":     "venue_address",
	"address":           "venue_address",
	"venue_handle":      "venue_handle",
	"source_handle":     "venue_handle",
	"instagram_handle":  "venue_handle",
	"neighborhood":      "neighborhood",
	"city":              "city",
	"category":          "category",
	"tags":              "tags",
	"price_min":         "price_min",
	"min_price":         "price_min",
	"price_max":         "price_max",
	"max_price":         "price_max",
	"currency":          "currency",
	"is_free":           "is_free",
	"primary_image_url": "primary_image_url",
	"image_url":         "primary_image_url",
	"ticket_url":        "ticket_url",
	"tickets_url":       "ticket_url",
	"source_name":       "source_name",
	"source":            "source_name",
	"source_url":        "source_url",
	"last_seen_at":      "last_seen_at",
	"updated_at":        "updated_at",
}

func (r *Record) field(canonical string) *string {
	switch canonical {
	case "event_id":
		return &r.EventID
	case "dedupe_key":
		return &r.DedupeKey
	case "source_event_id":
		return &r.SourceEventID
	case "title":
		return &r.Title
	case "description_short":
		return &r.DescriptionShort
	case "description_long":
		return &r.DescriptionLong
	case "start_datetime":
		return &r.StartDatetime
	case "end_datetime":
		return &r.EndDatetime
	case "timezone":
		return &r.Timezone
	case "is_all_day":
		return &r.IsAllDay
	case "opens_at":
		return &r.OpensAt
	case "recurrence_rule":
		return &r.RecurrenceRule
	case "status":
		return &r.Status
	case "venue_id":
		return &r.VenueID
	case "venue_name":
		return &r.VenueName
	case "venue_address":
		return &r.VenueAddress
	case "venue_handle":
		return &r.VenueHandle
	case "neighborhood":
		return &r.Neighborhood
	case "city":
		return &r.City
	case "category":
		return &r.Category
	case "tags":
		return &r.Tags
	case "price_min":
		return &r.PriceMin
	case "price_max":
		return &r.PriceMax
	case "currency":
		return &r.Currency
	case "is_free":
		return &r.IsFree
	case "primary_image_url":
		return &r.ImageURL
	case "ticket_url":
		return &r.TicketURL
	case "source_name":
		return &r.SourceName
	case "source_url":
		return &r.SourceURL
	case "last_seen_at":
		return &r.LastSeenAt
	case "updated_at":
		return &r.UpdatedAt
	}
	return nil
}

// RecordFromRow applies the column alias table. When a canonical column and
// a legacy alias are both filled, the canonical column wins; between two
// aliases the alphabetically first header wins.
func RecordFromRow(row model.RawRow) Record {
	names := make([]string, 0, len(row))
	for name := range row {
		names = append(names, name)
	}
	sort.Strings(names)

	var rec Record
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		canonical, ok := eventColumns[key]
		if !ok {
			continue
		}
		dst := rec.field(canonical)
		v := strings.TrimSpace(row[name])
		if dst == nil || v == "" {
			continue
		}
		if *dst != "" && key != canonical {
			continue
		}
		*dst = v
	}
	return rec
}
