package model

import (
	"errors"
	"time"
)

// Error taxonomy shared by the feed layer and the normalizer. Row-level
// errors never abort a batch; feed-level errors degrade that feed to empty.
var (
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidDateFormat    = errors.New("invalid date format")
	ErrFetchFailure         = errors.New("feed fetch failed")
	ErrParseFailure         = errors.New("feed parse failed")
)

// RawRow is one record of a delimited feed keyed by its header row.
type RawRow map[string]string

// Status is the closed set of canonical event states.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusPostponed Status = "postponed"
	StatusSoldOut   Status = "sold_out"
	StatusDraft     Status = "draft"
	StatusArchived  Status = "archived"
)

// Event represents one normalized city event. Values are handed to callers
// as plain data; nothing in the pipeline keeps a reference after returning.
type Event struct {
	EventID       string `json:"event_id"`
	DedupeKey     string `json:"dedupe_key,omitempty"`
	SourceEventID string `json:"source_event_id,omitempty"`

	Title            string `json:"title"`
	DescriptionShort string `json:"description_short,omitempty"`
	DescriptionLong  string `json:"description_long,omitempty"`

	// Start is always set. End, when set, is never before Start.
	Start          time.Time  `json:"start"`
	End            *time.Time `json:"end,omitempty"`
	Timezone       string     `json:"timezone,omitempty"`
	Status         Status     `json:"status"`
	IsAllDay       bool       `json:"is_all_day"`
	RecurrenceRule string     `json:"recurrence_rule,omitempty"`

	// VenueID is the identifier supplied by the feed, if any. VenueKey is the
	// resolved canonical (or fallback) key.
	VenueID      string `json:"venue_id,omitempty"`
	VenueKey     string `json:"venue_key"`
	VenueName    string `json:"venue_name,omitempty"`
	VenueAddress string `json:"venue_address,omitempty"`
	VenueHandle  string `json:"venue_handle,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city,omitempty"`

	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags"`

	PriceMin *float64 `json:"price_min,omitempty"`
	PriceMax *float64 `json:"price_max,omitempty"`
	Currency string   `json:"currency,omitempty"`
	IsFree   bool     `json:"is_free"`

	ImageURL  string `json:"primary_image_url,omitempty"`
	TicketURL string `json:"ticket_url,omitempty"`

	SourceName string     `json:"source_name,omitempty"`
	SourceURL  string     `json:"source_url,omitempty"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// Venue is a canonical venue identity loaded from the venues feed.
type Venue struct {
	VenueID      string   `json:"venue_id"`
	Name         string   `json:"name"`
	Slug         string   `json:"slug"`
	Aliases      []string `json:"aliases,omitempty"`
	SourceHandle string   `json:"source_handle,omitempty"`
	Address      string   `json:"address,omitempty"`
	Neighborhood string   `json:"neighborhood,omitempty"`
	City         string   `json:"city,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	WebsiteURL   string   `json:"website_url,omitempty"`
	Tags         []string `json:"tags"`
}

// CanonicalVenue is a registry entry used for venue matching.
type CanonicalVenue struct {
	Key    string
	Name   string
	Handle string
	// Aliases are extra display names compared by slug in the last stage.
	Aliases []string
	// Priority breaks ties between entries matching at one stage with the
	// same common prefix length; higher wins.
	Priority int
}

// Collection groups events for filtering. Items keep feed order.
type Collection struct {
	CollectionID string   `json:"collection_id"`
	Title        string   `json:"title"`
	Slug         string   `json:"slug,omitempty"`
	Description  string   `json:"description,omitempty"`
	EventIDs     []string `json:"event_ids"`
}

// ReasonCode explains why a raw row was quarantined.
type ReasonCode string

const (
	ReasonMissingID    ReasonCode = "MissingId"
	ReasonMissingTitle ReasonCode = "MissingTitle"
	ReasonMissingStart ReasonCode = "MissingStart"
	ReasonInvalidStart ReasonCode = "InvalidStart"
)

// Err maps the reason to its taxonomy error.
func (r ReasonCode) Err() error {
	if r == ReasonInvalidStart {
		return ErrInvalidDateFormat
	}
	return ErrMissingRequiredField
}

// QuarantinedRow is a rejected raw row kept for diagnostics only.
type QuarantinedRow struct {
	Row    RawRow     `json:"row"`
	Line   int        `json:"line"`
	Reason ReasonCode `json:"reason"`
}
