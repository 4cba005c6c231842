// Package pipeline wires the feeds, the normalizer, venue resolution,
// deduplication, tag canonicalization and the venue cap into one run.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"cityevents/internal/dedupe"
	"cityevents/internal/feed"
	appLog "cityevents/internal/log"
	"cityevents/internal/metrics"
	"cityevents/internal/model"
	"cityevents/internal/normalize"
	"cityevents/internal/tags"
	"cityevents/internal/venue"
)

// Feed names, used in logs, metrics and Result.FeedErrors.
const (
	FeedEvents          = "events"
	FeedVenues          = "venues"
	FeedEventTags       = "event_tags"
	FeedVenueTags       = "venue_tags"
	FeedCollections     = "collections"
	FeedCollectionItems = "collection_items"
)

// DefaultVenueCap is the per-venue limit used when none is configured.
const DefaultVenueCap = 15

// Fetcher downloads one feed body.
type Fetcher interface {
	Fetch(ctx context.Context, src feed.Source) (feed.FetchResult, error)
}

// Feeds holds one URL per feed. Empty URLs are skipped.
type Feeds struct {
	Events          string
	Venues          string
	EventTags       string
	VenueTags       string
	Collections     string
	CollectionItems string
}

func (f Feeds) sources() []feed.Source {
	all := []feed.Source{
		{Name: FeedEvents, URL: f.Events},
		{Name: FeedVenues, URL: f.Venues},
		{Name: FeedEventTags, URL: f.EventTags},
		{Name: FeedVenueTags, URL: f.VenueTags},
		{Name: FeedCollections, URL: f.Collections},
		{Name: FeedCollectionItems, URL: f.CollectionItems},
	}
	out := all[:0]
	for _, s := range all {
		if s.URL != "" {
			out = append(out, s)
		}
	}
	return out
}

// Options configures a Pipeline.
type Options struct {
	Feeds Feeds
	// VenueCap limits events per venue; zero or less disables it.
	VenueCap int
	// Location reads timestamps that carry no offset and no row timezone.
	Location *time.Location
	// Fallback is used for venue matching when the venues feed is absent or
	// empty. Nil means venue.DefaultRegistry().
	Fallback *venue.Registry
}

// Result is the output of one run. Nothing in it is shared with the
// Pipeline after Run returns.
type Result struct {
	RunID       string                 `json:"run_id"`
	GeneratedAt time.Time              `json:"generated_at"`
	Events      []model.Event          `json:"events"`
	Venues      []model.Venue          `json:"venues"`
	Collections []model.Collection     `json:"collections"`
	Quarantine  []model.QuarantinedRow `json:"quarantine"`
	// FeedErrors maps a feed name to the fetch or parse error it hit.
	FeedErrors map[string]string `json:"feed_errors,omitempty"`
}

// Pipeline runs the ingestion steps. It holds no per-run state and may be
// used from several goroutines.
type Pipeline struct {
	fetcher    Fetcher
	feeds      Feeds
	venueCap   int
	fallback   *venue.Registry
	normalizer *normalize.Normalizer
}

// New returns a Pipeline fetching through f.
func New(f Fetcher, opts Options) *Pipeline {
	fallback := opts.Fallback
	if fallback == nil {
		fallback = venue.DefaultRegistry()
	}
	return &Pipeline{
		fetcher:    f,
		feeds:      opts.Feeds,
		venueCap:   opts.VenueCap,
		fallback:   fallback,
		normalizer: normalize.NewNormalizer(opts.Location),
	}
}

// FetchEvents runs the pipeline and returns only the events.
func (p *Pipeline) FetchEvents(ctx context.Context) []model.Event {
	return p.Run(ctx).Events
}

// FetchVenues loads the venues and venue-tag feeds and returns canonical
// venues, or the fallback registry's venues when the feed yields none.
func (p *Pipeline) FetchVenues(ctx context.Context) []model.Venue {
	logger := appLog.With("run_id", uuid.NewString())
	only := Feeds{Venues: p.feeds.Venues, VenueTags: p.feeds.VenueTags}
	loaded, _ := p.load(ctx, logger, only.sources())
	venues, _ := p.venues(loaded[FeedVenues])
	return tags.NewCanonicalizer(nil, rawTagList(loaded[FeedVenueTags])).Venues(venues)
}

// Run fetches every configured feed concurrently and then processes them
// in order: venues, event rows, venue resolution, dedupe, tags and the cap.
// A failing feed is logged and treated as empty.
func (p *Pipeline) Run(ctx context.Context) Result {
	started := time.Now()
	res := Result{RunID: uuid.NewString(), GeneratedAt: started.UTC()}
	logger := appLog.With("run_id", res.RunID)

	loaded, feedErrs := p.load(ctx, logger, p.feeds.sources())
	if len(feedErrs) > 0 {
		res.FeedErrors = feedErrs
	}

	venues, reg := p.venues(loaded[FeedVenues])
	resolver := venue.NewResolver(reg)

	events := make([]model.Event, 0, len(loaded[FeedEvents]))
	res.Quarantine = []model.QuarantinedRow{}
	for _, row := range loaded[FeedEvents] {
		ev, q := p.normalizer.Normalize(row.Fields, row.Line)
		if q != nil {
			metrics.RowsQuarantined.WithLabelValues(string(q.Reason)).Inc()
			logger.Debug("row quarantined", "line", q.Line, "reason", string(q.Reason))
			res.Quarantine = append(res.Quarantine, *q)
			continue
		}
		m := resolver.Resolve(venue.Query{
			VenueID: ev.VenueID,
			Name:    ev.VenueName,
			Handle:  ev.VenueHandle,
			Address: ev.VenueAddress,
		})
		metrics.VenueMatches.WithLabelValues(string(m.Stage)).Inc()
		ev.VenueKey = m.Key
		events = append(events, ev)
	}

	deduped := dedupe.Dedupe(events)
	merged := len(events) - len(deduped)
	metrics.DuplicatesMerged.Add(float64(merged))

	canon := tags.NewCanonicalizer(rawTagList(loaded[FeedEventTags]), rawTagList(loaded[FeedVenueTags]))
	tagged := canon.Events(deduped)

	capped, dropped := CapPerVenue(tagged, p.venueCap)
	metrics.EventsCapped.Add(float64(dropped))
	metrics.EventsEmitted.Set(float64(len(capped)))

	res.Events = capped
	res.Venues = canon.Venues(venues)
	res.Collections = normalize.Collections(rawRows(loaded[FeedCollections]), rawRows(loaded[FeedCollectionItems]))

	took := time.Since(started)
	metrics.PipelineDuration.Observe(took.Seconds())
	logger.Info("pipeline run complete",
		"rows", len(loaded[FeedEvents]),
		"quarantined", len(res.Quarantine),
		"duplicates", merged,
		"capped", dropped,
		"events", len(res.Events),
		"venues", len(res.Venues),
		"collections", len(res.Collections),
		"feed_errors", len(res.FeedErrors),
		"took", took,
	)
	return res
}

// venues normalizes the venues feed and returns the registry to match
// against: an index over the feed, or the fallback when it is empty.
func (p *Pipeline) venues(rows []feed.Row) ([]model.Venue, *venue.Registry) {
	out := make([]model.Venue, 0, len(rows))
	for _, row := range rows {
		if v, ok := normalize.NormalizeVenue(row.Fields, venue.Slugify); ok {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return p.fallback.Venues(), p.fallback
	}
	return out, venue.NewIndex(out)
}

// load fetches and parses sources concurrently. Rows recovered from a
// partly malformed body are kept alongside the error.
func (p *Pipeline) load(ctx context.Context, logger *appLog.Logger, sources []feed.Source) (map[string][]feed.Row, map[string]string) {
	type outcome struct {
		name string
		rows []feed.Row
		err  error
	}
	results := make([]outcome, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src feed.Source) {
			defer wg.Done()
			rows, err := p.loadOne(ctx, src)
			results[i] = outcome{name: src.Name, rows: rows, err: err}
		}(i, src)
	}
	wg.Wait()

	loaded := make(map[string][]feed.Row, len(results))
	errs := make(map[string]string)
	for _, r := range results {
		loaded[r.name] = r.rows
		if r.err == nil {
			continue
		}
		errs[r.name] = r.err.Error()
		switch {
		case errors.Is(r.err, model.ErrParseFailure):
			logger.Warn("feed partly unreadable", "feed", r.name, "rows", len(r.rows), "err", r.err)
		default:
			logger.Warn("feed unavailable, using empty", "feed", r.name, "err", r.err)
		}
	}
	return loaded, errs
}

func (p *Pipeline) loadOne(ctx context.Context, src feed.Source) ([]feed.Row, error) {
	if p.fetcher == nil {
		return nil, errors.New("no fetcher configured")
	}
	fr, err := p.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	rows, err := feed.ParseRows(fr.Body)
	metrics.FeedRows.WithLabelValues(src.Name).Add(float64(len(rows)))
	if err != nil {
		metrics.FeedParseErrors.WithLabelValues(src.Name).Inc()
	}
	return rows, err
}

func rawRows(rows []feed.Row) []model.RawRow {
	out := make([]model.RawRow, len(rows))
	for i, r := range rows {
		out[i] = r.Fields
	}
	return out
}

func rawTagList(rows []feed.Row) []string {
	return normalize.TagList(rawRows(rows))
}
