package dedupe

import (
	"reflect"
	"testing"
	"time"

	"cityevents/internal/model"
)

var base = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

func ev(id, key, title string, start time.Time, updated *time.Time) model.Event {
	return model.Event{
		EventID:   id,
		DedupeKey: key,
		Title:     title,
		Start:     start,
		VenueKey:  "bleza",
		UpdatedAt: updated,
	}
}

func at(days int) *time.Time {
	t := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
	return &t
}

func ids(events []model.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.EventID
	}
	return out
}

func TestDedupe_DedupeKeyPriority(t *testing.T) {
	older := ev("a", "k1", "Old title", base, at(1))
	newer := ev("b", "k1", "New title", base.Add(time.Hour), at(2))

	for _, in := range [][]model.Event{{older, newer}, {newer, older}} {
		got := Dedupe(in)
		if len(got) != 1 {
			t.Fatalf("got %d events, want 1: %v", len(got), ids(got))
		}
		if got[0].Title != "New title" {
			t.Errorf("winner title = %q, want the newer row", got[0].Title)
		}
	}
}

func TestDedupe_TieKeepsLaterRow(t *testing.T) {
	first := ev("e1", "", "First", base, at(1))
	second := ev("e1", "", "Second", base, at(1))
	got := Dedupe([]model.Event{first, second})
	if len(got) != 1 || got[0].Title != "Second" {
		t.Errorf("got %+v, want the later row", got)
	}

	// Missing updated_at loses to any timestamp.
	got = Dedupe([]model.Event{ev("e1", "", "Stamped", base, at(0)), ev("e1", "", "Bare", base, nil)})
	if len(got) != 1 || got[0].Title != "Stamped" {
		t.Errorf("got %+v, want the stamped row", got)
	}
}

func TestDedupe_FallbackKey(t *testing.T) {
	a := ev("src1-7", "", "Jazz Night", base, at(1))
	b := ev("src2-99", "", "Jazz Night", base, at(3))
	c := ev("other", "", "Jazz Night", base.Add(24*time.Hour), nil)

	got := Dedupe([]model.Event{a, b, c})
	if want := []string{"other", "src2-99"}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("ids = %v, want %v", ids(got), want)
	}
}

func TestDedupe_DedupeKeyShadowsSameID(t *testing.T) {
	keyed := ev("e1", "k1", "Keyed", base, nil)
	plain := ev("e1", "", "Plain", base.Add(time.Hour), at(5))
	got := Dedupe([]model.Event{plain, keyed})
	if len(got) != 1 || got[0].Title != "Keyed" {
		t.Errorf("got %+v, want only the keyed row", got)
	}
}

func TestDedupe_DistinctKeysShareSlot(t *testing.T) {
	a := ev("a", "k1", "Jazz Night", base, at(1))
	b := ev("b", "k2", "Jazz Night", base, at(2))
	c := ev("c", "", "Jazz Night", base, nil)

	got := Dedupe([]model.Event{a, b, c})
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("ids = %v, want %v", ids(got), want)
	}
	if again := Dedupe(got); !reflect.DeepEqual(again, got) {
		t.Errorf("not idempotent: %v", ids(again))
	}
}

func TestDedupe_FallbackWinnerIsNewest(t *testing.T) {
	old := ev("x", "", "Jazz Night", base, at(1))
	newer := ev("y", "", "Jazz Night", base, at(4))
	for _, in := range [][]model.Event{{old, newer}, {newer, old}} {
		got := Dedupe(in)
		if len(got) != 1 || got[0].EventID != "y" {
			t.Errorf("got %v, want [y]", ids(got))
		}
	}
}

func TestDedupe_EndToEndDuplicateIDs(t *testing.T) {
	first := ev("e1", "", "Jazz Night", base, nil)
	second := ev("e1", "", "Jazz Night", base, at(0))
	got := Dedupe([]model.Event{first, second})
	if len(got) != 1 || got[0].EventID != "e1" {
		t.Fatalf("got %v", ids(got))
	}
	if got[0].UpdatedAt == nil {
		t.Error("expected the row carrying updated_at to win")
	}
}

func TestDedupe_Idempotent(t *testing.T) {
	in := []model.Event{
		ev("a", "k1", "A", base, at(1)),
		ev("b", "k1", "A", base, at(2)),
		ev("c", "", "C", base, nil),
		ev("c", "", "C2", base, at(1)),
		ev("d", "", "D", base, at(1)),
		ev("e", "", "D", base, at(2)),
		ev("f", "k2", "D", base, nil),
		ev("g", "", "G", base.Add(time.Hour), nil),
	}
	once := Dedupe(in)
	twice := Dedupe(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("not idempotent:\nonce  %v\ntwice %v", ids(once), ids(twice))
	}

	seen := map[string]bool{}
	for _, e := range once {
		if seen[e.EventID] {
			t.Errorf("event_id %s emitted twice", e.EventID)
		}
		seen[e.EventID] = true
	}
}

func TestDedupe_Empty(t *testing.T) {
	if got := Dedupe(nil); len(got) != 0 {
		t.Errorf("Dedupe(nil) = %v", got)
	}
}
