package normalize

import (
	"testing"
	"time"
)

func TestInferStartTime(t *testing.T) {
	tests := []struct {
		name    string
		opensAt string
		short   string
		long    string
		want    string
	}{
		{"opens_at wins", "19", "Doors 21:30", "", "19:00"},
		{"opens_at with seconds", "08:15:00", "", "", "08:15"},
		{"opens_at out of range falls through", "25:00", "Doors 21:30", "", "21:30"},
		{"range", "", "Open 10:00 - 18:00 daily", "", "10:00"},
		{"opens keyword", "", "Exhibition opens at 11:30, closes 20:00", "", "11:30"},
		{"daily keyword", "", "daily 9:45", "", "09:45"},
		{"bare time", "", "Doors 21:30", "", "21:30"},
		{"hour shorthand", "", "Concerto às 22h", "", "22:00"},
		{"short before long", "", "Starts 20:00", "Doors 19:00", "20:00"},
		{"long used when short empty", "", "", "Doors 19:00", "19:00"},
		{"invalid time skipped", "", "at 99:99 or 18:30", "", "18:30"},
		{"default", "", "no times here", "", DefaultAllDayStart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferStartTime(tt.opensAt, tt.short, tt.long); got != tt.want {
				t.Errorf("InferStartTime = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveAllDay(t *testing.T) {
	midnight := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	start, end := ResolveAllDay(true, midnight, nil, "", "Doors 21:30", "")
	if want := time.Date(2024, 5, 1, 21, 30, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if end == nil || !end.Equal(start.Add(time.Hour)) {
		t.Errorf("end = %v, want start+1h", end)
	}

	// An end that survives the move is kept.
	late := time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC)
	_, end = ResolveAllDay(true, midnight, &late, "", "", "")
	if end == nil || !end.Equal(late) {
		t.Errorf("end = %v, want %v", end, late)
	}

	// An end now before start is replaced.
	early := time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC)
	start, end = ResolveAllDay(true, midnight, &early, "", "", "")
	if end == nil || !end.Equal(start.Add(time.Hour)) {
		t.Errorf("end = %v, want start+1h", end)
	}

	// Not all-day, or already timed: untouched.
	timed := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	if s, e := ResolveAllDay(true, timed, nil, "", "Doors 21:30", ""); !s.Equal(timed) || e != nil {
		t.Errorf("timed all-day row changed: %v %v", s, e)
	}
	if s, e := ResolveAllDay(false, midnight, nil, "", "Doors 21:30", ""); !s.Equal(midnight) || e != nil {
		t.Errorf("non all-day row changed: %v %v", s, e)
	}
}
