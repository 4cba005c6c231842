package venue

import (
	"testing"

	"cityevents/internal/model"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"B.Leza", "b-leza"},
		{"Lux Frágil", "lux-fragil"},
		{"  --Galeria Zé dos Bois!! ", "galeria-ze-dos-bois"},
		{"Café & Bar 2000", "cafe-bar-2000"},
		{"São Jorge", "sao-jorge"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeHandle(t *testing.T) {
	if got := NormalizeHandle(" @Rumu.Club "); got != "rumu.club" {
		t.Errorf("NormalizeHandle = %q", got)
	}
	if got := stripDots("rumu.club"); got != "rumuclub" {
		t.Errorf("stripDots = %q", got)
	}
}

func TestFallbackKey(t *testing.T) {
	tests := []struct {
		name, address, want string
	}{
		{"  Some   Bar ", "", "some bar"},
		{"Some Bar", "Rua  Augusta 1", "some bar|rua augusta 1"},
		{"", "Rua Augusta 1", "rua augusta 1"},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := FallbackKey(tt.name, tt.address); got != tt.want {
			t.Errorf("FallbackKey(%q, %q) = %q, want %q", tt.name, tt.address, got, tt.want)
		}
	}
}

func TestResolver_Resolve(t *testing.T) {
	reg := NewRegistry([]model.CanonicalVenue{
		{Key: "rumuclub", Name: "Rumu Club", Handle: "rumu.club"},
		{Key: "bleza", Name: "B.Leza", Handle: "b.leza"},
		{Key: "lux", Name: "Lux Frágil", Handle: "luxfragil"},
		{Key: "musicbox", Name: "Musicbox Lisboa", Handle: "@MusicboxLisboa"},
		{Key: "zdb", Name: "Galeria Zé dos Bois", Aliases: []string{"Zé dos Bois"}},
	})
	r := NewResolver(reg)

	tests := []struct {
		name      string
		q         Query
		wantKey   string
		wantStage Stage
	}{
		{"usable venue id wins", Query{VenueID: "v-42", Name: "Rumu"}, "v-42", StageVenueID},
		{"unknown venue id is ignored", Query{VenueID: "UNKNOWN", Name: "rumuclub"}, "rumuclub", StageSlugExact},
		{"slug prefix of registry key", Query{Name: "Rumu"}, "rumuclub", StageSlugPrefix},
		{"short slug does not prefix match", Query{Name: "Ru"}, "ru", StageFallback},
		{"exact handle", Query{Name: "Some Room", Handle: "@musicboxlisboa"}, "musicbox", StageHandleExact},
		{"dot stripped handle", Query{Handle: "rumuclub"}, "rumuclub", StageHandleFuzzy},
		{"handle prefix", Query{Handle: "@musicbox"}, "musicbox", StageHandleFuzzy},
		{"registry name slug", Query{Name: "B.Leza"}, "bleza", StageNameSlug},
		{"registry alias slug", Query{Name: "Zé dos Bois"}, "zdb", StageNameSlug},
		{"diacritics in name", Query{Name: "LUX FRAGIL"}, "lux", StageNameSlug},
		{"fallback name and address", Query{Name: "Tiny Bar", Address: "Rua X"}, "tiny bar|rua x", StageFallback},
		{"unmatched handle only", Query{Handle: "@Somewhere.New"}, "somewhere.new", StageFallback},
		{"nothing supplied", Query{}, "", StageNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.q)
			if got.Key != tt.wantKey || got.Stage != tt.wantStage {
				t.Errorf("Resolve(%+v) = %+v, want {%s %s}", tt.q, got, tt.wantKey, tt.wantStage)
			}
		})
	}
}

func TestResolver_Deterministic(t *testing.T) {
	r := NewResolver(DefaultRegistry())
	q := Query{Name: "Rumu", Handle: "@rumu.club"}
	first := r.Resolve(q)
	for i := 0; i < 50; i++ {
		if got := r.Resolve(q); got != first {
			t.Fatalf("call %d: %+v != %+v", i, got, first)
		}
	}
}

func TestResolver_PrefixTieBreak(t *testing.T) {
	reg := NewRegistry([]model.CanonicalVenue{
		{Key: "casaindependente", Name: "Casa Independente"},
		{Key: "casa", Name: "Casa"},
		{Key: "casadocapitao", Name: "Casa do Capitão", Priority: 1},
	})

	// Same prefix length: priority decides.
	if got := NewResolver(reg).Resolve(Query{Name: "cas"}); got.Key != "casadocapitao" {
		t.Errorf("priority tie-break: got %q", got.Key)
	}

	reg = NewRegistry([]model.CanonicalVenue{
		{Key: "casaindependente", Name: "Casa Independente"},
		{Key: "casas", Name: "Casas"},
	})
	// Same prefix length and priority: registry order decides.
	if got := NewResolver(reg).Resolve(Query{Name: "casa"}); got.Key != "casaindependente" {
		t.Errorf("registry order tie-break: got %q", got.Key)
	}

	reg = NewRegistry([]model.CanonicalVenue{
		{Key: "rumu", Name: "Rumu", Handle: "rumu", Priority: 5},
		{Key: "rumuclubbers", Name: "Rumu Clubbers", Handle: "rumu.clubbers"},
	})
	// Longest common prefix beats priority.
	if got := NewResolver(reg).Resolve(Query{Handle: "@rumu.clubber"}); got.Key != "rumuclubbers" || got.Stage != StageHandleFuzzy {
		t.Errorf("common prefix tie-break: got %+v", got)
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := NewResolver(DefaultRegistry())
	if got := r.Resolve(Query{Name: "Rumu"}); got.Key != "rumuclub" {
		t.Errorf("Rumu -> %q, want rumuclub", got.Key)
	}
	if got := r.Resolve(Query{Name: "B.Leza"}); got.Key != "bleza" {
		t.Errorf("B.Leza -> %q, want bleza", got.Key)
	}
}

func TestNewIndex(t *testing.T) {
	idx := NewIndex([]model.Venue{
		{VenueID: "v1", Name: "Rumu Club", Slug: "rumu", SourceHandle: "rumu.club"},
		{Slug: "damas", Name: "Damas"},
		{Name: "No identity"},
	})
	if idx.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", idx.Len())
	}
	r := NewResolver(idx)
	if got := r.Resolve(Query{Name: "rumu"}); got.Key != "v1" || got.Stage != StageNameSlug {
		t.Errorf("slug alias: got %+v", got)
	}
	if got := r.Resolve(Query{Handle: "rumu.club"}); got.Key != "v1" {
		t.Errorf("handle: got %+v", got)
	}
	if got := r.Resolve(Query{Name: "Damas"}); got.Key != "damas" {
		t.Errorf("slug key: got %+v", got)
	}
}
