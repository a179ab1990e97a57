package releases

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/music-release-notifier/internal/catalog"
)

const variousArtists = "0LyfQWJT6nXafLPZqxe9Of"

func album(id, name, date string) catalog.Album {
	return catalog.Album{
		ID:                   id,
		Name:                 name,
		ReleaseDate:          date,
		ReleaseDatePrecision: "day",
		AlbumGroup:           catalog.GroupAlbum,
		Artists:              []catalog.Artist{{ID: "artist-1", Name: "Artist One"}},
	}
}

func day(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestWindowContains(t *testing.T) {
	w := Window{After: day("2025-03-01"), Until: day("2025-03-10")}

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"at lower bound", day("2025-03-01"), false},
		{"just after lower bound", day("2025-03-01").Add(time.Millisecond), true},
		{"inside", day("2025-03-05"), true},
		{"at upper bound", day("2025-03-10"), true},
		{"after upper bound", day("2025-03-10").Add(time.Millisecond), false},
		{"before lower bound", day("2025-02-28"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Contains(tt.t); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestTimestamp(t *testing.T) {
	sydney, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	tests := []struct {
		name      string
		date      string
		precision string
		loc       *time.Location
		want      time.Time
		wantErr   bool
	}{
		{"day precision utc", "2024-05-17", "day", time.UTC, time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC), false},
		{"day precision local midnight", "2024-05-17", "day", sydney, time.Date(2024, 5, 17, 0, 0, 0, 0, sydney), false},
		{"month precision", "2024-05", "month", time.UTC, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), false},
		{"year precision", "1999", "year", time.UTC, time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"precision inferred", "2024-05-17", "", time.UTC, time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC), false},
		{"unknown precision", "2024-05-17", "hour", time.UTC, time.Time{}, true},
		{"malformed", "17/05/2024", "", time.UTC, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := catalog.Album{Name: "x", ReleaseDate: tt.date, ReleaseDatePrecision: tt.precision}
			got, err := Timestamp(a, tt.loc)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsVariousArtistsNoise(t *testing.T) {
	va := []catalog.Artist{{ID: variousArtists, Name: "Various Artists"}}

	tests := []struct {
		name  string
		album catalog.Album
		want  bool
	}{
		{
			name:  "generic compilation",
			album: catalog.Album{Name: "Summer Hits 2025", AlbumGroup: catalog.GroupAppearsOn, Artists: va},
			want:  true,
		},
		{
			name:  "soundtrack kept",
			album: catalog.Album{Name: "Dune (Original Motion Picture Soundtrack)", AlbumGroup: catalog.GroupAppearsOn, Artists: va},
			want:  false,
		},
		{
			name:  "soundtrack keyword case-insensitive",
			album: catalog.Album{Name: "The Game SOUNDTRACK", AlbumGroup: catalog.GroupAppearsOn, Artists: va},
			want:  false,
		},
		{
			name:  "motion picture keyword",
			album: catalog.Album{Name: "Music From The Motion Picture", AlbumGroup: catalog.GroupAppearsOn, Artists: va},
			want:  false,
		},
		{
			name:  "second placeholder id",
			album: catalog.Album{Name: "コンピレーション", AlbumGroup: catalog.GroupAppearsOn, Artists: []catalog.Artist{{ID: "0wzdbYD0TtDPvbjQ5QT7nY"}}},
			want:  true,
		},
		{
			name:  "not appears_on",
			album: catalog.Album{Name: "Summer Hits 2025", AlbumGroup: catalog.GroupCompilation, Artists: va},
			want:  false,
		},
		{
			name: "several credited artists",
			album: catalog.Album{Name: "Summer Hits 2025", AlbumGroup: catalog.GroupAppearsOn, Artists: []catalog.Artist{
				{ID: variousArtists}, {ID: "someone"},
			}},
			want: false,
		},
		{
			name:  "real artist feature",
			album: catalog.Album{Name: "Collab", AlbumGroup: catalog.GroupAppearsOn, Artists: []catalog.Artist{{ID: "someone"}}},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVariousArtistsNoise(tt.album); got != tt.want {
				t.Errorf("IsVariousArtistsNoise() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterSortsAscending(t *testing.T) {
	albums := []catalog.Album{
		album("c", "Third", "2025-03-03"),
		album("a", "First", "2025-03-01"),
		album("b", "Second", "2025-03-02"),
	}
	w := Window{After: day("2025-02-01"), Until: day("2025-04-01")}

	got, err := Filter(albums, w, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var names []string
	for _, r := range got {
		names = append(names, r.Album.Name)
	}
	if want := []string{"First", "Second", "Third"}; !reflect.DeepEqual(names, want) {
		t.Errorf("got %v, want %v", names, want)
	}
}

func TestFilterWindowAndNoise(t *testing.T) {
	noise := album("n", "Chill Vibes", "2025-03-05")
	noise.AlbumGroup = catalog.GroupAppearsOn
	noise.Artists = []catalog.Artist{{ID: variousArtists, Name: "Various Artists"}}

	soundtrack := noise
	soundtrack.ID = "s"
	soundtrack.Name = "Chill Vibes (Original Soundtrack)"

	albums := []catalog.Album{
		album("old", "Old", "2025-02-01"),
		album("new", "New", "2025-03-05"),
		album("future", "Future", "2025-05-01"),
		noise,
		soundtrack,
		album("new", "New", "2025-03-05"), // listed twice
	}
	w := Window{After: day("2025-03-01"), Until: day("2025-04-01")}

	got, err := Filter(albums, w, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ids []string
	for _, r := range got {
		ids = append(ids, r.Album.ID)
	}
	if want := []string{"new", "s"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("got %v, want %v", ids, want)
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	albums := []catalog.Album{
		album("b", "B", "2025-03-02"),
		album("a", "A", "2025-03-02"),
		album("c", "C", "2025-03-01"),
	}
	w := Window{After: day("2025-02-01"), Until: day("2025-04-01")}

	first, err := Filter(albums, w, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Filter(albums, w, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("filtering the same input twice gave different results")
	}
	// Equal timestamps keep listing order.
	if first[1].Album.ID != "b" || first[2].Album.ID != "a" {
		t.Errorf("sort was not stable: %v, %v", first[1].Album.ID, first[2].Album.ID)
	}
}

func TestFilterRejectsBadDate(t *testing.T) {
	albums := []catalog.Album{album("x", "Broken", "someday")}
	_, err := Filter(albums, Window{Until: day("2025-01-01")}, time.UTC)
	if err == nil || !strings.Contains(err.Error(), "Broken") {
		t.Errorf("expected error naming the album, got %v", err)
	}
}
