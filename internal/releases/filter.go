package releases

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgnsrekt/music-release-notifier/internal/catalog"
)

// VariousArtistsIDs are the catalog identities credited on compilations that
// have no specific artist.
var VariousArtistsIDs = map[string]bool{
	"0LyfQWJT6nXafLPZqxe9Of": true, // Various Artists
	"0wzdbYD0TtDPvbjQ5QT7nY": true, // ヴァリアス・アーティスト
}

// Release is an album that passed the filter, stamped with its release instant.
type Release struct {
	Album     catalog.Album
	Timestamp time.Time
}

// Window is the half-open interval (After, Until] of release instants that
// have not been reported yet.
type Window struct {
	After time.Time
	Until time.Time
}

func (w Window) Contains(t time.Time) bool {
	return t.After(w.After) && !t.After(w.Until)
}

func (w Window) String() string {
	return fmt.Sprintf("(%s, %s]", w.After.Format(time.RFC3339), w.Until.Format(time.RFC3339))
}

// Timestamp resolves an album's release date to midnight of that day in loc.
// Year and month precision dates resolve to the first day of the period.
func Timestamp(album catalog.Album, loc *time.Location) (time.Time, error) {
	layout, err := dateLayout(album.ReleaseDate, album.ReleaseDatePrecision)
	if err != nil {
		return time.Time{}, fmt.Errorf("album %q: %w", album.Name, err)
	}

	t, err := time.ParseInLocation(layout, album.ReleaseDate, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("album %q: parsing release date: %w", album.Name, err)
	}
	return t, nil
}

func dateLayout(date, precision string) (string, error) {
	switch precision {
	case "day":
		return "2006-01-02", nil
	case "month":
		return "2006-01", nil
	case "year":
		return "2006", nil
	case "":
	default:
		return "", fmt.Errorf("unknown release date precision %q", precision)
	}

	switch len(date) {
	case len("2006-01-02"):
		return "2006-01-02", nil
	case len("2006-01"):
		return "2006-01", nil
	case len("2006"):
		return "2006", nil
	}
	return "", fmt.Errorf("unrecognised release date %q", date)
}

// IsVariousArtistsNoise reports whether an album is a generic compilation the
// artist merely appears on. Soundtracks are kept.
func IsVariousArtistsNoise(album catalog.Album) bool {
	if album.AlbumGroup != catalog.GroupAppearsOn {
		return false
	}
	if len(album.Artists) != 1 || !VariousArtistsIDs[album.Artists[0].ID] {
		return false
	}
	return !isSoundtrack(album.Name)
}

func isSoundtrack(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "soundtrack") || strings.Contains(name, "motion picture")
}

// Filter keeps the albums released inside w that are not various-artists
// noise, sorted by release instant. Albums listed more than once are kept once.
func Filter(albums []catalog.Album, w Window, loc *time.Location) ([]Release, error) {
	seen := make(map[string]bool, len(albums))
	var out []Release

	for _, album := range albums {
		key := albumKey(album)
		if seen[key] {
			continue
		}
		seen[key] = true

		ts, err := Timestamp(album, loc)
		if err != nil {
			return nil, err
		}

		if !w.Contains(ts) || IsVariousArtistsNoise(album) {
			continue
		}

		out = append(out, Release{Album: album, Timestamp: ts})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	return out, nil
}

func albumKey(a catalog.Album) string {
	if a.ID != "" {
		return a.ID
	}
	if a.URL() != "" {
		return a.URL()
	}
	return a.Name + "\x00" + a.ReleaseDate
}
