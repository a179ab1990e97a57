package releases

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/music-release-notifier/internal/catalog"
)

func newTestCollector(t *testing.T, client catalog.Client) *Collector {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return NewCollector(client, time.UTC, 4, logger)
}

func TestCollect(t *testing.T) {
	client := newFakeClient()
	client.albums["quiet"] = []catalog.Album{album("q1", "Old News", "2024-01-01")}
	client.albums["busy"] = []catalog.Album{
		album("b2", "Later", "2025-03-09"),
		album("b1", "Sooner", "2025-03-02"),
	}
	client.albums["also-busy"] = []catalog.Album{album("a1", "Only", "2025-03-05")}

	c := newTestCollector(t, client)
	w := Window{After: day("2025-03-01"), Until: day("2025-03-10")}

	got, err := c.Collect(context.Background(), []string{"busy", "quiet", "also-busy"}, "AU", w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 artists with releases, got %d", len(got))
	}
	if got[0].ArtistID != "busy" || got[1].ArtistID != "also-busy" {
		t.Errorf("artist order = [%s %s], want [busy also-busy]", got[0].ArtistID, got[1].ArtistID)
	}
	if names := []string{got[0].Releases[0].Album.Name, got[0].Releases[1].Album.Name}; names[0] != "Sooner" || names[1] != "Later" {
		t.Errorf("releases not oldest first: %v", names)
	}
}

func TestCollectSharesListings(t *testing.T) {
	client := newFakeClient()
	client.albums["shared"] = []catalog.Album{album("s1", "Shared", "2025-03-05")}

	c := newTestCollector(t, client)
	w := Window{After: day("2025-03-01"), Until: day("2025-03-10")}

	for range 3 {
		if _, err := c.Collect(context.Background(), []string{"shared"}, "AU", w); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if calls := len(client.albumCalls); calls != 1 {
		t.Errorf("expected 1 listing request, got %d", calls)
	}

	// Another market is a different listing.
	if _, err := c.Collect(context.Background(), []string{"shared"}, "US", w); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls := len(client.albumCalls); calls != 2 {
		t.Errorf("expected 2 listing requests, got %d", calls)
	}
}

func TestCollectFailure(t *testing.T) {
	client := newFakeClient()
	client.albums["fine"] = []catalog.Album{album("f1", "Fine", "2025-03-05")}
	client.fail["broken"] = errBoom

	c := newTestCollector(t, client)
	w := Window{After: day("2025-03-01"), Until: day("2025-03-10")}

	got, err := c.Collect(context.Background(), []string{"fine", "broken"}, "AU", w)
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	if got != nil {
		t.Errorf("expected no results on failure, got %v", got)
	}
}

func TestCollectorArtist(t *testing.T) {
	client := newFakeClient()
	client.artists["a"] = catalog.Artist{ID: "a", Name: "Alpha"}

	c := newTestCollector(t, client)

	for range 2 {
		artist, err := c.Artist(context.Background(), "a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if artist.Name != "Alpha" {
			t.Errorf("name = %q, want Alpha", artist.Name)
		}
	}
	if client.artistCalls != 1 {
		t.Errorf("expected 1 lookup, got %d", client.artistCalls)
	}

	if _, err := c.Artist(context.Background(), "missing"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
