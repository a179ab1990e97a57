package releases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/music-release-notifier/internal/catalog"
)

// ArtistReleases are the new releases of one followed artist, oldest first.
type ArtistReleases struct {
	ArtistID string
	Releases []Release
}

// Collector gathers new releases for subscribers during one run. Listings
// and artist lookups are memoised, so subscribers who follow the same artist
// in the same market share the requests.
type Collector struct {
	client      catalog.Client
	loc         *time.Location
	concurrency int
	logger      *zap.Logger

	mu      sync.Mutex
	albums  map[string]*albumsEntry
	artists map[string]*artistEntry
}

type albumsEntry struct {
	once   sync.Once
	albums []catalog.Album
	err    error
}

type artistEntry struct {
	once   sync.Once
	artist *catalog.Artist
	err    error
}

func NewCollector(client catalog.Client, loc *time.Location, concurrency int, logger *zap.Logger) *Collector {
	if loc == nil {
		loc = time.Local
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Collector{
		client:      client,
		loc:         loc,
		concurrency: concurrency,
		logger:      logger.With(zap.String("component", "collector")),
		albums:      make(map[string]*albumsEntry),
		artists:     make(map[string]*artistEntry),
	}
}

// Collect fetches every artist's albums concurrently and keeps the releases
// inside w. Artists without new releases are dropped; the rest keep the
// order of artistIDs. Any fetch failure fails the whole call.
func (c *Collector) Collect(ctx context.Context, artistIDs []string, market string, w Window) ([]ArtistReleases, error) {
	results := make([]ArtistReleases, len(artistIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, artistID := range artistIDs {
		g.Go(func() error {
			albums, err := c.allAlbums(gctx, artistID, market)
			if err != nil {
				return fmt.Errorf("fetching releases of artist %s: %w", artistID, err)
			}

			kept, err := Filter(albums, w, c.loc)
			if err != nil {
				return fmt.Errorf("filtering releases of artist %s: %w", artistID, err)
			}

			c.logger.Debug("filtered albums",
				zap.String("artist", artistID),
				zap.String("market", market),
				zap.Int("albums", len(albums)),
				zap.Int("new", len(kept)))

			results[i] = ArtistReleases{ArtistID: artistID, Releases: kept}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := results[:0]
	for _, r := range results {
		if len(r.Releases) > 0 {
			out = append(out, r)
		}
	}
	return out, nil
}

// Artist looks up an artist's current display name and profile link.
func (c *Collector) Artist(ctx context.Context, artistID string) (*catalog.Artist, error) {
	c.mu.Lock()
	e, ok := c.artists[artistID]
	if !ok {
		e = &artistEntry{}
		c.artists[artistID] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.artist, e.err = c.client.GetArtist(ctx, artistID)
	})
	return e.artist, e.err
}

func (c *Collector) allAlbums(ctx context.Context, artistID, market string) ([]catalog.Album, error) {
	key := artistID + "/" + market

	c.mu.Lock()
	e, ok := c.albums[key]
	if !ok {
		e = &albumsEntry{}
		c.albums[key] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.albums, e.err = FetchAll(ctx, c.client, artistID, market)
	})
	return e.albums, e.err
}
