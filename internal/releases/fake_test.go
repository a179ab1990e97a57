package releases

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgnsrekt/music-release-notifier/internal/catalog"
)

// fakeClient serves album listings from memory and records every call.
type fakeClient struct {
	mu      sync.Mutex
	albums  map[string][]catalog.Album
	artists map[string]catalog.Artist
	fail    map[string]error

	albumCalls  []catalog.AlbumsOptions
	artistCalls int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		albums:  make(map[string][]catalog.Album),
		artists: make(map[string]catalog.Artist),
		fail:    make(map[string]error),
	}
}

func (f *fakeClient) GetArtist(_ context.Context, artistID string) (*catalog.Artist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artistCalls++

	a, ok := f.artists[artistID]
	if !ok {
		return nil, fmt.Errorf("fetching artist %s: %w", artistID, catalog.ErrNotFound)
	}
	return &a, nil
}

func (f *fakeClient) GetArtistAlbums(_ context.Context, artistID string, opts catalog.AlbumsOptions) (*catalog.AlbumPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.albumCalls = append(f.albumCalls, opts)

	if err := f.fail[artistID]; err != nil {
		return nil, err
	}

	all := f.albums[artistID]
	start := min(opts.Offset, len(all))
	end := min(start+opts.Limit, len(all))

	return &catalog.AlbumPage{
		Items:  append([]catalog.Album(nil), all[start:end]...),
		Total:  len(all),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}, nil
}

func (f *fakeClient) offsets() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int
	for _, o := range f.albumCalls {
		out = append(out, o.Offset)
	}
	return out
}

var errBoom = errors.New("boom")
