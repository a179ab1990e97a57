package releases

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/music-release-notifier/internal/catalog"
)

// FetchAll reads every page of an artist's album listing. The first page
// reports the total; the remaining pages are requested concurrently and
// concatenated in offset order.
func FetchAll(ctx context.Context, client catalog.Client, artistID, market string) ([]catalog.Album, error) {
	first, err := client.GetArtistAlbums(ctx, artistID, catalog.AlbumsOptions{
		Market: market,
		Limit:  catalog.PageSize,
	})
	if err != nil {
		return nil, err
	}

	if first.Total <= len(first.Items) {
		return first.Items, nil
	}

	remaining := first.Total - len(first.Items)
	pages := make([][]catalog.Album, (remaining+catalog.PageSize-1)/catalog.PageSize)

	g, gctx := errgroup.WithContext(ctx)
	for i := range pages {
		offset := catalog.PageSize * (i + 1)
		g.Go(func() error {
			page, err := client.GetArtistAlbums(gctx, artistID, catalog.AlbumsOptions{
				Market: market,
				Limit:  catalog.PageSize,
				Offset: offset,
			})
			if err != nil {
				return fmt.Errorf("page at offset %d: %w", offset, err)
			}
			pages[i] = page.Items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	albums := make([]catalog.Album, 0, first.Total)
	albums = append(albums, first.Items...)
	for _, items := range pages {
		albums = append(albums, items...)
	}
	return albums, nil
}
