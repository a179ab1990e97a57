package catalog

import (
	"errors"
	"fmt"
)

// PageSize is the fixed page size for album listings.
const PageSize = 50

// AlbumGroup classifies an album relative to the artist it was listed for.
type AlbumGroup string

const (
	GroupAlbum       AlbumGroup = "album"
	GroupSingle      AlbumGroup = "single"
	GroupCompilation AlbumGroup = "compilation"
	GroupAppearsOn   AlbumGroup = "appears_on"
)

type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

type Artist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// URL returns the artist's public profile link.
func (a Artist) URL() string {
	return a.ExternalURLs.Spotify
}

func (a Artist) Validate() error {
	if a.ID == "" {
		return errors.New("artist has no id")
	}
	if a.Name == "" {
		return fmt.Errorf("artist %s has no name", a.ID)
	}
	return nil
}

type Album struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	ReleaseDate          string       `json:"release_date"`
	ReleaseDatePrecision string       `json:"release_date_precision"`
	AlbumGroup           AlbumGroup   `json:"album_group"`
	Artists              []Artist     `json:"artists"`
	ExternalURLs         ExternalURLs `json:"external_urls"`
}

// URL returns the album's public link.
func (a Album) URL() string {
	return a.ExternalURLs.Spotify
}

func (a Album) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("album %q has no name", a.ID)
	}
	if a.ReleaseDate == "" {
		return fmt.Errorf("album %q has no release date", a.Name)
	}
	return nil
}

// AlbumPage is one page of an artist's album listing.
type AlbumPage struct {
	Items  []Album `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

func (p *AlbumPage) Validate() error {
	if p.Total < 0 {
		return fmt.Errorf("negative total %d", p.Total)
	}
	for i := range p.Items {
		if err := p.Items[i].Validate(); err != nil {
			return fmt.Errorf("item %d: %w", p.Offset+i, err)
		}
	}
	return nil
}

// AlbumsOptions are the query parameters of an album listing request.
// Zero values are omitted from the request.
type AlbumsOptions struct {
	Market string
	Limit  int
	Offset int
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
