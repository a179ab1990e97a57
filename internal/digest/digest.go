// Package digest renders the per-subscriber release email.
package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/dgnsrekt/music-release-notifier/internal/catalog"
	"github.com/dgnsrekt/music-release-notifier/internal/releases"
)

// Section is one artist heading and the new releases listed under it.
type Section struct {
	Artist   catalog.Artist
	Releases []releases.Release
}

// Digest is a rendered email for a single recipient.
type Digest struct {
	To      string
	Subject string
	HTML    string
	Artists int
	Albums  int
}

type sectionView struct {
	Name    string
	URL     string
	Entries []entryView
}

type entryView struct {
	Name string
	URL  string
	By   string
	Date string
}

var bodyTemplate = template.Must(template.New("digest").Parse(
	`{{range .}}<h2><a href="{{.URL}}">{{.Name}}</a></h2><ul>` +
		`{{range .Entries}}<li><em><a href="{{.URL}}">{{.Name}}</a></em>{{if .By}} by {{.By}}{{end}} ({{.Date}})</li>{{end}}` +
		`</ul>{{end}}`))

// Render builds the digest for one recipient. Sections keep their order;
// text from the catalog is escaped.
func Render(to, subject string, sections []Section) (*Digest, error) {
	d := &Digest{To: to, Subject: subject}

	views := make([]sectionView, 0, len(sections))
	for _, s := range sections {
		v := sectionView{Name: s.Artist.Name, URL: s.Artist.URL()}
		for _, r := range s.Releases {
			v.Entries = append(v.Entries, entryView{
				Name: r.Album.Name,
				URL:  r.Album.URL(),
				By:   byline(r.Album, s.Artist.ID),
				Date: r.Album.ReleaseDate,
			})
		}
		d.Albums += len(v.Entries)
		views = append(views, v)
	}
	d.Artists = len(views)

	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, views); err != nil {
		return nil, fmt.Errorf("rendering digest for %s: %w", to, err)
	}
	d.HTML = buf.String()

	return d, nil
}

// byline lists the album's credited artists, or is empty when the album is
// credited to the section artist alone.
func byline(album catalog.Album, artistID string) string {
	if len(album.Artists) == 0 || (len(album.Artists) == 1 && album.Artists[0].ID == artistID) {
		return ""
	}

	names := make([]string, len(album.Artists))
	for i, a := range album.Artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}
