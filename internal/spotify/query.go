package spotify

import (
	"regexp"
	"strings"
)

// QueryKind says how a query string should be resolved.
type QueryKind int

const (
	QuerySearch QueryKind = iota
	QueryTrack
	QueryAlbum
	QueryPlaylist
)

func (k QueryKind) String() string {
	switch k {
	case QueryTrack:
		return "track"
	case QueryAlbum:
		return "album"
	case QueryPlaylist:
		return "playlist"
	default:
		return "search"
	}
}

// Query is a parsed user query.
type Query struct {
	Kind QueryKind
	ID   string
	Text string
}

var (
	openURLPattern = regexp.MustCompile(`^https?://open\.spotify\.com/(?:intl-[a-zA-Z-]+/)?(track|album|playlist)/([A-Za-z0-9]+)`)
	uriPattern     = regexp.MustCompile(`^spotify:(track|album|playlist):([A-Za-z0-9]+)$`)
)

// ParseQuery recognizes open.spotify.com links and spotify: URIs. Anything
// else is a free-text search.
func ParseQuery(raw string) Query {
	q := strings.TrimSpace(raw)
	for _, pattern := range []*regexp.Regexp{openURLPattern, uriPattern} {
		if m := pattern.FindStringSubmatch(q); m != nil {
			return Query{Kind: kindOf(m[1]), ID: m[2], Text: q}
		}
	}
	return Query{Kind: QuerySearch, Text: q}
}

func kindOf(s string) QueryKind {
	switch s {
	case "track":
		return QueryTrack
	case "album":
		return QueryAlbum
	default:
		return QueryPlaylist
	}
}
