package search

import (
	"sort"
	"strings"

	"github.com/user/arthub/internal/db"
)

type scored struct {
	artwork  db.Artwork
	exact    bool
	inTitle  bool
	byArtist bool
}

// Rank keeps records whose title or artist contains term (case-insensitive)
// and orders them by exact title match, then title match, then artist
// match. The sort is stable, so ties keep arrival order.
func Rank(term string, records []db.Artwork) []db.Artwork {
	needle := strings.ToLower(term)

	candidates := make([]scored, 0, len(records))
	for _, r := range records {
		title := strings.ToLower(r.Title)
		s := scored{
			artwork:  r,
			exact:    title == needle,
			inTitle:  strings.Contains(title, needle),
			byArtist: r.Artist != "" && strings.Contains(strings.ToLower(r.Artist), needle),
		}
		if !s.inTitle && !s.byArtist {
			continue
		}
		candidates = append(candidates, s)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.exact != b.exact {
			return a.exact
		}
		if a.inTitle != b.inTitle {
			return a.inTitle
		}
		if a.byArtist != b.byArtist {
			return a.byArtist
		}
		return false
	})

	ranked := make([]db.Artwork, len(candidates))
	for i, c := range candidates {
		ranked[i] = c.artwork
	}
	return ranked
}
