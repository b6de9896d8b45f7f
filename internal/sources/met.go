package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/user/arthub/internal/db"
)

const DefaultMetBaseURL = "https://collectionapi.metmuseum.org"

// metDetailLimit caps both the number of ids taken from the search phase
// and the number of detail requests in flight.
const metDetailLimit = 10

// MetSource searches the MET collection API, which only returns object ids;
// each record needs a second request for its details.
type MetSource struct {
	client  *http.Client
	baseURL string
}

func NewMetSource(client *http.Client, baseURL string) *MetSource {
	if baseURL == "" {
		baseURL = DefaultMetBaseURL
	}
	return &MetSource{client: client, baseURL: baseURL}
}

func (m *MetSource) ID() string {
	return "met"
}

func (m *MetSource) Name() string {
	return "The MET Museum"
}

type metSearchResponse struct {
	Total     int           `json:"total"`
	ObjectIDs []json.Number `json:"objectIDs"`
}

type metObject struct {
	ObjectID          json.Number `json:"objectID"`
	Title             string      `json:"title"`
	ArtistDisplayName string      `json:"artistDisplayName"`
	PrimaryImage      string      `json:"primaryImage"`
}

func (m *MetSource) Search(ctx context.Context, term string) ([]db.Artwork, error) {
	q := url.Values{}
	q.Set("q", term)
	q.Set("hasImages", "true")

	var search metSearchResponse
	if err := getJSON(ctx, m.client, m.baseURL, "/public/collection/v1/search", q, &search); err != nil {
		return nil, err
	}
	ids := search.ObjectIDs
	if len(ids) > metDetailLimit {
		ids = ids[:metDetailLimit]
	}
	if len(ids) == 0 {
		return []db.Artwork{}, nil
	}

	// Any failed detail fetch fails the whole source.
	objects := make([]metObject, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(metDetailLimit)
	for i, id := range ids {
		g.Go(func() error {
			path := fmt.Sprintf("/public/collection/v1/objects/%s", url.PathEscape(id.String()))
			return getJSON(gctx, m.client, m.baseURL, path, nil, &objects[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	artworks := make([]db.Artwork, 0, len(objects))
	for _, item := range objects {
		if item.PrimaryImage == "" {
			continue
		}
		id := item.ObjectID.String()
		artworks = append(artworks, db.Artwork{
			ID:        id,
			Title:     item.Title,
			Artist:    item.ArtistDisplayName,
			ImageURL:  item.PrimaryImage,
			Source:    m.Name(),
			SourceURL: "https://www.metmuseum.org/art/collection/search/" + id,
		})
	}
	return artworks, nil
}
