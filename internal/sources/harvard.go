package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/user/arthub/internal/db"
)

const DefaultHarvardBaseURL = "https://api.harvardartmuseums.org"

type HarvardSource struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewHarvardSource(client *http.Client, baseURL, apiKey string) *HarvardSource {
	if baseURL == "" {
		baseURL = DefaultHarvardBaseURL
	}
	return &HarvardSource{client: client, baseURL: baseURL, apiKey: apiKey}
}

func (h *HarvardSource) ID() string {
	return "harvard"
}

func (h *HarvardSource) Name() string {
	return "Harvard Art Museums"
}

type harvardResponse struct {
	Records []struct {
		ID              json.Number `json:"id"`
		Title           string      `json:"title"`
		PrimaryImageURL string      `json:"primaryimageurl"`
		URL             string      `json:"url"`
		People          []struct {
			Name string `json:"name"`
		} `json:"people"`
	} `json:"records"`
}

// Search matches on title only; the Harvard API has no free-text artist search.
func (h *HarvardSource) Search(ctx context.Context, term string) ([]db.Artwork, error) {
	q := url.Values{}
	q.Set("apikey", h.apiKey)
	q.Set("title", term)

	var resp harvardResponse
	if err := getJSON(ctx, h.client, h.baseURL, "/object", q, &resp); err != nil {
		return nil, err
	}

	artworks := make([]db.Artwork, 0, len(resp.Records))
	for _, item := range resp.Records {
		if item.PrimaryImageURL == "" {
			continue
		}
		id := item.ID.String()
		artist := ""
		if len(item.People) > 0 {
			artist = item.People[0].Name
		}
		sourceURL := item.URL
		if sourceURL == "" {
			sourceURL = "https://www.harvardartmuseums.org/collections/object/" + id
		}
		artworks = append(artworks, db.Artwork{
			ID:        id,
			Title:     item.Title,
			Artist:    artist,
			ImageURL:  item.PrimaryImageURL,
			Source:    h.Name(),
			SourceURL: sourceURL,
		})
	}
	return artworks, nil
}
