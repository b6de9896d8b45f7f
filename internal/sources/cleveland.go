package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/user/arthub/internal/db"
)

const DefaultClevelandBaseURL = "https://openaccess-api.clevelandart.org"

type ClevelandSource struct {
	client  *http.Client
	baseURL string
}

func NewClevelandSource(client *http.Client, baseURL string) *ClevelandSource {
	if baseURL == "" {
		baseURL = DefaultClevelandBaseURL
	}
	return &ClevelandSource{client: client, baseURL: baseURL}
}

func (c *ClevelandSource) ID() string {
	return "cleveland"
}

func (c *ClevelandSource) Name() string {
	return "Cleveland Museum of Art"
}

type clevelandResponse struct {
	Data []struct {
		ID       json.Number `json:"id"`
		Title    string      `json:"title"`
		Creators []struct {
			Description string `json:"description"`
		} `json:"creators"`
		Images *struct {
			Web *struct {
				URL string `json:"url"`
			} `json:"web"`
		} `json:"images"`
	} `json:"data"`
}

func (c *ClevelandSource) Search(ctx context.Context, term string) ([]db.Artwork, error) {
	q := url.Values{}
	q.Set("q", term)
	q.Set("has_image", "1")

	var resp clevelandResponse
	if err := getJSON(ctx, c.client, c.baseURL, "/api/artworks/", q, &resp); err != nil {
		return nil, err
	}

	artworks := make([]db.Artwork, 0, len(resp.Data))
	for _, item := range resp.Data {
		if item.Images == nil || item.Images.Web == nil || item.Images.Web.URL == "" {
			continue
		}
		id := item.ID.String()
		artist := ""
		if len(item.Creators) > 0 {
			artist = item.Creators[0].Description
		}
		artworks = append(artworks, db.Artwork{
			ID:        id,
			Title:     item.Title,
			Artist:    artist,
			ImageURL:  item.Images.Web.URL,
			Source:    c.Name(),
			SourceURL: "https://www.clevelandart.org/art/" + id,
		})
	}
	return artworks, nil
}
