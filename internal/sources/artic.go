package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/user/arthub/internal/db"
)

const DefaultArticBaseURL = "https://api.artic.edu"

type ArticSource struct {
	client  *http.Client
	baseURL string
}

func NewArticSource(client *http.Client, baseURL string) *ArticSource {
	if baseURL == "" {
		baseURL = DefaultArticBaseURL
	}
	return &ArticSource{client: client, baseURL: baseURL}
}

func (a *ArticSource) ID() string {
	return "artic"
}

func (a *ArticSource) Name() string {
	return "Art Institute of Chicago"
}

type articResponse struct {
	Data []struct {
		ID          json.Number `json:"id"`
		Title       string      `json:"title"`
		ImageID     string      `json:"image_id"`
		ArtistTitle string      `json:"artist_title"`
	} `json:"data"`
}

func (a *ArticSource) Search(ctx context.Context, term string) ([]db.Artwork, error) {
	q := url.Values{}
	q.Set("q", term)
	q.Set("fields", "id,title,image_id,artist_title")

	var resp articResponse
	if err := getJSON(ctx, a.client, a.baseURL, "/api/v1/artworks/search", q, &resp); err != nil {
		return nil, err
	}

	artworks := make([]db.Artwork, 0, len(resp.Data))
	for _, item := range resp.Data {
		if item.ImageID == "" {
			continue
		}
		id := item.ID.String()
		artworks = append(artworks, db.Artwork{
			ID:        id,
			Title:     item.Title,
			Artist:    item.ArtistTitle,
			ImageURL:  fmt.Sprintf("https://www.artic.edu/iiif/2/%s/full/843,/0/default.jpg", item.ImageID),
			Source:    a.Name(),
			SourceURL: "https://www.artic.edu/artworks/" + id,
		})
	}
	return artworks, nil
}
