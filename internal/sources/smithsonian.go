package sources

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/user/arthub/internal/db"
)

const (
	DefaultSmithsonianBaseURL = "https://api.si.edu"
	smithsonianRows           = 10
)

type SmithsonianSource struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewSmithsonianSource(client *http.Client, baseURL, apiKey string) *SmithsonianSource {
	if baseURL == "" {
		baseURL = DefaultSmithsonianBaseURL
	}
	return &SmithsonianSource{client: client, baseURL: baseURL, apiKey: apiKey}
}

func (s *SmithsonianSource) ID() string {
	return "smithsonian"
}

func (s *SmithsonianSource) Name() string {
	return "Smithsonian Institution"
}

type siContent struct {
	Content string `json:"content"`
}

type smithsonianResponse struct {
	Response struct {
		Rows []struct {
			ID      string `json:"id"`
			Title   string `json:"title"`
			Content struct {
				DescriptiveNonRepeating struct {
					RecordLink  string `json:"record_link"`
					OnlineMedia *struct {
						Media []siContent `json:"media"`
					} `json:"online_media"`
				} `json:"descriptiveNonRepeating"`
				Freetext struct {
					Name []siContent `json:"name"`
				} `json:"freetext"`
			} `json:"content"`
		} `json:"rows"`
	} `json:"response"`
}

func (s *SmithsonianSource) Search(ctx context.Context, term string) ([]db.Artwork, error) {
	q := url.Values{}
	q.Set("api_key", s.apiKey)
	q.Set("q", term)
	q.Set("rows", strconv.Itoa(smithsonianRows))

	var resp smithsonianResponse
	if err := getJSON(ctx, s.client, s.baseURL, "/openaccess/api/v1.0/search", q, &resp); err != nil {
		return nil, err
	}

	artworks := make([]db.Artwork, 0, len(resp.Response.Rows))
	for _, item := range resp.Response.Rows {
		desc := item.Content.DescriptiveNonRepeating
		imageURL := ""
		if desc.OnlineMedia != nil && len(desc.OnlineMedia.Media) > 0 {
			imageURL = desc.OnlineMedia.Media[0].Content
		}
		if imageURL == "" {
			continue
		}
		artist := ""
		if len(item.Content.Freetext.Name) > 0 {
			artist = item.Content.Freetext.Name[0].Content
		}
		artworks = append(artworks, db.Artwork{
			ID:        item.ID,
			Title:     item.Title,
			Artist:    artist,
			ImageURL:  imageURL,
			Source:    s.Name(),
			SourceURL: desc.RecordLink,
		})
	}
	return artworks, nil
}
