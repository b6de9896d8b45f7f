package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/user/arthub/internal/db"
)

const DefaultVAMBaseURL = "https://api.vam.ac.uk"

type VAMSource struct {
	client  *http.Client
	baseURL string
}

func NewVAMSource(client *http.Client, baseURL string) *VAMSource {
	if baseURL == "" {
		baseURL = DefaultVAMBaseURL
	}
	return &VAMSource{client: client, baseURL: baseURL}
}

func (v *VAMSource) ID() string {
	return "vam"
}

func (v *VAMSource) Name() string {
	return "Victoria and Albert Museum"
}

type vamResponse struct {
	Records []struct {
		SystemNumber   string `json:"systemNumber"`
		PrimaryTitle   string `json:"_primaryTitle"`
		PrimaryImageID string `json:"_primaryImageId"`
		PrimaryMaker   *struct {
			Name string `json:"name"`
		} `json:"_primaryMaker"`
	} `json:"records"`
}

func (v *VAMSource) Search(ctx context.Context, term string) ([]db.Artwork, error) {
	q := url.Values{}
	q.Set("q", term)
	q.Set("images", "1")

	var resp vamResponse
	if err := getJSON(ctx, v.client, v.baseURL, "/v2/objects/search", q, &resp); err != nil {
		return nil, err
	}

	artworks := make([]db.Artwork, 0, len(resp.Records))
	for _, item := range resp.Records {
		imageURL := vamImageURL(item.PrimaryImageID)
		if imageURL == "" {
			continue
		}
		artist := ""
		if item.PrimaryMaker != nil {
			artist = item.PrimaryMaker.Name
		}
		artworks = append(artworks, db.Artwork{
			ID:        item.SystemNumber,
			Title:     item.PrimaryTitle,
			Artist:    artist,
			ImageURL:  imageURL,
			Source:    v.Name(),
			SourceURL: "https://collections.vam.ac.uk/item/" + item.SystemNumber,
		})
	}
	return artworks, nil
}

// vamImageURL builds the media URL; images are bucketed by the first six
// characters of the image id.
func vamImageURL(imageID string) string {
	if imageID == "" {
		return ""
	}
	prefix := imageID
	if len(prefix) > 6 {
		prefix = prefix[:6]
	}
	return fmt.Sprintf("https://media.vam.ac.uk/media/thira/collection_images/%s/%s.jpg", prefix, imageID)
}
