package metadata

import (
	"context"
	"fmt"
	"time"

	"github.com/JustinTDCT/AnimeVault/internal/models"
	"golang.org/x/time/rate"
)

const DefaultJikanURL = "https://api.jikan.moe/v4"

// JikanClient reads MyAnimeList episode data through the Jikan mirror.
type JikanClient struct {
	baseURL string
	http    httpJSON
}

func NewJikanClient(baseURL string) *JikanClient {
	if baseURL == "" {
		baseURL = DefaultJikanURL
	}
	// Jikan allows 3 requests a second.
	return &JikanClient{
		baseURL: baseURL,
		http:    newHTTPJSON(10*time.Second, rate.NewLimiter(rate.Every(350*time.Millisecond), 1)),
	}
}

func (c *JikanClient) Name() models.MetadataSource { return models.SourceJikan }

type jikanEpisodePage struct {
	Data []struct {
		MalID         int        `json:"mal_id"`
		Title         string     `json:"title"`
		TitleJapanese string     `json:"title_japanese"`
		Aired         *time.Time `json:"aired"`
	} `json:"data"`
	Pagination struct {
		HasNextPage bool `json:"has_next_page"`
	} `json:"pagination"`
}

func (c *JikanClient) Episodes(ctx context.Context, a *models.Anime) ([]EpisodeInfo, error) {
	if a.MalID == nil {
		return nil, fmt.Errorf("anime %d has no MAL id: %w", a.ID, errNotListed)
	}

	var out []EpisodeInfo
	for page := 1; ; page++ {
		var resp jikanEpisodePage
		if err := c.http.get(ctx, fmt.Sprintf("%s/anime/%d/episodes?page=%d", c.baseURL, *a.MalID, page), &resp); err != nil {
			return nil, err
		}
		for _, d := range resp.Data {
			out = append(out, EpisodeInfo{
				Number:        float64(d.MalID),
				Title:         d.Title,
				TitleJapanese: d.TitleJapanese,
				Aired:         d.Aired,
			})
		}
		if !resp.Pagination.HasNextPage {
			break
		}
	}
	return out, nil
}
