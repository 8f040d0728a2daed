package metadata

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/JustinTDCT/AnimeVault/internal/models"
	"golang.org/x/time/rate"
)

const DefaultKitsuURL = "https://kitsu.io/api/edge"

const kitsuPageSize = 20

type KitsuClient struct {
	baseURL string
	http    httpJSON
}

func NewKitsuClient(baseURL string) *KitsuClient {
	if baseURL == "" {
		baseURL = DefaultKitsuURL
	}
	return &KitsuClient{
		baseURL: baseURL,
		http:    newHTTPJSON(10*time.Second, rate.NewLimiter(rate.Every(250*time.Millisecond), 1)),
	}
}

func (c *KitsuClient) Name() models.MetadataSource { return models.SourceKitsu }

type kitsuEpisodePage struct {
	Data []struct {
		Attributes struct {
			Number         *float64          `json:"number"`
			CanonicalTitle string            `json:"canonicalTitle"`
			Titles         map[string]string `json:"titles"`
			Airdate        string            `json:"airdate"`
		} `json:"attributes"`
	} `json:"data"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

func (c *KitsuClient) Episodes(ctx context.Context, a *models.Anime) ([]EpisodeInfo, error) {
	kitsuID := a.KitsuID
	if kitsuID == nil {
		id, err := c.resolveID(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		kitsuID = &id
	}

	var out []EpisodeInfo
	for offset := 0; ; offset += kitsuPageSize {
		u := fmt.Sprintf("%s/anime/%d/episodes?page[limit]=%d&page[offset]=%d&sort=number",
			c.baseURL, *kitsuID, kitsuPageSize, offset)
		var page kitsuEpisodePage
		if err := c.http.get(ctx, u, &page); err != nil {
			return nil, err
		}
		for _, d := range page.Data {
			attr := d.Attributes
			if attr.Number == nil {
				continue
			}
			ep := EpisodeInfo{
				Number:        *attr.Number,
				Title:         attr.CanonicalTitle,
				TitleJapanese: attr.Titles["ja_jp"],
			}
			if t, err := time.Parse("2006-01-02", attr.Airdate); err == nil {
				ep.Aired = &t
			}
			out = append(out, ep)
		}
		if page.Links.Next == "" || len(page.Data) == 0 {
			break
		}
	}
	return out, nil
}

// resolveID maps an AniList id to Kitsu through Kitsu's mapping table.
func (c *KitsuClient) resolveID(ctx context.Context, aniListID int) (int, error) {
	q := url.Values{}
	q.Set("filter[externalSite]", "anilist/anime")
	q.Set("filter[externalId]", strconv.Itoa(aniListID))
	q.Set("include", "item")

	var resp struct {
		Included []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"included"`
	}
	if err := c.http.get(ctx, c.baseURL+"/mappings?"+q.Encode(), &resp); err != nil {
		return 0, err
	}
	for _, inc := range resp.Included {
		if inc.Type != "anime" {
			continue
		}
		if id, err := strconv.Atoi(inc.ID); err == nil {
			return id, nil
		}
	}
	return 0, fmt.Errorf("kitsu mapping for anilist %d: %w", aniListID, errNotListed)
}
