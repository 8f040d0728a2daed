package metadata

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"golang.org/x/time/rate"
)

const DefaultAniListURL = "https://graphql.anilist.co"

// AniListClient is the primary catalog source. It implements both
// Searcher and EpisodeProvider.
type AniListClient struct {
	baseURL string
	http    httpJSON
}

func NewAniListClient(baseURL string) *AniListClient {
	if baseURL == "" {
		baseURL = DefaultAniListURL
	}
	// AniList allows roughly 90 requests a minute.
	limiter := rate.NewLimiter(rate.Every(700*time.Millisecond), 2)
	return &AniListClient{baseURL: baseURL, http: newHTTPJSON(10*time.Second, limiter)}
}

func (c *AniListClient) Name() models.MetadataSource { return models.SourceAniList }

const aniListMediaFields = `
	id
	idMal
	title { romaji english }
	format
	episodes
	seasonYear
	startDate { year }
	coverImage { large }`

type aniListMedia struct {
	ID    int  `json:"id"`
	IDMal *int `json:"idMal"`
	Title struct {
		Romaji  string  `json:"romaji"`
		English *string `json:"english"`
	} `json:"title"`
	Format     string `json:"format"`
	Episodes   *int   `json:"episodes"`
	SeasonYear *int   `json:"seasonYear"`
	StartDate  struct {
		Year *int `json:"year"`
	} `json:"startDate"`
	CoverImage struct {
		Large *string `json:"large"`
	} `json:"coverImage"`
	StreamingEpisodes []struct {
		Title string `json:"title"`
	} `json:"streamingEpisodes"`
}

func (m aniListMedia) toAnime() *models.Anime {
	a := &models.Anime{
		ID:           m.ID,
		MalID:        m.IDMal,
		TitleRomaji:  m.Title.Romaji,
		TitleEnglish: m.Title.English,
		Format:       m.Format,
		EpisodeCount: m.Episodes,
		CoverImage:   m.CoverImage.Large,
		Monitored:    true,
	}
	a.Year = m.SeasonYear
	if a.Year == nil {
		a.Year = m.StartDate.Year
	}
	return a
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

func (c *AniListClient) query(ctx context.Context, query string, vars map[string]interface{}, data interface{}) error {
	var resp struct {
		Data   interface{}    `json:"data"`
		Errors []graphQLError `json:"errors"`
	}
	resp.Data = data
	if err := c.http.post(ctx, c.baseURL, graphQLRequest{Query: query, Variables: vars}, &resp); err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return fmt.Errorf("anilist: %s", resp.Errors[0].Message)
	}
	return nil
}

func (c *AniListClient) Search(ctx context.Context, search string) ([]*models.Anime, error) {
	q := `query ($search: String) {
		Page(perPage: 10) {
			media(search: $search, type: ANIME) {` + aniListMediaFields + `
			}
		}
	}`
	var data struct {
		Page struct {
			Media []aniListMedia `json:"media"`
		} `json:"Page"`
	}
	if err := c.query(ctx, q, map[string]interface{}{"search": search}, &data); err != nil {
		return nil, err
	}
	out := make([]*models.Anime, 0, len(data.Page.Media))
	for _, m := range data.Page.Media {
		out = append(out, m.toAnime())
	}
	return out, nil
}

func (c *AniListClient) GetByID(ctx context.Context, id int) (*models.Anime, error) {
	m, err := c.media(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.toAnime(), nil
}

func (c *AniListClient) media(ctx context.Context, id int) (*aniListMedia, error) {
	q := `query ($id: Int) {
		Media(id: $id, type: ANIME) {` + aniListMediaFields + `
			streamingEpisodes { title }
		}
	}`
	var data struct {
		Media *aniListMedia `json:"Media"`
	}
	if err := c.query(ctx, q, map[string]interface{}{"id": id}, &data); err != nil {
		return nil, err
	}
	if data.Media == nil {
		return nil, fmt.Errorf("anilist media %d: %w", id, apperr.ErrNotFound)
	}
	return data.Media, nil
}

// Streaming episode titles look like "Episode 3 - Killing Magic".
var streamingTitleRe = regexp.MustCompile(`(?i)^episode\s+(\d+(?:\.\d+)?)\s*(?:[-:]\s*(.*))?$`)

func (c *AniListClient) Episodes(ctx context.Context, a *models.Anime) ([]EpisodeInfo, error) {
	m, err := c.media(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	var out []EpisodeInfo
	for _, se := range m.StreamingEpisodes {
		if ep, ok := parseStreamingTitle(se.Title); ok {
			out = append(out, ep)
		}
	}
	return out, nil
}

func parseStreamingTitle(title string) (EpisodeInfo, bool) {
	sm := streamingTitleRe.FindStringSubmatch(strings.TrimSpace(title))
	if sm == nil {
		return EpisodeInfo{}, false
	}
	n, err := strconv.ParseFloat(sm[1], 64)
	if err != nil {
		return EpisodeInfo{}, false
	}
	return EpisodeInfo{Number: n, Title: strings.TrimSpace(sm[2])}, true
}
