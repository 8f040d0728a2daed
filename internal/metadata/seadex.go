package metadata

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const DefaultSeadexURL = "https://releases.moe"

const seadexCacheTTL = 6 * time.Hour

// SeadexClient looks up the curated best-release groups for an anime.
// Answers are cached per anime.
type SeadexClient struct {
	baseURL string
	http    httpJSON

	mu    sync.Mutex
	cache map[int]seadexEntry
	now   func() time.Time
}

type seadexEntry struct {
	groups  []string
	fetched time.Time
}

func NewSeadexClient(baseURL string) *SeadexClient {
	if baseURL == "" {
		baseURL = DefaultSeadexURL
	}
	return &SeadexClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPJSON(10*time.Second, rate.NewLimiter(rate.Every(time.Second), 2)),
		cache:   make(map[int]seadexEntry),
		now:     time.Now,
	}
}

type seadexRecords struct {
	Items []struct {
		Expand struct {
			Trs []struct {
				ReleaseGroup string `json:"releaseGroup"`
				IsBest       bool   `json:"isBest"`
			} `json:"trs"`
		} `json:"expand"`
	} `json:"items"`
}

// BestGroups returns the release groups marked best for an AniList id.
// When no entry is flagged best, every listed group is returned.
func (c *SeadexClient) BestGroups(ctx context.Context, animeID int) ([]string, error) {
	c.mu.Lock()
	if e, ok := c.cache[animeID]; ok && c.now().Sub(e.fetched) < seadexCacheTTL {
		c.mu.Unlock()
		return e.groups, nil
	}
	c.mu.Unlock()

	q := url.Values{}
	q.Set("filter", fmt.Sprintf("alID=%d", animeID))
	q.Set("expand", "trs")
	var resp seadexRecords
	if err := c.http.get(ctx, c.baseURL+"/api/collections/entries/records?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	var best, all []string
	seen := map[string]bool{}
	for _, item := range resp.Items {
		for _, tr := range item.Expand.Trs {
			g := strings.TrimSpace(tr.ReleaseGroup)
			if g == "" {
				continue
			}
			if tr.IsBest {
				best = appendUnique(best, g)
			}
			if !seen[g] {
				seen[g] = true
				all = append(all, g)
			}
		}
	}
	if len(best) == 0 {
		best = all
	}

	c.mu.Lock()
	c.cache[animeID] = seadexEntry{groups: best, fetched: c.now()}
	c.mu.Unlock()
	return best, nil
}

// IsBest reports whether group is a curated release for the anime.
func (c *SeadexClient) IsBest(ctx context.Context, animeID int, group string) (bool, error) {
	if group == "" {
		return false, nil
	}
	groups, err := c.BestGroups(ctx, animeID)
	if err != nil {
		return false, err
	}
	for _, g := range groups {
		if strings.EqualFold(g, group) {
			return true, nil
		}
	}
	return false, nil
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
