package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/serpwatch/serp-watch/app/ranking"
)

// SearchAnalyticsClient fetches per-query performance rows from the
// search-analytics API. It implements ranking.SearchAnalyticsSource.
type SearchAnalyticsClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
}

var _ ranking.SearchAnalyticsSource = (*SearchAnalyticsClient)(nil)

func NewSearchAnalyticsClient(httpClient *http.Client, baseURL, userAgent string) *SearchAnalyticsClient {
	return &SearchAnalyticsClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		userAgent:  userAgent,
		// Quota is per-site per-day; 5 rps keeps a full-project sweep well
		// under it
		limiter: rate.NewLimiter(rate.Limit(5), 1),
	}
}

const searchAnalyticsRowLimit = 1000

type searchAnalyticsRequest struct {
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	Dimensions []string `json:"dimensions"`
	RowLimit   int      `json:"rowLimit"`
}

type searchAnalyticsResponse struct {
	Rows []struct {
		Keys        []string `json:"keys"`
		Clicks      float64  `json:"clicks"`
		Impressions float64  `json:"impressions"`
		CTR         float64  `json:"ctr"`
		Position    float64  `json:"position"`
	} `json:"rows"`
}

// FetchRankings returns the query/page performance rows for the date range.
// The access token comes from the project's credential bag.
func (c *SearchAnalyticsClient) FetchRankings(ctx context.Context, creds map[string]string, siteURL string, from, to time.Time) ([]ranking.Row, error) {
	token := creds["access_token"]
	if token == "" {
		return nil, fmt.Errorf("credential bag has no access_token")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqBody, err := json.Marshal(searchAnalyticsRequest{
		StartDate:  from.UTC().Format("2006-01-02"),
		EndDate:    to.UTC().Format("2006-01-02"),
		Dimensions: []string{"query", "page"},
		RowLimit:   searchAnalyticsRowLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/sites/%s/searchAnalytics/query", c.baseURL, url.PathEscape(siteURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query search analytics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP error: %d %s: %s", resp.StatusCode, resp.Status, body)
	}

	var parsed searchAnalyticsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	rows := make([]ranking.Row, 0, len(parsed.Rows))
	for _, r := range parsed.Rows {
		if len(r.Keys) == 0 {
			continue
		}
		row := ranking.Row{
			Query:       r.Keys[0],
			Clicks:      int(r.Clicks),
			Impressions: int(r.Impressions),
			CTR:         r.CTR,
			Position:    r.Position,
		}
		if len(r.Keys) > 1 {
			row.Page = r.Keys[1]
		}
		rows = append(rows, row)
	}

	return rows, nil
}


