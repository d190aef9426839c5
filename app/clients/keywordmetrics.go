package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/serpwatch/serp-watch/app/database"
)

// KeywordMetricsClient fetches search volume, competition and bid estimates
// for batches of keyword texts. Results are cached for a day: volume data is
// stable on that scale and every request is billed.
type KeywordMetricsClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	batchSize  int
	limiter    *rate.Limiter
	cache      *gocache.Cache
}

func NewKeywordMetricsClient(httpClient *http.Client, baseURL, userAgent string, batchSize int) *KeywordMetricsClient {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &KeywordMetricsClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		userAgent:  userAgent,
		batchSize:  batchSize,
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		cache:      gocache.New(24*time.Hour, time.Hour),
	}
}

type keywordMetricsRequest struct {
	Keywords []string `json:"keywords"`
}

type keywordMetricsResponse struct {
	Results []struct {
		Keyword          string `json:"keyword"`
		SearchVolume     *int   `json:"searchVolume"`
		CompetitionIndex *int   `json:"competitionIndex"`
		LowBidMicros     *int64 `json:"lowTopOfPageBidMicros"`
		HighBidMicros    *int64 `json:"highTopOfPageBidMicros"`
	} `json:"results"`
}

// FetchMetrics returns metrics per keyword text. Keywords missing from the
// response are absent from the returned map; callers treat that as "no
// usable data" for the keyword.
func (c *KeywordMetricsClient) FetchMetrics(ctx context.Context, creds map[string]string, keywords []string) (map[string]database.KeywordMetrics, error) {
	results := make(map[string]database.KeywordMetrics, len(keywords))

	var misses []string
	for _, kw := range keywords {
		if cached, ok := c.cache.Get(kw); ok {
			results[kw] = cached.(database.KeywordMetrics)
			continue
		}
		misses = append(misses, kw)
	}

	for start := 0; start < len(misses); start += c.batchSize {
		end := start + c.batchSize
		if end > len(misses) {
			end = len(misses)
		}

		batch, err := c.fetchBatch(ctx, creds, misses[start:end])
		if err != nil {
			return nil, err
		}

		for kw, metrics := range batch {
			results[kw] = metrics
			c.cache.Set(kw, metrics, gocache.DefaultExpiration)
		}
	}

	return results, nil
}

func (c *KeywordMetricsClient) fetchBatch(ctx context.Context, creds map[string]string, keywords []string) (map[string]database.KeywordMetrics, error) {
	token := creds["developer_token"]
	if token == "" {
		return nil, fmt.Errorf("credential bag has no developer_token")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqBody, err := json.Marshal(keywordMetricsRequest{Keywords: keywords})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/keywordMetrics:generate", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch keyword metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP error: %d %s: %s", resp.StatusCode, resp.Status, body)
	}

	var parsed keywordMetricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	metrics := make(map[string]database.KeywordMetrics, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.Keyword == "" {
			continue
		}
		metrics[r.Keyword] = database.KeywordMetrics{
			SearchVolume:     r.SearchVolume,
			CompetitionIndex: r.CompetitionIndex,
			LowBidMicros:     r.LowBidMicros,
			HighBidMicros:    r.HighBidMicros,
		}
	}

	return metrics, nil
}
