package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"
)

// PageSpeedScores are the lighthouse category scores, 0-100.
type PageSpeedScores struct {
	Performance   int
	Accessibility int
	BestPractices int
	SEO           int
}

// CoreWebVitals are the lab timing metrics, in milliseconds except CLS.
type CoreWebVitals struct {
	LCPMs        *float64
	FCPMs        *float64
	CLS          *float64
	SpeedIndexMs *float64
}

type PageSpeedReport struct {
	Scores PageSpeedScores
	Vitals CoreWebVitals
}

// PageSpeedClient runs a page-performance analysis for a URL and strategy.
type PageSpeedClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
}

func NewPageSpeedClient(httpClient *http.Client, baseURL, userAgent string) *PageSpeedClient {
	return &PageSpeedClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		userAgent:  userAgent,
		// Each run takes the API tens of seconds; one at a time is plenty
		limiter: rate.NewLimiter(rate.Limit(0.5), 1),
	}
}

type pageSpeedResponse struct {
	LighthouseResult struct {
		Categories struct {
			Performance   categoryScore `json:"performance"`
			Accessibility categoryScore `json:"accessibility"`
			BestPractices categoryScore `json:"best-practices"`
			SEO           categoryScore `json:"seo"`
		} `json:"categories"`
		Audits map[string]struct {
			NumericValue *float64 `json:"numericValue"`
		} `json:"audits"`
	} `json:"lighthouseResult"`
}

type categoryScore struct {
	Score *float64 `json:"score"`
}

// Analyze runs the analysis with the given strategy ("mobile" or "desktop").
func (c *PageSpeedClient) Analyze(ctx context.Context, creds map[string]string, pageURL, strategy string) (*PageSpeedReport, error) {
	apiKey := creds["api_key"]
	if apiKey == "" {
		return nil, fmt.Errorf("credential bag has no api_key")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("url", pageURL)
	params.Set("strategy", strategy)
	params.Set("key", apiKey)
	params.Add("category", "performance")
	params.Add("category", "accessibility")
	params.Add("category", "best-practices")
	params.Add("category", "seo")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/runPagespeed?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to run pagespeed analysis: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP error: %d %s: %s", resp.StatusCode, resp.Status, body)
	}

	var parsed pageSpeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	report := &PageSpeedReport{
		Scores: PageSpeedScores{
			Performance:   toPercent(parsed.LighthouseResult.Categories.Performance.Score),
			Accessibility: toPercent(parsed.LighthouseResult.Categories.Accessibility.Score),
			BestPractices: toPercent(parsed.LighthouseResult.Categories.BestPractices.Score),
			SEO:           toPercent(parsed.LighthouseResult.Categories.SEO.Score),
		},
	}

	audits := parsed.LighthouseResult.Audits
	report.Vitals.LCPMs = audits["largest-contentful-paint"].NumericValue
	report.Vitals.FCPMs = audits["first-contentful-paint"].NumericValue
	report.Vitals.CLS = audits["cumulative-layout-shift"].NumericValue
	report.Vitals.SpeedIndexMs = audits["speed-index"].NumericValue

	return report, nil
}

// toPercent maps the 0..1 lighthouse score to the 0..100 scale stored in
// the database. Missing categories score zero.
func toPercent(score *float64) int {
	if score == nil {
		return 0
	}
	return int(math.Round(*score * 100))
}
