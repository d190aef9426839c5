package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// KeywordInsight is the AI adapter's free-form structured analysis of one
// keyword. Fields are loosely typed and validated only at the point of use.
type KeywordInsight struct {
	CompetitionLevel string   `json:"competition_level"`
	SearchIntent     string   `json:"search_intent"`
	Opportunities    []string `json:"opportunities"`
	Challenges       []string `json:"challenges"`
	OptimizationTips []string `json:"optimization_tips"`
	Summary          string   `json:"summary"`
}

// InsightClient asks the AI analysis API about a keyword. A nil insight with
// a nil error means the model returned nothing usable, which callers must
// treat as non-fatal.
type InsightClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
}

func NewInsightClient(httpClient *http.Client, baseURL, userAgent string) *InsightClient {
	return &InsightClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(rate.Limit(0.5), 1),
	}
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content generateContent `json:"content"`
	} `json:"candidates"`
}

// AnalyzeKeyword returns the model's structured analysis of the keyword in
// the context of the site, or nil when the model has no usable answer.
func (c *InsightClient) AnalyzeKeyword(ctx context.Context, creds map[string]string, keyword, siteURL string) (*KeywordInsight, error) {
	apiKey := creds["api_key"]
	if apiKey == "" {
		return nil, fmt.Errorf("credential bag has no api_key")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"Analyze the SEO keyword %q for the website %s. Respond with a single JSON object "+
			"with keys competition_level, search_intent, opportunities, challenges, "+
			"optimization_tips and summary.", keyword, siteURL)

	reqBody, err := json.Marshal(generateRequest{
		Contents: []generateContent{{Parts: []generatePart{{Text: prompt}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := c.baseURL + "/models/gemini-1.5-flash:generateContent?key=" + apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query insight API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP error: %d %s: %s", resp.StatusCode, resp.Status, body)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, nil
	}

	text := parsed.Candidates[0].Content.Parts[0].Text
	insight := parseInsight(text)
	return insight, nil
}

// parseInsight extracts the JSON object from the model's text, tolerating
// markdown fences and prose around it. Returns nil when nothing parses.
func parseInsight(text string) *KeywordInsight {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}

	var insight KeywordInsight
	if err := json.Unmarshal([]byte(text[start:end+1]), &insight); err != nil {
		return nil
	}

	if insight.Summary == "" && insight.CompetitionLevel == "" && len(insight.OptimizationTips) == 0 {
		return nil
	}

	return &insight
}
