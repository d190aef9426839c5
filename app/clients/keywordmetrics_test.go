package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func metricsServer(t *testing.T, requestCount *int, batchSizes *[]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*requestCount++

		var req keywordMetricsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		*batchSizes = append(*batchSizes, len(req.Keywords))

		resp := keywordMetricsResponse{}
		for i, kw := range req.Keywords {
			volume := 100 * (i + 1)
			resp.Results = append(resp.Results, struct {
				Keyword          string `json:"keyword"`
				SearchVolume     *int   `json:"searchVolume"`
				CompetitionIndex *int   `json:"competitionIndex"`
				LowBidMicros     *int64 `json:"lowTopOfPageBidMicros"`
				HighBidMicros    *int64 `json:"highTopOfPageBidMicros"`
			}{Keyword: kw, SearchVolume: &volume})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestKeywordMetricsClient_FetchMetrics_Batches(t *testing.T) {
	requestCount := 0
	var batchSizes []int
	server := metricsServer(t, &requestCount, &batchSizes)
	defer server.Close()

	client := NewKeywordMetricsClient(server.Client(), server.URL, "test-agent", 2)

	keywords := []string{"a", "b", "c", "d", "e"}
	creds := map[string]string{"developer_token": "dev-123"}

	metrics, err := client.FetchMetrics(context.Background(), creds, keywords)
	if err != nil {
		t.Fatalf("FetchMetrics failed: %v", err)
	}

	if len(metrics) != 5 {
		t.Errorf("Expected metrics for 5 keywords, got %d", len(metrics))
	}
	if requestCount != 3 {
		t.Errorf("Expected 3 batch requests for 5 keywords with batch size 2, got %d", requestCount)
	}
	if fmt.Sprint(batchSizes) != "[2 2 1]" {
		t.Errorf("Unexpected batch sizes: %v", batchSizes)
	}

	if m, ok := metrics["a"]; !ok || m.SearchVolume == nil || *m.SearchVolume != 100 {
		t.Errorf("Unexpected metrics for keyword a: %+v", m)
	}
}

func TestKeywordMetricsClient_FetchMetrics_CachesResults(t *testing.T) {
	requestCount := 0
	var batchSizes []int
	server := metricsServer(t, &requestCount, &batchSizes)
	defer server.Close()

	client := NewKeywordMetricsClient(server.Client(), server.URL, "test-agent", 10)
	creds := map[string]string{"developer_token": "dev-123"}

	if _, err := client.FetchMetrics(context.Background(), creds, []string{"a", "b"}); err != nil {
		t.Fatalf("First fetch failed: %v", err)
	}

	// Second fetch overlaps: only the new keyword goes to the API.
	metrics, err := client.FetchMetrics(context.Background(), creds, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Second fetch failed: %v", err)
	}

	if len(metrics) != 3 {
		t.Errorf("Expected metrics for 3 keywords, got %d", len(metrics))
	}
	if requestCount != 2 {
		t.Errorf("Expected 2 requests total, got %d", requestCount)
	}
	if len(batchSizes) != 2 || batchSizes[1] != 1 {
		t.Errorf("Second request should carry only the cache miss, got %v", batchSizes)
	}
}

func TestKeywordMetricsClient_FetchMetrics_MissingToken(t *testing.T) {
	client := NewKeywordMetricsClient(http.DefaultClient, "http://unused.invalid", "test-agent", 10)
	if _, err := client.FetchMetrics(context.Background(), map[string]string{}, []string{"a"}); err == nil {
		t.Fatal("Expected error for missing developer token")
	}
}
