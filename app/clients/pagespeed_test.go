package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPageSpeedClient_Analyze(t *testing.T) {
	var gotURL, gotStrategy, gotKey string
	var gotCategories []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotURL = q.Get("url")
		gotStrategy = q.Get("strategy")
		gotKey = q.Get("key")
		gotCategories = q["category"]

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"lighthouseResult": {
				"categories": {
					"performance": {"score": 0.87},
					"accessibility": {"score": 0.95},
					"best-practices": {"score": 1.0},
					"seo": {"score": 0.786}
				},
				"audits": {
					"largest-contentful-paint": {"numericValue": 2300.5},
					"first-contentful-paint": {"numericValue": 1100.0},
					"cumulative-layout-shift": {"numericValue": 0.02},
					"speed-index": {"numericValue": 3100.0}
				}
			}
		}`))
	}))
	defer server.Close()

	client := NewPageSpeedClient(server.Client(), server.URL, "test-agent")
	report, err := client.Analyze(context.Background(), map[string]string{"api_key": "key-123"},
		"https://example.com", "mobile")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if gotURL != "https://example.com" || gotStrategy != "mobile" || gotKey != "key-123" {
		t.Errorf("Unexpected request parameters: url=%q strategy=%q key=%q", gotURL, gotStrategy, gotKey)
	}
	if len(gotCategories) != 4 {
		t.Errorf("Expected 4 requested categories, got %v", gotCategories)
	}

	if report.Scores.Performance != 87 {
		t.Errorf("Expected performance 87, got %d", report.Scores.Performance)
	}
	if report.Scores.Accessibility != 95 {
		t.Errorf("Expected accessibility 95, got %d", report.Scores.Accessibility)
	}
	if report.Scores.BestPractices != 100 {
		t.Errorf("Expected best practices 100, got %d", report.Scores.BestPractices)
	}
	if report.Scores.SEO != 79 {
		t.Errorf("Expected SEO score rounded to 79, got %d", report.Scores.SEO)
	}

	if report.Vitals.LCPMs == nil || *report.Vitals.LCPMs != 2300.5 {
		t.Errorf("Unexpected LCP: %v", report.Vitals.LCPMs)
	}
	if report.Vitals.CLS == nil || *report.Vitals.CLS != 0.02 {
		t.Errorf("Unexpected CLS: %v", report.Vitals.CLS)
	}
}

func TestPageSpeedClient_Analyze_MissingCategoriesScoreZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"lighthouseResult": {"categories": {"performance": {"score": 0.5}}, "audits": {}}}`))
	}))
	defer server.Close()

	client := NewPageSpeedClient(server.Client(), server.URL, "test-agent")
	report, err := client.Analyze(context.Background(), map[string]string{"api_key": "k"},
		"https://example.com", "desktop")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if report.Scores.Performance != 50 {
		t.Errorf("Expected performance 50, got %d", report.Scores.Performance)
	}
	if report.Scores.SEO != 0 || report.Scores.Accessibility != 0 {
		t.Errorf("Missing categories should score zero, got %+v", report.Scores)
	}
	if report.Vitals.LCPMs != nil {
		t.Errorf("Missing audits should stay nil, got %v", *report.Vitals.LCPMs)
	}
}

func TestPageSpeedClient_Analyze_MissingAPIKey(t *testing.T) {
	client := NewPageSpeedClient(http.DefaultClient, "http://unused.invalid", "test-agent")
	if _, err := client.Analyze(context.Background(), map[string]string{}, "https://example.com", "mobile"); err == nil {
		t.Fatal("Expected error for missing api_key")
	}
}
