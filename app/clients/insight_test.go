package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInsightClient_AnalyzeKeyword(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "key-123" {
			t.Errorf("Expected api key in query, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{
				"content": {
					"parts": [{
						"text": "Here is the analysis:\n` + "```" + `json\n{\"competition_level\": \"high\", \"search_intent\": \"transactional\", \"optimization_tips\": [\"improve title\"], \"summary\": \"Competitive keyword.\"}\n` + "```" + `"
					}]
				}
			}]
		}`))
	}))
	defer server.Close()

	client := NewInsightClient(server.Client(), server.URL, "test-agent")
	insight, err := client.AnalyzeKeyword(context.Background(), map[string]string{"api_key": "key-123"},
		"coffee beans", "https://example.com")
	if err != nil {
		t.Fatalf("AnalyzeKeyword failed: %v", err)
	}
	if insight == nil {
		t.Fatal("Expected an insight")
	}

	if insight.CompetitionLevel != "high" {
		t.Errorf("Unexpected competition level: %q", insight.CompetitionLevel)
	}
	if insight.SearchIntent != "transactional" {
		t.Errorf("Unexpected search intent: %q", insight.SearchIntent)
	}
	if len(insight.OptimizationTips) != 1 || insight.OptimizationTips[0] != "improve title" {
		t.Errorf("Unexpected optimization tips: %v", insight.OptimizationTips)
	}
}

func TestInsightClient_AnalyzeKeyword_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	client := NewInsightClient(server.Client(), server.URL, "test-agent")
	insight, err := client.AnalyzeKeyword(context.Background(), map[string]string{"api_key": "k"},
		"coffee beans", "https://example.com")
	if err != nil {
		t.Fatalf("AnalyzeKeyword failed: %v", err)
	}
	if insight != nil {
		t.Errorf("Expected nil insight for empty candidates, got %+v", insight)
	}
}

func TestParseInsight(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		wantNil bool
	}{
		{"bare json", `{"summary": "ok"}`, false},
		{"json in prose", `Sure! {"summary": "ok"} Hope this helps.`, false},
		{"no json at all", "I cannot analyze this keyword.", true},
		{"malformed json", `{"summary": `, true},
		{"empty object", `{}`, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := parseInsight(c.text)
			if c.wantNil && got != nil {
				t.Errorf("Expected nil, got %+v", got)
			}
			if !c.wantNil && got == nil {
				t.Error("Expected an insight, got nil")
			}
		})
	}
}
