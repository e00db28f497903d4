package handler

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

type stubDoer struct {
	status int
	body   string
}

func (s stubDoer) Do(*http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(strings.NewReader(s.body)),
		Header:     make(http.Header),
	}, nil
}

func TestEcoTipsFallsBackToTemplate(t *testing.T) {
	s := setupTestAPI(t)
	_, cookies := s.loginAs(t, "alice")
	s.do(t, http.MethodPost, "/activities", map[string]any{"category": "food", "subtype": "beef", "quantity": 1}, cookies)

	w := s.do(t, http.MethodGet, "/ai/eco-tips", nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["kind"] != "eco_tips" || body["source"] != "template" {
		t.Fatalf("unexpected insight metadata: %v", body)
	}
	if !strings.Contains(body["markdown"].(string), "Plant-Based") {
		t.Fatalf("expected food tips, got %q", body["markdown"])
	}
	if !strings.Contains(body["html"].(string), "<h") {
		t.Fatalf("expected rendered html, got %q", body["html"])
	}
}

func TestEcoTipsUsesConfiguredModel(t *testing.T) {
	s := setupTestAPI(t)
	_, cookies := s.loginAs(t, "alice")

	if err := s.api.Settings().Set("openai_api_key", "sk-test"); err != nil {
		t.Fatalf("failed to store key: %v", err)
	}
	s.api.Insights().SetHTTPClient(stubDoer{
		status: http.StatusOK,
		body:   `{"choices":[{"message":{"role":"assistant","content":"1. Take the **train**"}}]}`,
	})

	w := s.do(t, http.MethodGet, "/ai/eco-tips", nil, cookies)
	body := decodeBody(t, w)
	if body["source"] != "openai" || !strings.Contains(body["html"].(string), "<strong>train</strong>") {
		t.Fatalf("expected model-backed tips, got %v", body)
	}

	w = s.do(t, http.MethodGet, "/ai/status", nil, cookies)
	status := decodeBody(t, w)
	if status["configured"] != true || status["provider"] != "openai" {
		t.Fatalf("unexpected ai status: %v", status)
	}
	if strings.Contains(w.Body.String(), "sk-test") {
		t.Fatalf("ai status must not echo keys")
	}
}

func TestFootprintAnalysisWithoutData(t *testing.T) {
	s := setupTestAPI(t)
	_, cookies := s.loginAs(t, "alice")

	w := s.do(t, http.MethodGet, "/ai/footprint-analysis", nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if md := decodeBody(t, w)["markdown"].(string); !strings.Contains(md, "haven't recorded enough data") {
		t.Fatalf("expected empty-state analysis, got %q", md)
	}
}

func TestCustomChallengeGenerates(t *testing.T) {
	s := setupTestAPI(t)
	_, cookies := s.loginAs(t, "alice")

	w := s.do(t, http.MethodGet, "/ai/custom-challenge", nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["kind"] != "custom_challenge" || body["markdown"] == "" {
		t.Fatalf("unexpected challenge insight: %v", body)
	}
}

func TestAnalyzeImpactComputesEmissions(t *testing.T) {
	s := setupTestAPI(t)
	_, cookies := s.loginAs(t, "alice")

	w := s.do(t, http.MethodPost, "/ai/analyze-impact", map[string]any{
		"category": "transport",
		"subtype":  "car",
		"quantity": 20,
	}, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if md := decodeBody(t, w)["markdown"].(string); !strings.Contains(md, "3.84 kg CO2e") {
		t.Fatalf("expected computed emissions in analysis, got %q", md)
	}

	w = s.do(t, http.MethodPost, "/ai/analyze-impact", map[string]any{
		"category":     "transport",
		"subtype":      "plane",
		"quantity":     100,
		"emissions_kg": 12.5,
	}, cookies)
	if md := decodeBody(t, w)["markdown"].(string); !strings.Contains(md, "12.50 kg CO2e") {
		t.Fatalf("expected supplied emissions in analysis, got %q", md)
	}

	w = s.do(t, http.MethodPost, "/ai/analyze-impact", map[string]any{"category": "transport", "subtype": "rocket", "quantity": 1}, cookies)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown subtype, got %d", w.Code)
	}
}
