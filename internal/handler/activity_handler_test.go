package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/carbonlog/internal/db"
)

func TestCreateActivityAwardsPoints(t *testing.T) {
	s := setupTestAPI(t)
	user, cookies := s.loginAs(t, "alice")

	w := s.do(t, http.MethodPost, "/activities", map[string]any{
		"category":    "transport",
		"subtype":     "car",
		"description": "commute <script>alert(1)</script>",
		"quantity":    20,
		"date":        "2024-05-14",
	}, cookies)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	activity, _ := body["activity"].(map[string]any)
	if activity["emissions_kg"] != 3.84 {
		t.Fatalf("expected 3.84 kg, got %v", activity["emissions_kg"])
	}
	if strings.Contains(activity["description"].(string), "<script>") {
		t.Fatalf("description should be sanitized, got %q", activity["description"])
	}
	if body["points_earned"] != float64(19) || body["total_points"] != float64(19) {
		t.Fatalf("unexpected points: %v", body)
	}

	var stored db.User
	if err := s.db.First(&stored, user.ID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if stored.Points != 19 {
		t.Fatalf("expected 19 stored points, got %d", stored.Points)
	}
}

func TestCreateActivityRejectsUnknownCategory(t *testing.T) {
	s := setupTestAPI(t)
	_, cookies := s.loginAs(t, "alice")

	w := s.do(t, http.MethodPost, "/activities", map[string]any{
		"category": "spaceflight",
		"subtype":  "rocket",
		"quantity": 1,
	}, cookies)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "category") {
		t.Fatalf("expected category in message, got %s", w.Body.String())
	}
}

func TestCreateActivityRejectsUnknownSubtypeAndNegativeQuantity(t *testing.T) {
	s := setupTestAPI(t)
	_, cookies := s.loginAs(t, "alice")

	cases := []map[string]any{
		{"category": "transport", "subtype": "rocket", "quantity": 1},
		{"category": "transport", "subtype": "car", "quantity": -3},
		{"category": "transport", "subtype": "car", "quantity": 3, "date": "15/05/2024"},
	}
	for _, payload := range cases {
		w := s.do(t, http.MethodPost, "/activities", payload, cookies)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("payload %v: expected status 400, got %d", payload, w.Code)
		}
	}

	var count int64
	s.db.Model(&db.Activity{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no activities to be stored, got %d", count)
	}
}

func TestPreviewActivityDoesNotPersist(t *testing.T) {
	s := setupTestAPI(t)

	w := s.do(t, http.MethodPost, "/activities/preview", map[string]any{
		"category":   "transport",
		"subtype":    "car",
		"quantity":   20,
		"passengers": 3,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	preview, _ := decodeBody(t, w)["preview"].(map[string]any)
	if preview["emissions_kg"] != 1.28 {
		t.Fatalf("expected shared emissions 1.28, got %v", preview["emissions_kg"])
	}

	var count int64
	s.db.Model(&db.Activity{}).Count(&count)
	if count != 0 {
		t.Fatalf("preview must not store activities, got %d", count)
	}
}

func TestParseTranscriptIncludesPreview(t *testing.T) {
	s := setupTestAPI(t)

	w := s.do(t, http.MethodPost, "/activities/parse", map[string]any{
		"transcript": "I drove 20 km to work with 2 colleagues today",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	activity, _ := body["activity"].(map[string]any)
	if activity["subtype"] != "car" || activity["passengers"] != float64(3) || activity["complete"] != true {
		t.Fatalf("unexpected parse result: %v", activity)
	}
	if _, ok := body["preview"]; !ok {
		t.Fatalf("expected preview for a complete transcript")
	}

	w = s.do(t, http.MethodPost, "/activities/parse", map[string]any{"transcript": "nice weather"}, nil)
	body = decodeBody(t, w)
	if _, ok := body["preview"]; ok {
		t.Fatalf("incomplete transcript must not carry a preview")
	}
}

func TestListFactorsIncludesCatalog(t *testing.T) {
	s := setupTestAPI(t)

	w := s.do(t, http.MethodGet, "/factors", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	factors, _ := decodeBody(t, w)["factors"].([]any)
	found := false
	for _, raw := range factors {
		entry := raw.(map[string]any)
		if entry["category"] == "home" && entry["subtype"] == "electricity" {
			found = entry["per_unit"] == 0.32 && entry["unit"] == "kWh"
		}
	}
	if !found {
		t.Fatalf("expected electricity factor in catalog")
	}
}

func TestWeeklyStatsAggregatesCurrentWeek(t *testing.T) {
	s := setupTestAPI(t)
	_, cookies := s.loginAs(t, "alice")

	activities := []map[string]any{
		{"category": "transport", "subtype": "car", "quantity": 20, "date": "2024-05-13"},
		{"category": "food", "subtype": "beef", "quantity": 0.5, "date": "2024-05-13"},
		{"category": "home", "subtype": "electricity", "quantity": 10, "date": "2024-05-15T08:00:00Z"},
		// 上周的记录不计入自然周
		{"category": "waste", "subtype": "landfill", "quantity": 1, "date": "2024-05-12"},
	}
	for _, payload := range activities {
		if w := s.do(t, http.MethodPost, "/activities", payload, cookies); w.Code != http.StatusCreated {
			t.Fatalf("failed to create activity %v: %d %s", payload, w.Code, w.Body.String())
		}
	}

	w := s.do(t, http.MethodGet, "/stats/weekly", nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	summary, _ := decodeBody(t, w)["summary"].(map[string]any)
	if summary["activity_count"] != float64(3) {
		t.Fatalf("expected 3 activities this week, got %v", summary["activity_count"])
	}
	if summary["total_emissions"] != 37.04 {
		t.Fatalf("expected 37.04 total, got %v", summary["total_emissions"])
	}
	days, _ := summary["days"].([]any)
	if len(days) != 7 {
		t.Fatalf("expected 7 zero-filled days, got %d", len(days))
	}
	categories, _ := summary["categories"].([]any)
	if first := categories[0].(map[string]any); first["category"] != "food" {
		t.Fatalf("expected food to lead, got %v", first)
	}

	w = s.do(t, http.MethodGet, "/stats/weekly?window=trailing&days=7", nil, cookies)
	summary, _ = decodeBody(t, w)["summary"].(map[string]any)
	if summary["activity_count"] != float64(4) {
		t.Fatalf("expected trailing window to include last week, got %v", summary["activity_count"])
	}

	w = s.do(t, http.MethodGet, "/stats/weekly?window=fortnight", nil, cookies)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown window, got %d", w.Code)
	}
}

func TestListActivitiesIsScopedToUser(t *testing.T) {
	s := setupTestAPI(t)
	_, alice := s.loginAs(t, "alice")
	_, bob := s.loginAs(t, "bobby")

	s.do(t, http.MethodPost, "/activities", map[string]any{"category": "transport", "subtype": "bus", "quantity": 10}, alice)
	s.do(t, http.MethodPost, "/activities", map[string]any{"category": "food", "subtype": "fish", "quantity": 1}, alice)

	w := s.do(t, http.MethodGet, "/activities", nil, bob)
	if body := decodeBody(t, w); body["total"] != float64(0) {
		t.Fatalf("expected bob to see no activities, got %v", body)
	}

	w = s.do(t, http.MethodGet, "/activities?category=food", nil, alice)
	body := decodeBody(t, w)
	if body["total"] != float64(1) {
		t.Fatalf("expected 1 food activity, got %v", body["total"])
	}

	w = s.do(t, http.MethodGet, "/activities?from=not-a-date", nil, alice)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}
