package service

import (
	"errors"
	"testing"
	"time"

	"github.com/carbonlog/internal/carbon"
	"github.com/carbonlog/internal/db"
)

func TestActivityServiceCreateAwardsPoints(t *testing.T) {
	gdb := setupServiceTestDB(t)
	user := createTestUser(t, gdb, "alex")
	svc := NewActivityService(gdb)
	now := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

	result, err := svc.Create(user.ID, ActivityInput{
		Category:    "transport",
		Subtype:     "car",
		Quantity:    20,
		Description: "<b>Carpool</b> to work",
	}, now)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if got := result.Activity.EmissionsKg.String(); got != "3.84" {
		t.Fatalf("expected 3.84 kg, got %s", got)
	}
	if result.PointsEarned != 19 || result.TotalPoints != 19 {
		t.Fatalf("unexpected points %+v", result)
	}
	if result.Activity.Description != "Carpool to work" {
		t.Fatalf("expected sanitized description, got %q", result.Activity.Description)
	}
	if result.Activity.Source != ActivitySourceManual || result.Activity.Unit != "km" {
		t.Fatalf("unexpected source/unit %q %q", result.Activity.Source, result.Activity.Unit)
	}
	if !result.Activity.OccurredAt.Equal(now) {
		t.Fatalf("expected occurred_at to default to now, got %v", result.Activity.OccurredAt)
	}

	second, err := svc.Create(user.ID, ActivityInput{Category: "food", Subtype: "beef", Quantity: 0.5}, now)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if second.PointsEarned != 150 || second.TotalPoints != 169 {
		t.Fatalf("unexpected points after beef %+v", second)
	}
}

func TestActivityServiceCreateRejectsInvalidInput(t *testing.T) {
	gdb := setupServiceTestDB(t)
	user := createTestUser(t, gdb, "alex")
	svc := NewActivityService(gdb)
	now := time.Now()

	cases := []ActivityInput{
		{Category: "transport", Subtype: "rocket", Quantity: 10},
		{Category: "space", Subtype: "car", Quantity: 10},
		{Category: "transport", Subtype: "car", Quantity: 0},
		{Category: "transport", Subtype: "car", Quantity: 10, Passengers: intPtr(0)},
	}
	for _, input := range cases {
		if _, err := svc.Create(user.ID, input, now); !errors.Is(err, carbon.ErrInvalidInput) {
			t.Fatalf("expected INVALID_INPUT for %+v, got %v", input, err)
		}
	}

	var count int64
	gdb.Model(&db.Activity{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no activities to be stored, got %d", count)
	}

	reloaded, _ := NewUserService(gdb).Get(user.ID)
	if reloaded.Points != 0 {
		t.Fatalf("expected no points for rejected activities, got %d", reloaded.Points)
	}
}

func TestActivityServicePreviewDoesNotPersist(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewActivityService(gdb)

	preview, err := svc.Preview(ActivityInput{Category: "transport", Subtype: "car", Quantity: 50, Passengers: intPtr(5)})
	if err != nil {
		t.Fatalf("Preview returned error: %v", err)
	}
	if preview.EmissionsKg.String() != "1.92" || preview.Points != 10 || preview.Factor.String() != "0.192" {
		t.Fatalf("unexpected preview %+v", preview)
	}

	var count int64
	gdb.Model(&db.Activity{}).Count(&count)
	if count != 0 {
		t.Fatalf("preview must not persist, found %d rows", count)
	}
}

func TestActivityServiceSummaryAndRecent(t *testing.T) {
	gdb := setupServiceTestDB(t)
	user := createTestUser(t, gdb, "alex")
	other := createTestUser(t, gdb, "sam")
	svc := NewActivityService(gdb)
	now := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

	inputs := []ActivityInput{
		{Category: "transport", Subtype: "car", Quantity: 20, OccurredAt: time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC)},
		{Category: "food", Subtype: "beef", Quantity: 0.5, OccurredAt: time.Date(2024, 5, 13, 18, 0, 0, 0, time.UTC)},
		{Category: "home", Subtype: "electricity", Quantity: 10, OccurredAt: time.Date(2024, 5, 15, 8, 0, 0, 0, time.UTC)},
		// 上一周，不计入本周汇总
		{Category: "waste", Subtype: "landfill", Quantity: 2.5, OccurredAt: time.Date(2024, 5, 12, 20, 0, 0, 0, time.UTC)},
	}
	for _, input := range inputs {
		if _, err := svc.Create(user.ID, input, now); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}
	if _, err := svc.Create(other.ID, ActivityInput{Category: "transport", Subtype: "plane", Quantity: 1000}, now); err != nil {
		t.Fatalf("Create for other user returned error: %v", err)
	}

	summary, err := svc.Summary(user.ID, WeekWindow(now))
	if err != nil {
		t.Fatalf("Summary returned error: %v", err)
	}
	if summary.ActivityCount != 3 || summary.TotalEmissions.String() != "37.04" {
		t.Fatalf("unexpected weekly summary count=%d total=%s", summary.ActivityCount, summary.TotalEmissions)
	}
	if len(summary.Days) != 7 || summary.Categories[0].Category != carbon.CategoryFood {
		t.Fatalf("unexpected summary layout %+v", summary)
	}

	trailing, err := svc.Summary(user.ID, carbon.Window{Kind: carbon.WindowTrailingDays, Reference: now, Days: 7})
	if err != nil {
		t.Fatalf("Summary returned error: %v", err)
	}
	if trailing.ActivityCount != 4 {
		t.Fatalf("expected trailing window to include previous week, got %d", trailing.ActivityCount)
	}

	recent, err := svc.Recent(user.ID, 2)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(recent) != 2 || recent[0].Subtype != "electricity" {
		t.Fatalf("unexpected recent activities %+v", recent)
	}

	list, total, err := svc.List(user.ID, ActivityFilter{Category: "food"})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].EmissionsKg.String() != "30" {
		t.Fatalf("unexpected filtered list total=%d %+v", total, list)
	}
}
