package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/carbonlog/internal/db"
)

func TestSystemSettingServiceDefaultsAndOverrides(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewSystemSettingService(gdb, SystemSettings{AIProvider: "bogus", OpenAIAPIKey: "env-key"})

	settings, err := svc.GetSettings()
	if err != nil {
		t.Fatalf("GetSettings returned error: %v", err)
	}
	if settings.AIProvider != AIProviderOpenAI || settings.APIKey() != "env-key" {
		t.Fatalf("unexpected defaults %+v", settings)
	}

	if err := svc.Set(db.SettingKeyAIProvider, "DeepSeek"); err != nil {
		t.Fatalf("Set provider returned error: %v", err)
	}
	if err := svc.Set(db.SettingKeyDeepSeekAPIKey, " ds-key "); err != nil {
		t.Fatalf("Set key returned error: %v", err)
	}
	// 再次写入同一键走 upsert
	if err := svc.Set(db.SettingKeyDeepSeekAPIKey, "ds-key-2"); err != nil {
		t.Fatalf("Set key again returned error: %v", err)
	}

	settings, err = svc.GetSettings()
	if err != nil {
		t.Fatalf("GetSettings returned error: %v", err)
	}
	if settings.AIProvider != AIProviderDeepSeek || settings.APIKey() != "ds-key-2" {
		t.Fatalf("expected database overrides, got %+v", settings)
	}

	if err := svc.Set("site_name", "x"); !errors.Is(err, ErrUnknownSetting) {
		t.Fatalf("expected ErrUnknownSetting, got %v", err)
	}
	if err := svc.Set(db.SettingKeyAIProvider, "claude"); err == nil {
		t.Fatalf("expected unsupported provider error")
	}
}

func TestSystemSettingServiceTestAIConnection(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewSystemSettingService(gdb, SystemSettings{})

	if err := svc.TestAIConnection(context.Background()); !errors.Is(err, ErrAIAPIKeyMissing) {
		t.Fatalf("expected ErrAIAPIKeyMissing, got %v", err)
	}

	if err := svc.Set(db.SettingKeyOpenAIAPIKey, "sk-test"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	svc.SetOpenAIBaseURL("https://example.com/v1/")
	svc.SetHTTPClient(fakeHTTPClient{handler: func(r *http.Request) (*http.Response, error) {
		if r.URL.String() != "https://example.com/v1/models" {
			t.Fatalf("unexpected url %s", r.URL)
		}
		return &http.Response{StatusCode: http.StatusUnauthorized, Status: "401 Unauthorized", Body: io.NopCloser(strings.NewReader("bad key"))}, nil
	}})

	err := svc.TestAIConnection(context.Background())
	if err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("expected upstream error message, got %v", err)
	}
}
