package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/daypace/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupSystemSettingTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.SystemSetting{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func TestGetSettingsDefaults(t *testing.T) {
	cleanup := setupSystemSettingTestDB(t)
	defer cleanup()

	svc := NewSystemSettingService(db.DB)
	settings, err := svc.GetSettings()
	if err != nil {
		t.Fatalf("GetSettings returned error: %v", err)
	}

	if settings.AIProvider != AIProviderOpenAI {
		t.Fatalf("expected default provider openai, got %s", settings.AIProvider)
	}
	if settings.OpenAIAPIKey != "" || settings.DeepSeekAPIKey != "" {
		t.Fatalf("expected empty keys, got %+v", settings)
	}
}

func TestUpdateSettingsRoundTrip(t *testing.T) {
	cleanup := setupSystemSettingTestDB(t)
	defer cleanup()

	svc := NewSystemSettingService(db.DB)

	saved, err := svc.UpdateSettings(SystemSettingsInput{
		AIProvider:     " DeepSeek ",
		OpenAIAPIKey:   " sk-test ",
		DeepSeekAPIKey: "ds-key",
	})
	if err != nil {
		t.Fatalf("UpdateSettings returned error: %v", err)
	}

	// provider 归一化为小写，key 去除空白
	if saved.AIProvider != AIProviderDeepSeek {
		t.Fatalf("expected provider deepseek, got %s", saved.AIProvider)
	}
	if saved.OpenAIAPIKey != "sk-test" {
		t.Fatalf("expected trimmed key, got %q", saved.OpenAIAPIKey)
	}

	loaded, err := svc.GetSettings()
	if err != nil {
		t.Fatalf("GetSettings returned error: %v", err)
	}
	if loaded != saved {
		t.Fatalf("settings mismatch: %+v vs %+v", loaded, saved)
	}

	// 重复保存走 upsert 路径
	again, err := svc.UpdateSettings(SystemSettingsInput{AIProvider: "openai", OpenAIAPIKey: "sk-next"})
	if err != nil {
		t.Fatalf("second UpdateSettings returned error: %v", err)
	}
	if again.AIProvider != AIProviderOpenAI || again.OpenAIAPIKey != "sk-next" {
		t.Fatalf("unexpected settings: %+v", again)
	}
}

func TestTestAIConnection(t *testing.T) {
	cleanup := setupSystemSettingTestDB(t)
	defer cleanup()

	svc := NewSystemSettingService(db.DB)
	svc.SetOpenAIBaseURL("https://openai.test/v1")
	svc.SetHTTPClient(fakeHTTPClient{handler: func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/models" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("unexpected authorization header %s", got)
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"data": []}`))),
			Header:     make(http.Header),
		}, nil
	}})

	if err := svc.TestAIConnection(context.Background(), AIProviderOpenAI, "sk-test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.TestAIConnection(context.Background(), AIProviderOpenAI, "  "); !errors.Is(err, ErrAIAPIKeyMissing) {
		t.Fatalf("expected ErrAIAPIKeyMissing, got %v", err)
	}

	svc.SetHTTPClient(fakeHTTPClient{handler: func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusUnauthorized,
			Status:     "401 Unauthorized",
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"error": {"message": "invalid key"}}`))),
			Header:     make(http.Header),
		}, nil
	}})

	if err := svc.TestAIConnection(context.Background(), AIProviderOpenAI, "sk-bad"); err == nil {
		t.Fatal("expected error for rejected key")
	}
}
