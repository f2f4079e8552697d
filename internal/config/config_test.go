package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var envKeys = []string{
	"TELEGRAM_BOT_TOKEN", "DATABASE_PATH", "LOG_LEVEL", "ALLOWED_USERS",
	"HTTP_ADDR", "SOURCES_FILE", "NEWS_API_KEY", "REFRESH_TICK",
}

// clearEnv unsets every config variable for the duration of the test.
// An empty value would count as set and suppress defaults.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func defaults() *Config {
	return &Config{
		DatabasePath: "./data/headlines.db",
		LogLevel:     "info",
		HTTPAddr:     ":8080",
		SourcesFile:  "./sources.yaml",
		RefreshTick:  time.Minute,
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    func() *Config
		wantErr bool
	}{
		{
			name: "defaults applied",
			env:  map[string]string{},
			want: defaults,
		},
		{
			name: "all values set",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"DATABASE_PATH":      "/tmp/headlines.db",
				"LOG_LEVEL":          "debug",
				"ALLOWED_USERS":      "111,222,333",
				"HTTP_ADDR":          "127.0.0.1:9000",
				"SOURCES_FILE":       "/etc/headlines/sources.yaml",
				"NEWS_API_KEY":       "key",
				"REFRESH_TICK":       "30s",
			},
			want: func() *Config {
				return &Config{
					TelegramBotToken: "tok",
					DatabasePath:     "/tmp/headlines.db",
					LogLevel:         "debug",
					AllowedUsers:     UserIDs{111, 222, 333},
					HTTPAddr:         "127.0.0.1:9000",
					SourcesFile:      "/etc/headlines/sources.yaml",
					NewsAPIKey:       "key",
					RefreshTick:      30 * time.Second,
				}
			},
		},
		{
			name: "allowed users with spaces",
			env:  map[string]string{"ALLOWED_USERS": " 10 , 20 , "},
			want: func() *Config {
				c := defaults()
				c.AllowedUsers = UserIDs{10, 20}
				return c
			},
		},
		{
			name:    "invalid user id",
			env:     map[string]string{"ALLOWED_USERS": "123,abc"},
			wantErr: true,
		},
		{
			name:    "invalid tick",
			env:     map[string]string{"REFRESH_TICK": "soon"},
			wantErr: true,
		},
		{
			name:    "non-positive tick",
			env:     map[string]string{"REFRESH_TICK": "0s"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want(), got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsUserAllowed(t *testing.T) {
	tests := []struct {
		name         string
		allowedUsers UserIDs
		userID       int64
		want         bool
	}{
		{
			name:         "empty list allows everyone",
			allowedUsers: nil,
			userID:       42,
			want:         true,
		},
		{
			name:         "user in list",
			allowedUsers: UserIDs{10, 20, 30},
			userID:       20,
			want:         true,
		},
		{
			name:         "user not in list",
			allowedUsers: UserIDs{10, 20, 30},
			userID:       99,
			want:         false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{AllowedUsers: tt.allowedUsers}
			got := cfg.IsUserAllowed(tt.userID)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("IsUserAllowed() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write sources file: %v", err)
	}
	return path
}

func TestLoadSources(t *testing.T) {
	t.Run("missing file uses defaults", func(t *testing.T) {
		got, err := LoadSources(filepath.Join(t.TempDir(), "nope.yaml"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(DefaultSources(), got); diff != "" {
			t.Errorf("sources mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("file overrides present sections", func(t *testing.T) {
		path := writeFile(t, `
feeds:
  - name: Markets Wire
    url: https://wire.example.com/rss
social:
  base_url: https://social.example.com
  subreddits: [stocks]
`)
		got, err := LoadSources(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := DefaultSources()
		want.Feeds = []FeedSource{{Name: "Markets Wire", URL: "https://wire.example.com/rss"}}
		want.Social = SocialSource{BaseURL: "https://social.example.com", Subreddits: []string{"stocks"}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("sources mismatch (-want +got):\n%s", diff)
		}
	})

	errTests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "duplicate feed names",
			content: "feeds:\n  - {name: A, url: 'https://a.example.com'}\n  - {name: A, url: 'https://b.example.com'}\n",
			wantErr: "duplicate name",
		},
		{
			name:    "bad feed url",
			content: "feeds:\n  - {name: A, url: 'ftp://a.example.com'}\n",
			wantErr: "scheme must be http or https",
		},
		{
			name:    "negative rate",
			content: "news_api:\n  base_url: https://api.example.com\n  requests_per_minute: -1\n",
			wantErr: "must not be negative",
		},
		{
			name:    "invalid yaml",
			content: "feeds: [",
			wantErr: "parse sources file",
		},
	}
	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSources(writeFile(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
