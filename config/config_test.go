package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/janina-ellinghaus/audio-producer/model"
	"github.com/sethvargo/go-envconfig"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.FFmpegPath != "ffmpeg" {
		t.Errorf("FFmpegPath = %q, want ffmpeg", cfg.FFmpegPath)
	}
	if cfg.TranscodeTimeout != 60*time.Second {
		t.Errorf("TranscodeTimeout = %s, want 60s", cfg.TranscodeTimeout)
	}
	if cfg.CoverMode != CoverModeUpload {
		t.Errorf("CoverMode = %q, want %q", cfg.CoverMode, CoverModeUpload)
	}
	if cfg.DefaultCoverPath != "./media/default_cover.jpg" {
		t.Errorf("DefaultCoverPath = %q", cfg.DefaultCoverPath)
	}
	if cfg.Redis.Window != time.Minute {
		t.Errorf("Redis.Window = %s, want 1m", cfg.Redis.Window)
	}
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "# preset\nALBUM=\"File Album\"\nGENRE='Podcast'\nTITLE_SUFFIX= | Weekly\nORG=Example Org\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ALBUM", "Env Album")
	t.Setenv("TRANSCODE_TIMEOUT", "5s")

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Preset{
		Album:       "Env Album",
		Genre:       "Podcast",
		TitleSuffix: "| Weekly",
		Org:         "Example Org",
	}
	if diff := cmp.Diff(want, cfg.Preset); diff != "" {
		t.Errorf("Preset mismatch (-want +got):\n%s", diff)
	}
	if cfg.TranscodeTimeout != 5*time.Second {
		t.Errorf("TranscodeTimeout = %s, want 5s", cfg.TranscodeTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("Load() with a missing file returned %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown cover mode", env: map[string]string{"COVER_MODE": "magic"}},
		{name: "zero timeout", env: map[string]string{"TRANSCODE_TIMEOUT": "0s"}},
		{name: "zero concurrency", env: map[string]string{"MAX_CONCURRENT_CONVERSIONS": "0"}},
		{name: "archive without endpoint", env: map[string]string{"ARCHIVE_ENABLED": "true"}},
		{name: "zero upload limit", env: map[string]string{"MAX_UPLOAD_BYTES": "0"}},
		{name: "negative upload limit", env: map[string]string{"MAX_UPLOAD_BYTES": "-1"}},
		{name: "zero rate limit window", env: map[string]string{"REDIS_ADDR": "localhost:6379", "RATE_LIMIT_WINDOW": "0s"}},
		{name: "zero rate limit", env: map[string]string{"REDIS_ADDR": "localhost:6379", "RATE_LIMIT": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := load(envconfig.MapLookuper(tt.env)); err == nil {
				t.Fatal("load() error = nil, want error")
			}
		})
	}
}

func TestLoadIgnoresRateLimitWithoutRedis(t *testing.T) {
	cfg, err := load(envconfig.MapLookuper(map[string]string{"RATE_LIMIT_WINDOW": "0s", "RATE_LIMIT": "0"}))
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("Redis.Addr = %q, want empty", cfg.Redis.Addr)
	}
}

func TestLoadNormalizesCoverMode(t *testing.T) {
	cfg, err := load(envconfig.MapLookuper(map[string]string{"COVER_MODE": " Secret "}))
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.CoverMode != CoverModeSecret {
		t.Errorf("CoverMode = %q, want %q", cfg.CoverMode, CoverModeSecret)
	}
}

func TestPresetApply(t *testing.T) {
	preset := Preset{Album: "Show", Genre: "Podcast", TitleSuffix: " (Live)", Org: "Radio"}

	got, err := preset.Apply(model.TrackMetadata{Title: " Topic ", Album: "ignored", Artist: "Speaker"})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	want := model.TrackMetadata{
		Title:     "Topic (Live)",
		Album:     "Show",
		Artist:    "Speaker",
		Genre:     "Podcast",
		Publisher: "Radio",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
	}
}

func TestPresetApplyMissingValues(t *testing.T) {
	_, err := Preset{Genre: "Podcast"}.Apply(model.TrackMetadata{Title: "Topic"})

	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Apply() error = %v, want *model.ConfigurationError", err)
	}
	if want := "missing required configuration: ALBUM, TITLE_SUFFIX"; cfgErr.Message != want {
		t.Errorf("Message = %q, want %q", cfgErr.Message, want)
	}
}
