package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DISCORD_TOKEN", "SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "YOUTUBE_API_KEY",
		"COMMAND_PREFIX", "VOLUME", "MUTED", "EXTERNAL_TIMEOUT", "LOG_LEVEL", "LOG_FILE",
		"SPOTIFY_REDIRECT_URL", "AUTH_ADDR",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "abc")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DiscordToken != "abc" {
		t.Errorf("DiscordToken = %q, want abc", cfg.DiscordToken)
	}
	if cfg.Prefix != "!" {
		t.Errorf("Prefix = %q, want !", cfg.Prefix)
	}
	if cfg.Volume != 1.0 || cfg.Muted {
		t.Errorf("Volume/Muted = %v/%v, want 1/false", cfg.Volume, cfg.Muted)
	}
	if cfg.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.Timeout)
	}
	if cfg.LogFile != "logs.log" {
		t.Errorf("LogFile = %q, want logs.log", cfg.LogFile)
	}
	if cfg.SpotifyEnabled() {
		t.Error("SpotifyEnabled should be false without credentials")
	}
}

func TestLoad_MissingToken(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error without DISCORD_TOKEN")
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "DISCORD_TOKEN=fromfile\nSPOTIFY_CLIENT_ID=id\nSPOTIFY_CLIENT_SECRET=secret\nVOLUME=0.5\nMUTED=true\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DiscordToken != "fromfile" {
		t.Errorf("DiscordToken = %q, want fromfile", cfg.DiscordToken)
	}
	if !cfg.SpotifyEnabled() {
		t.Error("SpotifyEnabled should be true")
	}
	if cfg.Volume != 0.5 || !cfg.Muted {
		t.Errorf("Volume/Muted = %v/%v, want 0.5/true", cfg.Volume, cfg.Muted)
	}
}

func TestLoad_VolumeOutOfRange(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "abc")
	t.Setenv("VOLUME", "1.5")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error for VOLUME=1.5")
	}
}

func TestLoadAuth(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")

	cfg, err := LoadAuth(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("LoadAuth: %v", err)
	}
	if cfg.RedirectURL != "http://localhost:8888/callback" {
		t.Errorf("RedirectURL = %q", cfg.RedirectURL)
	}
	if cfg.Addr != ":8888" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
}

func TestLoad_MalformedDotEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "abc")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SPOTIFY_CLIENT_ID=\"unterminated\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for a malformed .env file")
	}
	if _, err := LoadAuth(path); err == nil {
		t.Fatal("LoadAuth: expected error for a malformed .env file")
	}
}
