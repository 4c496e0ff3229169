package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the bot process reads from its environment.
type Config struct {
	DiscordToken        string        `env:"DISCORD_TOKEN,required"`
	SpotifyClientID     string        `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string        `env:"SPOTIFY_CLIENT_SECRET"`
	YouTubeAPIKey       string        `env:"YOUTUBE_API_KEY"`
	Prefix              string        `env:"COMMAND_PREFIX" envDefault:"!"`
	Volume              float64       `env:"VOLUME" envDefault:"1.0"`
	Muted               bool          `env:"MUTED" envDefault:"false"`
	Timeout             time.Duration `env:"EXTERNAL_TIMEOUT" envDefault:"15s"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFile             string        `env:"LOG_FILE" envDefault:"logs.log"`
}

// AuthConfig is the configuration of the spotify-auth helper.
type AuthConfig struct {
	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID,required"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET,required"`
	RedirectURL         string `env:"SPOTIFY_REDIRECT_URL" envDefault:"http://localhost:8888/callback"`
	Addr                string `env:"AUTH_ADDR" envDefault:":8888"`
	LogLevel            string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the given .env files (./.env when none are given) into the
// process environment and parses the bot configuration from it. Missing
// .env files are fine, the process environment is used as is.
func Load(files ...string) (*Config, error) {
	if err := loadDotEnv(files...); err != nil {
		return nil, err
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadAuth is Load for the spotify-auth helper.
func LoadAuth(files ...string) (*AuthConfig, error) {
	if err := loadDotEnv(files...); err != nil {
		return nil, err
	}

	cfg, err := env.ParseAs[AuthConfig]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

// SpotifyEnabled reports whether client credentials are configured.
func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

func (c *Config) validate() error {
	if c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("VOLUME must be between 0 and 1, got %v", c.Volume)
	}
	if c.Prefix == "" {
		return errors.New("COMMAND_PREFIX must not be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("EXTERNAL_TIMEOUT must be positive, got %v", c.Timeout)
	}
	return nil
}

func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}
