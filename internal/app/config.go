package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"gamefinder/internal/domain"
)

type Config struct {
	HTTPAddr         string
	SourceTimeout    time.Duration
	EnrichTimeout    time.Duration
	LogLevel         string
	LogFormat        string
	UserAgent        string
	Providers        []string
	CatalogEndpoints map[string]string
	IGDBClientID     string
	IGDBClientSecret string
	IGDBBaseURL      string
	IGDBRateLimit    float64
	TwitchTokenURL   string
	RedisURL         string
	OTLPEndpoint     string
	TraceSampleRatio float64
	RateLimitPerSec  float64
	RateLimitBurst   int
}

// LoadConfig reads settings from the environment, falling back to the dotenv
// file named by ENV_FILE (default ".env"). A missing file is not an error.
func LoadConfig() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("ENV_FILE", ".env")

	v.SetConfigFile(v.GetString("ENV_FILE"))
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: read %s: %v", domain.ErrConfig, v.GetString("ENV_FILE"), err)
		}
	}

	v.SetDefault("HTTP_ADDR", ":8090")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("SEARCH_TIMEOUT_SECONDS", 10)
	v.SetDefault("ENRICH_TIMEOUT_SECONDS", 15)
	v.SetDefault("SEARCH_USER_AGENT", "gamefinder/1.0")
	v.SetDefault("IGDB_BASE_URL", "https://api.igdb.com/v4")
	v.SetDefault("IGDB_REQUESTS_PER_SECOND", 4)
	v.SetDefault("TWITCH_TOKEN_URL", "https://id.twitch.tv/oauth2/token")
	v.SetDefault("HTTP_RATE_LIMIT_PER_SECOND", 20)
	v.SetDefault("HTTP_RATE_LIMIT_BURST", 40)

	cfg := Config{
		HTTPAddr:         getString(v, "HTTP_ADDR"),
		SourceTimeout:    getSeconds(v, "SEARCH_TIMEOUT_SECONDS", 10),
		EnrichTimeout:    getSeconds(v, "ENRICH_TIMEOUT_SECONDS", 15),
		LogLevel:         strings.ToLower(getString(v, "LOG_LEVEL")),
		LogFormat:        strings.ToLower(getString(v, "LOG_FORMAT")),
		UserAgent:        getString(v, "SEARCH_USER_AGENT"),
		Providers:        splitList(getString(v, "SEARCH_PROVIDERS")),
		CatalogEndpoints: map[string]string{},
		IGDBClientID:     getString(v, "IGDB_CLIENT_ID"),
		IGDBClientSecret: getString(v, "IGDB_CLIENT_SECRET"),
		IGDBBaseURL:      getString(v, "IGDB_BASE_URL"),
		IGDBRateLimit:    getPositiveFloat(v, "IGDB_REQUESTS_PER_SECOND", 4),
		TwitchTokenURL:   getString(v, "TWITCH_TOKEN_URL"),
		RedisURL:         getString(v, "REDIS_URL"),
		OTLPEndpoint:     getString(v, "OTEL_EXPORTER_OTLP_ENDPOINT"),
		TraceSampleRatio: getRatio(v, "OTEL_TRACES_SAMPLER_ARG"),
		RateLimitPerSec:  getPositiveFloat(v, "HTTP_RATE_LIMIT_PER_SECOND", 20),
		RateLimitBurst:   v.GetInt("HTTP_RATE_LIMIT_BURST"),
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}
	for name, key := range map[string]string{
		"steamrip": "CATALOG_STEAMRIP_URL",
		"fitgirl":  "CATALOG_FITGIRL_URL",
	} {
		if endpoint := getString(v, key); endpoint != "" {
			cfg.CatalogEndpoints[name] = endpoint
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports missing required settings.
func (c Config) Validate() error {
	var missing []string
	if c.IGDBClientID == "" {
		missing = append(missing, "IGDB_CLIENT_ID")
	}
	if c.IGDBClientSecret == "" {
		missing = append(missing, "IGDB_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrConfig, strings.Join(missing, ", "))
	}
	return nil
}

func getString(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func getSeconds(v *viper.Viper, key string, fallback int) time.Duration {
	seconds := v.GetInt(key)
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func getPositiveFloat(v *viper.Viper, key string, fallback float64) float64 {
	value := v.GetFloat64(key)
	if value <= 0 {
		return fallback
	}
	return value
}

// getRatio reads a sampling ratio in (0, 1]. Anything else means sample all.
func getRatio(v *viper.Viper, key string) float64 {
	value := v.GetFloat64(key)
	if value <= 0 || value > 1 {
		return 1
	}
	return value
}

func splitList(raw string) []string {
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if item := strings.ToLower(strings.TrimSpace(part)); item != "" {
			items = append(items, item)
		}
	}
	return items
}
