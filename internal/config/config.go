// Package config loads runtime settings from the environment, a YAML
// profile file and the system_settings table.
package config

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	"github.com/JustinTDCT/AnimeVault/internal/metadata"
)

const (
	SettingNamingPattern    = "naming_pattern"
	SettingRecycleRetention = "recycle_retention_days"
)

type Config struct {
	ListenAddr  string
	DatabaseURL string
	RedisAddr   string
	EventsRelay bool

	LibraryRoot          string
	RecycleBinPath       string
	RecycleRetentionDays int
	NamingPattern        string
	ProfilesFile         string

	FFprobePath string

	LogLevel string
	LogFile  string

	ScanSchedule     string
	PurgeSchedule    string
	MetadataSchedule string
	WatchLibrary     bool
	WatchDebounce    time.Duration
	DiscoveryDelay   time.Duration

	AniListURL string
	KitsuURL   string
	JikanURL   string
	SeadexURL  string
}

func Load() *Config {
	libraryRoot := env("LIBRARY_ROOT", "/anime")
	return &Config{
		ListenAddr:  env("LISTEN_ADDR", ":8080"),
		DatabaseURL: env("DATABASE_URL", "sqlite:/data/animevault.db"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		EventsRelay: envBool("EVENTS_RELAY", true),

		LibraryRoot:          libraryRoot,
		RecycleBinPath:       env("RECYCLE_BIN_PATH", libraryRoot+"/.recycle"),
		RecycleRetentionDays: envInt("RECYCLE_RETENTION_DAYS", 7),
		NamingPattern:        env("NAMING_PATTERN", ""),
		ProfilesFile:         env("PROFILES_FILE", ""),

		FFprobePath: env("FFPROBE_PATH", "ffprobe"),

		LogLevel: env("LOG_LEVEL", "info"),
		LogFile:  env("LOG_FILE", ""),

		ScanSchedule:     env("SCAN_SCHEDULE", "@every 6h"),
		PurgeSchedule:    env("PURGE_SCHEDULE", "@daily"),
		MetadataSchedule: env("METADATA_SCHEDULE", "@every 24h"),
		WatchLibrary:     envBool("WATCH_LIBRARY", true),
		WatchDebounce:    envDuration("WATCH_DEBOUNCE", 5*time.Second),
		DiscoveryDelay:   time.Duration(envInt("DISCOVERY_DELAY_MS", 1000)) * time.Millisecond,

		AniListURL: env("ANILIST_URL", metadata.DefaultAniListURL),
		KitsuURL:   env("KITSU_URL", metadata.DefaultKitsuURL),
		JikanURL:   env("JIKAN_URL", metadata.DefaultJikanURL),
		SeadexURL:  env("SEADEX_URL", metadata.DefaultSeadexURL),
	}
}

type SettingsReader interface {
	GetAll(ctx context.Context) (map[string]string, error)
}

// MergeFromDB applies settings saved through the API over the environment.
func (c *Config) MergeFromDB(ctx context.Context, settings SettingsReader) {
	values, err := settings.GetAll(ctx)
	if err != nil {
		log.Warn().Str("component", "config").Err(err).Msg("skipping settings merge")
		return
	}
	for key, value := range values {
		switch key {
		case SettingNamingPattern:
			if strings.TrimSpace(value) != "" {
				c.NamingPattern = value
			}
		case SettingRecycleRetention:
			if v, err := cast.ToIntE(value); err == nil && v > 0 {
				c.RecycleRetentionDays = v
			} else {
				log.Warn().Str("component", "config").Str("key", key).Str("value", value).Msg("ignoring invalid setting")
			}
		}
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := cast.ToIntE(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := cast.ToBoolE(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := cast.ToDurationE(v); err == nil {
			return d
		}
	}
	return fallback
}
