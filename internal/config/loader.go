package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store names accepted by CURFEW_STORE.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config captures environment driven configuration values for the curfew service.
type Config struct {
	HTTPPort          int
	Store             string
	SQLiteDSN         string
	DefaultTimezone   string
	DefaultLocation   *time.Location
	SnapshotTTL       time.Duration
	MaxStaleness      time.Duration
	SnapshotCacheSize int
	RefreshInterval   time.Duration
	SeasonFile        string
	RedisAddr         string
	RedisChannel      string
	LogLevel          slog.Level
}

// LoadEnvFile applies variables from a dotenv file without overriding values
// already present in the environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("環境ファイルを読み込めません: %s: %w", path, err)
	}
	return nil
}

// Load parses configuration values from the current process environment.
//
// The loader applies defaults for optional fields and reports every invalid
// entry in one localized error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:          8080,
		Store:             StoreSQLite,
		SQLiteDSN:         "curfew.db",
		DefaultTimezone:   "UTC",
		DefaultLocation:   time.UTC,
		SnapshotTTL:       time.Minute,
		MaxStaleness:      15 * time.Minute,
		SnapshotCacheSize: 1024,
		RedisChannel:      "curfew:invalidate",
		LogLevel:          slog.LevelInfo,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := env("CURFEW_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "CURFEW_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if store := strings.ToLower(env("CURFEW_STORE")); store != "" {
		if store != StoreSQLite && store != StoreMemory {
			invalid = append(invalid, "CURFEW_STORE")
		} else {
			cfg.Store = store
		}
	}

	if dsn := env("CURFEW_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if zone := env("CURFEW_DEFAULT_TIMEZONE"); zone != "" {
		location, err := time.LoadLocation(zone)
		if err != nil {
			invalid = append(invalid, "CURFEW_DEFAULT_TIMEZONE")
		} else {
			cfg.DefaultTimezone = zone
			cfg.DefaultLocation = location
		}
	}

	parseDuration := func(key string, target *time.Duration, allowZero bool) {
		value := env(key)
		if value == "" {
			return
		}
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 || (d == 0 && !allowZero) {
			invalid = append(invalid, key)
			return
		}
		*target = d
	}
	parseDuration("CURFEW_SNAPSHOT_TTL", &cfg.SnapshotTTL, false)
	parseDuration("CURFEW_MAX_STALENESS", &cfg.MaxStaleness, false)
	parseDuration("CURFEW_REFRESH_INTERVAL", &cfg.RefreshInterval, true)

	if cfg.MaxStaleness < cfg.SnapshotTTL {
		invalid = append(invalid, "CURFEW_MAX_STALENESS")
	}

	if sizeValue := env("CURFEW_SNAPSHOT_CACHE_SIZE"); sizeValue != "" {
		size, err := strconv.Atoi(sizeValue)
		if err != nil || size <= 0 {
			invalid = append(invalid, "CURFEW_SNAPSHOT_CACHE_SIZE")
		} else {
			cfg.SnapshotCacheSize = size
		}
	}

	cfg.SeasonFile = env("CURFEW_SEASON_FILE")
	cfg.RedisAddr = env("CURFEW_REDIS_ADDR")

	if channel, ok := os.LookupEnv("CURFEW_REDIS_CHANNEL"); ok {
		cfg.RedisChannel = strings.TrimSpace(channel)
		if cfg.RedisChannel == "" && cfg.RedisAddr != "" {
			missing = append(missing, "CURFEW_REDIS_CHANNEL")
		}
	}

	if levelValue := env("CURFEW_LOG_LEVEL"); levelValue != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(levelValue)); err != nil {
			invalid = append(invalid, "CURFEW_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
