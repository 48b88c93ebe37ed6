// Package config は環境変数由来のアプリケーション設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// グローバル変数ではなく、各コンポーネントへ明示的に渡す。
type Config struct {
	// Database
	DatabaseURL   string
	DBLockTimeout time.Duration

	// Collector（プレゼンス収集）
	PresenceAPIBaseURL string
	PresenceAPIToken   string
	PresenceAPITimeout time.Duration
	PollInterval       time.Duration

	// 監視対象ユーザー（user_id -> IANAタイムゾーン名）
	UserTimezones map[int64]string

	// Pipeline
	AggregateInterval time.Duration

	// Server
	ServerPort string

	// Rate Limit（req/min）
	RateLimitGeneral int

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// .envファイルが存在すれば先に読み込む（存在しなくてもエラーにしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	tzMap, err := ParseUserTimezones(os.Getenv("USER_TIMEZONES"))
	if err != nil {
		return nil, fmt.Errorf("invalid USER_TIMEZONES: %w", err)
	}
	cfg.UserTimezones = tzMap

	cfg.DBLockTimeout = getEnvDuration("DB_LOCK_TIMEOUT", 5*time.Second)
	cfg.PresenceAPIBaseURL = getEnvString("PRESENCE_API_BASE_URL", "")
	cfg.PresenceAPIToken = getEnvString("PRESENCE_API_TOKEN", "")
	cfg.PresenceAPITimeout = getEnvDuration("PRESENCE_API_TIMEOUT", 10*time.Second)
	cfg.PollInterval = getEnvDuration("POLL_INTERVAL", 30*time.Second)
	cfg.AggregateInterval = getEnvDuration("AGGREGATE_INTERVAL", 15*time.Minute)
	cfg.ServerPort = getEnvString("SERVER_PORT", "18080")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// ParseUserTimezones は "user_id:tz,user_id:tz" 形式の文字列をマップに変換する。
// 例: "12345:Europe/Berlin,67890:America/New_York"
// 空文字列は空マップを返す。user_idが整数でないエントリはエラーとする
// （収集対象の指定ミスを黙って無視しない）。
func ParseUserTimezones(raw string) (map[int64]string, error) {
	mapping := make(map[int64]string)

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		idStr, tz, ok := strings.Cut(part, ":")
		if !ok || tz == "" {
			return nil, fmt.Errorf("entry %q is not in user_id:tz format", part)
		}

		id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q has non-integer user_id", part)
		}

		mapping[id] = strings.TrimSpace(tz)
	}

	return mapping, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
