package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the service reads from the environment. The
// business timezone is a fixed offset region, never UTC; machine meters are
// validated against that clock.
type Config struct {
	Port           string
	TimezoneName   string
	TimezoneOffset int
	Machines       []string
	CacheTTL       time.Duration
	RedisAddr      string
	MySQLDSN       string
}

// Load reads .env (when present) and the environment, applying defaults
// suited to local runs.
func Load() *Config {
	godotenv.Load()

	return &Config{
		Port:           stringFromEnv("PORT", "8081"),
		TimezoneName:   stringFromEnv("BUSINESS_TZ_NAME", "America/Mexico_City"),
		TimezoneOffset: intFromEnv("BUSINESS_TZ_OFFSET", -6),
		Machines:       splitFromEnv("MACHINES", "76,79"),
		CacheTTL:       time.Duration(intFromEnv("CACHE_TTL_SECONDS", 1800)) * time.Second,
		RedisAddr:      os.Getenv("REDIS_ADDRESS"),
		MySQLDSN:       os.Getenv("MYSQL_DSN"),
	}
}

func stringFromEnv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitFromEnv(key, def string) []string {
	v := stringFromEnv(key, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
