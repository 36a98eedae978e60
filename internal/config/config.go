package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	CronSpec   string
	EngineFile string

	// FetchBackend 选择列表抓取方式：twitter（官方 API）/ nitter（HTML 抓取）
	FetchBackend       string
	TwitterAPIBase     string
	TwitterBearerToken string
	NitterBaseURL      string

	FetchTimeout     time.Duration
	FetchConcurrency int
	FetchRPS         float64

	// 全站 Basic Auth，可选
	BasicAuthUser string
	BasicAuthPass string
}

func Load() *Config {
	cfg := &Config{
		AppPort:            getEnv("APP_PORT", "9000"),
		PostgresDSN:        getEnv("POSTGRES_DSN", ""),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6380"),
		CronSpec:           getEnv("CRON_SPEC", "*/15 * * * *"),
		EngineFile:         getEnv("ENGINE_FILE", "headlines.yaml"),
		FetchBackend:       getEnv("FETCH_BACKEND", "twitter"),
		TwitterAPIBase:     getEnv("TWITTER_API_BASE", "https://api.twitter.com/1.1"),
		TwitterBearerToken: getEnv("TWITTER_BEARER_TOKEN", ""),
		NitterBaseURL:      getEnv("NITTER_BASE_URL", "https://nitter.net"),
		FetchTimeout:       getEnvDuration("FETCH_TIMEOUT", 20*time.Second),
		FetchConcurrency:   getEnvInt("FETCH_CONCURRENCY", 1),
		FetchRPS:           getEnvFloat("FETCH_RPS", 1),
		BasicAuthUser:      getEnv("APP_BASIC_USER", ""),
		BasicAuthPass:      getEnv("APP_BASIC_PASS", ""),
	}

	log.Printf("config loaded: port=%s cron=%s backend=%s engine=%s", cfg.AppPort, cfg.CronSpec, cfg.FetchBackend, cfg.EngineFile)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("warn: invalid %s=%q, fallback to %d", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		log.Printf("warn: invalid %s=%q, fallback to %v", key, v, def)
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("warn: invalid %s=%q, fallback to %s", key, v, def)
		return def
	}
	return d
}

// Now returns current time, 方便后续做可测试封装
func Now() time.Time {
	return time.Now()
}
