package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MatchingConfig holds the tunables of the matching engine. Passed explicitly
// into each component at construction; no process-wide state.
type MatchingConfig struct {
	TopK             int     // candidates fetched per retrieval
	Threshold        float64 // similarity floor applied to candidates
	MaxRecords       int     // match records persisted per run
	BatchLimit       int     // active listings processed per batch re-scan
	WeightSimilarity float64
	WeightTags       float64
	WeightCategory   float64
	WeightFreshness  float64
	FreshnessWindow  time.Duration // linear decay horizon for recency
	RunTimeout       time.Duration // budget for a single matching run
}

// EmbeddingConfig holds embedding provider settings. An empty APIKey means no
// provider is configured: listings stay un-embedded and matching is deferred.
type EmbeddingConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	Dimension int
	Timeout   time.Duration
	CacheTTL  time.Duration
}

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	DatabaseURL         string
	RedisURL            string
	FrontendURLEndsWith string
	HealthAdminKey      string
	NotifyWebhookURL    string

	ExpireDays   int    // default listing lifetime
	RescanSpec   string // cron spec for the batch re-scan
	SweepSpec    string // cron spec for the expiry sweep
	Matching     MatchingConfig
	Embedding    EmbeddingConfig
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL")
	if env == "test" && viper.GetString("DATABASE_URL_TEST") != "" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}

	return &Config{
		Env:                 env,
		Port:                port,
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),
		NotifyWebhookURL:    viper.GetString("NOTIFY_WEBHOOK_URL"),
		ExpireDays:          intOr("LISTING_EXPIRE_DAYS", 30),
		RescanSpec:          stringOr("MATCH_RESCAN_CRON", "0 * * * *"),
		SweepSpec:           stringOr("EXPIRY_SWEEP_CRON", "0 2 * * *"),
		Matching: MatchingConfig{
			TopK:             intOr("MATCH_TOP_K", 10),
			Threshold:        floatOr("MATCH_THRESHOLD", 0.3),
			MaxRecords:       intOr("MATCH_MAX_RECORDS", 5),
			BatchLimit:       intOr("MATCH_BATCH_LIMIT", 50),
			WeightSimilarity: floatOr("MATCH_WEIGHT_SIMILARITY", 0.6),
			WeightTags:       floatOr("MATCH_WEIGHT_TAGS", 0.2),
			WeightCategory:   floatOr("MATCH_WEIGHT_CATEGORY", 0.1),
			WeightFreshness:  floatOr("MATCH_WEIGHT_FRESHNESS", 0.1),
			FreshnessWindow:  durationOr("MATCH_FRESHNESS_WINDOW", 30*24*time.Hour),
			RunTimeout:       durationOr("MATCH_RUN_TIMEOUT", 3*time.Minute),
		},
		Embedding: EmbeddingConfig{
			APIKey:    viper.GetString("EMBEDDING_API_KEY"),
			Model:     stringOr("EMBEDDING_MODEL", "text-embedding-3-small"),
			BaseURL:   stringOr("EMBEDDING_BASE_URL", "https://api.openai.com"),
			Dimension: intOr("EMBEDDING_DIMENSION", 1536),
			Timeout:   durationOr("EMBEDDING_TIMEOUT", 30*time.Second),
			CacheTTL:  durationOr("EMBEDDING_CACHE_TTL", 24*time.Hour),
		},
	}, nil
}

func stringOr(key, def string) string {
	if s := strings.TrimSpace(viper.GetString(key)); s != "" {
		return s
	}
	return def
}

func intOr(key string, def int) int {
	if viper.IsSet(key) && viper.GetInt(key) > 0 {
		return viper.GetInt(key)
	}
	return def
}

func floatOr(key string, def float64) float64 {
	if viper.IsSet(key) && viper.GetFloat64(key) > 0 {
		return viper.GetFloat64(key)
	}
	return def
}

func durationOr(key string, def time.Duration) time.Duration {
	if viper.IsSet(key) && viper.GetDuration(key) > 0 {
		return viper.GetDuration(key)
	}
	return def
}
