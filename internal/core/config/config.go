package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type SMTPCfg struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool
	LogSampleN int

	DatabaseURL    string
	DBMaxConns     int
	DBQueryTimeout time.Duration

	CacheEnabled    bool
	RedisAddr       string
	CacheOpTimeout  time.Duration
	CacheTTLDefault time.Duration
	CacheTTLOvr     map[string]time.Duration

	MetadataTTL time.Duration
	SessionTTL  time.Duration
	SessionMax  int
	ClusterRes  int
	PaletteFile string

	HCaptchaSecret    string
	HCaptchaVerifyURL string
	SMTP              SMTPCfg

	Invalidation   InvalidationCfg
	Metrics        MetricsCfg
	TracingEnabled bool
}

func FromEnv() Config {
	clusterRes := getint("CLUSTER_RES", 7)
	if clusterRes < 0 || clusterRes > 15 {
		clusterRes = 7
	}
	sessionMax := getint("SESSION_MAX", 1024)
	if sessionMax <= 0 {
		sessionMax = 1024
	}

	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		LogSampleN: getint("LOG_SAMPLE_N", 0),

		DatabaseURL:    getenv("DATABASE_URL", "postgres://localhost:5432/postgres"),
		DBMaxConns:     getint("DB_MAX_CONNS", 8),
		DBQueryTimeout: getduration("DB_QUERY_TIMEOUT", 20*time.Second),

		CacheEnabled:    getbool("CACHE_ENABLED", false),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		CacheOpTimeout:  getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		CacheTTLDefault: getduration("CACHE_TTL_DEFAULT", 5*time.Minute),
		CacheTTLOvr:     parseDurationMap(getenv("CACHE_TTL_OVERRIDES", "")),

		MetadataTTL: getduration("METADATA_TTL", 10*time.Minute),
		SessionTTL:  getduration("SESSION_TTL", 30*time.Minute),
		SessionMax:  sessionMax,
		ClusterRes:  clusterRes,
		PaletteFile: getenv("PALETTE_FILE", ""),

		HCaptchaSecret:    getenv("HCAPTCHA_SECRET", ""),
		HCaptchaVerifyURL: getenv("HCAPTCHA_VERIFY_URL", "https://hcaptcha.com/siteverify"),
		SMTP: SMTPCfg{
			Host:     getenv("SMTP_HOST", ""),
			Port:     getint("SMTP_PORT", 587),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("CONTACT_FROM", ""),
			To:       getenv("CONTACT_TO", ""),
		},

		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "dataset-refresh"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "rurair-cache"),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
		TracingEnabled: getbool("TRACING_ENABLED", false),
	}
}

// TTLFor returns the cache TTL for a stored function, honoring overrides.
func (c Config) TTLFor(function string) time.Duration {
	if d, ok := c.CacheTTLOvr[function]; ok && d > 0 {
		return d
	}
	return c.CacheTTLDefault
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "get_signal_geojson_optimized=1m,get_geojson_categories=1h" into map
func parseDurationMap(s string) map[string]time.Duration {
	out := map[string]time.Duration{}
	s = strings.TrimSpace(s)
	if s == "" {
		return out
	}
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		v := strings.TrimSpace(kv[1])
		if k == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil {
			out[k] = d
		}
	}
	return out
}
