// Package config parses the forecaster's command-line flags and environment.
//
// Flags take precedence over environment variables, which take precedence
// over defaults. Source-specific options come from SOURCE_* variables
// (SOURCE_VALUE_PATH becomes "valuePath") and from the simulation flags,
// and are passed to adapters.New as a flat map.
//
// Example usage:
//
//	cfg, err := config.ParseFlags()
//	if err != nil { ... }
//	adapter, err := adapters.New(cfg.Source, cfg.SourceConfig)
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/epicast/epicast/pkg/bands"
	"github.com/epicast/epicast/pkg/tls"
)

// Config holds all forecaster configuration.
type Config struct {
	Listen     string
	GRPCListen string
	LogFormat  string
	LogLevel   string

	// TLS secures the HTTP API and the gRPC health server.
	TLS tls.Config

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	MemoryTTL     time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	Series       string
	Source       string
	SourceConfig map[string]string

	// Population and InfectiousPeriod describe the modelled outbreak; the
	// simulate source uses them together with I0 and Repo.
	Population       int
	InfectiousPeriod float64
	I0               int
	Repo             float64
	Weeks            int
	DaysPerWeek      int
	ObservedWeeks    int
	FeatureColumns   int

	Sampler      string
	Warmup       int
	Samples      int
	Chains       int
	Seed         uint64
	MaxTreeDepth int
	MHScale      float64
	Timeout      time.Duration

	Bands    string
	Levels   []float64
	Interval time.Duration
	Serve    bool
}

var seriesNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,251}[a-zA-Z0-9])?$`)

// ParseFlags parses os.Args and the environment, then validates the result.
func ParseFlags() (*Config, error) {
	return Parse(flag.CommandLine, os.Args[1:])
}

// Parse registers the forecaster flags on fs and parses args.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	var brokers string
	var seed int64

	fs.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8081"), "HTTP listen address")
	fs.StringVar(&cfg.GRPCListen, "grpc-listen", getEnv("GRPC_LISTEN", ""), "gRPC health listen address (empty disables)")
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	fs.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Serve HTTP and gRPC over TLS")
	fs.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS server certificate file")
	fs.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS server private key file")
	fs.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA file for client verification (enables mTLS)")

	fs.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Storage backend: memory or redis")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	fs.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	fs.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 24*time.Hour), "Redis snapshot TTL")
	fs.DurationVar(&cfg.MemoryTTL, "memory-ttl", getEnvDuration("MEMORY_TTL", 0), "In-memory snapshot TTL (0 keeps snapshots)")

	fs.StringVar(&brokers, "kafka-brokers", getEnv("KAFKA_BROKERS", ""), "Comma-separated Kafka brokers (empty disables events)")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", getEnv("KAFKA_TOPIC", "epicast.forecasts"), "Kafka topic for forecast events")

	fs.StringVar(&cfg.Series, "series", getEnv("SERIES", "default"), "Series name used for storage and the API")
	fs.StringVar(&cfg.Source, "source", getEnv("SOURCE", "simulate"), "Incidence source: simulate, file, or http")

	fs.IntVar(&cfg.Population, "population", getEnvInt("POPULATION", 1000), "Population size")
	fs.Float64Var(&cfg.InfectiousPeriod, "infectious-period", getEnvFloat("INFECTIOUS_PERIOD", 2), "Infectious period in weeks")
	fs.IntVar(&cfg.I0, "i0", getEnvInt("I0", 5), "Initially infected (simulate source)")
	fs.Float64Var(&cfg.Repo, "repo", getEnvFloat("REPO", 2), "Reproduction number (simulate source)")
	fs.IntVar(&cfg.Weeks, "weeks", getEnvInt("WEEKS", 32), "Length of the forecast series in weeks")
	fs.IntVar(&cfg.DaysPerWeek, "days-per-week", getEnvInt("DAYS_PER_WEEK", 7), "Simulation steps per week (simulate source)")
	fs.IntVar(&cfg.ObservedWeeks, "observed-weeks", getEnvInt("OBSERVED_WEEKS", 10), "Observed prefix length (simulate source)")
	fs.IntVar(&cfg.FeatureColumns, "feature-columns", getEnvInt("FEATURE_COLUMNS", 2), "Time feature columns: 1 = random walk only, >1 adds the RBF kernel")

	fs.StringVar(&cfg.Sampler, "sampler", getEnv("SAMPLER", "nuts"), "MCMC sampler: nuts or mh")
	fs.IntVar(&cfg.Warmup, "warmup", getEnvInt("WARMUP", 5000), "Warm-up draws per chain")
	fs.IntVar(&cfg.Samples, "samples", getEnvInt("SAMPLES", 5000), "Retained draws per chain")
	fs.IntVar(&cfg.Chains, "chains", getEnvInt("CHAINS", 1), "Number of chains")
	fs.Int64Var(&seed, "seed", int64(getEnvInt("SEED", 1)), "Random seed")
	fs.IntVar(&cfg.MaxTreeDepth, "max-tree-depth", getEnvInt("MAX_TREE_DEPTH", 3), "NUTS maximum tree depth")
	fs.Float64Var(&cfg.MHScale, "mh-scale", getEnvFloat("MH_SCALE", 0.1), "Metropolis-Hastings proposal standard deviation")
	fs.DurationVar(&cfg.Timeout, "timeout", getEnvDuration("TIMEOUT", 0), "Budget for one forecast run (0 = none)")

	fs.StringVar(&cfg.Bands, "bands", getEnv("BANDS", ""), "Comma-separated band levels, e.g. p2.5,p50,p97.5 (default 2.5/25/50/75/97.5)")
	fs.DurationVar(&cfg.Interval, "interval", getEnvDuration("INTERVAL", 0), "Forecast interval (0 = run once)")
	fs.BoolVar(&cfg.Serve, "serve", getEnvBool("SERVE", true), "Serve the HTTP API (with interval 0, keep serving after the run)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	if seed < 0 {
		return nil, fmt.Errorf("seed must be >= 0, got %d", seed)
	}
	cfg.Seed = uint64(seed)

	cfg.SourceConfig = parseSourceConfig(os.Environ())
	if cfg.Source == "simulate" {
		cfg.addSimulationConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// addSimulationConfig copies the simulation flags into SourceConfig without
// overriding explicit SOURCE_* values.
func (c *Config) addSimulationConfig() {
	set := func(key, value string) {
		if _, ok := c.SourceConfig[key]; !ok {
			c.SourceConfig[key] = value
		}
	}
	set("population", strconv.Itoa(c.Population))
	set("i0", strconv.Itoa(c.I0))
	set("repo", strconv.FormatFloat(c.Repo, 'g', -1, 64))
	set("infectiousPeriod", strconv.FormatFloat(c.InfectiousPeriod, 'g', -1, 64))
	set("weeks", strconv.Itoa(c.Weeks))
	set("daysPerWeek", strconv.Itoa(c.DaysPerWeek))
	set("observedWeeks", strconv.Itoa(c.ObservedWeeks))
	set("seed", strconv.FormatUint(c.Seed, 10))
}

// Validate checks cross-field rules and resolves Levels from Bands.
func (c *Config) Validate() error {
	var errs []error

	if !seriesNameRegex.MatchString(c.Series) {
		errs = append(errs, fmt.Errorf("invalid series name %q (must be alphanumeric with dash/underscore, 1-253 chars)", c.Series))
	}
	switch c.Source {
	case "simulate", "file", "http":
	default:
		errs = append(errs, fmt.Errorf("invalid source %q (must be simulate, file, or http)", c.Source))
	}
	switch c.Storage {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("invalid storage %q (must be memory or redis)", c.Storage))
	}
	switch c.Sampler {
	case "nuts", "mh":
	default:
		errs = append(errs, fmt.Errorf("invalid sampler %q (must be nuts or mh)", c.Sampler))
	}

	if c.Population <= 0 {
		errs = append(errs, fmt.Errorf("population must be > 0, got %d", c.Population))
	}
	if !(c.InfectiousPeriod > 0) {
		errs = append(errs, fmt.Errorf("infectious period must be > 0, got %v", c.InfectiousPeriod))
	}
	if c.Weeks < 2 {
		errs = append(errs, fmt.Errorf("weeks must be >= 2, got %d", c.Weeks))
	}
	if c.FeatureColumns < 1 {
		errs = append(errs, fmt.Errorf("feature columns must be >= 1, got %d", c.FeatureColumns))
	}
	if c.Warmup < 0 {
		errs = append(errs, fmt.Errorf("warmup must be >= 0, got %d", c.Warmup))
	}
	if c.Samples <= 0 {
		errs = append(errs, fmt.Errorf("samples must be > 0, got %d", c.Samples))
	}
	if c.Chains <= 0 {
		errs = append(errs, fmt.Errorf("chains must be > 0, got %d", c.Chains))
	}
	if c.MaxTreeDepth <= 0 {
		errs = append(errs, fmt.Errorf("max tree depth must be > 0, got %d", c.MaxTreeDepth))
	}
	if !(c.MHScale > 0) {
		errs = append(errs, fmt.Errorf("mh scale must be > 0, got %v", c.MHScale))
	}
	if c.Interval < 0 {
		errs = append(errs, fmt.Errorf("interval must be >= 0, got %v", c.Interval))
	}
	if c.Storage == "redis" && c.RedisAddr == "" {
		errs = append(errs, errors.New("redis-addr is required when storage=redis"))
	}
	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			errs = append(errs, errors.New("tls-cert-file and tls-key-file are required when tls is enabled"))
		} else if err := c.TLS.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("kafka-topic is required when kafka-brokers is set"))
	}

	levels, err := bands.ParseLevels(c.Bands)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid bands: %w", err))
	}
	c.Levels = levels

	return errors.Join(errs...)
}

// parseSourceConfig turns SOURCE_* variables into a lowerCamelCase map,
// SOURCE_VALUE_PATH=x becoming "valuePath": "x".
func parseSourceConfig(environ []string) map[string]string {
	const prefix = "SOURCE_"
	config := make(map[string]string)
	for _, env := range environ {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, prefix) || len(key) == len(prefix) {
			continue
		}
		config[toLowerCamelCase(key[len(prefix):])] = value
	}
	return config
}

func toLowerCamelCase(s string) string {
	parts := strings.Split(strings.ToLower(s), "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i > 0 && b.Len() > 0 {
			b.WriteString(strings.ToUpper(p[:1]))
			b.WriteString(p[1:])
			continue
		}
		b.WriteString(p)
	}
	return b.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
