package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Environment      string
	LogLevel         string
	Port             string
	FrontendLocation string
	AllowedOrigins   []string

	// Feature libraries
	LibraryDir         string
	LibraryCatalog     string
	LibrarySkipInvalid bool
	LibraryWatch       bool
	PreloadConcurrency int

	// Annotation
	PartialResults   bool
	MinFeatureLength int
	MinTargetLength  int
	CleanNamespace   string

	// External tools
	CleanCommand   string
	ConvertCommand string
	ToolTimeout    time.Duration

	// Remote services
	NERURL           string
	NERRatePerSecond float64
	SimilarCacheTTL  time.Duration
	HTTPTimeout      time.Duration

	// Object storage for s3:// library sources
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool

	// Run history
	StorageDir        string
	RunRetentionHours int
	RunPruneSchedule  string

	// Tracing
	TracingEnabled      bool
	TracingExporter     string
	TracingOTLPEndpoint string
}

// defaults mirrors the environment variables LoadConfig understands
var defaults = map[string]interface{}{
	"ENVIRONMENT":              "development",
	"LOG_LEVEL":                "info",
	"PORT":                     "5000",
	"FRONTEND_LOCATION":        "http://localhost:3000",
	"ALLOWED_ORIGINS":          "*",
	"LIBRARY_DIR":              "./assets/synbict/feature-libraries",
	"LIBRARY_CATALOG":          "",
	"LIBRARY_SKIP_INVALID":     false,
	"LIBRARY_WATCH":            false,
	"PRELOAD_CONCURRENCY":      4,
	"ANNOTATE_PARTIAL_RESULTS": false,
	"MIN_FEATURE_LENGTH":       10,
	"MIN_TARGET_LENGTH":        10,
	"CLEAN_NAMESPACE":          "http://seqimprove.synbiohub.org",
	"CLEAN_COMMAND":            "sbol-utilities-clean {input} {output} --namespace {namespace}",
	"CONVERT_COMMAND":          "sbol-converter -i {input} -o {output} -f {to}",
	"TOOL_TIMEOUT":             "60s",
	"NER_URL":                  "http://bern2.korea.ac.kr/plain",
	"NER_RATE_PER_SECOND":      1.0,
	"SIMILAR_CACHE_TTL":        "5m",
	"HTTP_TIMEOUT":             "30s",
	"S3_ENDPOINT":              "",
	"S3_ACCESS_KEY":            "",
	"S3_SECRET_KEY":            "",
	"S3_USE_SSL":               true,
	"STORAGE_DIR":              "",
	"RUN_RETENTION_HOURS":      168,
	"RUN_PRUNE_SCHEDULE":       "@hourly",
	"TRACING_ENABLED":          false,
	"TRACING_EXPORTER":         "stdout",
	"TRACING_OTLP_ENDPOINT":    "localhost:4317",
}

// LoadConfig loads configuration from environment variables, optionally
// layered over a YAML file named by CONFIG_FILE
func LoadConfig() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	config := &Config{
		Environment:         v.GetString("ENVIRONMENT"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		Port:                v.GetString("PORT"),
		FrontendLocation:    v.GetString("FRONTEND_LOCATION"),
		AllowedOrigins:      splitList(v.GetString("ALLOWED_ORIGINS")),
		LibraryDir:          v.GetString("LIBRARY_DIR"),
		LibraryCatalog:      v.GetString("LIBRARY_CATALOG"),
		LibrarySkipInvalid:  v.GetBool("LIBRARY_SKIP_INVALID"),
		LibraryWatch:        v.GetBool("LIBRARY_WATCH"),
		PreloadConcurrency:  v.GetInt("PRELOAD_CONCURRENCY"),
		PartialResults:      v.GetBool("ANNOTATE_PARTIAL_RESULTS"),
		MinFeatureLength:    v.GetInt("MIN_FEATURE_LENGTH"),
		MinTargetLength:     v.GetInt("MIN_TARGET_LENGTH"),
		CleanNamespace:      v.GetString("CLEAN_NAMESPACE"),
		CleanCommand:        v.GetString("CLEAN_COMMAND"),
		ConvertCommand:      v.GetString("CONVERT_COMMAND"),
		ToolTimeout:         v.GetDuration("TOOL_TIMEOUT"),
		NERURL:              v.GetString("NER_URL"),
		NERRatePerSecond:    v.GetFloat64("NER_RATE_PER_SECOND"),
		SimilarCacheTTL:     v.GetDuration("SIMILAR_CACHE_TTL"),
		HTTPTimeout:         v.GetDuration("HTTP_TIMEOUT"),
		S3Endpoint:          v.GetString("S3_ENDPOINT"),
		S3AccessKey:         v.GetString("S3_ACCESS_KEY"),
		S3SecretKey:         v.GetString("S3_SECRET_KEY"),
		S3UseSSL:            v.GetBool("S3_USE_SSL"),
		StorageDir:          v.GetString("STORAGE_DIR"),
		RunRetentionHours:   v.GetInt("RUN_RETENTION_HOURS"),
		RunPruneSchedule:    v.GetString("RUN_PRUNE_SCHEDULE"),
		TracingEnabled:      v.GetBool("TRACING_ENABLED"),
		TracingExporter:     v.GetString("TRACING_EXPORTER"),
		TracingOTLPEndpoint: v.GetString("TRACING_OTLP_ENDPOINT"),
	}

	if config.StorageDir == "" {
		config.StorageDir = config.Environment + "-data"
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks required configuration
func (c *Config) Validate() error {
	if c.LibraryDir == "" {
		return fmt.Errorf("LIBRARY_DIR is required")
	}
	if c.NERURL == "" {
		return fmt.Errorf("NER_URL is required")
	}
	if c.MinFeatureLength < 1 || c.MinTargetLength < 1 {
		return fmt.Errorf("MIN_FEATURE_LENGTH and MIN_TARGET_LENGTH must be positive")
	}
	if c.PreloadConcurrency < 1 {
		return fmt.Errorf("PRELOAD_CONCURRENCY must be at least 1")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// splitList splits a comma-separated value, dropping empty items
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
