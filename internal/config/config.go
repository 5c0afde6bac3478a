package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Catalog   CatalogConfig   `json:"catalog"`
	Cache     CacheConfig     `json:"cache"`
	Log       LogConfig       `json:"log"`
	Server    ServerConfig    `json:"server"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Mocks     MockConfig      `json:"mocks"`
	Env       string          `json:"env"`
}

// CatalogConfig holds Product Advertising API credentials and transport settings.
type CatalogConfig struct {
	AccessKey      string        `json:"-"`
	SecretKey      string        `json:"-"`
	AssociateTag   string        `json:"associate_tag"`
	Region         string        `json:"region"`
	Marketplace    string        `json:"marketplace"`
	CurrencySymbol string        `json:"currency_symbol"`
	BaseURL        string        `json:"base_url"`
	Timeout        time.Duration `json:"timeout"`
	RetryMax       int           `json:"retry_max"`

	// HTTPClient overrides the transport, used by tests.
	HTTPClient *http.Client `json:"-"`
}

type CacheConfig struct {
	Backend          string        `json:"backend"` // memory, file, redis, azure, cosmos or none
	TTL              time.Duration `json:"ttl"`
	Dir              string        `json:"dir"`
	RedisAddr        string        `json:"redis_addr"`
	RedisPassword    string        `json:"-"`
	StorageAccount   string        `json:"storage_account"`
	StorageKey       string        `json:"-"`
	StorageContainer string        `json:"storage_container"`
	CosmosEndpoint   string        `json:"cosmos_endpoint"`
	CosmosKey        string        `json:"-"`
	CosmosDatabase   string        `json:"cosmos_database"`
	CosmosContainer  string        `json:"cosmos_container"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // json or text

	// BlobContainer enables shipping logs to an append blob in the cache's
	// storage account.
	BlobContainer string `json:"blob_container"`
}

type ServerConfig struct {
	Addr      string `json:"addr"`
	// PublicURL is the externally visible origin used in the sitemap.
	PublicURL string `json:"public_url"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `json:"otlp_endpoint"`
	ServiceName  string `json:"service_name"`
}

// MockConfig forces the demo catalog regardless of credentials.
type MockConfig struct {
	Enable bool `json:"enable"`
}

const (
	DefaultRegion      = "eu-west-1"
	DefaultMarketplace = "www.amazon.it"
	DefaultAddr        = ":5000"
	DefaultCacheTTL    = 300 * time.Second
	DefaultTimeout     = 10 * time.Second
)

var ErrMissingCredentials = errors.New("AWS_ACCESS_KEY, AWS_SECRET_KEY and AMAZON_ASSOCIATE_TAG are required in production")

func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional

	timeout, err := getDuration("PAAPI_TIMEOUT", DefaultTimeout)
	if err != nil {
		return nil, err
	}
	retryMax, err := getInt("PAAPI_RETRY_MAX", 1)
	if err != nil {
		return nil, err
	}
	ttl, err := getDuration("CACHE_TTL", DefaultCacheTTL)
	if err != nil {
		return nil, err
	}
	demo, err := getBool("DEMO_MODE", false)
	if err != nil {
		return nil, err
	}

	addr := os.Getenv("ADDR")
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = DefaultAddr
		}
	}

	config := &Config{
		Catalog: CatalogConfig{
			AccessKey:      os.Getenv("AWS_ACCESS_KEY"),
			SecretKey:      os.Getenv("AWS_SECRET_KEY"),
			AssociateTag:   os.Getenv("AMAZON_ASSOCIATE_TAG"),
			Region:         getEnvOrDefault("AMAZON_REGION", DefaultRegion),
			Marketplace:    getEnvOrDefault("AMAZON_MARKETPLACE", DefaultMarketplace),
			CurrencySymbol: getEnvOrDefault("CURRENCY_SYMBOL", "€"),
			BaseURL:        os.Getenv("PAAPI_BASE_URL"),
			Timeout:        timeout,
			RetryMax:       retryMax,
		},
		Cache: CacheConfig{
			Backend:          strings.ToLower(getEnvOrDefault("CACHE_BACKEND", "memory")),
			TTL:              ttl,
			Dir:              getEnvOrDefault("CACHE_DIR", "cache"),
			RedisAddr:        getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			RedisPassword:    os.Getenv("REDIS_PASSWORD"),
			StorageAccount:   os.Getenv("AZURE_STORAGE_ACCOUNT_NAME"),
			StorageKey:       os.Getenv("AZURE_STORAGE_PRIMARY_ACCOUNT_KEY"),
			StorageContainer: getEnvOrDefault("AZURE_STORAGE_CONTAINER", "searches"),
			CosmosEndpoint:   os.Getenv("AZURE_COSMOS_ENDPOINT"),
			CosmosKey:        os.Getenv("AZURE_COSMOS_KEY"),
			CosmosDatabase:   os.Getenv("AZURE_COSMOS_DATABASE"),
			CosmosContainer:  getEnvOrDefault("AZURE_COSMOS_CONTAINER", "searches"),
		},
		Log: LogConfig{
			Level:         getEnvOrDefault("LOG_LEVEL", "info"),
			Format:        getEnvOrDefault("LOG_FORMAT", "text"),
			BlobContainer: os.Getenv("LOG_BLOB_CONTAINER"),
		},
		Server: ServerConfig{
			Addr:      addr,
			PublicURL: getEnvOrDefault("PUBLIC_URL", "http://localhost"+addr),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:  getEnvOrDefault("OTEL_SERVICE_NAME", "primefinder"),
		},
		Mocks: MockConfig{
			Enable: demo,
		},
		Env: getEnvOrDefault("APP_ENV", "development"),
	}

	return config, nil
}

// DemoMode reports whether searches are served from the built-in catalog.
func (c *Config) DemoMode() bool {
	return c.Mocks.Enable || c.Catalog.AccessKey == "" || c.Catalog.SecretKey == ""
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate fails only when production runs without credentials. Other
// missing credentials fall back to demo mode.
func (c *Config) Validate() error {
	if c.Mocks.Enable {
		return nil
	}
	missing := c.Catalog.AccessKey == "" || c.Catalog.SecretKey == "" || c.Catalog.AssociateTag == ""
	if missing && c.IsProduction() {
		return ErrMissingCredentials
	}
	switch c.Cache.Backend {
	case "memory", "file", "redis", "azure", "cosmos", "none", "":
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// getDuration accepts Go durations ("10s") or bare seconds ("300").
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
