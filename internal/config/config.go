package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App         AppConfig         `yaml:"app"`
	Store       StoreConfig       `yaml:"store"`
	BaaS        BaaSConfig        `yaml:"baas"`
	Collections CollectionsConfig `yaml:"collections"`
	Buckets     BucketsConfig     `yaml:"buckets"`
	Functions   FunctionsConfig   `yaml:"functions"`
	Redis       RedisConfig       `yaml:"redis"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Logging     LoggingConfig     `yaml:"logging"`
	API         APIConfig         `yaml:"api"`
	Checkout    CheckoutConfig    `yaml:"checkout"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// Store drivers.
const (
	DriverBaaS    = "baas"
	DriverMongo   = "mongodb"
	DriverSQLite  = "sqlite"
	DriverMemory  = "memory"
	defaultDriver = DriverBaaS
)

type StoreConfig struct {
	Driver string `yaml:"driver"`
	// PublicURL prefixes preview links for files served by this API
	// (every driver except baas).
	PublicURL string       `yaml:"public_url"`
	Mongo     MongoConfig  `yaml:"mongodb"`
	SQLite    SQLiteConfig `yaml:"sqlite"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type SQLiteConfig struct {
	Path   string       `yaml:"path"`
	Backup BackupConfig `yaml:"backup"`
}

// BackupConfig schedules online copies of the SQLite database.
type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	Dir           string        `yaml:"dir"`
	RetentionDays int           `yaml:"retention_days"`
}

type BaaSConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	ProjectID  string        `yaml:"project_id"`
	APIKey     string        `yaml:"api_key"`
	DatabaseID string        `yaml:"database_id"`
	Timeout    time.Duration `yaml:"timeout"`
}

// CollectionsConfig maps each entity onto its collection ID.
type CollectionsConfig struct {
	Rooms             string `yaml:"rooms"`
	Contracts         string `yaml:"contracts"`
	ComplianceTickets string `yaml:"compliance_tickets"`
	Services          string `yaml:"services"`
	CheckoutRequests  string `yaml:"checkout_requests"`
	Users             string `yaml:"users"`
	Payments          string `yaml:"payments"`
	FoodOrders        string `yaml:"food_orders"`
	Credentials       string `yaml:"credentials"`
}

type BucketsConfig struct {
	Compliance string `yaml:"compliance"`
	Services   string `yaml:"services"`
}

type FunctionsConfig struct {
	CreateUser string `yaml:"create_user"`
	ManageUser string `yaml:"manage_user"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type APIAuthConfig struct {
	JWTSecret    string         `yaml:"jwt_secret"`
	SessionTTL   time.Duration  `yaml:"session_ttl"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type CheckoutConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
	SweepEnabled  *bool         `yaml:"sweep_enabled"`
}

// SweepOn reports whether the periodic auto-complete sweep should run.
func (c CheckoutConfig) SweepOn() bool {
	return c.SweepEnabled == nil || *c.SweepEnabled
}

type DashboardConfig struct {
	ActivitySize int `yaml:"activity_size"`
	FeedSize     int `yaml:"feed_size"`
}

// Load reads the YAML file at configPath after loading an optional .env file
// and expanding ${VAR} references.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverBaaS:
		if c.BaaS.Endpoint == "" || c.BaaS.ProjectID == "" {
			return errors.New("baas endpoint and project_id are required")
		}
		if c.BaaS.DatabaseID == "" {
			return errors.New("baas database_id is required")
		}
		if c.Functions.CreateUser == "" || c.Functions.ManageUser == "" {
			return errors.New("functions create_user and manage_user are required for the baas driver")
		}
	case DriverMongo:
		if c.Store.Mongo.URI == "" {
			return errors.New("store.mongodb.uri is required")
		}
	case DriverSQLite:
		if c.Store.SQLite.Path == "" {
			return errors.New("store.sqlite.path is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if len(c.API.Auth.JWTSecret) < 16 {
		return errors.New("api.auth.jwt_secret must be at least 16 characters")
	}

	return ValidateAPIKeys(c.API.Auth.APIKeys)
}

func ValidateAPIKeys(keys []APIClientKey) error {
	seen := make(map[string]bool)
	for _, k := range keys {
		if strings.TrimSpace(k.Key) == "" {
			return fmt.Errorf("api key '%s' has an empty key", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key found for client '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "dormdesk"
	}
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = defaultDriver
	}
	if c.Store.Mongo.Database == "" {
		c.Store.Mongo.Database = "dormdesk"
	}
	if c.Store.SQLite.Backup.Interval == 0 {
		c.Store.SQLite.Backup.Interval = 24 * time.Hour
	}
	if c.Store.SQLite.Backup.Dir == "" && c.Store.SQLite.Path != "" {
		c.Store.SQLite.Backup.Dir = filepath.Join(filepath.Dir(c.Store.SQLite.Path), "backups")
	}
	if c.BaaS.Timeout == 0 {
		c.BaaS.Timeout = 15 * time.Second
	}

	c.Collections.applyDefaults()
	if c.Buckets.Compliance == "" {
		c.Buckets.Compliance = "compliance_images"
	}
	if c.Buckets.Services == "" {
		c.Buckets.Services = "service_images"
	}

	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Store.PublicURL == "" {
		c.Store.PublicURL = fmt.Sprintf("http://localhost:%d", c.API.HTTP.Port)
	}
	c.Store.PublicURL = strings.TrimRight(c.Store.PublicURL, "/")
	if c.API.HTTP.ReadTimeout == 0 {
		c.API.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.API.HTTP.WriteTimeout == 0 {
		c.API.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.API.HTTP.MaxUploadBytes == 0 {
		c.API.HTTP.MaxUploadBytes = 10 << 20
	}
	if c.API.HTTP.ShutdownTimeout == 0 {
		c.API.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.API.Auth.SessionTTL == 0 {
		c.API.Auth.SessionTTL = 12 * time.Hour
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Checkout.SweepInterval == 0 {
		c.Checkout.SweepInterval = 5 * time.Minute
	}
	if c.Dashboard.ActivitySize == 0 {
		c.Dashboard.ActivitySize = 5
	}
	if c.Dashboard.FeedSize == 0 {
		c.Dashboard.FeedSize = 10
	}
}

func (c *CollectionsConfig) applyDefaults() {
	defaults := []struct {
		field *string
		value string
	}{
		{&c.Rooms, "rooms"},
		{&c.Contracts, "contracts"},
		{&c.ComplianceTickets, "compliance_tickets"},
		{&c.Services, "services"},
		{&c.CheckoutRequests, "checkout_requests"},
		{&c.Users, "users"},
		{&c.Payments, "payments"},
		{&c.FoodOrders, "food_orders"},
		{&c.Credentials, "credentials"},
	}
	for _, d := range defaults {
		if *d.field == "" {
			*d.field = d.value
		}
	}
}

// Defaults returns a configuration with every default applied and the
// in-memory store selected. Used by tests and dry-run tooling.
func Defaults() *Config {
	c := &Config{Store: StoreConfig{Driver: DriverMemory}}
	c.applyDefaults()
	return c
}
