package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata" // salon timezone must resolve on slim images

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Phone      PhoneConfig      `yaml:"phone"`
	Services   ServiceCatalog   `yaml:"services"`
	Google     GoogleConfig     `yaml:"google"`
	Bot        BotConfig        `yaml:"bot"`
}

type BotConfig struct {
	RateLimitMessages int `yaml:"rate_limit_messages"`
	RateLimitWindow   int `yaml:"rate_limit_window"`
	StateTTLMinutes   int `yaml:"state_ttl_minutes"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

// APIAuthConfig holds staff accounts and token settings. Password hashes are bcrypt.
type APIAuthConfig struct {
	JWTSecret string         `yaml:"jwt_secret"`
	TokenTTL  time.Duration  `yaml:"token_ttl"`
	Issuer    string         `yaml:"issuer"`
	Staff     []StaffAccount `yaml:"staff"`
}

type StaffAccount struct {
	Email        string `yaml:"email"`
	PasswordHash string `yaml:"password_hash"`
	Role         string `yaml:"role"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// ScheduleConfig describes the salon's opening hours for same-day allocation.
type ScheduleConfig struct {
	Open        string `yaml:"open"`
	Close       string `yaml:"close"`
	StepMinutes int    `yaml:"step_minutes"`
	Timezone    string `yaml:"timezone"`
}

type PhoneConfig struct {
	DefaultRegion string `yaml:"default_region"`
}

// ServiceConfig is one entry of the service catalog shown at walk-in.
type ServiceConfig struct {
	Name            string `yaml:"name" json:"name"`
	DurationMinutes int    `yaml:"duration_minutes" json:"duration_minutes"`
	Price           int64  `yaml:"price" json:"price"`
	Hair            bool   `yaml:"hair" json:"hair"`
}

type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := expandEnv(data)

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

// Only ${VAR} references are expanded; a bare $ is kept as-is (bcrypt hashes).
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envRef.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.API.Enabled && len(c.API.Auth.JWTSecret) < 16 {
		return errors.New("api.auth.jwt_secret must be at least 16 characters")
	}

	for _, s := range c.API.Auth.Staff {
		if s.Email == "" || s.PasswordHash == "" {
			return errors.New("staff accounts require email and password_hash")
		}
		switch s.Role {
		case "admin", "staff":
		default:
			return fmt.Errorf("staff %s has unknown role %q", s.Email, s.Role)
		}
	}

	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid schedule.timezone: %w", err)
	}

	return ValidateServices(c.Services)
}

// ValidateBot checks the settings that only the Telegram entrypoint needs.
func (c *Config) ValidateBot() error {
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram bot token is required")
	}
	return nil
}

func ValidateServices(services []ServiceConfig) error {
	names := make(map[string]bool)
	for _, s := range services {
		key := strings.ToLower(strings.TrimSpace(s.Name))
		if key == "" {
			return errors.New("service with empty name")
		}
		if s.DurationMinutes <= 0 {
			return fmt.Errorf("service '%s' has invalid duration %d", s.Name, s.DurationMinutes)
		}
		if names[key] {
			return fmt.Errorf("duplicate service found: %s", s.Name)
		}
		names[key] = true
	}
	return nil
}

// ServiceCatalog is the list of services the salon offers.
type ServiceCatalog []ServiceConfig

// Find looks up a catalog entry by case-insensitive name.
func (c ServiceCatalog) Find(name string) (ServiceConfig, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return ServiceConfig{}, false
	}
	for _, s := range c {
		if strings.ToLower(s.Name) == key {
			return s, true
		}
	}
	return ServiceConfig{}, false
}

func (c *Config) FindService(name string) (ServiceConfig, bool) {
	return c.Services.Find(name)
}

// Location returns the salon time zone, UTC when unset.
func (s ScheduleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) applyDefaults() {
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.TokenTTL == 0 {
		c.API.Auth.TokenTTL = 12 * time.Hour
	}
	if c.API.Auth.Issuer == "" {
		c.API.Auth.Issuer = "salon"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Schedule.Open == "" {
		c.Schedule.Open = "10:00"
	}
	if c.Schedule.Close == "" {
		c.Schedule.Close = "21:00"
	}
	if c.Schedule.StepMinutes == 0 {
		c.Schedule.StepMinutes = 30
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "America/Santiago"
	}
	if c.Phone.DefaultRegion == "" {
		c.Phone.DefaultRegion = "CL"
	}

	if c.Logging.Output == "file" {
		if c.Logging.MaxSizeMB == 0 {
			c.Logging.MaxSizeMB = 50
		}
		if c.Logging.MaxBackups == 0 {
			c.Logging.MaxBackups = 5
		}
		if c.Logging.MaxAgeDays == 0 {
			c.Logging.MaxAgeDays = 30
		}
	}

	if c.Bot.RateLimitMessages == 0 {
		c.Bot.RateLimitMessages = 20
	}
	if c.Bot.RateLimitWindow == 0 {
		c.Bot.RateLimitWindow = 60
	}
	if c.Bot.StateTTLMinutes == 0 {
		c.Bot.StateTTLMinutes = 30
	}
}
