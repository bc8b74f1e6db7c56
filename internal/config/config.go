package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"salonbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Business   BusinessConfig   `yaml:"business"`
	Services   []models.Service `yaml:"services"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
}

// BookingConfig tunes the hold and sweep protocol.
type BookingConfig struct {
	HoldTTL             time.Duration `yaml:"hold_ttl"`
	SweepInterval       time.Duration `yaml:"sweep_interval"`
	SweepBatchSize      int           `yaml:"sweep_batch_size"`
	AttendanceSweepTime string        `yaml:"attendance_sweep_time"`
	MaxBookingDays      int           `yaml:"max_booking_days"`
	SlotStepMinutes     int           `yaml:"slot_step_minutes"`
	IndexLookback       time.Duration `yaml:"index_lookback"`
	ResyncBatchSize     int           `yaml:"resync_batch_size"`
	Sync                SyncConfig    `yaml:"sync"`
}

// SyncConfig tunes the availability index sync worker.
type SyncConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	BatchSize     int           `yaml:"batch_size"`
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

// BusinessConfig seeds the schedule settings on first start.
type BusinessConfig struct {
	TimeZone     string                          `yaml:"time_zone"`
	Hours        map[string][]models.MinuteRange `yaml:"hours"`
	Closures     []models.DayClosure             `yaml:"closures"`
	SpecialHours []models.SpecialHours           `yaml:"special_hours"`
}

// BusinessHours converts the seed section into the settings document.
func (b BusinessConfig) BusinessHours() models.BusinessHours {
	return models.BusinessHours{TimeZone: b.TimeZone, Days: b.Hours}
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

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
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

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken    string `yaml:"bot_token"`
	AdminChatID int64  `yaml:"admin_chat_id"`
	Debug       bool   `yaml:"debug"`
}

type DatabaseConfig struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
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
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
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
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Booking.HoldTTL <= 0 {
		return errors.New("booking.hold_ttl must be positive")
	}
	if c.Booking.SweepInterval <= 0 {
		return errors.New("booking.sweep_interval must be positive")
	}
	if _, err := models.ParseMinuteOfDay(c.Booking.AttendanceSweepTime); err != nil {
		return fmt.Errorf("booking.attendance_sweep_time: %w", err)
	}
	if _, err := c.Business.BusinessHours().Location(); err != nil {
		return fmt.Errorf("business.time_zone: %w", err)
	}
	for day := range c.Business.Hours {
		if !isWeekdayKey(day) {
			return fmt.Errorf("business.hours: unknown weekday %q", day)
		}
	}
	for _, closure := range c.Business.Closures {
		if err := models.ValidateDate(closure.Date); err != nil {
			return fmt.Errorf("business.closures: %w", err)
		}
	}
	for _, special := range c.Business.SpecialHours {
		if err := models.ValidateDate(special.Date); err != nil {
			return fmt.Errorf("business.special_hours: %w", err)
		}
	}

	return ValidateServices(c.Services)
}

func ValidateServices(services []models.Service) error {
	ids := make(map[string]bool)
	for _, svc := range services {
		if svc.ID == "" {
			return fmt.Errorf("service '%s' has empty ID", svc.Name)
		}
		if ids[svc.ID] {
			return fmt.Errorf("duplicate service ID found: %s", svc.ID)
		}
		if svc.DurationMinutes <= 0 {
			return fmt.Errorf("service '%s' must have a positive duration", svc.ID)
		}
		if svc.PriceCents < 0 {
			return fmt.Errorf("service '%s' has negative price", svc.ID)
		}
		ids[svc.ID] = true
	}
	return nil
}

func isWeekdayKey(key string) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if models.WeekdayKey(d) == key {
			return true
		}
	}
	return false
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "salonbook"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = 5 * time.Second
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "availability"
	}
	if c.Google.SheetName == "" {
		c.Google.SheetName = "Appointments"
	}

	// Booking defaults
	if c.Booking.HoldTTL == 0 {
		c.Booking.HoldTTL = 10 * time.Minute
	}
	if c.Booking.SweepInterval == 0 {
		c.Booking.SweepInterval = 2 * time.Minute
	}
	if c.Booking.SweepBatchSize == 0 {
		c.Booking.SweepBatchSize = 100
	}
	if c.Booking.AttendanceSweepTime == "" {
		c.Booking.AttendanceSweepTime = "23:30"
	}
	if c.Booking.MaxBookingDays == 0 {
		c.Booking.MaxBookingDays = 90
	}
	if c.Booking.SlotStepMinutes == 0 {
		c.Booking.SlotStepMinutes = models.DefaultSlotStepMinutes
	}
	if c.Booking.IndexLookback == 0 {
		c.Booking.IndexLookback = 24 * time.Hour
	}
	if c.Booking.ResyncBatchSize == 0 {
		c.Booking.ResyncBatchSize = 200
	}
	if c.Booking.Sync.PollInterval == 0 {
		c.Booking.Sync.PollInterval = 2 * time.Second
	}
	if c.Booking.Sync.BatchSize == 0 {
		c.Booking.Sync.BatchSize = 50
	}
	if c.Booking.Sync.MaxRetries == 0 {
		c.Booking.Sync.MaxRetries = 8
	}
	if c.Booking.Sync.InitialDelay == 0 {
		c.Booking.Sync.InitialDelay = time.Second
	}
	if c.Booking.Sync.MaxDelay == 0 {
		c.Booking.Sync.MaxDelay = time.Minute
	}
	if c.Booking.Sync.BackoffFactor == 0 {
		c.Booking.Sync.BackoffFactor = 2
	}
}
