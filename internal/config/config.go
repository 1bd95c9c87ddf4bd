package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	HTTP       HTTPConfig       `yaml:"http"`
	GRPC       GRPCConfig       `yaml:"grpc"`
	Database   DatabaseConfig   `yaml:"database"`
	Legacy     LegacyConfig     `yaml:"legacy"`
	Redis      RedisConfig      `yaml:"redis"`
	Cache      CacheConfig      `yaml:"cache"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Auth       AuthConfig       `yaml:"auth"`
	Webhooks   WebhookConfig    `yaml:"webhooks"`
	Google     GoogleConfig     `yaml:"google"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Stripe     StripeConfig     `yaml:"stripe"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Images     ImagesConfig     `yaml:"images"`
	Guides     []Guide          `yaml:"guides"`
	Worker     WorkerConfig     `yaml:"worker"`
	Exports    ExportConfig     `yaml:"exports"`
	Booking    BookingConfig    `yaml:"booking"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	PublicURL   string `yaml:"public_url"`
}

type HTTPConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type GRPCConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type DatabaseConfig struct {
	Driver         string `yaml:"driver"`
	DSN            string `yaml:"dsn"`
	Path           string `yaml:"path"`
	MaxConnections int    `yaml:"max_connections"`
	LogQueries     bool   `yaml:"log_queries"`
}

// LegacyConfig points at the old Neon database for the one-off copy.
type LegacyConfig struct {
	DSN        string        `yaml:"dsn"`
	Tables     []string      `yaml:"tables"`
	KeyColumn  string        `yaml:"key_column"`
	BatchSize  int           `yaml:"batch_size"`
	BatchDelay time.Duration `yaml:"batch_delay"`
	OnConflict string        `yaml:"on_conflict"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type CacheConfig struct {
	ContentTTL time.Duration `yaml:"content_ttl"`
	LocalSize  int64         `yaml:"local_size"`
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

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	AdminEmail    string        `yaml:"admin_email"`
	AdminPassword string        `yaml:"admin_password"`
}

type WebhookConfig struct {
	LeadURL  string        `yaml:"lead_url"`
	GuideURL string        `yaml:"guide_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

type GoogleConfig struct {
	CredentialsFile    string `yaml:"credentials_file"`
	LeadsSpreadsheetID string `yaml:"leads_spreadsheet_id"`
	LeadsSheetName     string `yaml:"leads_sheet_name"`
}

type TelegramConfig struct {
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
}

type StripeConfig struct {
	SecretKey      string `yaml:"secret_key"`
	WebhookSecret  string `yaml:"webhook_secret"`
	SuccessURL     string `yaml:"success_url"`
	CancelURL      string `yaml:"cancel_url"`
	Currency       string `yaml:"currency"`
	DepositPercent int64  `yaml:"deposit_percent"`
}

type OpenAIConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int    `yaml:"max_tokens"`
}

type ImagesConfig struct {
	Dir         string `yaml:"dir"`
	BaseURL     string `yaml:"base_url"`
	MaxWidth    int    `yaml:"max_width"`
	JPEGQuality int    `yaml:"jpeg_quality"`
	WebPQuality int    `yaml:"webp_quality"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

// Guide is a downloadable PDF offered in exchange for contact details.
type Guide struct {
	Slug        string `yaml:"slug" json:"slug"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	DownloadURL string `yaml:"download_url" json:"-"`
}

type WorkerConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	BatchSize     int           `yaml:"batch_size"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type BookingConfig struct {
	MinNights      int `yaml:"min_nights"`
	MaxAdvanceDays int `yaml:"max_advance_days"`
}

type RateLimitConfig struct {
	FormsRPS         float64 `yaml:"forms_rps"`
	FormsBurst       int     `yaml:"forms_burst"`
	ItineraryPerHour int     `yaml:"itinerary_per_hour"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; real deployments inject the environment directly.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
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
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database dsn is required for postgres")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database path is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth jwt_secret is required")
	}

	if m := c.Legacy.OnConflict; m != "nothing" && m != "error" {
		return fmt.Errorf("legacy on_conflict must be nothing or error, got %q", m)
	}

	if c.Stripe.DepositPercent < 1 || c.Stripe.DepositPercent > 100 {
		return fmt.Errorf("stripe deposit_percent must be within 1..100, got %d", c.Stripe.DepositPercent)
	}

	return ValidateGuides(c.Guides)
}

func ValidateGuides(guides []Guide) error {
	seen := make(map[string]bool)
	for _, g := range guides {
		if strings.TrimSpace(g.Slug) == "" {
			return fmt.Errorf("guide '%s' has empty slug", g.Title)
		}
		if seen[g.Slug] {
			return fmt.Errorf("duplicate guide slug found: %s", g.Slug)
		}
		seen[g.Slug] = true
	}
	return nil
}

// FindGuide returns the guide with the given slug.
func (c *Config) FindGuide(slug string) (Guide, bool) {
	for _, g := range c.Guides {
		if g.Slug == slug {
			return g, true
		}
	}
	return Guide{}, false
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "cabo"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.GRPC.Port == 0 {
		c.GRPC.Port = 8081
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.MaxConnections == 0 {
		c.Database.MaxConnections = 10
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Cache.ContentTTL == 0 {
		c.Cache.ContentTTL = 5 * time.Minute
	}
	if c.Cache.LocalSize == 0 {
		c.Cache.LocalSize = 1000
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Webhooks.Timeout == 0 {
		c.Webhooks.Timeout = 10 * time.Second
	}
	if c.Webhooks.GuideURL == "" {
		c.Webhooks.GuideURL = c.Webhooks.LeadURL
	}
	if c.Google.LeadsSheetName == "" {
		c.Google.LeadsSheetName = "Leads"
	}
	if c.Stripe.Currency == "" {
		c.Stripe.Currency = "usd"
	}
	if c.Stripe.DepositPercent == 0 {
		c.Stripe.DepositPercent = 30
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.MaxTokens == 0 {
		c.OpenAI.MaxTokens = 1200
	}
	if c.Images.Dir == "" {
		c.Images.Dir = "uploads/images"
	}
	if c.Images.BaseURL == "" {
		c.Images.BaseURL = "/media"
	}
	if c.Images.MaxWidth == 0 {
		c.Images.MaxWidth = 2000
	}
	if c.Images.JPEGQuality == 0 {
		c.Images.JPEGQuality = 80
	}
	if c.Images.WebPQuality == 0 {
		c.Images.WebPQuality = 75
	}
	if c.Images.MaxUploadMB == 0 {
		c.Images.MaxUploadMB = 15
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 2 * time.Second
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = 20
	}
	if c.Legacy.KeyColumn == "" {
		c.Legacy.KeyColumn = "id"
	}
	if c.Legacy.BatchSize == 0 {
		c.Legacy.BatchSize = 500
	}
	if c.Legacy.OnConflict == "" {
		c.Legacy.OnConflict = "nothing"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Booking.MinNights == 0 {
		c.Booking.MinNights = 3
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = 540
	}
	if c.RateLimit.FormsRPS == 0 {
		c.RateLimit.FormsRPS = 1
	}
	if c.RateLimit.FormsBurst == 0 {
		c.RateLimit.FormsBurst = 5
	}
	if c.RateLimit.ItineraryPerHour == 0 {
		c.RateLimit.ItineraryPerHour = 10
	}
}
