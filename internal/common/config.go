package common

import (
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. CVA_DATABASE_DSN.
const EnvPrefix = "CVA"

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	OCR        OCRConfig        `mapstructure:"ocr"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Quota      QuotaConfig      `mapstructure:"quota"`
	Feedback   FeedbackConfig   `mapstructure:"feedback"`
	Tenant     TenantConfig     `mapstructure:"tenant"`
	Log        LogConfig        `mapstructure:"log"`
	Locale     string           `mapstructure:"locale"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `mapstructure:"driver"` // sqlite | postgres
	DSN              string        `mapstructure:"dsn"`
	MaxConns         int32         `mapstructure:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns"`
	MaxConnLifetime  time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `mapstructure:"max_conn_idle_time"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string        `mapstructure:"http_addr"`
	GRPCAddr       string        `mapstructure:"grpc_addr"`
	MaxUploadMB    int           `mapstructure:"max_upload_mb"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract     string        `mapstructure:"tesseract"`
	Pdftoppm      string        `mapstructure:"pdftoppm"`
	TesseractLang string        `mapstructure:"tesseract_lang"`
	TessdataDir   string        `mapstructure:"tessdata_dir"`
	DPI           int           `mapstructure:"dpi"`
	MaxPages      int           `mapstructure:"max_pages"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ExtractionConfig controls acquisition limits and the engine choice.
type ExtractionConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Provider           string `mapstructure:"provider"` // rules | openai | gemini | "" (disabled)
	MaxPages           int    `mapstructure:"max_pages"`
	MinTextChars       int    `mapstructure:"min_text_chars"`
	PackMaxChars       int    `mapstructure:"pack_max_chars"`
	MaxRetries         int    `mapstructure:"max_retries"`
	CorrectionExamples int    `mapstructure:"correction_examples"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// GeminiConfig configures the Google GenAI provider.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type QueueConfig struct {
	Workers        int           `mapstructure:"workers"`
	Size           int           `mapstructure:"size"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
	StuckAfter     time.Duration `mapstructure:"stuck_after"`
}

type QuotaConfig struct {
	Backend          string        `mapstructure:"backend"` // memory | sql
	UploadsPerWindow int           `mapstructure:"uploads_per_window"`
	Window           time.Duration `mapstructure:"window"`
	DailyPerUser     int           `mapstructure:"daily_per_user"`
	DailyPerTenant   int           `mapstructure:"daily_per_tenant"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
}

type FeedbackConfig struct {
	AccuracyThreshold float64 `mapstructure:"accuracy_threshold"`
	MinSamples        int     `mapstructure:"min_samples"`
	CorrectionVolume  int     `mapstructure:"correction_volume"`
	SuggestionLimit   int     `mapstructure:"suggestion_limit"`
}

type TenantConfig struct {
	Default string `mapstructure:"default"`
}

type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

var defaults = map[string]any{
	"database.driver":             "sqlite",
	"database.dsn":                "file:cv-autofill.db?_pragma=foreign_keys(1)",
	"database.max_conns":          20,
	"database.min_conns":          2,
	"database.max_conn_lifetime":  30 * time.Minute,
	"database.max_conn_idle_time": 5 * time.Minute,
	"database.dial_timeout":       3 * time.Second,
	"database.statement_timeout":  0,

	"server.http_addr":       ":8080",
	"server.grpc_addr":       ":9090",
	"server.max_upload_mb":   10,
	"server.request_timeout": 30 * time.Second,

	"ocr.tesseract":      "tesseract",
	"ocr.pdftoppm":       "pdftoppm",
	"ocr.tesseract_lang": "deu+eng",
	"ocr.tessdata_dir":   "",
	"ocr.dpi":            300,
	"ocr.max_pages":      20,
	"ocr.timeout":        45 * time.Second,

	"extraction.enabled":             true,
	"extraction.provider":            "rules",
	"extraction.max_pages":           20,
	"extraction.min_text_chars":      10,
	"extraction.pack_max_chars":      12000,
	"extraction.max_retries":         2,
	"extraction.correction_examples": 5,

	"llm.model":       "gpt-4o-mini",
	"llm.api_key":     "",
	"llm.base_url":    "https://api.openai.com/v1",
	"llm.temperature": 0.0,
	"llm.timeout":     45 * time.Second,

	"gemini.api_key": "",
	"gemini.model":   "gemini-2.5-flash",

	"queue.workers":         4,
	"queue.size":            256,
	"queue.process_timeout": 3 * time.Minute,
	"queue.stuck_after":     15 * time.Minute,

	"quota.backend":            "memory",
	"quota.uploads_per_window": 10,
	"quota.window":             time.Minute,
	"quota.daily_per_user":     100,
	"quota.daily_per_tenant":   1000,
	"quota.cleanup_interval":   10 * time.Minute,

	"feedback.accuracy_threshold": 0.7,
	"feedback.min_samples":        5,
	"feedback.correction_volume":  10,
	"feedback.suggestion_limit":   5,

	"tenant.default": "default",
	"log.json":       false,
	"log.debug":      false,
	"locale":         LocaleDE,
}

// SetDefaults registers every known key so env overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// LoadConfig reads defaults, an optional YAML file and CVA_* environment variables.
// Flags bound to v by the caller take precedence over all of them.
func LoadConfig(v *viper.Viper, configFile string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", configFile)
		}
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

// DefaultConfig returns the configuration built from defaults and environment only.
func DefaultConfig() *Config {
	cfg, err := LoadConfig(viper.New(), "")
	if err != nil {
		// defaults always decode; an env typo is the only way here
		return &Config{}
	}
	return cfg
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() []error {
	var errs []error
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, errors.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Server.HTTPAddr == "" {
		errs = append(errs, errors.New("server.http_addr is required"))
	}
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("server.max_upload_mb must be positive"))
	}
	if c.Extraction.MaxPages <= 0 {
		errs = append(errs, errors.New("extraction.max_pages must be positive"))
	}
	switch c.Extraction.Provider {
	case "", "rules", "openai", "gemini":
	default:
		errs = append(errs, errors.Errorf("extraction.provider %q is unknown", c.Extraction.Provider))
	}
	switch c.Quota.Backend {
	case "memory", "sql":
	default:
		errs = append(errs, errors.Errorf("quota.backend must be memory or sql, got %q", c.Quota.Backend))
	}
	if c.Queue.Workers <= 0 {
		errs = append(errs, errors.New("queue.workers must be positive"))
	}
	if c.Tenant.Default == "" {
		errs = append(errs, errors.New("tenant.default is required"))
	}
	return errs
}

// ValidateError folds Validate into a single CONFIG_ERROR.
func (c *Config) ValidateError() error {
	errs := c.Validate()
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return NewAppError(CodeConfig, strings.Join(msgs, "; "), ErrInvalidInput)
}
