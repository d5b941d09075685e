package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "PROPOSAL"

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	Log          LogConfig
	Upload       UploadConfig
	Raster       RasterConfig
	Image        ImageConfig
	Extractor    ExtractorConfig
	Completeness CompletenessConfig
	Notes        NotesConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Environment     string        `mapstructure:"environment"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// UploadConfig bounds what a single request may submit.
type UploadConfig struct {
	MaxFileSizeMB        int64 `mapstructure:"max_file_size_mb"`
	MaxFiles             int   `mapstructure:"max_files"`
	MaxMultipartMemoryMB int64 `mapstructure:"max_multipart_memory_mb"`
}

// MaxFileSizeBytes returns the per-file size limit in bytes.
func (u *UploadConfig) MaxFileSizeBytes() int64 {
	return u.MaxFileSizeMB << 20
}

// RasterConfig holds PDF rasterization settings.
type RasterConfig struct {
	Tool         string        `mapstructure:"tool"`
	MaxDimension int           `mapstructure:"max_dimension"`
	MaxPages     int           `mapstructure:"max_pages"`
	Timeout      time.Duration `mapstructure:"timeout"`
	WorkDir      string        `mapstructure:"work_dir"`
	Parallelism  int           `mapstructure:"parallelism"`
}

// ImageConfig holds settings for direct image uploads.
type ImageConfig struct {
	MaxDimension  int    `mapstructure:"max_dimension"`
	MaxMegapixels int    `mapstructure:"max_megapixels"`
	HEICConverter string `mapstructure:"heic_converter"`
}

// MaxPixels returns the decoded-size budget for a single image.
func (i *ImageConfig) MaxPixels() int64 {
	return int64(i.MaxMegapixels) * 1_000_000
}

// ExtractorProviderConfig holds settings for a single inference provider.
type ExtractorProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
	Endpoint     string `mapstructure:"endpoint"`
}

// ExtractorConfig holds inference provider settings with fallback support.
type ExtractorConfig struct {
	// Legacy flat fields
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
	Endpoint     string `mapstructure:"endpoint"`

	Primary   ExtractorProviderConfig `mapstructure:"primary"`
	Secondary ExtractorProviderConfig `mapstructure:"secondary"`
	Tertiary  ExtractorProviderConfig `mapstructure:"tertiary"`

	VertexProject string `mapstructure:"vertex_project"`
	VertexRegion  string `mapstructure:"vertex_region"`
}

// PrimaryConfig returns the primary provider config, falling back to legacy flat fields.
func (e *ExtractorConfig) PrimaryConfig() *ExtractorProviderConfig {
	if e.Primary.Provider != "" {
		return &e.Primary
	}
	return &ExtractorProviderConfig{
		Provider:     e.Provider,
		APIKey:       e.APIKey,
		DefaultModel: e.DefaultModel,
		TimeoutSecs:  e.TimeoutSecs,
		Endpoint:     e.Endpoint,
	}
}

// SecondaryConfig returns the secondary provider config, or nil if not configured.
func (e *ExtractorConfig) SecondaryConfig() *ExtractorProviderConfig {
	if e.Secondary.Provider != "" {
		return &e.Secondary
	}
	return nil
}

// TertiaryConfig returns the tertiary provider config, or nil if not configured.
func (e *ExtractorConfig) TertiaryConfig() *ExtractorProviderConfig {
	if e.Tertiary.Provider != "" {
		return &e.Tertiary
	}
	return nil
}

// Chain returns the configured providers in fallback order.
func (e *ExtractorConfig) Chain() []*ExtractorProviderConfig {
	chain := []*ExtractorProviderConfig{e.PrimaryConfig()}
	if s := e.SecondaryConfig(); s != nil {
		chain = append(chain, s)
	}
	if t := e.TertiaryConfig(); t != nil {
		chain = append(chain, t)
	}
	return chain
}

// CompletenessConfig parameterizes the completeness classifier.
type CompletenessConfig struct {
	Threshold      float64 `mapstructure:"threshold"`
	PolicyWeight   float64 `mapstructure:"policy_weight"`
	CoverageWeight float64 `mapstructure:"coverage_weight"`
}

// NotesConfig holds advisory thresholds.
type NotesConfig struct {
	LowLiabilityThreshold float64 `mapstructure:"low_liability_threshold"`
}

// RateLimitConfig bounds extraction requests per client.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

var defaults = map[string]any{
	"server.port":             ":8080",
	"server.read_timeout":     "30s",
	"server.write_timeout":    "180s",
	"server.shutdown_timeout": "20s",
	"server.environment":      "development",

	"log.level":  "info",
	"log.format": "json",

	"upload.max_file_size_mb":        10,
	"upload.max_files":               5,
	"upload.max_multipart_memory_mb": 64,

	"raster.tool":          "pdftoppm",
	"raster.max_dimension": 2048,
	"raster.max_pages":     20,
	"raster.timeout":       "60s",
	"raster.work_dir":      "",
	"raster.parallelism":   4,

	"image.max_dimension":  2048,
	"image.max_megapixels": 50,
	"image.heic_converter": "magick",

	"extractor.provider":       "openai",
	"extractor.api_key":        "",
	"extractor.default_model":  "gpt-4o-mini",
	"extractor.timeout_secs":   120,
	"extractor.endpoint":       "",
	"extractor.vertex_project": "",
	"extractor.vertex_region":  "us-central1",

	"completeness.threshold":       0.5,
	"completeness.policy_weight":   1.0,
	"completeness.coverage_weight": 1.0,

	"notes.low_liability_threshold": 100000,

	"rate_limit.rps":   2,
	"rate_limit.burst": 4,

	"cors.allowed_origins": "http://localhost:5173,http://127.0.0.1:5173,http://localhost:3000",
}

var providerTiers = []string{"primary", "secondary", "tertiary"}

// Load reads configuration from environment variables with the PROPOSAL_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, tier := range providerTiers {
		v.SetDefault("extractor."+tier+".provider", "")
		v.SetDefault("extractor."+tier+".api_key", "")
		v.SetDefault("extractor."+tier+".default_model", "")
		v.SetDefault("extractor."+tier+".timeout_secs", 120)
		v.SetDefault("extractor."+tier+".endpoint", "")
	}

	// Bind environment variables explicitly for nested keys
	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key, envName(key))
	}

	cfg := &Config{}

	// PaaS hosts set a PORT env var. Use it if PROPOSAL_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv(envName("server.port")) == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:            serverPort,
		ReadTimeout:     v.GetDuration("server.read_timeout"),
		WriteTimeout:    v.GetDuration("server.write_timeout"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		Environment:     v.GetString("server.environment"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Upload = UploadConfig{
		MaxFileSizeMB:        v.GetInt64("upload.max_file_size_mb"),
		MaxFiles:             v.GetInt("upload.max_files"),
		MaxMultipartMemoryMB: v.GetInt64("upload.max_multipart_memory_mb"),
	}
	cfg.Raster = RasterConfig{
		Tool:         v.GetString("raster.tool"),
		MaxDimension: v.GetInt("raster.max_dimension"),
		MaxPages:     v.GetInt("raster.max_pages"),
		Timeout:      v.GetDuration("raster.timeout"),
		WorkDir:      v.GetString("raster.work_dir"),
		Parallelism:  v.GetInt("raster.parallelism"),
	}
	cfg.Image = ImageConfig{
		MaxDimension:  v.GetInt("image.max_dimension"),
		MaxMegapixels: v.GetInt("image.max_megapixels"),
		HEICConverter: v.GetString("image.heic_converter"),
	}

	apiKey := v.GetString("extractor.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	cfg.Extractor = ExtractorConfig{
		Provider:      v.GetString("extractor.provider"),
		APIKey:        apiKey,
		DefaultModel:  v.GetString("extractor.default_model"),
		TimeoutSecs:   v.GetInt("extractor.timeout_secs"),
		Endpoint:      v.GetString("extractor.endpoint"),
		Primary:       providerConfig(v, "primary"),
		Secondary:     providerConfig(v, "secondary"),
		Tertiary:      providerConfig(v, "tertiary"),
		VertexProject: v.GetString("extractor.vertex_project"),
		VertexRegion:  v.GetString("extractor.vertex_region"),
	}

	cfg.Completeness = CompletenessConfig{
		Threshold:      v.GetFloat64("completeness.threshold"),
		PolicyWeight:   v.GetFloat64("completeness.policy_weight"),
		CoverageWeight: v.GetFloat64("completeness.coverage_weight"),
	}
	cfg.Notes = NotesConfig{
		LowLiabilityThreshold: v.GetFloat64("notes.low_liability_threshold"),
	}
	cfg.RateLimit = RateLimitConfig{
		RPS:   v.GetFloat64("rate_limit.rps"),
		Burst: v.GetInt("rate_limit.burst"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{AllowedOrigins: corsOrigins}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func providerConfig(v *viper.Viper, tier string) ExtractorProviderConfig {
	prefix := "extractor." + tier + "."
	return ExtractorProviderConfig{
		Provider:     v.GetString(prefix + "provider"),
		APIKey:       v.GetString(prefix + "api_key"),
		DefaultModel: v.GetString(prefix + "default_model"),
		TimeoutSecs:  v.GetInt(prefix + "timeout_secs"),
		Endpoint:     v.GetString(prefix + "endpoint"),
	}
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Upload.MaxFileSizeMB <= 0 {
		errs = append(errs, errors.New("upload.max_file_size_mb must be positive"))
	}
	if c.Upload.MaxFiles <= 0 {
		errs = append(errs, errors.New("upload.max_files must be positive"))
	}
	if c.Upload.MaxMultipartMemoryMB <= 0 {
		errs = append(errs, errors.New("upload.max_multipart_memory_mb must be positive"))
	}
	if c.Raster.MaxDimension <= 0 || c.Image.MaxDimension <= 0 {
		errs = append(errs, errors.New("raster.max_dimension and image.max_dimension must be positive"))
	}
	if c.Image.MaxMegapixels <= 0 {
		errs = append(errs, errors.New("image.max_megapixels must be positive"))
	}
	if c.Raster.MaxPages <= 0 {
		errs = append(errs, errors.New("raster.max_pages must be positive"))
	}
	if c.Raster.Timeout <= 0 {
		errs = append(errs, errors.New("raster.timeout must be positive"))
	}
	if c.Raster.Parallelism <= 0 {
		errs = append(errs, errors.New("raster.parallelism must be positive"))
	}
	if c.Completeness.Threshold <= 0 || c.Completeness.Threshold > 1 {
		errs = append(errs, fmt.Errorf("completeness.threshold must be in (0,1], got %v", c.Completeness.Threshold))
	}
	if c.Completeness.PolicyWeight < 0 || c.Completeness.CoverageWeight < 0 {
		errs = append(errs, errors.New("completeness weights must not be negative"))
	}
	if c.Completeness.PolicyWeight+c.Completeness.CoverageWeight == 0 {
		errs = append(errs, errors.New("completeness weights must not both be zero"))
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}
	return errors.Join(errs...)
}
