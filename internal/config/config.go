// Package config loads and validates the clinicsync YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultClinicAPIURL is the clinical REST API used when none is configured.
	DefaultClinicAPIURL = "https://medicitas-api.free.beeceptor.com/api/"

	// DefaultHolidayAPIURL is the public-holiday API used when none is configured.
	DefaultHolidayAPIURL = "https://date.nager.at/"

	DefaultCountryCode    = "PE"
	DefaultRequestTimeout = 30 * time.Second
	DefaultListenAddr     = "127.0.0.1:8089"
	DefaultWorkers        = 4
)

// Environment variables that override values from the file.
const (
	EnvClinicAPIURL  = "CLINICSYNC_CLINIC_API_URL"
	EnvHolidayAPIURL = "CLINICSYNC_HOLIDAY_API_URL"
	EnvCountryCode   = "CLINICSYNC_COUNTRY_CODE"
	EnvDBPath        = "CLINICSYNC_DB_PATH"
	EnvListenAddr    = "CLINICSYNC_LISTEN_ADDR"
	EnvWorkers       = "CLINICSYNC_WORKERS"
)

var countryCodeRE = regexp.MustCompile(`^[A-Z]{2}$`)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// ClinicAPIURL is the base URL of the clinical REST API, with a trailing
	// slash (e.g. "https://medicitas-api.free.beeceptor.com/api/").
	ClinicAPIURL string `yaml:"clinic_api_url"`

	// HolidayAPIURL is the base URL of the public-holiday API.
	HolidayAPIURL string `yaml:"holiday_api_url"`

	// CountryCode is the ISO 3166-1 alpha-2 country used for holiday lookups.
	CountryCode string `yaml:"country_code"`

	// RequestTimeout bounds every remote call. Minimum 1s, maximum 2m.
	// Defaults to 30s if unset.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// DBPath is the SQLite file of the local store. Empty selects
	// ~/.local/share/clinicsync/clinic.db.
	DBPath string `yaml:"db_path,omitempty"`

	// ListenAddr is where `clinicsync serve` listens.
	ListenAddr string `yaml:"listen_addr"`

	// Workers is the size of the background worker pool (1 to 64).
	Workers int `yaml:"workers"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "clinicsync".
	ServiceName string `yaml:"service_name,omitempty"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request, e.g. Authorization: "Bearer <token>".
	Headers map[string]string `yaml:"headers,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		ClinicAPIURL:   DefaultClinicAPIURL,
		HolidayAPIURL:  DefaultHolidayAPIURL,
		CountryCode:    DefaultCountryCode,
		RequestTimeout: DefaultRequestTimeout,
		ListenAddr:     DefaultListenAddr,
		Workers:        DefaultWorkers,
	}
}

// DefaultPath returns the default config file path: ~/.config/clinicsync/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "clinicsync", "config.yaml"), nil
}

// LoadDotEnv loads the first .env file found among paths into the process
// environment. Variables already set are not overwritten. Missing files are
// not an error.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the configuration file at path, applies environment overrides
// and validates the result. A missing file is an error; use [LoadOrDefault]
// when running without one is acceptable.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	cfg := Default()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	return finish(cfg)
}

// LoadOrDefault behaves like [Load] but falls back to the defaults, still
// subject to environment overrides, when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return finish(Default())
}

func finish(cfg *Config) (*Config, error) {
	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Write saves the configuration as YAML at path, creating parent
// directories as needed. The file is readable by the owner only.
func (c *Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file %q: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	for env, dst := range map[string]*string{
		EnvClinicAPIURL:  &c.ClinicAPIURL,
		EnvHolidayAPIURL: &c.HolidayAPIURL,
		EnvCountryCode:   &c.CountryCode,
		EnvDBPath:        &c.DBPath,
		EnvListenAddr:    &c.ListenAddr,
	} {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q is not an integer", EnvWorkers, v)
		}
		c.Workers = n
	}
	c.CountryCode = strings.ToUpper(strings.TrimSpace(c.CountryCode))
	return nil
}

// validate checks that all fields are present and well-formed.
func (c *Config) validate() error {
	if err := ValidateURL("clinic_api_url", c.ClinicAPIURL); err != nil {
		return err
	}
	if err := ValidateURL("holiday_api_url", c.HolidayAPIURL); err != nil {
		return err
	}

	if err := ValidateCountryCode(c.CountryCode); err != nil {
		return err
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.RequestTimeout < time.Second {
		return fmt.Errorf("request_timeout %v is too short (minimum 1s)", c.RequestTimeout)
	}
	if c.RequestTimeout > 2*time.Minute {
		return fmt.Errorf("request_timeout %v is too long (maximum 2m)", c.RequestTimeout)
	}

	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.Workers < 1 || c.Workers > 64 {
		return fmt.Errorf("workers %d out of range (1 to 64)", c.Workers)
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}

// ValidateURL checks that raw is an absolute http or https URL. key names
// the setting in the error.
func ValidateURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s %q must be a valid http or https URL", key, raw)
	}
	return nil
}

// ValidateCountryCode checks for an upper-case ISO 3166-1 alpha-2 code.
func ValidateCountryCode(cc string) error {
	if !countryCodeRE.MatchString(cc) {
		return fmt.Errorf("country_code %q must be two letters (ISO 3166-1 alpha-2)", cc)
	}
	return nil
}
