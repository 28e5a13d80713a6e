// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads Strom's runtime configuration with the teacher's
// precedence order: explicit flag override > environment variable > YAML
// file > built-in default. Hot-reloading of the file and config writes are
// handled by Holder in holder.go; this file is the pure
// load-and-validate path.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eyevinn/strom/internal/discovery"
)

// AppConfig is the fully resolved, validated runtime configuration.
type AppConfig struct {
	BindAddress    string
	RateLimitRPS   int
	AllowedOrigins []string

	FlowStorePath string

	SAPAddresses       []string
	DiscoveryStreamTTL time.Duration
	DiscoveryCachePath string
	RTSPAddr           string

	AuthEnabled bool
	AuthToken   string

	OTLPEndpoint string
	LogLevel     string
}

// FileConfig is the on-disk YAML shape. Fields use pointers where "unset"
// must be distinguished from "explicitly zero/false", matching the
// teacher's EPGConfig convention.
type FileConfig struct {
	BindAddress    string   `yaml:"bindAddress,omitempty"`
	RateLimitRPS   *int     `yaml:"rateLimitRPS,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`

	FlowStorePath string `yaml:"flowStorePath,omitempty"`

	SAPAddresses       []string `yaml:"sapAddresses,omitempty"`
	DiscoveryStreamTTL string   `yaml:"discoveryStreamTTL,omitempty"` // e.g. "90s"
	DiscoveryCachePath string   `yaml:"discoveryCachePath,omitempty"`
	RTSPAddr           string   `yaml:"rtspAddr,omitempty"`

	AuthEnabled *bool  `yaml:"authEnabled,omitempty"`
	AuthToken   string `yaml:"authToken,omitempty"`

	OTLPEndpoint string `yaml:"otlpEndpoint,omitempty"`
	LogLevel     string `yaml:"logLevel,omitempty"`
}

// Flags carries explicit command-line overrides. A nil field was not
// passed on the command line and does not participate in precedence;
// cmd/strom populates this from flag.Visit so only flags the operator
// actually typed take the top slot over environment and file values.
type Flags struct {
	BindAddress  *string
	RateLimitRPS *int
	ConfigPath   *string
}

const (
	envBindAddress    = "STROM_BIND_ADDRESS"
	envRateLimitRPS   = "STROM_RATE_LIMIT_RPS"
	envAllowedOrigins = "STROM_ALLOWED_ORIGINS"
	envFlowStorePath  = "STROM_FLOW_STORE_PATH"
	envSAPAddresses   = "STROM_SAP_ADDRESSES"
	envDiscoveryTTL   = "STROM_DISCOVERY_STREAM_TTL"
	envDiscoveryCache = "STROM_DISCOVERY_CACHE_PATH"
	envRTSPAddr       = "STROM_RTSP_ADDR"
	envAuthEnabled    = "STROM_AUTH_ENABLED"
	envAuthToken      = "STROM_AUTH_TOKEN"
	envOTLPEndpoint   = "STROM_OTLP_ENDPOINT"
	envLogLevel       = "STROM_LOG_LEVEL"
)

// Loader resolves an AppConfig from defaults, an optional YAML file,
// environment variables, and flag overrides, in that ascending order of
// precedence.
type Loader struct {
	configPath string
	flags      Flags
}

// NewLoader builds a Loader. configPath may be empty, meaning
// configuration comes from environment variables and defaults only.
func NewLoader(configPath string, flags Flags) *Loader {
	return &Loader{configPath: configPath, flags: flags}
}

// Load resolves the final configuration and validates it.
func (l *Loader) Load() (AppConfig, error) {
	cfg := AppConfig{}
	l.setDefaults(&cfg)

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		l.mergeFileConfig(&cfg, fileCfg)
	}

	l.mergeEnvConfig(&cfg)
	l.mergeFlagConfig(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (l *Loader) setDefaults(cfg *AppConfig) {
	cfg.BindAddress = ":8080"
	cfg.RateLimitRPS = 120
	cfg.FlowStorePath = "./data/flows.db"
	cfg.SAPAddresses = append([]string(nil), discovery.DefaultSAPAddresses...)
	cfg.DiscoveryStreamTTL = 90 * time.Second
	cfg.RTSPAddr = ":8554"
	cfg.AuthEnabled = false
	cfg.OTLPEndpoint = ""
	cfg.LogLevel = "info"
}

// loadFile reads and strictly decodes the YAML document at path; unknown
// fields are rejected (matches the teacher's loadFile, which treats a
// typo'd config key as a fatal misconfiguration rather than silently
// ignoring it).
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var fc FileConfig
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &fc, nil
}

func (l *Loader) mergeFileConfig(cfg *AppConfig, fc *FileConfig) {
	if fc.BindAddress != "" {
		cfg.BindAddress = fc.BindAddress
	}
	if fc.RateLimitRPS != nil {
		cfg.RateLimitRPS = *fc.RateLimitRPS
	}
	if len(fc.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.FlowStorePath != "" {
		cfg.FlowStorePath = fc.FlowStorePath
	}
	if len(fc.SAPAddresses) > 0 {
		cfg.SAPAddresses = fc.SAPAddresses
	}
	if fc.DiscoveryStreamTTL != "" {
		if d, err := time.ParseDuration(fc.DiscoveryStreamTTL); err == nil {
			cfg.DiscoveryStreamTTL = d
		}
	}
	if fc.DiscoveryCachePath != "" {
		cfg.DiscoveryCachePath = fc.DiscoveryCachePath
	}
	if fc.RTSPAddr != "" {
		cfg.RTSPAddr = fc.RTSPAddr
	}
	if fc.AuthEnabled != nil {
		cfg.AuthEnabled = *fc.AuthEnabled
	}
	if fc.AuthToken != "" {
		cfg.AuthToken = fc.AuthToken
	}
	if fc.OTLPEndpoint != "" {
		cfg.OTLPEndpoint = fc.OTLPEndpoint
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	if v, ok := os.LookupEnv(envBindAddress); ok {
		cfg.BindAddress = v
	}
	if v, ok := os.LookupEnv(envRateLimitRPS); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitRPS = n
		}
	}
	if v, ok := os.LookupEnv(envAllowedOrigins); ok {
		cfg.AllowedOrigins = splitComma(v)
	}
	if v, ok := os.LookupEnv(envFlowStorePath); ok {
		cfg.FlowStorePath = v
	}
	if v, ok := os.LookupEnv(envSAPAddresses); ok {
		cfg.SAPAddresses = splitComma(v)
	}
	if v, ok := os.LookupEnv(envDiscoveryTTL); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.DiscoveryStreamTTL = d
		}
	}
	if v, ok := os.LookupEnv(envDiscoveryCache); ok {
		cfg.DiscoveryCachePath = v
	}
	if v, ok := os.LookupEnv(envRTSPAddr); ok {
		cfg.RTSPAddr = v
	}
	if v, ok := os.LookupEnv(envAuthEnabled); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AuthEnabled = b
		}
	}
	if v, ok := os.LookupEnv(envAuthToken); ok {
		cfg.AuthToken = v
	}
	if v, ok := os.LookupEnv(envOTLPEndpoint); ok {
		cfg.OTLPEndpoint = v
	}
	if v, ok := os.LookupEnv(envLogLevel); ok {
		cfg.LogLevel = v
	}
}

// mergeFlagConfig applies explicit command-line overrides last, so a flag
// the operator actually typed always wins over environment and file.
func (l *Loader) mergeFlagConfig(cfg *AppConfig) {
	if l.flags.BindAddress != nil {
		cfg.BindAddress = *l.flags.BindAddress
	}
	if l.flags.RateLimitRPS != nil {
		cfg.RateLimitRPS = *l.flags.RateLimitRPS
	}
}

func splitComma(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks invariants Load cannot enforce field-by-field (required
// non-empty values, non-negative rate limit, positive TTL, required
// combinations).
func Validate(cfg AppConfig) error {
	if cfg.BindAddress == "" {
		return fmt.Errorf("bindAddress must not be empty")
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("rateLimitRPS must be >= 0, got %d", cfg.RateLimitRPS)
	}
	if cfg.FlowStorePath == "" {
		return fmt.Errorf("flowStorePath must not be empty")
	}
	if len(cfg.SAPAddresses) == 0 {
		return fmt.Errorf("sapAddresses must not be empty")
	}
	if cfg.DiscoveryStreamTTL <= 0 {
		return fmt.Errorf("discoveryStreamTTL must be positive, got %s", cfg.DiscoveryStreamTTL)
	}
	if cfg.AuthEnabled && cfg.AuthToken == "" {
		return fmt.Errorf("authToken is required when authEnabled is true")
	}
	return nil
}

// String renders cfg for logging with the auth token redacted.
func (c AppConfig) String() string {
	token := ""
	if c.AuthToken != "" {
		token = "***redacted***"
	}
	return fmt.Sprintf(
		"AppConfig{BindAddress:%s RateLimitRPS:%d FlowStorePath:%s SAPAddresses:%v "+
			"DiscoveryStreamTTL:%s RTSPAddr:%s AuthEnabled:%t AuthToken:%s OTLPEndpoint:%s LogLevel:%s}",
		c.BindAddress, c.RateLimitRPS, c.FlowStorePath, c.SAPAddresses,
		c.DiscoveryStreamTTL, c.RTSPAddr, c.AuthEnabled, token, c.OTLPEndpoint, c.LogLevel,
	)
}
