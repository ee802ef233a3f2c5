package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the catalog daemon's live configuration: scheduler timing,
// validator parameters, and control-plane listen addresses.
type Config struct {
	Interval           time.Duration `yaml:"interval"`
	ValidationThreads  int           `yaml:"validation_threads"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	AnonymityTimeout   time.Duration `yaml:"anonymity_timeout"`
	TestURL            string        `yaml:"test_url"`
	AnonymityURL       string        `yaml:"anonymity_url"`
	CheckAnonymity     bool          `yaml:"check_anonymity"`
	UserAgent          string        `yaml:"user_agent"`

	APIAddr     string `yaml:"api_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// LoadConfig loads configuration from a YAML file, falling back to
// defaults for a missing file and merging defaults into any field the
// file left zero-valued. CheckAnonymity is the exception: a file that
// omits check_anonymity leaves it false.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return GetDefaultConfig(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	defaults := GetDefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.ValidationThreads <= 0 {
		cfg.ValidationThreads = defaults.ValidationThreads
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.AnonymityTimeout <= 0 {
		cfg.AnonymityTimeout = defaults.AnonymityTimeout
	}
	if cfg.TestURL == "" {
		cfg.TestURL = defaults.TestURL
	}
	if cfg.AnonymityURL == "" {
		cfg.AnonymityURL = defaults.AnonymityURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = defaults.APIAddr
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = defaults.MetricsAddr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = defaults.LogFormat
	}

	return &cfg, nil
}

// GetDefaultConfig returns the published control-plane defaults: hourly
// interval, 50 threads, ipinfo.io/httpbin test URLs, 12s/10s timeouts.
func GetDefaultConfig() *Config {
	return &Config{
		Interval:          3600 * time.Second,
		ValidationThreads: 50,
		RequestTimeout:    12 * time.Second,
		AnonymityTimeout:  10 * time.Second,
		TestURL:           "https://ipinfo.io/json",
		AnonymityURL:      "https://httpbin.org/get?show_env=1",
		CheckAnonymity:    true,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		APIAddr:           ":8081",
		MetricsAddr:       ":9090",
		LogLevel:          "info",
		LogFormat:         "text",
	}
}
