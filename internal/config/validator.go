package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationResult represents the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ConfigValidationError
	Warnings []string
}

// ConfigValidationError represents a configuration validation error
type ConfigValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation error in %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// ValidateConfig performs comprehensive validation on a configuration.
func ValidateConfig(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ConfigValidationError{},
		Warnings: []string{},
	}

	if config.Interval <= 0 {
		result.Valid = false
		result.Errors = append(result.Errors, ConfigValidationError{
			Field:   "interval",
			Value:   config.Interval,
			Message: "interval must be positive",
		})
	}

	if config.ValidationThreads < 1 || config.ValidationThreads > 200 {
		result.Valid = false
		result.Errors = append(result.Errors, ConfigValidationError{
			Field:   "validation_threads",
			Value:   config.ValidationThreads,
			Message: "validation_threads must be between 1 and 200",
		})
	} else if config.ValidationThreads > 100 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("validation_threads of %d is very high, may overwhelm target servers", config.ValidationThreads))
	}

	if config.RequestTimeout <= 0 {
		result.Valid = false
		result.Errors = append(result.Errors, ConfigValidationError{
			Field:   "request_timeout",
			Value:   config.RequestTimeout,
			Message: "request_timeout must be positive",
		})
	}

	if config.CheckAnonymity && config.AnonymityTimeout <= 0 {
		result.Valid = false
		result.Errors = append(result.Errors, ConfigValidationError{
			Field:   "anonymity_timeout",
			Value:   config.AnonymityTimeout,
			Message: "anonymity_timeout must be positive when check_anonymity is enabled",
		})
	}

	validateURL(config.TestURL, "test_url", result)
	if config.CheckAnonymity {
		validateURL(config.AnonymityURL, "anonymity_url", result)
	}

	if strings.TrimSpace(config.UserAgent) == "" {
		result.Warnings = append(result.Warnings, "empty user_agent may cause requests to be blocked")
	}

	validateAddr(config.APIAddr, "api_addr", result)
	validateAddr(config.MetricsAddr, "metrics_addr", result)

	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("log_level %q is not one of debug/info/warn/error", config.LogLevel))
	}

	switch strings.ToLower(config.LogFormat) {
	case "text", "json":
	default:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("log_format %q is not one of text/json", config.LogFormat))
	}

	return result
}

func validateURL(raw, field string, result *ValidationResult) {
	if strings.TrimSpace(raw) == "" {
		result.Valid = false
		result.Errors = append(result.Errors, ConfigValidationError{
			Field:   field,
			Value:   raw,
			Message: "URL cannot be empty",
		})
		return
	}
	if _, err := url.Parse(raw); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, ConfigValidationError{
			Field:   field,
			Value:   raw,
			Message: fmt.Sprintf("invalid URL: %v", err),
		})
	}
}

func validateAddr(addr, field string, result *ValidationResult) {
	if strings.TrimSpace(addr) == "" {
		result.Valid = false
		result.Errors = append(result.Errors, ConfigValidationError{
			Field:   field,
			Value:   addr,
			Message: "listen address cannot be empty",
		})
		return
	}
	if !strings.Contains(addr, ":") {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s %q should include a port (e.g. ':9090')", field, addr))
	}
}

// ValidateAndLoad loads and validates a configuration file.
func ValidateAndLoad(filename string) (*Config, *ValidationResult, error) {
	config, err := LoadConfig(filename)
	if err != nil {
		return nil, nil, err
	}

	validationResult := ValidateConfig(config)
	return config, validationResult, nil
}
