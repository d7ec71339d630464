// config_validation.go - Startup validation of the service's environment
// variables, to fail fast with clear messages rather than at request time.
package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigValidationError represents a configuration validation error.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// ConfigValidator collects validation errors across all settings so startup
// logs report every problem at once.
type ConfigValidator struct {
	errors []ConfigValidationError
}

// NewConfigValidator creates a new configuration validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// AddError adds a validation error.
func (v *ConfigValidator) AddError(field, message string) {
	v.errors = append(v.errors, ConfigValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are validation errors.
func (v *ConfigValidator) HasErrors() bool {
	return len(v.errors) > 0
}

// ErrorString returns a formatted string of all errors.
func (v *ConfigValidator) ErrorString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d error(s):\n", len(v.errors))
	for i, err := range v.errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidateEnvironment checks every setting the service reads.
func (v *ConfigValidator) ValidateEnvironment() {
	if os.Getenv("SEO_MONGO_URI") == "" {
		v.AddError("SEO_MONGO_URI", "must be set")
	} else if uri := os.Getenv("SEO_MONGO_URI"); !strings.HasPrefix(uri, "mongodb://") && !strings.HasPrefix(uri, "mongodb+srv://") {
		v.AddError("SEO_MONGO_URI", "must start with mongodb:// or mongodb+srv://")
	}

	if addr := os.Getenv("SEO_ADDR"); addr != "" && !strings.Contains(addr, ":") {
		v.AddError("SEO_ADDR", "must be a host:port or :port listen address")
	}

	if raw := os.Getenv("SEO_MAX_UPLOAD_BYTES"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			v.AddError("SEO_MAX_UPLOAD_BYTES", "must be an integer byte count")
		} else if n < 0 {
			v.AddError("SEO_MAX_UPLOAD_BYTES", "must not be negative")
		}
	}

	if raw := os.Getenv("SEO_BACKUP_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			v.AddError("SEO_BACKUP_INTERVAL", "must be a positive duration such as 12h")
		}
	}

	// Mirror settings are only required when mirroring is on.
	if os.Getenv("SEO_BACKUP_ENABLED") == "true" {
		for _, field := range []string{"SEO_S3_ENDPOINT", "SEO_S3_ACCESS_KEY", "SEO_S3_SECRET_KEY", "SEO_S3_BUCKET"} {
			if os.Getenv(field) == "" {
				v.AddError(field, "must be set when SEO_BACKUP_ENABLED=true")
			}
		}
	}
}
