package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/IshaanNene/FacetGrab/internal/types"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for missing or invalid values.
// A missing base URL or destination folder wraps types.ErrMissingSetting.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		return describe(verrs)
	}

	if err := ValidateURL(cfg.Settings.BaseURL); err != nil {
		return fmt.Errorf("settings.base_url: %w", err)
	}

	if cfg.Storage.Type == "mongodb" && cfg.Storage.MongoURI == "" {
		return fmt.Errorf("storage.mongo_uri is required when storage.type is mongodb")
	}
	if cfg.Storage.S3Bucket != "" && cfg.Storage.S3Region == "" {
		return fmt.Errorf("storage.s3_region is required when storage.s3_bucket is set")
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// describe turns the first validator failure into a config-key error.
func describe(verrs validator.ValidationErrors) error {
	fe := verrs[0]
	key := configKey(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s: %w", key, types.ErrMissingSetting)
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %q", key, fe.Param(), fe.Value())
	case "url":
		return fmt.Errorf("%s must be an absolute URL, got %q", key, fe.Value())
	default:
		return fmt.Errorf("%s failed %q check (param %q)", key, fe.Tag(), fe.Param())
	}
}

// configKey maps "Config.Settings.BaseURL" to "settings.base_url".
func configKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 0 && parts[0] == "Config" {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	r := []rune(s)
	var b strings.Builder
	for i, c := range r {
		upper := unicode.IsUpper(c)
		if upper && i > 0 {
			prevLower := !unicode.IsUpper(r[i-1])
			nextLower := i+1 < len(r) && unicode.IsLower(r[i+1])
			if prevLower || nextLower {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(c))
	}
	return b.String()
}

// ValidateURL checks that a URL string is usable as a listing page.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
