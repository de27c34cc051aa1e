package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

var validResources = map[string]struct{}{
	"user": {}, "member": {}, "channel": {}, "parent_channel": {},
	"top_role": {}, "guild": {}, "global": {},
}

// ValidateConfig checks the configuration for inconsistencies that
// would only surface at dispatch time otherwise.
func ValidateConfig(cfg *Config) error {
	var errs ValidationErrors

	if cfg.Discord.Token == "" {
		errs = append(errs, ValidationError{Field: "discord.token", Message: "token is required"})
	}

	switch cfg.Limiter.Backend {
	case "", "local":
	case "redis":
		if cfg.Limiter.Redis.Addr == "" {
			errs = append(errs, ValidationError{Field: "limiter.redis.addr", Message: "address is required for the redis backend"})
		}
	default:
		errs = append(errs, ValidationError{Field: "limiter.backend", Message: fmt.Sprintf("unknown backend %q", cfg.Limiter.Backend)})
	}

	for name, b := range cfg.Limiter.Cooldowns {
		field := "limiter.cooldowns." + name
		if _, ok := validResources[b.Resource]; !ok {
			errs = append(errs, ValidationError{Field: field + ".resource", Message: fmt.Sprintf("unknown resource %q", b.Resource)})
		}
		if b.Limit != -1 && b.Limit <= 0 {
			errs = append(errs, ValidationError{Field: field + ".limit", Message: "limit must be positive or -1"})
		}
		if b.Limit > 0 && b.WindowSeconds <= 0 {
			errs = append(errs, ValidationError{Field: field + ".window_seconds", Message: "window is required for an enabled cooldown"})
		}
	}
	for name, b := range cfg.Limiter.Concurrency {
		field := "limiter.concurrency." + name
		if _, ok := validResources[b.Resource]; !ok {
			errs = append(errs, ValidationError{Field: field + ".resource", Message: fmt.Sprintf("unknown resource %q", b.Resource)})
		}
		if b.Limit != -1 && b.Limit <= 0 {
			errs = append(errs, ValidationError{Field: field + ".limit", Message: "limit must be positive or -1"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
