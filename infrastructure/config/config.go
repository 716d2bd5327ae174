package config

import (
	"os"
	"strconv"
	"strings"

	"nodespace-core/domain/compatibility"
	domainconfig "nodespace-core/domain/config"
	pkgerrors "nodespace-core/pkg/errors"
)

const configService = "config"

// Config holds all application configuration
type Config struct {
	Environment string

	// Service identity, used for compatibility checks and error attribution
	ServiceName    string
	ServiceVersion string

	// Compatibility
	EnabledFeatures    compatibility.FeatureSet
	RequiredFeatures   compatibility.FeatureSet
	DeprecatedFeatures compatibility.FeatureSet
	CompatibilityTable string // path to a YAML table; empty uses the built-in one

	// Context assembly
	ContextStrategy string

	// AWS collaborators
	DynamoDBTable    string
	EventBusName     string
	MetricsNamespace string
	EventRetention   int // days; 0 keeps events forever

	// Logging
	LogLevel string

	// Feature flags
	EnableMetrics bool
	EnableTracing bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServiceName:    getEnv("SERVICE_NAME", "nodespace-core"),
		ServiceVersion: getEnv("SERVICE_VERSION", "2.0.0"),

		EnabledFeatures:    compatibility.ParseFeatureList(getEnv("ENABLED_FEATURES", "v2-api")),
		RequiredFeatures:   compatibility.ParseFeatureList(getEnv("REQUIRED_FEATURES", "")),
		DeprecatedFeatures: compatibility.ParseFeatureList(getEnv("DEPRECATED_FEATURES", "")),
		CompatibilityTable: getEnv("COMPATIBILITY_TABLE", ""),

		ContextStrategy: getEnv("CONTEXT_STRATEGY", ""),

		DynamoDBTable:    getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", "nodespace")),
		EventBusName:     getEnv("EVENT_BUS_NAME", "nodespace-events"),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "NodeSpace/Core"),
		EventRetention:   getEnvInt("EVENT_RETENTION_DAYS", 365),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", false),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return pkgerrors.ConfigurationError(configService, "SERVICE_NAME", "a non-empty service name")
	}
	if _, err := compatibility.ParseVersion(c.ServiceVersion); err != nil {
		return pkgerrors.ConfigurationError(configService, "SERVICE_VERSION", "a semantic version").WithCause(err)
	}
	if c.ContextStrategy != "" {
		switch c.ContextStrategy {
		case "rule_based", "ai_enhanced", "adaptive":
		default:
			return pkgerrors.ConfigurationError(configService, "CONTEXT_STRATEGY", "rule_based, ai_enhanced or adaptive")
		}
	}
	if c.EventRetention < 0 {
		return pkgerrors.ConfigurationError(configService, "EVENT_RETENTION_DAYS", "a non-negative number of days")
	}
	if c.Environment == "production" {
		if c.DynamoDBTable == "" {
			return pkgerrors.ConfigurationError(configService, "TABLE_NAME", "a table name in production")
		}
		if c.EventBusName == "" {
			return pkgerrors.ConfigurationError(configService, "EVENT_BUS_NAME", "an event bus name in production")
		}
	}

	return nil
}

// Profile describes this service for compatibility checks
func (c *Config) Profile() (compatibility.Profile, error) {
	v, err := compatibility.ParseVersion(c.ServiceVersion)
	if err != nil {
		return compatibility.Profile{}, pkgerrors.ConfigurationError(configService, "SERVICE_VERSION", "a semantic version").WithCause(err)
	}
	return compatibility.Profile{
		Service:    c.ServiceName,
		Version:    v,
		Enabled:    c.EnabledFeatures,
		Required:   c.RequiredFeatures,
		Deprecated: c.DeprecatedFeatures,
	}, nil
}

// DomainConfig returns the business limits for the environment, with the
// configured context strategy applied
func (c *Config) DomainConfig() (*domainconfig.DomainConfig, error) {
	dc := domainconfig.LoadDomainConfig(c.Environment)
	if c.ContextStrategy != "" {
		dc.DefaultStrategy = c.ContextStrategy
	}
	if err := dc.Validate(); err != nil {
		return nil, err
	}
	return dc, nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
