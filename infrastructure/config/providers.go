package config

import (
	"time"

	"go.uber.org/zap"

	"nodespace-core/domain/services"
	"nodespace-core/domain/strategies"
	"nodespace-core/pkg/observability"
)

// Logger builds the service logger for the configured level and environment
func (c *Config) Logger() (*zap.Logger, error) {
	return observability.NewLogger(c.LogLevel, c.Environment)
}

// Tracer returns the X-Ray tracer, or nil when tracing is disabled
func (c *Config) Tracer() *observability.Tracer {
	if !c.EnableTracing {
		return nil
	}
	return observability.NewTracer(c.ServiceName)
}

// Metrics returns the CloudWatch shipper, or nil when metrics are disabled
func (c *Config) Metrics(client observability.MetricsAPI, logger *zap.Logger) *observability.Metrics {
	if !c.EnableMetrics {
		return nil
	}
	return observability.NewMetrics(c.MetricsNamespace, client, logger)
}

// EventRetentionPeriod is how long stored events are kept; zero keeps them
func (c *Config) EventRetentionPeriod() time.Duration {
	return time.Duration(c.EventRetention) * 24 * time.Hour
}

// EmbeddingService wires the embedding service and the strategy registry
// for this configuration
func (c *Config) EmbeddingService(client observability.MetricsAPI, logger *zap.Logger) (*services.EmbeddingService, *strategies.Registry, error) {
	dc, err := c.DomainConfig()
	if err != nil {
		return nil, nil, err
	}
	svc := services.NewEmbeddingService(dc, logger, c.Metrics(client, logger), c.Tracer())
	return svc, strategies.NewRegistry(dc), nil
}
