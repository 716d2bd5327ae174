package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// maxDatumsPerPut is the PutMetricData request limit
const maxDatumsPerPut = 1000

// MetricsAPI is the part of the CloudWatch client used here
type MetricsAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// TierSample is one embedding computation
type TierSample struct {
	Tier          string
	Strategy      string
	Model         string
	Latency       time.Duration
	ContextLength int
	PathDepth     int
	Failed        bool
	At            time.Time
}

// Metrics ships embedding metrics to CloudWatch. Metrics are advisory:
// failures to ship are logged and never returned.
type Metrics struct {
	namespace string
	client    MetricsAPI
	logger    *zap.Logger
}

// NewMetrics creates a new metrics instance. A nil client disables shipping.
func NewMetrics(namespace string, client MetricsAPI, logger *zap.Logger) *Metrics {
	return &Metrics{
		namespace: namespace,
		client:    client,
		logger:    OrNop(logger),
	}
}

// RecordTier ships the datums for one embedding computation
func (m *Metrics) RecordTier(ctx context.Context, sample TierSample) {
	if m == nil || m.client == nil {
		return
	}
	m.put(ctx, TierDatums(sample))
}

func (m *Metrics) put(ctx context.Context, data []types.MetricDatum) {
	for start := 0; start < len(data); start += maxDatumsPerPut {
		end := start + maxDatumsPerPut
		if end > len(data) {
			end = len(data)
		}
		input := &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: data[start:end],
		}
		if _, err := m.client.PutMetricData(ctx, input); err != nil {
			m.logger.Warn("failed to send metrics", zap.String("namespace", m.namespace), zap.Error(err))
		}
	}
}

// TierDatums maps one embedding computation to CloudWatch datums
func TierDatums(sample TierSample) []types.MetricDatum {
	at := sample.At
	if at.IsZero() {
		at = time.Now()
	}
	status := "success"
	if sample.Failed {
		status = "failure"
	}

	dims := []types.Dimension{
		{Name: aws.String("Tier"), Value: aws.String(sample.Tier)},
		{Name: aws.String("Strategy"), Value: aws.String(orUnknown(sample.Strategy))},
		{Name: aws.String("Model"), Value: aws.String(orUnknown(sample.Model))},
	}
	statusDims := append(append([]types.Dimension{}, dims...),
		types.Dimension{Name: aws.String("Status"), Value: aws.String(status)})

	data := []types.MetricDatum{
		{
			MetricName: aws.String("EmbeddingLatency"),
			Dimensions: dims,
			Value:      aws.Float64(float64(sample.Latency.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  aws.Time(at),
		},
		{
			MetricName: aws.String("EmbeddingCount"),
			Dimensions: statusDims,
			Value:      aws.Float64(1),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(at),
		},
	}
	if sample.Failed {
		return data
	}

	data = append(data,
		types.MetricDatum{
			MetricName: aws.String("ContextLength"),
			Dimensions: dims,
			Value:      aws.Float64(float64(sample.ContextLength)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(at),
		},
		types.MetricDatum{
			MetricName: aws.String("PathDepth"),
			Dimensions: dims,
			Value:      aws.Float64(float64(sample.PathDepth)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(at),
		},
	)
	return data
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
