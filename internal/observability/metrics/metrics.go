package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes the bridge's resolution instruments.
type Metrics struct {
	cacheLookups    metric.Int64Counter
	verifications   metric.Int64Counter
	reconciliations metric.Int64Counter
	verifyDuration  metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled || strings.TrimSpace(cfg.ExporterEndpoint) == "" {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the bridge instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "authbridge"
	}
	meter := provider.Meter(name)

	cacheLookups, err := meter.Int64Counter("authbridge_cache_lookups_total",
		metric.WithDescription("Session cache lookups by result."))
	if err != nil {
		return nil, err
	}
	verifications, err := meter.Int64Counter("authbridge_verifications_total",
		metric.WithDescription("Provider verifications by outcome and failure reason."))
	if err != nil {
		return nil, err
	}
	reconciliations, err := meter.Int64Counter("authbridge_reconciliations_total",
		metric.WithDescription("Identity reconciliations by outcome."))
	if err != nil {
		return nil, err
	}
	verifyDuration, err := meter.Float64Histogram("authbridge_verification_duration_seconds",
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		cacheLookups:    cacheLookups,
		verifications:   verifications,
		reconciliations: reconciliations,
		verifyDuration:  verifyDuration,
	}, nil
}

// RecordCacheLookup counts a session cache read as "hit", "miss", "stale" or "error".
func (m *Metrics) RecordCacheLookup(ctx context.Context, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("result", strings.TrimSpace(result)))
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordVerification counts one provider verification. reason is empty on success.
func (m *Metrics) RecordVerification(ctx context.Context, mode, tokenKind, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if reason != "" {
		outcome = "failure"
	}
	attrs := FilterAttributes(
		attribute.String("outcome", outcome),
		attribute.String("reason", strings.TrimSpace(reason)),
		attribute.String("mode", strings.TrimSpace(mode)),
		attribute.String("token_kind", strings.TrimSpace(tokenKind)),
	)
	m.verifications.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.verifyDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

// RecordReconciliation counts a reconciliation as "success" or by failure reason.
func (m *Metrics) RecordReconciliation(ctx context.Context, mode, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
		attribute.String("mode", strings.TrimSpace(mode)),
	)
	m.reconciliations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(), otlpmetrichttp.WithEndpoint(endpoint), otlpmetrichttp.WithInsecure())
	case "grpc", "grpc/protobuf", "":
		return otlpmetricgrpc.New(context.Background(), otlpmetricgrpc.WithEndpoint(endpoint), otlpmetricgrpc.WithInsecure())
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"result":     {},
	"outcome":    {},
	"reason":     {},
	"mode":       {},
	"token_kind": {},
	"route":      {},
	"status":     {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
