package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/authbridge/internal/config"
)

// Config holds observability settings derived from the app config and OTEL_* variables.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	protocol := envOr("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	if traces := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL"); strings.TrimSpace(traces) != "" {
		protocol = traces
	}

	ratio, err := strconv.ParseFloat(envOr("OTEL_SAMPLING_RATIO", "0.1"), 64)
	if err != nil || ratio < 0 || ratio > 1 {
		ratio = 0.1
	}

	enabled, err := strconv.ParseBool(envOr("OTEL_ENABLED", "false"))
	if err != nil {
		enabled = false
	}

	return Config{
		ServiceName:          envOr("OTEL_SERVICE_NAME", cfg.AppName),
		Environment:          envOr("DEPLOYMENT_ENV", cfg.Environment),
		Version:              envOr("SERVICE_VERSION", cfg.AppVersion),
		LogLevel:             strings.ToLower(envOr("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(envOr("LOG_FORMAT", "json")),
		OtelEnabled:          enabled,
		OtelExporterEndpoint: envOr("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint),
		OtelExporterProtocol: strings.ToLower(strings.TrimSpace(protocol)),
		OtelSamplingRatio:    ratio,
	}
}

// Debug is true for debug logging or a development environment.
func (c Config) Debug() bool {
	if strings.EqualFold(c.LogLevel, "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func envOr(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return strings.TrimSpace(def)
}
