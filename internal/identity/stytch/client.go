package stytch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/smallbiznis/authbridge/internal/config"
	"github.com/smallbiznis/authbridge/internal/identity/domain"
	obstracing "github.com/smallbiznis/authbridge/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	liveBaseURL = "https://api.stytch.com"
	testBaseURL = "https://test.stytch.com"

	maxResponseBytes = 1 << 20
)

var tracer = otel.Tracer("authbridge/stytch")

// Client talks to the Stytch consumer and B2B APIs.
type Client struct {
	log        *zap.Logger
	projectID  string
	secret     string
	baseURL    string
	httpClient *http.Client

	jwtOnce     sync.Once
	jwtVerifier *oidc.IDTokenVerifier
}

func New(cfg config.BridgeConfig, log *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, &config.ConfigurationError{Field: "project_id", Reason: "is required"}
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, &config.ConfigurationError{Field: "secret", Reason: "is required"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultTimeout
	}

	httpClient := obstracing.WrapHTTPClient(&http.Client{Timeout: cfg.Timeout})

	return &Client{
		log:        log.Named("identity.stytch"),
		projectID:  cfg.ProjectID,
		secret:     cfg.Secret,
		baseURL:    BaseURL(cfg),
		httpClient: httpClient,
	}, nil
}

// BaseURL picks the API host for the project. Live projects use the
// production host unless a custom base URL is configured.
func BaseURL(cfg config.BridgeConfig) string {
	if custom := strings.TrimRight(strings.TrimSpace(cfg.CustomBaseURL), "/"); custom != "" {
		return custom
	}
	if strings.HasPrefix(cfg.ProjectID, "project-live-") {
		return liveBaseURL
	}
	return testBaseURL
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return domain.NewVerificationError(domain.ReasonTransport, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return domain.NewVerificationError(domain.ReasonTransport, err)
	}
	req.SetBasicAuth(c.projectID, c.secret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewVerificationError(domain.ReasonTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.NewVerificationError(domain.ReasonTransport, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		verr := classifyStatus(resp.StatusCode, raw)
		c.log.Debug("stytch request rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("reason", string(verr.Reason)),
		)
		return verr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.NewVerificationError(domain.ReasonTransport, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func classifyStatus(status int, raw []byte) *domain.VerificationError {
	var payload errorPayload
	_ = json.Unmarshal(raw, &payload)

	errType := strings.TrimSpace(payload.ErrorType)
	if errType == "" {
		errType = http.StatusText(status)
	}
	err := fmt.Errorf("stytch %d: %s", status, errType)

	switch {
	case strings.Contains(errType, "expired"):
		return domain.NewVerificationError(domain.ReasonExpired, err)
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return domain.NewVerificationError(domain.ReasonTransport, err)
	default:
		return domain.NewVerificationError(domain.ReasonInvalid, err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		if reason, ok := domain.ReasonOf(err); ok {
			span.SetAttributes(attribute.String("authbridge.verification.reason", string(reason)))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "verification failed")
	}
	span.End()
}
