package stytch

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/smallbiznis/authbridge/internal/identity/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuthenticatePassword checks credentials with the provider's password
// endpoint for the given tenancy mode.
func (c *Client) AuthenticatePassword(ctx context.Context, creds domain.Credentials, mode domain.Mode) (profile domain.ExternalProfile, err error) {
	ctx, span := tracer.Start(ctx, "stytch.authenticate_password", trace.WithAttributes(
		attribute.String("authbridge.mode", mode.String()),
	))
	defer func() { endSpan(span, err) }()

	email := strings.TrimSpace(creds.Email)
	if email == "" || creds.Password == "" {
		return nil, domain.NewVerificationError(domain.ReasonInvalid, domain.ErrMissingCredentials)
	}

	switch mode {
	case domain.ModeConsumer:
		var resp consumerSessionResponse
		if err := c.do(ctx, http.MethodPost, "/v1/passwords/authenticate", map[string]string{
			"email":    email,
			"password": creds.Password,
		}, &resp); err != nil {
			return nil, err
		}
		if resp.User.UserID == "" {
			return nil, domain.NewVerificationError(domain.ReasonTransport, errors.New("password response missing user"))
		}
		return domain.ConsumerProfile{Identity: resp.User.identity()}, nil

	case domain.ModeBusiness:
		orgID := strings.TrimSpace(creds.OrganizationID)
		if orgID == "" {
			return nil, domain.NewVerificationError(domain.ReasonInvalid, errors.New("organization_id is required"))
		}
		var resp businessSessionResponse
		if err := c.do(ctx, http.MethodPost, "/v1/b2b/passwords/authenticate", map[string]string{
			"organization_id": orgID,
			"email_address":   email,
			"password":        creds.Password,
		}, &resp); err != nil {
			return nil, err
		}
		if resp.Member.MemberID == "" {
			return nil, domain.NewVerificationError(domain.ReasonTransport, errors.New("password response missing member"))
		}
		return resp.profile(), nil

	default:
		return nil, domain.NewVerificationError(domain.ReasonUnsupported, errors.New("unknown tenancy mode"))
	}
}
