package stytch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/smallbiznis/authbridge/internal/identity/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// VerifyToken authenticates an opaque session token in either mode, or a
// session JWT in consumer mode. A JWT in business mode is rejected with
// ReasonUnsupported before any network call.
func (c *Client) VerifyToken(ctx context.Context, kind domain.TokenKind, value string, mode domain.Mode) (profile domain.ExternalProfile, err error) {
	ctx, span := tracer.Start(ctx, "stytch.verify_token", trace.WithAttributes(
		attribute.String("authbridge.token_kind", kind.String()),
		attribute.String("authbridge.mode", mode.String()),
	))
	defer func() { endSpan(span, err) }()

	value = strings.TrimSpace(value)
	if value == "" {
		return nil, domain.NewVerificationError(domain.ReasonInvalid, domain.ErrMissingCredentials)
	}

	switch {
	case kind == domain.TokenOpaque && mode == domain.ModeConsumer:
		return c.authenticateSession(ctx, value)
	case kind == domain.TokenOpaque && mode == domain.ModeBusiness:
		return c.authenticateBusinessSession(ctx, value)
	case kind == domain.TokenSignedJWT && mode == domain.ModeConsumer:
		return c.authenticateJWT(ctx, value)
	default:
		return nil, domain.NewVerificationError(domain.ReasonUnsupported,
			fmt.Errorf("%w: %s in %s mode", domain.ErrUnsupportedTokenKind, kind, mode))
	}
}

func (c *Client) authenticateSession(ctx context.Context, token string) (domain.ExternalProfile, error) {
	var resp consumerSessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/authenticate", map[string]string{
		"session_token": token,
	}, &resp); err != nil {
		return nil, err
	}
	if resp.User.UserID == "" {
		return nil, domain.NewVerificationError(domain.ReasonTransport, errors.New("session response missing user"))
	}
	return domain.ConsumerProfile{Identity: resp.User.identity()}, nil
}

func (c *Client) authenticateBusinessSession(ctx context.Context, token string) (domain.ExternalProfile, error) {
	var resp businessSessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/b2b/sessions/authenticate", map[string]string{
		"session_token": token,
	}, &resp); err != nil {
		return nil, err
	}
	if resp.Member.MemberID == "" {
		return nil, domain.NewVerificationError(domain.ReasonTransport, errors.New("session response missing member"))
	}
	return resp.profile(), nil
}

// authenticateJWT checks the signature and claims locally against the
// project JWKS, then fetches the user named by the subject claim.
func (c *Client) authenticateJWT(ctx context.Context, token string) (domain.ExternalProfile, error) {
	idToken, err := c.jwtVerifierFor().Verify(ctx, token)
	if err != nil {
		var expired *oidc.TokenExpiredError
		if errors.As(err, &expired) {
			return nil, domain.NewVerificationError(domain.ReasonExpired, err)
		}
		if ctx.Err() != nil {
			return nil, domain.NewVerificationError(domain.ReasonTransport, ctx.Err())
		}
		return nil, domain.NewVerificationError(domain.ReasonInvalid, err)
	}
	if strings.TrimSpace(idToken.Subject) == "" {
		return nil, domain.NewVerificationError(domain.ReasonInvalid, errors.New("session jwt has no subject"))
	}

	user, err := c.fetchUser(ctx, idToken.Subject)
	if err != nil {
		return nil, err
	}
	return domain.ConsumerProfile{Identity: user.identity()}, nil
}

func (c *Client) fetchUser(ctx context.Context, userID string) (userPayload, error) {
	var user userPayload
	if err := c.do(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(userID), nil, &user); err != nil {
		return userPayload{}, err
	}
	if user.UserID == "" {
		return userPayload{}, domain.NewVerificationError(domain.ReasonTransport, errors.New("user response missing user_id"))
	}
	return user, nil
}

func (c *Client) jwtVerifierFor() *oidc.IDTokenVerifier {
	c.jwtOnce.Do(func() {
		keyCtx := oidc.ClientContext(context.Background(), c.httpClient)
		keySet := oidc.NewRemoteKeySet(keyCtx, c.baseURL+"/v1/sessions/jwks/"+url.PathEscape(c.projectID))
		c.jwtVerifier = oidc.NewVerifier("stytch.com/"+c.projectID, keySet, &oidc.Config{
			ClientID: c.projectID,
		})
	})
	return c.jwtVerifier
}
