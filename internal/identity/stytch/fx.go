package stytch

import (
	"github.com/smallbiznis/authbridge/internal/identity/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("identity.stytch",
	fx.Provide(
		New,
		func(c *Client) domain.Verifier { return c },
		func(c *Client) domain.PasswordAuthenticator { return c },
	),
)

var (
	_ domain.Verifier              = (*Client)(nil)
	_ domain.PasswordAuthenticator = (*Client)(nil)
)
