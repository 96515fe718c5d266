package bridge

import (
	"strings"

	"github.com/gin-gonic/gin"
	identitydomain "github.com/smallbiznis/authbridge/internal/identity/domain"
)

type credential struct {
	kind  identitydomain.TokenKind
	value string
}

// extractToken picks the provider token to verify. The opaque session
// cookie wins over the JWT cookie, and the bearer header is consulted only
// when neither cookie is set.
func (g *Guard) extractToken(c *gin.Context) (credential, bool) {
	if v := cookieValue(c, g.cfg.SessionCookieName); v != "" {
		return credential{kind: identitydomain.TokenOpaque, value: v}, true
	}
	if v := cookieValue(c, g.cfg.JWTCookieName); v != "" {
		return credential{kind: identitydomain.TokenSignedJWT, value: v}, true
	}
	if bearer, ok := bearerToken(c.GetHeader("Authorization")); ok {
		return credential{kind: classify(bearer), value: bearer}, true
	}
	return credential{}, false
}

func cookieValue(c *gin.Context, name string) string {
	if name == "" {
		return ""
	}
	v, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// classify treats a three-segment token as a signed JWT.
func classify(token string) identitydomain.TokenKind {
	if strings.Count(token, ".") == 2 {
		return identitydomain.TokenSignedJWT
	}
	return identitydomain.TokenOpaque
}
