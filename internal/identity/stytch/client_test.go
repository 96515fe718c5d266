package stytch

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/authbridge/internal/config"
	"github.com/smallbiznis/authbridge/internal/identity/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testProjectID = "project-test-11111111"

type fakeStytch struct {
	*httptest.Server
	key      *rsa.PrivateKey
	requests atomic.Int32
	handlers map[string]http.HandlerFunc
}

func newFakeStytch(t *testing.T) *fakeStytch {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeStytch{key: key, handlers: map[string]http.HandlerFunc{}}
	f.handlers["GET /v1/sessions/jwks/"+testProjectID] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "key-1",
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		})
	}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, found := f.handlers[r.Method+" "+r.URL.Path]
		if r.URL.Path == "/v1/sessions/jwks/"+testProjectID {
			h(w, r)
			return
		}
		f.requests.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != testProjectID || pass != "secret" {
			writeJSON(w, http.StatusUnauthorized, errorPayload{StatusCode: 401, ErrorType: "unauthorized_credentials"})
			return
		}
		if !found {
			writeJSON(w, http.StatusNotFound, errorPayload{StatusCode: 404, ErrorType: "not_found"})
			return
		}
		h(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeStytch) client(t *testing.T) *Client {
	t.Helper()
	cfg := config.DefaultBridge()
	cfg.ProjectID = testProjectID
	cfg.Secret = "secret"
	cfg.CustomBaseURL = f.URL
	cfg.Timeout = 5 * time.Second

	c, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return c
}

func (f *fakeStytch) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "key-1"
	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestVerifyOpaqueConsumerSession(t *testing.T) {
	f := newFakeStytch(t)
	f.handlers["POST /v1/sessions/authenticate"] = func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "opaque-token", body["session_token"])
		writeJSON(w, http.StatusOK, map[string]any{
			"status_code": 200,
			"user": map[string]any{
				"user_id": "user-test-1",
				"emails":  []map[string]any{{"email": "a@x.com", "verified": true}},
				"name":    map[string]string{"first_name": "Ada", "last_name": "Lovelace"},
			},
		})
	}

	profile, err := f.client(t).VerifyToken(t.Context(), domain.TokenOpaque, "opaque-token", domain.ModeConsumer)
	require.NoError(t, err)

	consumer, ok := profile.(domain.ConsumerProfile)
	require.True(t, ok)
	assert.Equal(t, "user-test-1", consumer.Identity.ExternalUserID)
	assert.Equal(t, []domain.Email{{Address: "a@x.com", Verified: true}}, consumer.Identity.Emails)
	assert.Equal(t, "Ada Lovelace", consumer.Identity.DisplayName())
	assert.Equal(t, int32(1), f.requests.Load())
}

func TestVerifyOpaqueBusinessSession(t *testing.T) {
	f := newFakeStytch(t)
	f.handlers["POST /v1/b2b/sessions/authenticate"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status_code": 200,
			"member": map[string]any{
				"member_id":              "member-test-1",
				"organization_id":        "org1",
				"email_address":          "ops@acme.io",
				"email_address_verified": true,
				"name":                   "Ops Lead",
				"status":                 "active",
			},
			"organization": map[string]any{
				"organization_id":   "org1",
				"organization_name": "Acme",
				"organization_slug": "acme",
			},
		})
	}

	profile, err := f.client(t).VerifyToken(t.Context(), domain.TokenOpaque, "opaque-token", domain.ModeBusiness)
	require.NoError(t, err)

	business, ok := profile.(domain.BusinessProfile)
	require.True(t, ok)
	assert.Equal(t, "member-test-1", business.Identity.ExternalUserID)
	assert.Equal(t, "Ops Lead", business.Identity.DisplayName())
	require.NotNil(t, business.Membership)
	assert.Equal(t, domain.ExternalMembership{
		MemberID:         "member-test-1",
		OrganizationID:   "org1",
		MemberEmail:      "ops@acme.io",
		MemberStatus:     "active",
		OrganizationName: "Acme",
		OrganizationSlug: "acme",
	}, *business.Membership)
}

func TestVerifySignedJWTFetchesUser(t *testing.T) {
	f := newFakeStytch(t)
	f.handlers["GET /v1/users/user-test-1"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status_code": 200,
			"user_id":     "user-test-1",
			"emails":      []map[string]any{{"email": "a@x.com", "verified": true}},
			"name":        "Ada",
		})
	}

	token := f.sign(t, jwt.MapClaims{
		"iss": "stytch.com/" + testProjectID,
		"aud": []string{testProjectID},
		"sub": "user-test-1",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(5 * time.Minute).Unix(),
	})

	profile, err := f.client(t).VerifyToken(t.Context(), domain.TokenSignedJWT, token, domain.ModeConsumer)
	require.NoError(t, err)
	assert.Equal(t, "user-test-1", profile.ExternalIdentity().ExternalUserID)
	assert.Equal(t, domain.PlainName("Ada"), profile.ExternalIdentity().Name)
	assert.Equal(t, int32(1), f.requests.Load())
}

func TestVerifySignedJWTExpired(t *testing.T) {
	f := newFakeStytch(t)
	token := f.sign(t, jwt.MapClaims{
		"iss": "stytch.com/" + testProjectID,
		"aud": []string{testProjectID},
		"sub": "user-test-1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})

	_, err := f.client(t).VerifyToken(t.Context(), domain.TokenSignedJWT, token, domain.ModeConsumer)
	reason, ok := domain.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonExpired, reason)
	assert.Equal(t, int32(0), f.requests.Load())
}

func TestVerifySignedJWTWrongIssuer(t *testing.T) {
	f := newFakeStytch(t)
	token := f.sign(t, jwt.MapClaims{
		"iss": "stytch.com/project-test-other",
		"aud": []string{testProjectID},
		"sub": "user-test-1",
		"exp": time.Now().Add(time.Minute).Unix(),
	})

	_, err := f.client(t).VerifyToken(t.Context(), domain.TokenSignedJWT, token, domain.ModeConsumer)
	reason, _ := domain.ReasonOf(err)
	assert.Equal(t, domain.ReasonInvalid, reason)
}

func TestVerifySignedJWTInBusinessModeIsUnsupported(t *testing.T) {
	f := newFakeStytch(t)

	_, err := f.client(t).VerifyToken(t.Context(), domain.TokenSignedJWT, "a.b.c", domain.ModeBusiness)
	reason, ok := domain.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonUnsupported, reason)
	assert.ErrorIs(t, err, domain.ErrUnsupportedTokenKind)
	assert.Equal(t, int32(0), f.requests.Load())
}

func TestVerifyClassifiesProviderErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		errTyp string
		want   domain.Reason
	}{
		{"not found", http.StatusNotFound, "session_not_found", domain.ReasonInvalid},
		{"expired", http.StatusUnauthorized, "session_expired", domain.ReasonExpired},
		{"server error", http.StatusInternalServerError, "internal_server_error", domain.ReasonTransport},
		{"rate limited", http.StatusTooManyRequests, "too_many_requests", domain.ReasonTransport},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeStytch(t)
			f.handlers["POST /v1/sessions/authenticate"] = func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, errorPayload{StatusCode: tc.status, ErrorType: tc.errTyp})
			}
			_, err := f.client(t).VerifyToken(t.Context(), domain.TokenOpaque, "tok", domain.ModeConsumer)
			reason, ok := domain.ReasonOf(err)
			require.True(t, ok)
			assert.Equal(t, tc.want, reason)
		})
	}
}

func TestVerifyMalformedResponseIsTransport(t *testing.T) {
	f := newFakeStytch(t)
	f.handlers["POST /v1/sessions/authenticate"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{not json"))
	}

	_, err := f.client(t).VerifyToken(t.Context(), domain.TokenOpaque, "tok", domain.ModeConsumer)
	reason, _ := domain.ReasonOf(err)
	assert.Equal(t, domain.ReasonTransport, reason)
}

func TestVerifyUnreachableProviderIsTransport(t *testing.T) {
	f := newFakeStytch(t)
	c := f.client(t)
	f.Close()

	_, err := c.VerifyToken(t.Context(), domain.TokenOpaque, "tok", domain.ModeConsumer)
	reason, _ := domain.ReasonOf(err)
	assert.Equal(t, domain.ReasonTransport, reason)
}

func TestAuthenticatePasswordBusiness(t *testing.T) {
	f := newFakeStytch(t)
	f.handlers["POST /v1/b2b/passwords/authenticate"] = func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "org1", body["organization_id"])
		assert.Equal(t, "ops@acme.io", body["email_address"])
		writeJSON(w, http.StatusOK, map[string]any{
			"member":       map[string]any{"member_id": "member-test-1", "organization_id": "org1", "email_address": "ops@acme.io"},
			"organization": map[string]any{"organization_id": "org1", "organization_name": "Acme"},
		})
	}

	c := f.client(t)
	_, err := c.AuthenticatePassword(t.Context(), domain.Credentials{Email: "ops@acme.io", Password: "pw"}, domain.ModeBusiness)
	reason, _ := domain.ReasonOf(err)
	assert.Equal(t, domain.ReasonInvalid, reason, "organization id is required")

	profile, err := c.AuthenticatePassword(t.Context(), domain.Credentials{Email: "ops@acme.io", Password: "pw", OrganizationID: "org1"}, domain.ModeBusiness)
	require.NoError(t, err)
	business := profile.(domain.BusinessProfile)
	assert.Equal(t, "Acme", business.Membership.OrganizationName)
}

func TestAuthenticatePasswordConsumer(t *testing.T) {
	f := newFakeStytch(t)
	f.handlers["POST /v1/passwords/authenticate"] = func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@x.com", body["email"])
		assert.Equal(t, "pw", body["password"])
		writeJSON(w, http.StatusOK, map[string]any{
			"user": map[string]any{
				"user_id": "user-test-1",
				"emails":  []map[string]any{{"email": "a@x.com", "verified": true}},
				"name":    map[string]string{"first_name": "Ada", "last_name": "Lovelace"},
			},
		})
	}

	c := f.client(t)
	_, err := c.AuthenticatePassword(t.Context(), domain.Credentials{Email: "a@x.com"}, domain.ModeConsumer)
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)

	profile, err := c.AuthenticatePassword(t.Context(), domain.Credentials{Email: " a@x.com ", Password: "pw"}, domain.ModeConsumer)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeConsumer, profile.Mode())
	assert.Equal(t, "user-test-1", profile.ExternalIdentity().ExternalUserID)
	assert.Equal(t, "Ada Lovelace", profile.ExternalIdentity().DisplayName())
}

func TestAuthenticatePasswordWrongCredentials(t *testing.T) {
	f := newFakeStytch(t)
	f.handlers["POST /v1/passwords/authenticate"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, errorPayload{StatusCode: 401, ErrorType: "unauthorized_credentials"})
	}

	_, err := f.client(t).AuthenticatePassword(t.Context(), domain.Credentials{Email: "a@x.com", Password: "nope"}, domain.ModeConsumer)
	reason, _ := domain.ReasonOf(err)
	assert.Equal(t, domain.ReasonInvalid, reason)
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "https://api.stytch.com", BaseURL(config.BridgeConfig{ProjectID: "project-live-abc"}))
	assert.Equal(t, "https://test.stytch.com", BaseURL(config.BridgeConfig{ProjectID: "project-test-abc"}))
	assert.Equal(t, "https://auth.example.com", BaseURL(config.BridgeConfig{ProjectID: "project-live-abc", CustomBaseURL: "https://auth.example.com/"}))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(config.BridgeConfig{ProjectID: testProjectID}, zap.NewNop())
	var cfgErr *config.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
