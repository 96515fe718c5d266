// Package bridge resolves the current principal of a request from the
// session cache or the provider tokens it carries.
package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/authbridge/internal/clock"
	"github.com/smallbiznis/authbridge/internal/config"
	identitydomain "github.com/smallbiznis/authbridge/internal/identity/domain"
	obscontext "github.com/smallbiznis/authbridge/internal/observability/context"
	"github.com/smallbiznis/authbridge/internal/observability/logger"
	"github.com/smallbiznis/authbridge/internal/observability/metrics"
	"github.com/smallbiznis/authbridge/internal/session"
	userdomain "github.com/smallbiznis/authbridge/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	ContextUserKey     = "auth.user"
	contextSessionKey  = "auth.session"
	contextViaCacheKey = "auth.via_session"
	contextResolvedKey = "auth.resolved"
)

var ErrPasswordsUnsupported = errors.New("password authentication is not configured")

// Reconciler maps a verified profile onto a local user.
type Reconciler interface {
	Reconcile(ctx context.Context, profile identitydomain.ExternalProfile) (*userdomain.User, error)
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Config     config.BridgeConfig
	Clock      clock.Clock
	Cache      *session.Cache
	Cookies    *session.Manager
	Users      userdomain.Repository
	Verifier   identitydomain.Verifier
	Passwords  identitydomain.PasswordAuthenticator `optional:"true"`
	Reconciler Reconciler
	Metrics    *metrics.Metrics `optional:"true"`
}

type Guard struct {
	log        *zap.Logger
	cfg        config.BridgeConfig
	clock      clock.Clock
	cache      *session.Cache
	cookies    *session.Manager
	users      userdomain.Repository
	verifier   identitydomain.Verifier
	passwords  identitydomain.PasswordAuthenticator
	reconciler Reconciler
	metrics    *metrics.Metrics
}

func NewGuard(p Params) *Guard {
	return &Guard{
		log:        p.Log.Named("bridge"),
		cfg:        p.Config,
		clock:      p.Clock,
		cache:      p.Cache,
		cookies:    p.Cookies,
		users:      p.Users,
		verifier:   p.Verifier,
		passwords:  p.Passwords,
		reconciler: p.Reconciler,
		metrics:    p.Metrics,
	}
}

func (g *Guard) mode() identitydomain.Mode {
	return g.cfg.DefaultMode
}

func (g *Guard) businessSessions() bool {
	return g.cfg.LinksOrganizations(g.cfg.DefaultMode)
}

func (g *Guard) logger(ctx context.Context) *zap.Logger {
	return logger.WithContext(ctx, g.log)
}

// Resolve returns the authenticated user for the request, or nil. Failures
// are logged and resolve to anonymous. The cache and the provider are each
// consulted at most once per request.
func (g *Guard) Resolve(c *gin.Context) *userdomain.User {
	if user, ok := UserFrom(c); ok {
		return user
	}
	if c.GetBool(contextResolvedKey) {
		return nil
	}
	c.Set(contextResolvedKey, true)

	ctx := c.Request.Context()
	sid, _ := g.cookies.ReadID(c)

	if user, sess, ok := g.fromCache(ctx, sid); ok {
		g.bind(c, user, sess, true)
		return user
	}

	token, ok := g.extractToken(c)
	if !ok {
		return nil
	}

	profile, err := g.verify(ctx, token)
	if err != nil {
		reason, _ := identitydomain.ReasonOf(err)
		g.logger(ctx).Warn("provider token rejected",
			zap.String("token_kind", token.kind.String()),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
		return nil
	}

	user, err := g.reconciler.Reconcile(ctx, profile)
	if err != nil {
		g.logger(ctx).Error("reconcile failed",
			zap.String("external_user_id", profile.ExternalIdentity().ExternalUserID),
			zap.Error(err),
		)
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	sess := session.FromProfile(user, profile, g.clock.Now(), g.mode(), g.businessSessions())
	if err := g.persist(c, sid, sess, 0); err != nil {
		g.logger(ctx).Error("session write failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	g.bind(c, user, sess, false)
	return user
}

// fromCache returns the cached user when the session is fresh and its user
// still exists.
func (g *Guard) fromCache(ctx context.Context, sid string) (*userdomain.User, session.Session, bool) {
	if sid == "" {
		g.metrics.RecordCacheLookup(ctx, "miss")
		return nil, nil, false
	}

	sess, ok, err := g.cache.Read(ctx, sid)
	if err != nil {
		g.logger(ctx).Warn("session read failed", zap.Error(err))
		g.metrics.RecordCacheLookup(ctx, "error")
		return nil, nil, false
	}
	if !ok {
		g.metrics.RecordCacheLookup(ctx, "miss")
		return nil, nil, false
	}

	user, err := g.users.FindByID(ctx, sess.Base().UserID)
	if errors.Is(err, userdomain.ErrUserNotFound) {
		g.metrics.RecordCacheLookup(ctx, "stale")
		return nil, nil, false
	}
	if err != nil {
		g.logger(ctx).Warn("cached user lookup failed", zap.Error(err))
		g.metrics.RecordCacheLookup(ctx, "error")
		return nil, nil, false
	}

	g.metrics.RecordCacheLookup(ctx, "hit")
	return user, sess, true
}

func (g *Guard) verify(ctx context.Context, token credential) (identitydomain.ExternalProfile, error) {
	start := time.Now()
	profile, err := g.verifier.VerifyToken(ctx, token.kind, token.value, g.mode())

	reason := ""
	if err != nil {
		if r, ok := identitydomain.ReasonOf(err); ok {
			reason = string(r)
		} else {
			reason = "error"
		}
	}
	g.metrics.RecordVerification(ctx, g.mode().String(), token.kind.String(), reason, time.Since(start))
	return profile, err
}

// persist regenerates the session id, writes sess under it and sets the
// cookie. A zero lifetime gives a browser-session cookie.
func (g *Guard) persist(c *gin.Context, sid string, sess session.Session, lifetime time.Duration) error {
	ctx := c.Request.Context()
	next, err := g.cache.Regenerate(ctx, sid)
	if err != nil {
		return err
	}
	if err := g.cache.Write(ctx, next, sess); err != nil {
		return err
	}
	g.cookies.Set(c, next, lifetime)
	return nil
}

func (g *Guard) bind(c *gin.Context, user *userdomain.User, sess session.Session, viaCache bool) {
	c.Set(ContextUserKey, user)
	c.Set(contextSessionKey, sess)
	c.Set(contextViaCacheKey, viaCache)
	c.Set(contextResolvedKey, true)
	c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), "user", user.ID.String()))
}

func (g *Guard) unbind(c *gin.Context) {
	c.Set(ContextUserKey, (*userdomain.User)(nil))
	c.Set(contextSessionKey, nil)
	c.Set(contextViaCacheKey, false)
	c.Set(contextResolvedKey, true)
}

func (g *Guard) rememberFor(remember bool) time.Duration {
	if remember {
		return g.cfg.RememberDuration
	}
	return 0
}

// Login starts a session for user without consulting the provider.
func (g *Guard) Login(c *gin.Context, user *userdomain.User, remember bool) error {
	if user == nil {
		return userdomain.ErrUserNotFound
	}
	sid, _ := g.cookies.ReadID(c)
	sess := session.FromUser(user, g.clock.Now(), g.mode())
	if err := g.persist(c, sid, sess, g.rememberFor(remember)); err != nil {
		return err
	}
	g.bind(c, user, sess, false)
	return nil
}

// Logout clears the cached session and the sid cookie. It is safe to call
// when nobody is logged in.
func (g *Guard) Logout(c *gin.Context) error {
	sid, _ := g.cookies.ReadID(c)
	err := g.cache.Clear(c.Request.Context(), sid)
	g.unbind(c)
	g.cookies.Clear(c)
	return err
}

func (g *Guard) Check(c *gin.Context) bool {
	return g.Resolve(c) != nil
}

func (g *Guard) ID(c *gin.Context) (snowflake.ID, bool) {
	user := g.Resolve(c)
	if user == nil {
		return 0, false
	}
	return user.ID, true
}

// Attempt checks credentials with the provider and logs the user in. Rejected
// credentials return false with a nil error.
func (g *Guard) Attempt(c *gin.Context, creds identitydomain.Credentials, remember bool) (bool, error) {
	user, profile, err := g.authenticate(c.Request.Context(), creds)
	if err != nil || user == nil {
		return false, err
	}

	sid, _ := g.cookies.ReadID(c)
	sess := session.FromProfile(user, profile, g.clock.Now(), g.mode(), g.businessSessions())
	if err := g.persist(c, sid, sess, g.rememberFor(remember)); err != nil {
		return false, err
	}
	g.bind(c, user, sess, false)
	return true, nil
}

// Once checks credentials and binds the user for this request only.
func (g *Guard) Once(c *gin.Context, creds identitydomain.Credentials) (bool, error) {
	user, profile, err := g.authenticate(c.Request.Context(), creds)
	if err != nil || user == nil {
		return false, err
	}
	g.bind(c, user, session.FromProfile(user, profile, g.clock.Now(), g.mode(), g.businessSessions()), false)
	return true, nil
}

func (g *Guard) authenticate(ctx context.Context, creds identitydomain.Credentials) (*userdomain.User, identitydomain.ExternalProfile, error) {
	if g.passwords == nil {
		return nil, nil, ErrPasswordsUnsupported
	}

	profile, err := g.passwords.AuthenticatePassword(ctx, creds, g.mode())
	if err != nil {
		reason, ok := identitydomain.ReasonOf(err)
		if ok && (reason == identitydomain.ReasonInvalid || reason == identitydomain.ReasonExpired) {
			g.logger(ctx).Warn("password authentication rejected", zap.String("reason", string(reason)))
			return nil, nil, nil
		}
		return nil, nil, err
	}

	user, err := g.reconciler.Reconcile(ctx, profile)
	if err != nil {
		g.logger(ctx).Error("reconcile failed", zap.Error(err))
		return nil, nil, err
	}
	return user, profile, nil
}

func (g *Guard) LoginUsingID(c *gin.Context, id snowflake.ID, remember bool) (*userdomain.User, error) {
	user, err := g.users.FindByID(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if err := g.Login(c, user, remember); err != nil {
		return nil, err
	}
	return user, nil
}

func (g *Guard) OnceUsingID(c *gin.Context, id snowflake.ID) (*userdomain.User, error) {
	user, err := g.users.FindByID(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	g.bind(c, user, session.FromUser(user, g.clock.Now(), g.mode()), false)
	return user, nil
}

// ViaRemember reports whether the bound user came from the session cache
// rather than a fresh provider verification.
func (g *Guard) ViaRemember(c *gin.Context) bool {
	return c.GetBool(contextViaCacheKey)
}

// SessionData returns the session snapshot bound to the request.
func (g *Guard) SessionData(c *gin.Context) (session.Session, bool) {
	if g.Resolve(c) == nil {
		return nil, false
	}
	v, ok := c.Get(contextSessionKey)
	if !ok {
		return nil, false
	}
	sess, ok := v.(session.Session)
	return sess, ok && sess != nil
}

// UserFrom returns the user bound to the request by the guard.
func UserFrom(c *gin.Context) (*userdomain.User, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*userdomain.User)
	return user, ok && user != nil
}
