// Package reconcile maps verified provider identities onto local users and
// organizations.
package reconcile

import (
	"context"
	"errors"

	"github.com/smallbiznis/authbridge/internal/config"
	identitydomain "github.com/smallbiznis/authbridge/internal/identity/domain"
	"github.com/smallbiznis/authbridge/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/authbridge/internal/organization/domain"
	userdomain "github.com/smallbiznis/authbridge/internal/user/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("authbridge/reconcile")

type Params struct {
	fx.In

	Log     *zap.Logger
	Config  config.BridgeConfig
	Users   userdomain.Repository
	Orgs    orgdomain.Service
	Metrics *metrics.Metrics `optional:"true"`
}

type Reconciler struct {
	log     *zap.Logger
	users   userdomain.Repository
	orgs    orgdomain.Service
	metrics *metrics.Metrics
	linkOrg bool
}

func New(p Params) *Reconciler {
	return &Reconciler{
		log:     p.Log.Named("reconcile"),
		users:   p.Users,
		orgs:    p.Orgs,
		metrics: p.Metrics,
		linkOrg: p.Config.OrganizationEnabled,
	}
}

// Reconcile returns the local user for profile, linking or creating it as
// needed. Calling it twice with the same profile writes nothing the second
// time.
func (r *Reconciler) Reconcile(ctx context.Context, profile identitydomain.ExternalProfile) (*userdomain.User, error) {
	ctx, span := tracer.Start(ctx, "reconcile.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("authbridge.mode", profile.Mode().String()))

	user, err := r.reconcile(ctx, profile)

	outcome := "success"
	if err != nil {
		if reason, ok := ReasonOf(err); ok {
			outcome = string(reason)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	} else {
		span.SetAttributes(attribute.String("authbridge.user_id", user.ID.String()))
	}
	r.metrics.RecordReconciliation(ctx, profile.Mode().String(), outcome)
	return user, err
}

func (r *Reconciler) reconcile(ctx context.Context, profile identitydomain.ExternalProfile) (*userdomain.User, error) {
	identity := profile.ExternalIdentity()
	if identity.ExternalUserID == "" {
		return nil, &ReconciliationError{Reason: ReasonInvalidProfile, Err: ErrMissingExternalID}
	}

	var membership *identitydomain.ExternalMembership
	if p, ok := profile.(identitydomain.BusinessProfile); ok && r.linkOrg {
		membership = p.Membership
	}
	if membership != nil && !r.users.SupportsOrganizations() {
		return nil, &ReconciliationError{Reason: ReasonMissingCapability, Err: ErrOrganizationsNotKept}
	}

	user, err := r.resolveUser(ctx, identity)
	if errors.Is(err, userdomain.ErrUserExists) {
		// A concurrent request linked or created the same identity first.
		r.log.Debug("user write lost a race, retrying", zap.String("external_user_id", identity.ExternalUserID))
		user, err = r.resolveUser(ctx, identity)
	}
	if err != nil {
		var rerr *ReconciliationError
		if errors.As(err, &rerr) {
			return nil, err
		}
		return nil, storageErr("resolve user", err)
	}

	if membership != nil && membership.OrganizationID != "" {
		if err := r.linkOrganization(ctx, user, membership); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// resolveUser finds the user by external id, then by primary email, and
// creates it when neither matches. Found users are synced with identity.
func (r *Reconciler) resolveUser(ctx context.Context, identity identitydomain.ExternalIdentity) (*userdomain.User, error) {
	email, hasEmail := identity.PrimaryEmail()
	name := identity.DisplayName()

	user, err := r.users.FindByExternalID(ctx, identity.ExternalUserID)
	switch {
	case err == nil:
		return user, r.sync(ctx, user, email.Address, name, false)
	case !errors.Is(err, userdomain.ErrUserNotFound):
		return nil, err
	}

	if hasEmail {
		user, err = r.users.FindByEmail(ctx, email.Address)
		switch {
		case err == nil:
			if _, linked := user.ExternalID(); !linked {
				// Conditional on the stored row still being unlinked; a lost
				// race surfaces as ErrUserExists and is retried by the caller.
				if err := r.users.LinkExternalID(ctx, user, identity.ExternalUserID); err != nil {
					return nil, err
				}
				r.log.Info("linked existing user",
					zap.String("user_id", user.ID.String()),
					zap.String("external_user_id", identity.ExternalUserID),
				)
				return user, r.sync(ctx, user, email.Address, name, false)
			}
			// The email belongs to a user already bound to another identity.
			r.log.Warn("email owned by another linked user",
				zap.String("user_id", user.ID.String()),
				zap.String("external_user_id", identity.ExternalUserID),
			)
		case !errors.Is(err, userdomain.ErrUserNotFound):
			return nil, err
		}
	}

	externalID := identity.ExternalUserID
	user = &userdomain.User{ExternalUserID: &externalID, DisplayName: name}
	if hasEmail {
		addr := email.Address
		user.Email = &addr
	}
	if err := r.users.Create(ctx, user); err != nil {
		return nil, err
	}
	r.log.Info("created user",
		zap.String("user_id", user.ID.String()),
		zap.String("external_user_id", externalID),
	)
	return user, nil
}

func (r *Reconciler) sync(ctx context.Context, user *userdomain.User, email, name string, dirty bool) error {
	var linkable userdomain.IdentityLinkable = user
	if linkable.SetEmail(email) {
		dirty = true
	}
	if linkable.SetName(name) {
		dirty = true
	}
	if !dirty {
		return nil
	}
	return r.users.Save(ctx, user)
}

func (r *Reconciler) linkOrganization(ctx context.Context, user *userdomain.User, m *identitydomain.ExternalMembership) error {
	if _, err := r.orgs.Ensure(ctx, orgdomain.EnsureRequest{
		ExternalID: m.OrganizationID,
		Name:       m.OrganizationName,
		Slug:       m.OrganizationSlug,
	}); err != nil {
		return storageErr("ensure organization", err)
	}

	if !user.SetOrganization(m.OrganizationID) {
		return nil
	}
	if err := r.users.Save(ctx, user); err != nil {
		return storageErr("save organization ref", err)
	}
	return nil
}
