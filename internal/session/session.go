// Package session caches the authenticated identity in the request's
// persistent session store.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	identitydomain "github.com/smallbiznis/authbridge/internal/identity/domain"
	userdomain "github.com/smallbiznis/authbridge/internal/user/domain"
)

// Session is either a ConsumerSession or a BusinessSession. A stored session
// is always replaced as a whole.
type Session interface {
	ClientType() identitydomain.Mode
	Base() ConsumerSession
	isSession()
}

// ConsumerSession is the identity snapshot shared by both shapes. Mode is the
// tenancy mode the login ran under; a business login without organization
// context still records ModeBusiness here.
type ConsumerSession struct {
	Mode            identitydomain.Mode
	UserID          snowflake.ID
	ExternalUserID  string
	AuthenticatedAt time.Time
	Email           string
	DisplayName     string
}

func (s ConsumerSession) ClientType() identitydomain.Mode {
	if s.Mode == "" {
		return identitydomain.ModeConsumer
	}
	return s.Mode
}

func (s ConsumerSession) Base() ConsumerSession { return s }
func (ConsumerSession) isSession()              {}

type BusinessSession struct {
	ConsumerSession
	MemberID         string
	OrganizationID   string
	OrganizationName string
	OrganizationSlug string
	MemberEmail      string
	MemberStatus     string
}

func (BusinessSession) ClientType() identitydomain.Mode { return identitydomain.ModeBusiness }
func (s BusinessSession) Base() ConsumerSession         { return s.ConsumerSession }
func (BusinessSession) isSession()                      {}

// FromProfile snapshots a reconciled user under mode. The business shape,
// with its organization fields, is used only when withOrganization is set and
// the profile carries a membership.
func FromProfile(user *userdomain.User, profile identitydomain.ExternalProfile, now time.Time, mode identitydomain.Mode, withOrganization bool) Session {
	base := baseFor(user, now, mode)
	if profile != nil {
		identity := profile.ExternalIdentity()
		if identity.ExternalUserID != "" {
			base.ExternalUserID = identity.ExternalUserID
		}
		if email, ok := identity.PrimaryEmail(); ok {
			base.Email = email.Address
		}
		if name := identity.DisplayName(); name != "" {
			base.DisplayName = name
		}
	}

	bp, ok := profile.(identitydomain.BusinessProfile)
	if !withOrganization || !ok || bp.Membership == nil {
		return base
	}
	m := bp.Membership
	return BusinessSession{
		ConsumerSession:  base,
		MemberID:         m.MemberID,
		OrganizationID:   m.OrganizationID,
		OrganizationName: m.OrganizationName,
		OrganizationSlug: m.OrganizationSlug,
		MemberEmail:      m.MemberEmail,
		MemberStatus:     m.MemberStatus,
	}
}

// FromUser builds a session for a login that skipped the provider. No
// membership is known, so it always has the plain shape tagged with mode.
func FromUser(user *userdomain.User, now time.Time, mode identitydomain.Mode) Session {
	return baseFor(user, now, mode)
}

func baseFor(user *userdomain.User, now time.Time, mode identitydomain.Mode) ConsumerSession {
	s := ConsumerSession{
		Mode:            mode,
		UserID:          user.ID,
		AuthenticatedAt: now.UTC(),
		DisplayName:     user.DisplayName,
	}
	s.ExternalUserID, _ = user.ExternalID()
	s.Email, _ = user.EmailAddress()
	return s
}

type envelope struct {
	ClientType       identitydomain.Mode `json:"client_type"`
	UserID           snowflake.ID        `json:"user_id"`
	ExternalUserID   string              `json:"stytch_user_id,omitempty"`
	AuthenticatedAt  time.Time           `json:"authenticated_at"`
	Email            string              `json:"email,omitempty"`
	DisplayName      string              `json:"name,omitempty"`
	MemberID         string              `json:"member_id,omitempty"`
	OrganizationID   string              `json:"organization_id,omitempty"`
	OrganizationName string              `json:"organization_name,omitempty"`
	OrganizationSlug string              `json:"organization_slug,omitempty"`
	MemberEmail      string              `json:"member_email,omitempty"`
	MemberStatus     string              `json:"member_status,omitempty"`
}

// Encode serializes s into its client_type tagged envelope.
func Encode(s Session) ([]byte, error) {
	base := s.Base()
	env := envelope{
		ClientType:      s.ClientType(),
		UserID:          base.UserID,
		ExternalUserID:  base.ExternalUserID,
		AuthenticatedAt: base.AuthenticatedAt.UTC(),
		Email:           base.Email,
		DisplayName:     base.DisplayName,
	}
	if b, ok := s.(BusinessSession); ok {
		env.MemberID = b.MemberID
		env.OrganizationID = b.OrganizationID
		env.OrganizationName = b.OrganizationName
		env.OrganizationSlug = b.OrganizationSlug
		env.MemberEmail = b.MemberEmail
		env.MemberStatus = b.MemberStatus
	}
	return json.Marshal(env)
}

func Decode(raw []byte) (Session, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	base := ConsumerSession{
		Mode:            env.ClientType,
		UserID:          env.UserID,
		ExternalUserID:  env.ExternalUserID,
		AuthenticatedAt: env.AuthenticatedAt.UTC(),
		Email:           env.Email,
		DisplayName:     env.DisplayName,
	}
	switch env.ClientType {
	case identitydomain.ModeConsumer:
		return base, nil
	case identitydomain.ModeBusiness:
		if env.MemberID == "" && env.OrganizationID == "" {
			return base, nil
		}
		return BusinessSession{
			ConsumerSession:  base,
			MemberID:         env.MemberID,
			OrganizationID:   env.OrganizationID,
			OrganizationName: env.OrganizationName,
			OrganizationSlug: env.OrganizationSlug,
			MemberEmail:      env.MemberEmail,
			MemberStatus:     env.MemberStatus,
		}, nil
	default:
		return nil, fmt.Errorf("decode session: %w: %q", ErrUnknownClientType, env.ClientType)
	}
}
