package domain

import (
	"fmt"
	"strings"
)

// Mode is the tenancy model a request authenticates under.
type Mode string

const (
	ModeConsumer Mode = "b2c"
	ModeBusiness Mode = "b2b"
)

// ParseMode accepts both the short provider names and the long forms.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "b2c", "consumer":
		return ModeConsumer, nil
	case "b2b", "business":
		return ModeBusiness, nil
	default:
		return "", fmt.Errorf("unknown tenancy mode %q", raw)
	}
}

func (m Mode) String() string {
	return string(m)
}

// TokenKind identifies the credential carried by a request.
type TokenKind int

const (
	TokenOpaque TokenKind = iota + 1
	TokenSignedJWT
)

func (k TokenKind) String() string {
	switch k {
	case TokenOpaque:
		return "opaque_session"
	case TokenSignedJWT:
		return "signed_jwt"
	default:
		return "unknown"
	}
}

type Email struct {
	Address  string
	Verified bool
}

// Name is either a PlainName or a StructuredName.
type Name interface {
	Display() string
	isName()
}

// PlainName is a provider-supplied display string, used verbatim.
type PlainName string

func (n PlainName) Display() string { return string(n) }
func (PlainName) isName()           {}

type StructuredName struct {
	First string
	Last  string
}

func (n StructuredName) Display() string {
	return strings.TrimSpace(n.First + " " + n.Last)
}
func (StructuredName) isName() {}

// ExternalIdentity is a verified provider user. Treat it as immutable.
type ExternalIdentity struct {
	ExternalUserID string
	Emails         []Email
	Name           Name
}

// PrimaryEmail returns the first email entry.
func (i ExternalIdentity) PrimaryEmail() (Email, bool) {
	if len(i.Emails) == 0 || strings.TrimSpace(i.Emails[0].Address) == "" {
		return Email{}, false
	}
	return i.Emails[0], true
}

func (i ExternalIdentity) DisplayName() string {
	if i.Name == nil {
		return ""
	}
	return i.Name.Display()
}

// ExternalMembership is the member context returned in business mode.
type ExternalMembership struct {
	MemberID         string
	OrganizationID   string
	MemberEmail      string
	MemberStatus     string
	OrganizationName string
	OrganizationSlug string
}

// ExternalProfile is either a ConsumerProfile or a BusinessProfile.
type ExternalProfile interface {
	Mode() Mode
	ExternalIdentity() ExternalIdentity
	isProfile()
}

type ConsumerProfile struct {
	Identity ExternalIdentity
}

func (ConsumerProfile) Mode() Mode                           { return ModeConsumer }
func (p ConsumerProfile) ExternalIdentity() ExternalIdentity { return p.Identity }
func (ConsumerProfile) isProfile()                           {}

// BusinessProfile carries the member identity. Membership is nil when the
// provider returned no organization context.
type BusinessProfile struct {
	Identity   ExternalIdentity
	Membership *ExternalMembership
}

func (BusinessProfile) Mode() Mode                           { return ModeBusiness }
func (p BusinessProfile) ExternalIdentity() ExternalIdentity { return p.Identity }
func (BusinessProfile) isProfile()                           {}

// Credentials are forwarded to the provider's password endpoint.
// OrganizationID is required in business mode.
type Credentials struct {
	Email          string
	Password       string
	OrganizationID string
}
