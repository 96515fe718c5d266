package stytch

import (
	"encoding/json"
	"strings"

	"github.com/smallbiznis/authbridge/internal/identity/domain"
)

type emailPayload struct {
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

type namePayload struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type userPayload struct {
	UserID string          `json:"user_id"`
	Emails []emailPayload  `json:"emails"`
	Name   json.RawMessage `json:"name"`
}

type memberPayload struct {
	MemberID       string `json:"member_id"`
	OrganizationID string `json:"organization_id"`
	EmailAddress   string `json:"email_address"`
	EmailVerified  bool   `json:"email_address_verified"`
	Name           string `json:"name"`
	Status         string `json:"status"`
}

type organizationPayload struct {
	OrganizationID   string `json:"organization_id"`
	OrganizationName string `json:"organization_name"`
	OrganizationSlug string `json:"organization_slug"`
}

type consumerSessionResponse struct {
	StatusCode int         `json:"status_code"`
	User       userPayload `json:"user"`
}

type businessSessionResponse struct {
	StatusCode   int                  `json:"status_code"`
	Member       memberPayload        `json:"member"`
	Organization *organizationPayload `json:"organization"`
}

type errorPayload struct {
	StatusCode   int    `json:"status_code"`
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
}

// parseName accepts either a bare string or a {first_name, last_name} object.
func parseName(raw json.RawMessage) domain.Name {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return domain.PlainName(plain)
	}

	var structured namePayload
	if err := json.Unmarshal(raw, &structured); err == nil {
		return domain.StructuredName{First: structured.FirstName, Last: structured.LastName}
	}
	return nil
}

func (u userPayload) identity() domain.ExternalIdentity {
	emails := make([]domain.Email, 0, len(u.Emails))
	for _, e := range u.Emails {
		emails = append(emails, domain.Email{Address: e.Email, Verified: e.Verified})
	}
	return domain.ExternalIdentity{
		ExternalUserID: u.UserID,
		Emails:         emails,
		Name:           parseName(u.Name),
	}
}

func (r businessSessionResponse) profile() domain.BusinessProfile {
	identity := domain.ExternalIdentity{ExternalUserID: r.Member.MemberID}
	if r.Member.EmailAddress != "" {
		identity.Emails = []domain.Email{{Address: r.Member.EmailAddress, Verified: r.Member.EmailVerified}}
	}
	if r.Member.Name != "" {
		identity.Name = domain.PlainName(r.Member.Name)
	}

	orgID := r.Member.OrganizationID
	if r.Organization != nil && r.Organization.OrganizationID != "" {
		orgID = r.Organization.OrganizationID
	}
	if orgID == "" {
		return domain.BusinessProfile{Identity: identity}
	}

	membership := &domain.ExternalMembership{
		MemberID:       r.Member.MemberID,
		OrganizationID: orgID,
		MemberEmail:    r.Member.EmailAddress,
		MemberStatus:   r.Member.Status,
	}
	if r.Organization != nil {
		membership.OrganizationName = r.Organization.OrganizationName
		membership.OrganizationSlug = r.Organization.OrganizationSlug
	}
	return domain.BusinessProfile{Identity: identity, Membership: membership}
}
