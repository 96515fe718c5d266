// Package domain contains the local user record the bridge reconciles into.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is the local account linked to a provider identity.
type User struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	ExternalUserID  *string      `gorm:"column:stytch_user_id;type:text;uniqueIndex" json:"stytch_user_id,omitempty"`
	Email           *string      `gorm:"column:email;type:text;index" json:"email,omitempty"`
	DisplayName     string       `gorm:"column:name;type:text;not null;default:''" json:"name"`
	OrganizationRef *string      `gorm:"column:stytch_organization_id;type:text;index" json:"stytch_organization_id,omitempty"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// IdentityLinkable is what reconciliation needs from a local user record.
// Setters report whether the stored value changed.
type IdentityLinkable interface {
	LocalID() snowflake.ID
	ExternalID() (string, bool)
	// LinkExternalID sets the external id only while it is unset.
	LinkExternalID(id string) bool
	EmailAddress() (string, bool)
	SetEmail(email string) bool
	Name() string
	SetName(name string) bool
	Organization() (string, bool)
	SetOrganization(externalOrgID string) bool
}

var _ IdentityLinkable = (*User)(nil)

func (u *User) LocalID() snowflake.ID { return u.ID }

func (u *User) ExternalID() (string, bool) {
	return deref(u.ExternalUserID)
}

func (u *User) LinkExternalID(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	if _, ok := u.ExternalID(); ok {
		return false
	}
	u.ExternalUserID = &id
	return true
}

func (u *User) EmailAddress() (string, bool) {
	return deref(u.Email)
}

func (u *User) SetEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	if current, ok := u.EmailAddress(); ok && current == email {
		return false
	}
	u.Email = &email
	return true
}

func (u *User) Name() string { return u.DisplayName }

func (u *User) SetName(name string) bool {
	if name == "" || name == u.DisplayName {
		return false
	}
	u.DisplayName = name
	return true
}

func (u *User) Organization() (string, bool) {
	return deref(u.OrganizationRef)
}

func (u *User) SetOrganization(externalOrgID string) bool {
	externalOrgID = strings.TrimSpace(externalOrgID)
	if externalOrgID == "" {
		return false
	}
	if current, ok := u.Organization(); ok && current == externalOrgID {
		return false
	}
	u.OrganizationRef = &externalOrgID
	return true
}

func deref(v *string) (string, bool) {
	if v == nil || *v == "" {
		return "", false
	}
	return *v, true
}
