package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Organization is the local record of an upstream business tenant.
type Organization struct {
	ID                     snowflake.ID `gorm:"primaryKey" json:"id"`
	ExternalOrganizationID string       `gorm:"column:stytch_organization_id;type:text;not null;uniqueIndex" json:"external_organization_id"`
	Name                   string       `gorm:"type:text;not null" json:"name"`
	Slug                   string       `gorm:"type:text;index" json:"slug"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

func (Organization) TableName() string { return "organizations" }

// EnsureRequest carries the upstream organization attributes seen on a
// business membership.
type EnsureRequest struct {
	ExternalID string
	Name       string
	Slug       string
}
