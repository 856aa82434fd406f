package models

import (
	"time"

	"gorm.io/gorm"
)

// Organization represents a platform tenant. Its managed cluster state is
// embedded as a JSON document under the doks column, mirroring the provider
// it is hosted on.
type Organization struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	Slug      string         `json:"slug" gorm:"uniqueIndex;not null"`
	Name      string         `json:"name" gorm:"not null"`
	Email     string         `json:"email"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	// Doks holds the cached cluster record; nil means no cluster
	Doks *ClusterRecord `json:"doks,omitempty" gorm:"serializer:json;column:doks"`
}

// HasCluster returns true if the organization has a cluster record
func (o *Organization) HasCluster() bool {
	return o.Doks != nil && o.Doks.Status != ClusterStatusNone
}

// TableName returns the table name for the Organization model
func (Organization) TableName() string {
	return "organizations"
}
