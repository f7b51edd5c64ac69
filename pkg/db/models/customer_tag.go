package models

import (
	"time"

	"github.com/angelmondragon/pestguard-backend/pkg/enums"
)

// CustomerTag attaches a manual classification to a user or a lead.
type CustomerTag struct {
	Kind      enums.CustomerTagKind `gorm:"column:kind;type:customer_tag_kind;primaryKey"`
	EntityID  int64                 `gorm:"column:entity_id;primaryKey"`
	Tag       string                `gorm:"column:tag;not null"`
	Note      *string               `gorm:"column:note"`
	UpdatedBy *int64                `gorm:"column:updated_by"`
	UpdatedAt time.Time             `gorm:"column:updated_at;not null"`
}
