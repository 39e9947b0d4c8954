package models

import (
	"time"
)

// UnitStatus represents the current state of a content unit
type UnitStatus string

const (
	UnitStatusNew       UnitStatus = "new"
	UnitStatusGenerated UnitStatus = "generated"
	UnitStatusPublished UnitStatus = "published"
	UnitStatusFailed    UnitStatus = "failed"
)

// ContentUnit is the generated-content record tied 1:1 to an Item. It is
// created together with the Item in status "new" and moves strictly forward:
// new -> generated -> published, with "failed" reachable from new or
// generated. Published and failed are terminal for the automated pipeline;
// re-entry from failed requires an explicit operator reset.
type ContentUnit struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ItemID        uint       `gorm:"uniqueIndex;not null" json:"item_id"`
	Item          *Item      `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	GeneratedText string     `gorm:"type:text" json:"generated_text"`
	PublishedAt   *time.Time `json:"published_at"`
	Status        UnitStatus `gorm:"index;default:'new'" json:"status"`
	ErrorMessage  string     `json:"error_message"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// IsTerminal returns true once the automated pipeline will no longer touch the unit.
func (u *ContentUnit) IsTerminal() bool {
	return u.Status == UnitStatusPublished || u.Status == UnitStatusFailed
}
