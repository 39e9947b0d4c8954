package models

import (
	"time"
)

// Item represents a normalized piece of content ingested from a source.
// Items are immutable once created; only the companion ContentUnit changes.
type Item struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Source      string    `gorm:"not null" json:"source"` // Display name of the originating source
	Title       string    `gorm:"uniqueIndex;not null" json:"title"`
	Summary     string    `gorm:"type:text" json:"summary"`
	URL         *string   `gorm:"uniqueIndex" json:"url"` // Required for website origin, optional for channel origin
	Image       string    `json:"image"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"published_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	RawText     string    `gorm:"type:text" json:"raw_text"`

	Unit *ContentUnit `gorm:"foreignKey:ItemID" json:"unit,omitempty"`
}
