package models

import (
	"time"
)

// SourceKind represents the kind of a news source
type SourceKind string

const (
	SourceKindWebsite SourceKind = "website"
	SourceKindChannel SourceKind = "channel"
)

// Source represents a configured news origin. Sources are created and edited
// by the management CLI; the pipeline only reads them and honors Enabled at
// the start of each ingest pass.
type Source struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Kind      SourceKind `gorm:"not null" json:"kind"`
	Name      string     `gorm:"uniqueIndex;not null" json:"name"`
	Address   string     `gorm:"not null" json:"address"` // URL for websites, channel handle for channels
	Enabled   bool       `gorm:"default:true" json:"enabled"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// Keyword is a single interest-filter term. An empty keyword table admits
// every non-advertisement item.
type Keyword struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Word      string    `gorm:"uniqueIndex;not null" json:"word"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
