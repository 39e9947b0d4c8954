package storage

import (
	"context"
	"errors"

	"github.com/newsagent/internal/models"
)

// ErrDuplicate is returned by CreateItemWithUnit when an item with the same
// URL or title already exists. The ingest pass treats it as a normal
// filtering outcome, not a failure.
var ErrDuplicate = errors.New("item already exists")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository defines the interface for data persistence
type Repository interface {
	// Item + unit operations
	// CreateItemWithUnit inserts the item and its companion content unit
	// (status new) in a single transaction. Returns ErrDuplicate if the
	// dedup identity (URL or title) is already taken.
	CreateItemWithUnit(ctx context.Context, item *models.Item) (uint, error)
	// ItemExists reports whether an item with the given URL (when non-empty)
	// or title is already stored. Read-only dedup gate; the unique indexes
	// are the real guarantee against concurrent inserts.
	ItemExists(ctx context.Context, url, title string) (bool, error)
	GetItemByID(ctx context.Context, id uint) (*models.Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]*models.Item, error)

	// FindUnitsByStatus returns units in the given status ordered by
	// creation time ascending, with their items preloaded.
	FindUnitsByStatus(ctx context.Context, status models.UnitStatus) ([]*models.ContentUnit, error)
	GetUnitByID(ctx context.Context, id uint) (*models.ContentUnit, error)
	UpdateUnit(ctx context.Context, unit *models.ContentUnit) error

	// Source operations
	CreateSource(ctx context.Context, source *models.Source) error
	GetSourceByID(ctx context.Context, id uint) (*models.Source, error)
	ListSources(ctx context.Context, enabledOnly bool) ([]*models.Source, error)
	UpdateSource(ctx context.Context, source *models.Source) error
	DeleteSource(ctx context.Context, id uint) error

	// Keyword operations
	CreateKeyword(ctx context.Context, keyword *models.Keyword) error
	ListKeywords(ctx context.Context) ([]*models.Keyword, error)
	DeleteKeyword(ctx context.Context, id uint) error

	// Maintenance
	Close() error
	Migrate() error
}

// ItemFilter defines filtering options for items
type ItemFilter struct {
	Source *string
	Limit  int
	Offset int
}
