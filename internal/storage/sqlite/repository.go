package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/newsagent/internal/models"
	"github.com/newsagent/internal/storage"
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db *gorm.DB
}

// New creates a new SQLite repository
func New(dsn string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" && dsn != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.Item{},
		&models.ContentUnit{},
		&models.Source{},
		&models.Keyword{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Item + unit operations

// CreateItemWithUnit inserts the item and its content unit in one
// transaction. The unique indexes on url and title reject duplicates even
// when two ingest passes race past the ItemExists check.
func (r *Repository) CreateItemWithUnit(ctx context.Context, item *models.Item) (uint, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		unit := &models.ContentUnit{
			ItemID: item.ID,
			Status: models.UnitStatusNew,
		}
		return tx.Create(unit).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, storage.ErrDuplicate
		}
		return 0, err
	}
	return item.ID, nil
}

func (r *Repository) ItemExists(ctx context.Context, url, title string) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Item{})
	if url != "" {
		query = query.Where("url = ? OR title = ?", url, title)
	} else {
		query = query.Where("title = ?", title)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) GetItemByID(ctx context.Context, id uint) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).Preload("Unit").First(&item, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &item, nil
}

func (r *Repository) ListItems(ctx context.Context, filter storage.ItemFilter) ([]*models.Item, error) {
	var items []*models.Item
	query := r.db.WithContext(ctx).Model(&models.Item{}).Order("created_at ASC")

	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Content unit operations

func (r *Repository) FindUnitsByStatus(ctx context.Context, status models.UnitStatus) ([]*models.ContentUnit, error) {
	var units []*models.ContentUnit
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Preload("Item").
		Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

func (r *Repository) GetUnitByID(ctx context.Context, id uint) (*models.ContentUnit, error) {
	var unit models.ContentUnit
	if err := r.db.WithContext(ctx).Preload("Item").First(&unit, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &unit, nil
}

func (r *Repository) UpdateUnit(ctx context.Context, unit *models.ContentUnit) error {
	return r.db.WithContext(ctx).Save(unit).Error
}

// Source operations

func (r *Repository) CreateSource(ctx context.Context, source *models.Source) error {
	if err := r.db.WithContext(ctx).Create(source).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return storage.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *Repository) GetSourceByID(ctx context.Context, id uint) (*models.Source, error) {
	var source models.Source
	if err := r.db.WithContext(ctx).First(&source, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &source, nil
}

func (r *Repository) ListSources(ctx context.Context, enabledOnly bool) ([]*models.Source, error) {
	var sources []*models.Source
	query := r.db.WithContext(ctx).Order("id ASC")
	if enabledOnly {
		query = query.Where("enabled = ?", true)
	}
	if err := query.Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

func (r *Repository) UpdateSource(ctx context.Context, source *models.Source) error {
	return r.db.WithContext(ctx).Save(source).Error
}

func (r *Repository) DeleteSource(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Source{}, id).Error
}

// Keyword operations

func (r *Repository) CreateKeyword(ctx context.Context, keyword *models.Keyword) error {
	if err := r.db.WithContext(ctx).Create(keyword).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return storage.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *Repository) ListKeywords(ctx context.Context) ([]*models.Keyword, error) {
	var keywords []*models.Keyword
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&keywords).Error; err != nil {
		return nil, err
	}
	return keywords, nil
}

func (r *Repository) DeleteKeyword(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Keyword{}, id).Error
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}
