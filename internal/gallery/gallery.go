// Package gallery looks up image metadata for places in Thailand.
//
// Rows live in the place_images table of a PostgreSQL database and are
// matched on the place name without regard to case. A Repository is safe for
// concurrent use; each Lookup borrows its own pooled connection for the
// duration of the query and hands it back before returning.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Napakamol/ThailandChatbot/internal/logging"
)

// ErrLookup wraps every failure reading from or writing to the image store.
var ErrLookup = errors.New("image lookup failed")

// ImageMetadata describes the picture shown for a place.
type ImageMetadata struct {
	URL         string
	Description string
}

// Lookup finds image metadata for a place.
type Lookup interface {
	// Lookup returns (nil, nil) when the place has no image.
	Lookup(ctx context.Context, place string) (*ImageMetadata, error)
}

// PlaceImage is the stored row for one place.
type PlaceImage struct {
	ID          uint      `gorm:"primaryKey;column:id" yaml:"-"`
	Name        string    `gorm:"uniqueIndex:idx_place_images_name;size:255;not null;column:name" yaml:"name"`
	URL         string    `gorm:"type:text;not null;column:url" yaml:"url"`
	Description string    `gorm:"type:text;column:description" yaml:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime;column:created_at" yaml:"-"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime;column:updated_at" yaml:"-"`
}

// TableName implements gorm's tabler.
func (PlaceImage) TableName() string {
	return "place_images"
}

// Repository is a Lookup backed by gorm.
type Repository struct {
	db     *gorm.DB
	logger *logging.Logger
}

// Open connects to PostgreSQL using dsn. SQL logging goes to logger.
func Open(dsn string, logger *logging.Logger) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logging.NewGormLogger(logger.With("gorm")),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ErrLookup, err)
	}
	return New(db, logger), nil
}

// New wraps an already opened gorm handle.
func New(db *gorm.DB, logger *logging.Logger) *Repository {
	return &Repository{db: db, logger: logger.With("gallery")}
}

// Lookup implements Lookup.
func (r *Repository) Lookup(ctx context.Context, place string) (*ImageMetadata, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return nil, nil
	}

	var rows []PlaceImage
	err := r.db.WithContext(ctx).Connection(func(tx *gorm.DB) error {
		return tx.Where("LOWER(name) = LOWER(?)", place).Limit(1).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%w: place %q: %v", ErrLookup, place, err)
	}
	if len(rows) == 0 {
		r.logger.Debug("No image for place %q", place)
		return nil, nil
	}

	return &ImageMetadata{URL: rows[0].URL, Description: rows[0].Description}, nil
}

// Migrate creates or updates the place_images table.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&PlaceImage{}); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrLookup, err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLookup, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrLookup, err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Disabled is a Lookup with no images. It is used when no database is configured.
type Disabled struct{}

// Lookup implements Lookup.
func (Disabled) Lookup(context.Context, string) (*ImageMetadata, error) {
	return nil, nil
}
