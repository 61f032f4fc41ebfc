package store

import (
	"context"
	stderrors "errors"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"sjsage522/keebsteals/internal/deals"
	"sjsage522/keebsteals/logger"
	"sjsage522/keebsteals/pkg/errors"
)

const source = "store"

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// upsertColumns are overwritten when a product is synced again.
// date_added, created_at, is_active and featured keep their stored values.
var upsertColumns = []string{
	"title",
	"brand",
	"category",
	"product_link",
	"product_description",
	"tags",
	"current_price",
	"original_price",
	"price_min",
	"price_max",
	"images",
	"updated_at",
}

// Store persists products in the product table
type Store struct {
	db       *gorm.DB
	validate *validator.Validate
}

// Open connects to the database using the named driver
func Open(driver, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.NewConfiguration("database DSN is required", nil)
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		})
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, errors.NewConfiguration("unsupported database driver "+driver, nil)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, errors.NewStore(source, "failed to open database", err)
	}

	logger.ForStore().Info().Str("driver", driver).Msg("database connection established")
	return New(conn), nil
}

// New wraps an existing gorm connection
func New(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Migrate creates or updates the product table
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&deals.Product{}); err != nil {
		return errors.NewStore(source, "failed to migrate product table", err)
	}
	return nil
}

// Ping verifies the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.NewStore(source, "failed to get database handle", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.NewStore(source, "ping failed", err)
	}
	return nil
}

// Close shuts down the pooled connections
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListActive returns every active product ordered by id
func (s *Store) ListActive(ctx context.Context) ([]deals.Product, error) {
	var products []deals.Product
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id").
		Find(&products).Error
	if err != nil {
		return nil, errors.NewStore(source, "failed to list active products", err)
	}
	return products, nil
}

// GetByID looks up an active product by numeric id, falling back to product_id
func (s *Store) GetByID(ctx context.Context, id string) (*deals.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewNotFound(source, "product id is empty")
	}

	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		p, err := s.first(ctx, "id = ?", n)
		if err == nil || !errors.Is(err, errors.ErrorTypeNotFound) {
			return p, err
		}
	}

	p, err := s.first(ctx, "product_id = ?", id)
	if errors.Is(err, errors.ErrorTypeNotFound) {
		return nil, errors.NewNotFound(source, "product "+id+" not found")
	}
	return p, err
}

func (s *Store) first(ctx context.Context, query string, arg interface{}) (*deals.Product, error) {
	var p deals.Product
	err := s.db.WithContext(ctx).
		Where(query, arg).
		Where("is_active = ?", true).
		First(&p).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NewNotFound(source, "product not found")
	}
	if err != nil {
		return nil, errors.NewStore(source, "failed to load product", err)
	}
	return &p, nil
}

// UniqueBrands returns the distinct non-empty brands of active products, sorted
func (s *Store) UniqueBrands(ctx context.Context) ([]string, error) {
	brands := []string{}
	err := s.db.WithContext(ctx).
		Model(&deals.Product{}).
		Where("is_active = ? AND brand <> ?", true, "").
		Distinct("brand").
		Order("brand").
		Pluck("brand", &brands).Error
	if err != nil {
		return nil, errors.NewStore(source, "failed to list brands", err)
	}
	return brands, nil
}

// ListLinks returns the product links of every stored product
func (s *Store) ListLinks(ctx context.Context) ([]string, error) {
	links := []string{}
	err := s.db.WithContext(ctx).
		Model(&deals.Product{}).
		Order("id").
		Pluck("product_link", &links).Error
	if err != nil {
		return nil, errors.NewStore(source, "failed to list product links", err)
	}
	return links, nil
}

// Upsert inserts the product or updates the row with the same product_id.
// On success p holds the stored row.
func (s *Store) Upsert(ctx context.Context, p *deals.Product) error {
	if err := s.validate.Struct(p); err != nil {
		return errors.NewValidation(source, "invalid product "+p.ProductLink, err)
	}
	if p.CurrentPrice.IsNegative() {
		return errors.NewValidation(source, "negative price for product "+p.ProductID, nil)
	}

	db := s.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(p).Error
	if err != nil {
		return errors.NewStore(source, "failed to upsert product "+p.ProductID, err)
	}

	var stored deals.Product
	if err := db.Where("product_id = ?", p.ProductID).First(&stored).Error; err != nil {
		return errors.NewStore(source, "failed to reload product "+p.ProductID, err)
	}
	*p = stored
	return nil
}
