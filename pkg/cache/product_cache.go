package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/promptmarket/api/internal/models"
)

// ProductDatabase defines the interface for product database operations
type ProductDatabase interface {
	ListPublishedProducts(ctx context.Context, offset, limit int) ([]models.Product, error)
	CountPublishedProducts(ctx context.Context) (int64, error)
	GetProductByID(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

// ProductCache caches the published product listing and individual
// products. The public marketplace page is by far the hottest read
// path, so pages are cached with a short TTL and invalidated whenever
// a new product is registered.
type ProductCache struct {
	cache *Cache
	db    ProductDatabase
	ttl   time.Duration
}

// NewProductCache creates a new product cache
func NewProductCache(cache *Cache, db ProductDatabase, ttl time.Duration) *ProductCache {
	return &ProductCache{
		cache: cache,
		db:    db,
		ttl:   ttl,
	}
}

// listPage bundles a page of products with the total count so both
// survive a single cache round trip.
type listPage struct {
	Products []models.Product `json:"products"`
	Total    int64            `json:"total"`
}

// ListPublished returns a page of published products with caching.
// Page numbers are 1-based.
func (pc *ProductCache) ListPublished(ctx context.Context, page, pageSize int) ([]models.Product, int64, error) {
	var cached listPage
	key := ProductListKey(page, pageSize)

	err := pc.cache.GetOrSet(ctx, key, pc.ttl, &cached, func() (interface{}, error) {
		offset := (page - 1) * pageSize
		products, err := pc.db.ListPublishedProducts(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		total, err := pc.db.CountPublishedProducts(ctx)
		if err != nil {
			return nil, err
		}
		return listPage{Products: products, Total: total}, nil
	})

	if err != nil {
		return nil, 0, err
	}

	return cached.Products, cached.Total, nil
}

// GetByID retrieves a single product by ID with caching.
func (pc *ProductCache) GetByID(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	key := ProductKey(productID)

	err := pc.cache.GetOrSet(ctx, key, pc.ttl, &product, func() (interface{}, error) {
		return pc.db.GetProductByID(ctx, productID)
	})

	if err != nil {
		return nil, err
	}

	return &product, nil
}

// Invalidate removes all cached product data. Called after product
// registration or update, since cached listing pages are now stale.
func (pc *ProductCache) Invalidate(ctx context.Context) error {
	if err := pc.cache.DeletePattern(ctx, ProductAllPattern()); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate product cache")
		return err
	}
	return nil
}
