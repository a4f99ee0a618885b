package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukaan-dev/backend-dukaan/internal/db"
	"github.com/dukaan-dev/backend-dukaan/internal/pricing"
)

// ErrNotFound indicates the requested product does not exist or is inactive.
var ErrNotFound = errors.New("catalog: product not found")

// Querier captures the database methods required by the catalog service.
type Querier interface {
	GetProductByID(ctx context.Context, id pgtype.UUID) (db.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (db.Product, error)
	ListProducts(ctx context.Context, limit, offset int32) ([]db.Product, error)
	ListVariantsByProduct(ctx context.Context, productID pgtype.UUID) ([]db.ProductVariant, error)
}

// Service assembles product pricing facts, fronted by a Redis JSON cache so
// checkout does not hit Postgres for every cart line.
type Service struct {
	queries      Querier
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      Querier
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// NewService validates the configuration and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries are required")
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
	}, nil
}

// ProductFacts bundles a product with its assembled pricing facts.
type ProductFacts struct {
	Product  db.Product          `json:"product"`
	Variants []db.ProductVariant `json:"variants"`
}

// Facts converts the stored rows into the engine's pricing facts.
func (pf ProductFacts) Facts() pricing.Facts {
	facts := pricing.Facts{
		BasePrice: pf.Product.BasePrice,
		IntlTiers: tiersFromArray(pf.Product.IntlTierPrices),
	}
	if len(pf.Variants) > 0 {
		facts.Variants = make(map[string]pricing.VariantFacts, len(pf.Variants))
		for _, v := range pf.Variants {
			facts.Variants[v.Name] = pricing.VariantFacts{
				BasePrice: v.BasePrice,
				IntlTiers: tiersFromArray(v.IntlTierPrices),
			}
		}
	}
	return facts
}

// PricingFacts loads the pricing facts for a product, via cache when possible.
func (s *Service) PricingFacts(ctx context.Context, productID pgtype.UUID) (ProductFacts, error) {
	if s == nil || s.queries == nil {
		return ProductFacts{}, errors.New("catalog service not configured")
	}
	key := factsCacheKey(productID)
	var cached ProductFacts
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	product, err := s.queries.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductFacts{}, ErrNotFound
		}
		return ProductFacts{}, fmt.Errorf("load product: %w", err)
	}
	variants, err := s.queries.ListVariantsByProduct(ctx, productID)
	if err != nil {
		return ProductFacts{}, fmt.Errorf("load variants: %w", err)
	}
	facts := ProductFacts{Product: product, Variants: variants}
	_ = s.cache.SetJSON(ctx, key, facts)
	return facts, nil
}

// ProductBySlug loads a product with variants by its URL slug.
func (s *Service) ProductBySlug(ctx context.Context, slug string) (ProductFacts, error) {
	if s == nil || s.queries == nil {
		return ProductFacts{}, errors.New("catalog service not configured")
	}
	product, err := s.queries.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductFacts{}, ErrNotFound
		}
		return ProductFacts{}, fmt.Errorf("load product: %w", err)
	}
	variants, err := s.queries.ListVariantsByProduct(ctx, product.ID)
	if err != nil {
		return ProductFacts{}, fmt.Errorf("load variants: %w", err)
	}
	return ProductFacts{Product: product, Variants: variants}, nil
}

// List returns a page of active products.
func (s *Service) List(ctx context.Context, limit, offset int) ([]db.Product, error) {
	if s == nil || s.queries == nil {
		return nil, errors.New("catalog service not configured")
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.queries.ListProducts(ctx, int32(limit), int32(offset))
}

func tiersFromArray(prices []int64) pricing.Ladder {
	var ladder pricing.Ladder
	for i, price := range prices {
		tier := i + 1
		if tier > pricing.MaxTier || price <= 0 {
			continue
		}
		if ladder == nil {
			ladder = pricing.Ladder{}
		}
		ladder[tier] = price
	}
	return ladder
}

func factsCacheKey(productID pgtype.UUID) string {
	if !productID.Valid {
		return ""
	}
	return "catalog:facts:" + uuid.UUID(productID.Bytes).String()
}
