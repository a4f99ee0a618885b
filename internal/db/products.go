package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Product carries the catalog pricing facts for a single product. The
// international tier prices are stored as a five-slot array indexed by
// quantity; a zero slot means no price is configured for that tier.
type Product struct {
	ID             pgtype.UUID
	Slug           string
	Title          string
	BasePrice      int64
	IntlTierPrices []int64
	Active         bool
	CreatedAt      pgtype.Timestamptz
}

// ProductVariant overrides the product price facts for one named variant.
type ProductVariant struct {
	ID             pgtype.UUID
	ProductID      pgtype.UUID
	Name           string
	BasePrice      int64
	IntlTierPrices []int64
}

const getProductByID = `
SELECT id, slug, title, base_price, intl_tier_prices, active, created_at
FROM products
WHERE id = $1 AND active
`

// GetProductByID fetches an active product's pricing facts.
func (q *Queries) GetProductByID(ctx context.Context, id pgtype.UUID) (Product, error) {
	row := q.db.QueryRow(ctx, getProductByID, id)
	var p Product
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.BasePrice, &p.IntlTierPrices, &p.Active, &p.CreatedAt)
	return p, err
}

const getProductBySlug = `
SELECT id, slug, title, base_price, intl_tier_prices, active, created_at
FROM products
WHERE slug = $1 AND active
`

// GetProductBySlug fetches an active product by its URL slug.
func (q *Queries) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	row := q.db.QueryRow(ctx, getProductBySlug, slug)
	var p Product
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.BasePrice, &p.IntlTierPrices, &p.Active, &p.CreatedAt)
	return p, err
}

const listProducts = `
SELECT id, slug, title, base_price, intl_tier_prices, active, created_at
FROM products
WHERE active
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`

// ListProducts returns a page of active products, newest first.
func (q *Queries) ListProducts(ctx context.Context, limit, offset int32) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.BasePrice, &p.IntlTierPrices, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const listVariantsByProduct = `
SELECT id, product_id, name, base_price, intl_tier_prices
FROM product_variants
WHERE product_id = $1
ORDER BY name
`

// ListVariantsByProduct returns the declared variants for a product.
func (q *Queries) ListVariantsByProduct(ctx context.Context, productID pgtype.UUID) ([]ProductVariant, error) {
	rows, err := q.db.Query(ctx, listVariantsByProduct, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ProductVariant
	for rows.Next() {
		var v ProductVariant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.BasePrice, &v.IntlTierPrices); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
