package order

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/dukaan-dev/backend-dukaan/internal/db"
)

func TestItemViewSurfacesFrozenAttributes(t *testing.T) {
	item := db.OrderItem{
		ID:          pgtype.UUID{Bytes: uuid.New(), Valid: true},
		ProductID:   pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Title:       "Saree",
		Slug:        "saree",
		VariantName: pgtype.Text{String: "Gold Zari", Valid: true},
		SizeName:    pgtype.Text{String: "M", Valid: true},
		Qty:         2,
		UnitPrice:   5500,
		LineTotal:   11000,
	}

	view := toItemView(item)
	require.NotNil(t, view.Variant)
	require.Equal(t, "Gold Zari", *view.Variant)
	require.NotNil(t, view.Size)
	require.Equal(t, "M", *view.Size)

	body, err := json.Marshal(view)
	require.NoError(t, err)
	require.Contains(t, string(body), `"size":"M"`)
}

func TestItemViewOmitsAbsentAttributes(t *testing.T) {
	view := toItemView(db.OrderItem{Title: "Tea", Slug: "tea", Qty: 1, UnitPrice: 250, LineTotal: 250})
	require.Nil(t, view.Variant)
	require.Nil(t, view.Size)

	body, err := json.Marshal(view)
	require.NoError(t, err)
	require.NotContains(t, string(body), `"size"`)
}
