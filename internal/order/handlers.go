package order

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukaan-dev/backend-dukaan/internal/common"
	"github.com/dukaan-dev/backend-dukaan/internal/db"
)

// Handler serves read access to persisted orders and their frozen totals.
type Handler struct {
	Q *db.Queries
}

type orderView struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Currency   string     `json:"currency"`
	Subtotal   int64      `json:"subtotal"`
	Discount   int64      `json:"discount"`
	Tax        int64      `json:"tax"`
	Shipping   int64      `json:"shipping"`
	Total      int64      `json:"total"`
	CouponCode *string    `json:"couponCode,omitempty"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
}

type itemView struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	Slug      string  `json:"slug"`
	Variant   *string `json:"variant,omitempty"`
	Size      *string `json:"size,omitempty"`
	Qty       int32   `json:"qty"`
	UnitPrice int64   `json:"unitPrice"`
	LineTotal int64   `json:"lineTotal"`
}

// List handles GET /orders?userId=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order queries not configured", nil)
		return
	}
	userID, err := parseUUIDParam(r.URL.Query().Get("userId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "valid userId is required", nil)
		return
	}
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 20)
	if limit > 100 {
		limit = 100
	}
	offset := common.AtoiDefault(r.URL.Query().Get("offset"), 0)
	orders, err := h.Q.ListOrdersByUser(r.Context(), userID, int32(limit), int32(offset))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	views := make([]orderView, 0, len(orders))
	for _, ord := range orders {
		views = append(views, toOrderView(ord))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views})
}

// Get handles GET /orders/{orderId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order queries not configured", nil)
		return
	}
	orderID, err := parseUUIDParam(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	ord, err := h.Q.GetOrderByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	items, err := h.Q.ListOrderItems(r.Context(), ord.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order items", nil)
		return
	}
	itemViews := make([]itemView, 0, len(items))
	for _, it := range items {
		itemViews = append(itemViews, toItemView(it))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"order": toOrderView(ord),
		"items": itemViews,
	}})
}

func toItemView(it db.OrderItem) itemView {
	return itemView{
		ID:        uuidString(it.ID),
		ProductID: uuidString(it.ProductID),
		Title:     it.Title,
		Slug:      it.Slug,
		Variant:   nullableText(it.VariantName),
		Size:      nullableText(it.SizeName),
		Qty:       it.Qty,
		UnitPrice: it.UnitPrice,
		LineTotal: it.LineTotal,
	}
}

func toOrderView(ord db.Order) orderView {
	view := orderView{
		ID:         uuidString(ord.ID),
		Status:     ord.Status,
		Currency:   ord.Currency,
		Subtotal:   ord.PricingSubtotal,
		Discount:   ord.PricingDiscount,
		Tax:        ord.PricingTax,
		Shipping:   ord.PricingShipping,
		Total:      ord.PricingTotal,
		CouponCode: nullableText(ord.AppliedCouponCode),
	}
	if ord.CreatedAt.Valid {
		created := ord.CreatedAt.Time
		view.CreatedAt = &created
	}
	return view
}

func parseUUIDParam(s string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

func uuidString(id pgtype.UUID) string {
	return uuid.UUID(id.Bytes).String()
}

func nullableText(t pgtype.Text) *string {
	if !t.Valid || t.String == "" {
		return nil
	}
	value := t.String
	return &value
}
