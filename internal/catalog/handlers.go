package catalog

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dukaan-dev/backend-dukaan/internal/common"
	"github.com/dukaan-dev/backend-dukaan/internal/pricing"
	"github.com/dukaan-dev/backend-dukaan/internal/region"
)

// Handler exposes public catalog endpoints with region-aware display pricing.
type Handler struct {
	Svc     *Service
	Regions region.Chain
}

type productListItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	DisplayPrice int64  `json:"displayPrice"`
	Currency     string `json:"currency"`
}

type variantView struct {
	Name         string `json:"name"`
	DisplayPrice int64  `json:"displayPrice"`
}

type productDetail struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Slug         string        `json:"slug"`
	DisplayPrice int64         `json:"displayPrice"`
	Currency     string        `json:"currency"`
	Variants     []variantView `json:"variants,omitempty"`
	// NeedsIntlPricing warns that the shown price is the home price because no
	// international ladder is configured.
	NeedsIntlPricing bool `json:"needsIntlPricing,omitempty"`
}

// Products lists active products priced for the caller's region.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	rc := h.Regions.Resolve(r.Context(), region.SignalsFromRequest(r))
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 0)
	offset := common.AtoiDefault(r.URL.Query().Get("offset"), 0)
	products, err := h.Svc.List(r.Context(), limit, offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list products", nil)
		return
	}
	items := make([]productListItem, 0, len(products))
	for _, p := range products {
		facts := ProductFacts{Product: p}.Facts()
		line, err := pricing.ResolveLine(facts, 1, "", rc)
		if err != nil {
			continue
		}
		items = append(items, productListItem{
			ID:           uuid.UUID(p.ID.Bytes).String(),
			Title:        p.Title,
			Slug:         p.Slug,
			DisplayPrice: line.UnitPrice,
			Currency:     line.Currency,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// ProductDetail returns one product with per-variant display pricing.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if slug == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "slug is required", nil)
		return
	}
	facts, err := h.Svc.ProductBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load product", nil)
		return
	}
	rc := h.Regions.Resolve(r.Context(), region.SignalsFromRequest(r))
	detail, err := buildDetail(facts, rc)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to price product", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}

func buildDetail(pf ProductFacts, rc region.Context) (productDetail, error) {
	engineFacts := pf.Facts()
	line, err := pricing.ResolveLine(engineFacts, 1, "", rc)
	if err != nil {
		return productDetail{}, err
	}
	detail := productDetail{
		ID:               uuid.UUID(pf.Product.ID.Bytes).String(),
		Title:            pf.Product.Title,
		Slug:             pf.Product.Slug,
		DisplayPrice:     line.UnitPrice,
		Currency:         line.Currency,
		NeedsIntlPricing: line.NeedsIntlPricing,
	}
	for _, v := range pf.Variants {
		variantLine, err := pricing.ResolveLine(engineFacts, 1, v.Name, rc)
		if err != nil {
			continue
		}
		detail.Variants = append(detail.Variants, variantView{Name: v.Name, DisplayPrice: variantLine.UnitPrice})
	}
	return detail, nil
}
