// Package handler exposes price resolution over HTTP. Responses are encoded
// with go-faster/jx; every price evaluation builds its own request-scoped
// prefetch context.
package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catalog-pricing/internal/domain/attrs"
	"github.com/xenking/catalog-pricing/internal/domain/catalog"
	"github.com/xenking/catalog-pricing/internal/pricing"
)

// Handler serves the pricing API.
type Handler struct {
	products  catalog.Repository
	engine    *pricing.Engine
	fetchers  pricing.Fetchers
	generator *attrs.Generator
}

// New constructs a Handler with the required domain dependencies.
func New(products catalog.Repository, engine *pricing.Engine, fetchers pricing.Fetchers, generator *attrs.Generator) *Handler {
	return &Handler{
		products:  products,
		engine:    engine,
		fetchers:  fetchers,
		generator: generator,
	}
}

// Register attaches all API routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}/price", h.FinalPrice)
	mux.HandleFunc("GET /api/products/{id}/lowest-price", h.LowestPrice)
	mux.HandleFunc("GET /api/products/{id}/preselected-price", h.PreselectedPrice)
	mux.HandleFunc("POST /api/products/{id}/combinations/generate", h.GenerateCombinations)
}

// priceQuery holds the evaluation context parsed from query parameters.
type priceQuery struct {
	customer         *catalog.Customer
	storeID          int64
	quantity         int
	includeDiscounts bool
}

func parsePriceQuery(r *http.Request) (priceQuery, error) {
	q := priceQuery{quantity: 1, includeDiscounts: true}
	values := r.URL.Query()

	if v := values.Get("quantity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return q, errors.New("quantity must be a positive integer")
		}
		q.quantity = n
	}
	if v := values.Get("store"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return q, errors.New("store must be an integer")
		}
		q.storeID = id
	}
	if v := values.Get("discounts"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, errors.New("discounts must be a boolean")
		}
		q.includeDiscounts = b
	}
	if v := values.Get("customer"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return q, errors.New("customer must be an integer")
		}
		c := &catalog.Customer{ID: id}
		if roles := values.Get("roles"); roles != "" {
			for _, part := range strings.Split(roles, ",") {
				roleID, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
				if err != nil {
					return q, errors.New("roles must be a comma-separated list of integers")
				}
				c.RoleIDs = append(c.RoleIDs, roleID)
			}
		}
		q.customer = c
	}
	return q, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid product id")
	}
	return id, nil
}

// loadProduct resolves the product from the path and maps ErrNotFound to 404.
func (h *Handler) loadProduct(w http.ResponseWriter, r *http.Request) (*catalog.Product, bool) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return nil, false
		}
		h.serverError(w, r, err)
		return nil, false
	}
	return p, true
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := &jx.Encoder{}
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}
