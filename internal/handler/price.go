package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-pricing/internal/domain/catalog"
	"github.com/xenking/catalog-pricing/internal/pricing"
)

// ListProducts returns the product catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range products {
			encodeProduct(e, &products[i])
		}
		e.ArrEnd()
	})
}

// FinalPrice computes the sale price of a product for the requested quantity
// and evaluation context.
func (h *Handler) FinalPrice(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProduct(w, r)
	if !ok {
		return
	}
	q, err := parsePriceQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pc := pricing.NewPrefetchContext(h.fetchers, p)
	price, err := h.engine.FinalPrice(r.Context(), pc, p, q.customer, q.storeID,
		decimal.Zero, q.includeDiscounts, q.quantity, nil)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("productId")
		e.Int64(p.ID)
		e.FieldStart("quantity")
		e.Int(q.quantity)
		e.FieldStart("price")
		e.Str(price.StringFixed(2))
		e.ObjEnd()
	})
}

// LowestPrice computes the cheapest price the product can sell for, with the
// starting-from indicator.
func (h *Handler) LowestPrice(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProduct(w, r)
	if !ok {
		return
	}
	q, err := parsePriceQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pc := pricing.NewPrefetchContext(h.fetchers, p)
	if p.ProductType == catalog.ProductTypeGrouped {
		h.lowestPriceGrouped(w, r, pc, p, q)
		return
	}

	res, err := h.engine.LowestPrice(r.Context(), pc, p, q.customer, q.storeID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("productId")
		e.Int64(p.ID)
		e.FieldStart("price")
		e.Str(res.Price.StringFixed(2))
		e.FieldStart("startingFrom")
		e.Bool(res.StartingFrom)
		e.ObjEnd()
	})
}

// lowestPriceGrouped resolves the associated products of a grouped product
// through its product linkage values and reports the cheapest one.
func (h *Handler) lowestPriceGrouped(w http.ResponseWriter, r *http.Request, pc *pricing.PrefetchContext, p *catalog.Product, q priceQuery) {
	attributes, err := pc.Attributes(r.Context(), p.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	var linkedIDs []int64
	for _, a := range attributes {
		for _, v := range a.Values {
			if v.ValueType == catalog.ValueTypeProductLinkage && v.LinkedProductID > 0 {
				linkedIDs = append(linkedIDs, v.LinkedProductID)
			}
		}
	}

	var associated []*catalog.Product
	if len(linkedIDs) > 0 {
		children, err := h.products.GetByIDs(r.Context(), linkedIDs)
		if err != nil {
			h.serverError(w, r, err)
			return
		}
		for i := range children {
			associated = append(associated, &children[i])
		}
	}

	price, cheapest, err := h.engine.LowestPriceGrouped(r.Context(), pc, associated, q.customer, q.storeID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("productId")
		e.Int64(p.ID)
		e.FieldStart("price")
		e.Str(price.StringFixed(2))
		e.FieldStart("startingFrom")
		e.Bool(false)
		if cheapest != nil {
			e.FieldStart("cheapestProductId")
			e.Int64(cheapest.ID)
		}
		e.ObjEnd()
	})
}

// PreselectedPrice computes the product price with every attribute at its
// default selection.
func (h *Handler) PreselectedPrice(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProduct(w, r)
	if !ok {
		return
	}
	q, err := parsePriceQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pc := pricing.NewPrefetchContext(h.fetchers, p)
	price, err := h.engine.PreselectedPrice(r.Context(), pc, p, q.customer, q.storeID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("productId")
		e.Int64(p.ID)
		e.FieldStart("price")
		e.Str(price.StringFixed(2))
		e.ObjEnd()
	})
}

// GenerateCombinations regenerates the full combination set of a product,
// replacing whatever was stored before.
func (h *Handler) GenerateCombinations(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProduct(w, r)
	if !ok {
		return
	}

	pc := pricing.NewPrefetchContext(h.fetchers, p)
	attributes, err := pc.Attributes(r.Context(), p.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	if err := h.generator.GenerateAll(r.Context(), p, attributes); err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("productId")
		e.Int64(p.ID)
		e.FieldStart("generated")
		e.Bool(true)
		e.ObjEnd()
	})
}

func encodeProduct(e *jx.Encoder, p *catalog.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("sku")
	e.Str(p.SKU)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("type")
	e.Str(string(p.ProductType))
	e.FieldStart("price")
	e.Str(p.Price.StringFixed(2))
	if p.SpecialPrice != nil {
		e.FieldStart("specialPrice")
		e.Str(p.SpecialPrice.StringFixed(2))
	}
	e.ObjEnd()
}
