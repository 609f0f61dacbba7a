package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ProductType distinguishes the pricing behaviour of a catalog item.
type ProductType string

const (
	// ProductTypeSimple is a standalone item priced on its own.
	ProductTypeSimple ProductType = "simple"
	// ProductTypeGrouped displays a set of associated products; its price is
	// the minimum over the associated products.
	ProductTypeGrouped ProductType = "grouped"
	// ProductTypeBundled is composed of child products via bundle items.
	ProductTypeBundled ProductType = "bundled"
)

// Product represents a catalog item relevant to price resolution.
//
// HasTierPrices and HasDiscountsApplied are denormalized flags maintained by
// the catalog writer whenever the underlying collections change. The engine
// treats them as performance short-circuits only: output must be identical
// whether the shortcut is taken or the collections are consulted directly.
type Product struct {
	ID   int64
	SKU  string
	Name string

	ProductType ProductType

	Price        decimal.Decimal
	SpecialPrice *decimal.Decimal
	// SpecialPriceStart/End bound the special price window in UTC.
	// A nil bound is open-ended.
	SpecialPriceStart *time.Time
	SpecialPriceEnd   *time.Time

	HasTierPrices       bool
	HasDiscountsApplied bool

	// CustomerEntersPrice disables all discount machinery for this product.
	CustomerEntersPrice bool

	// BundlePerItemPricing switches a bundled product between "sum of priced
	// children" and "single bundle price".
	BundlePerItemPricing bool

	// LowestAttributeCombinationPrice is a precomputed minimum over the
	// product's combination price overrides, maintained by the catalog writer.
	LowestAttributeCombinationPrice *decimal.Decimal

	StockQuantity         int
	AllowOutOfStockOrders bool

	// Discounts directly assigned to this SKU.
	AppliedDiscounts []Discount

	Weight decimal.Decimal
	Length decimal.Decimal
	Width  decimal.Decimal
	Height decimal.Decimal
	GTIN   string
}

// Customer carries the identity facts price resolution depends on.
type Customer struct {
	ID      int64
	RoleIDs []int64
}

// HasRole reports whether the customer is assigned the given role.
func (c *Customer) HasRole(roleID int64) bool {
	if c == nil {
		return false
	}
	for _, id := range c.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// TierPrice is a quantity-threshold price break for one product.
// StoreID 0 applies to all stores; a nil CustomerRoleID applies to all roles.
type TierPrice struct {
	ID             int64
	ProductID      int64
	StoreID        int64
	CustomerRoleID *int64
	Quantity       int
	Price          decimal.Decimal
}

// ProductCategory links a product to a category together with the category
// facts the discount selector needs, so no live category graph is required.
type ProductCategory struct {
	ProductID           int64
	CategoryID          int64
	HasDiscountsApplied bool
	Discounts           []Discount
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
}
