package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType enumerates what a discount may be assigned to.
type DiscountType string

const (
	// DiscountAssignedToSKUs applies to products it is directly assigned to.
	DiscountAssignedToSKUs DiscountType = "assigned_to_skus"
	// DiscountAssignedToCategories applies to all products of its categories.
	DiscountAssignedToCategories DiscountType = "assigned_to_categories"
)

// Discount defines a price reduction rule assigned to products or categories.
type Discount struct {
	ID           int64
	Name         string
	DiscountType DiscountType

	// UsePercentage selects between DiscountPercentage and DiscountAmount.
	UsePercentage      bool
	DiscountPercentage decimal.Decimal
	DiscountAmount     decimal.Decimal

	// Validity constraints evaluated by the discount validator.
	StartDate      *time.Time
	EndDate        *time.Time
	MaxUses        int
	Uses           int
	RequiresRoleID *int64
}
