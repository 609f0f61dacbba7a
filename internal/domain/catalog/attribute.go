package catalog

import "github.com/shopspring/decimal"

// AttributeControlType describes how an attribute is presented and whether it
// carries a discrete value list.
type AttributeControlType string

const (
	ControlDropdown   AttributeControlType = "dropdown"
	ControlRadioList  AttributeControlType = "radio"
	ControlCheckboxes AttributeControlType = "checkboxes"
	ControlTextbox    AttributeControlType = "textbox"
	ControlMultiline  AttributeControlType = "multiline"
	ControlDatepicker AttributeControlType = "datepicker"
	ControlFileUpload AttributeControlType = "file_upload"
)

// HasValues reports whether the control type selects from a discrete value
// list. Textbox-like controls store raw customer input instead of value ids.
func (t AttributeControlType) HasValues() bool {
	switch t {
	case ControlTextbox, ControlMultiline, ControlDatepicker, ControlFileUpload:
		return false
	default:
		return true
	}
}

// AttributeValueType distinguishes plain values from product linkages.
type AttributeValueType string

const (
	// ValueTypeSimple is a plain selectable value with a price adjustment.
	ValueTypeSimple AttributeValueType = "simple"
	// ValueTypeProductLinkage prices the value via a linked product.
	ValueTypeProductLinkage AttributeValueType = "product_linkage"
)

// ProductVariantAttribute is one configurable attribute of a product, with
// its ordered list of eligible values.
type ProductVariantAttribute struct {
	ID           int64
	ProductID    int64
	Name         string
	ControlType  AttributeControlType
	DisplayOrder int
	IsRequired   bool
	Values       []ProductVariantAttributeValue
}

// ProductVariantAttributeValue is one eligible value of a variant attribute.
type ProductVariantAttributeValue struct {
	ID              int64
	AttributeID     int64
	Name            string
	ValueType       AttributeValueType
	PriceAdjustment decimal.Decimal
	IsPreSelected   bool
	DisplayOrder    int

	// Set for ValueTypeProductLinkage only.
	LinkedProductID int64
	Quantity        int
}

// Combination pairs one specific attribute selection with optional overrides
// applied to the product while that selection is active.
type Combination struct {
	ID        int64
	ProductID int64

	// Fingerprint is the serialized selection this combination represents.
	// Within one product no two combinations may have equivalent fingerprints.
	Fingerprint string

	Price                 *decimal.Decimal
	SKU                   string
	GTIN                  string
	StockQuantity         int
	AllowOutOfStockOrders bool
	IsActive              bool

	Weight *decimal.Decimal
	Length *decimal.Decimal
	Width  *decimal.Decimal
	Height *decimal.Decimal
}

// BundleItemData wraps one child product inside a bundled parent for a single
// evaluation. AdditionalCharge is computed per evaluation and mutable; the
// referenced Product is not.
type BundleItemData struct {
	ItemID    int64
	ProductID int64
	Product   *Product

	BundleProductID      int64
	BundlePerItemPricing bool

	Quantity             int
	Discount             *decimal.Decimal
	DiscountIsPercentage bool

	// AdditionalCharge accumulates attribute price adjustments for this item
	// during preselected-price resolution.
	AdditionalCharge decimal.Decimal

	// FilterAttributes restricts which attribute values of the child are
	// eligible, and may force a different preselected value.
	FilterAttributes bool
	AttributeFilters []BundleItemAttributeFilter
}

// BundleItemAttributeFilter restricts a child product's attribute to a subset
// of values; IsPreSelected marks the value forced as the default.
type BundleItemAttributeFilter struct {
	AttributeID   int64
	ValueID       int64
	IsPreSelected bool
}
