package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Product lifecycle states. The enumerated status is the source of truth;
// is_active / is_sold views are derived from it, never stored.
const (
	ProductStatusPending  = "pending_verification"
	ProductStatusActive   = "active"
	ProductStatusSold     = "sold"
	ProductStatusInactive = "inactive"
)

// Deal methods
const (
	DealMethodDelivery = "Delivery"
	DealMethodMeetup   = "Meet Up"
)

// Image cardinality limits, enforced on every write.
const (
	MinProductImages = 4
	MaxProductImages = 10
)

// ProductConditions lists the allowed condition labels.
var ProductConditions = []string{"Brand New", "Like New", "Excellent", "Good", "Fair"}

// MeetupLocation is one candidate meetup slot for Meet Up listings.
type MeetupLocation struct {
	Location string `json:"location"`
	Date     string `json:"date,omitempty"`
	Time     string `json:"time,omitempty"`
}

type Product struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	OwnerID uint `gorm:"index;not null" json:"owner_id"`

	// Basic information
	Title       string          `gorm:"size:255;not null;index" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Category    string          `gorm:"size:100;index" json:"category"`
	Condition   string          `gorm:"size:50" json:"condition"`

	// Classification
	Gender       string `gorm:"size:20" json:"gender,omitempty"`
	ProductType  string `gorm:"size:100" json:"product_type,omitempty"`
	SubCategory  string `gorm:"size:100" json:"sub_category,omitempty"`
	Brand        string `gorm:"size:100" json:"brand,omitempty"`
	Model        string `gorm:"size:100" json:"model,omitempty"`
	Designer     string `gorm:"size:100" json:"designer,omitempty"`
	Year         int    `json:"year,omitempty"`
	SKU          string `gorm:"size:100" json:"sku,omitempty"`
	Size         string `gorm:"size:50" json:"size,omitempty"`
	ProductStyle string `gorm:"size:50" json:"product_style,omitempty"`

	Colors datatypes.JSONSlice[string] `json:"colors"`
	Tags   datatypes.JSONSlice[string] `json:"tags"`

	// Measurements, free-form as entered by the seller
	MeasurementChest        string `gorm:"size:50" json:"measurement_chest,omitempty"`
	MeasurementSleeveLength string `gorm:"size:50" json:"measurement_sleeve_length,omitempty"`
	MeasurementLength       string `gorm:"size:50" json:"measurement_length,omitempty"`
	MeasurementHem          string `gorm:"size:50" json:"measurement_hem,omitempty"`
	MeasurementShoulders    string `gorm:"size:50" json:"measurement_shoulders,omitempty"`

	// Deal configuration
	DealMethod      string                              `gorm:"size:20;not null;default:'Delivery';index" json:"deal_method"`
	MeetupDate      string                              `gorm:"size:10" json:"meetup_date,omitempty"`
	MeetupLocation  string                              `gorm:"size:255" json:"meetup_location,omitempty"`
	MeetupTime      string                              `gorm:"size:5" json:"meetup_time,omitempty"`
	MeetupLocations datatypes.JSONSlice[MeetupLocation] `json:"meetup_locations,omitempty"`

	PurchaseButtonEnabled bool             `json:"purchase_button_enabled"`
	DeliveryMethod        string           `gorm:"size:20" json:"delivery_method,omitempty"` // own, partner
	DeliveryTime          string           `gorm:"size:20" json:"delivery_time,omitempty"`
	DeliveryFee           *decimal.Decimal `gorm:"type:decimal(10,2)" json:"delivery_fee,omitempty"`
	DeliveryFeeType       string           `gorm:"size:20" json:"delivery_fee_type,omitempty"` // free, custom
	TrackingProvided      bool             `json:"tracking_provided"`
	ShippingAddress       string           `gorm:"size:255" json:"shipping_address,omitempty"`

	// Fulfilment extras
	Location      string           `gorm:"size:255" json:"location,omitempty"`
	ShippingCost  *decimal.Decimal `gorm:"type:decimal(10,2)" json:"shipping_cost,omitempty"`
	DeliveryDays  string           `gorm:"size:50" json:"delivery_days,omitempty"`
	ReturnPolicy  string           `gorm:"size:255" json:"return_policy,omitempty"`
	WarrantyInfo  string           `gorm:"size:255" json:"warranty_info,omitempty"`
	PackagingInfo string           `gorm:"size:255" json:"packaging_info,omitempty"`

	// Ratings
	Rating      float64 `gorm:"default:0" json:"rating"`
	ReviewCount int     `gorm:"default:0" json:"review_count"`

	// Stock. The label is derived from the quantity on every write.
	StockQuantity int    `gorm:"not null;default:1" json:"stock_quantity"`
	StockStatus   string `gorm:"size:50;not null;default:'In Stock'" json:"stock_status"`

	// Media
	Images datatypes.JSONSlice[string] `json:"images"`

	// Lifecycle
	Status     string `gorm:"size:30;not null;default:'pending_verification';index" json:"status"`
	IsFeatured bool   `gorm:"default:false;index" json:"is_featured"`
	IsFlagged  bool   `gorm:"default:false" json:"is_flagged"`
	IsVerified bool   `gorm:"default:false" json:"is_verified"`

	// Verification sub-state, populated only while a code is outstanding
	VerificationCode      string     `gorm:"size:6" json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`
	VerificationAttempts  int        `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Owner User `gorm:"foreignKey:OwnerID" json:"-"`
}

// IsActive reports whether the product is visible in public listings.
func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// IsSold reports whether the product has been marked sold.
func (p *Product) IsSold() bool {
	return p.Status == ProductStatusSold
}

// StockStatusFor derives the stock label from a quantity.
func StockStatusFor(quantity int) string {
	if quantity > 0 {
		return "In Stock"
	}
	return "Out of Stock"
}

// ValidCondition reports whether s is one of the allowed condition labels.
func ValidCondition(s string) bool {
	for _, c := range ProductConditions {
		if c == s {
			return true
		}
	}
	return false
}

// SellerInfo is the seller summary embedded in product responses.
type SellerInfo struct {
	ID         uint   `json:"id"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	IsVerified bool   `json:"is_verified"`
}

// ProductResponse is the API view of a product: the stored record plus
// the derived lifecycle booleans and seller summary.
type ProductResponse struct {
	*Product
	IsActiveView bool        `json:"is_active"`
	IsSoldView   bool        `json:"is_sold"`
	Seller       *SellerInfo `json:"seller,omitempty"`
}

// NewProductResponse builds the API view of a product. seller may be nil.
func NewProductResponse(p *Product, seller *User) ProductResponse {
	resp := ProductResponse{
		Product:      p,
		IsActiveView: p.IsActive(),
		IsSoldView:   p.IsSold(),
	}
	if seller != nil {
		resp.Seller = &SellerInfo{
			ID:         seller.ID,
			Username:   seller.Username,
			FullName:   seller.FullName,
			AvatarURL:  seller.AvatarURL,
			IsVerified: seller.IsVerified,
		}
	}
	return resp
}
