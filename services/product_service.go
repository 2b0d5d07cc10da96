package services

import (
	"errors"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/eazisol/Driptyard-backend/models"
)

// Verification outcomes surfaced to API callers. The caller decides
// between retry (invalid) and re-issue (expired/exhausted).
var (
	ErrCodeInvalid   = errors.New("invalid verification code")
	ErrCodeExpired   = errors.New("verification code has expired")
	ErrCodeExhausted = errors.New("maximum verification attempts reached")
)

// MaxPageSize bounds the page size of every listing query.
const MaxPageSize = 100

// Actor identifies the caller of a service operation. Admin actors bypass
// ownership and lifecycle guards.
type Actor struct {
	UserID uint
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// ProductService owns the listing lifecycle: create, verify, update,
// mark sold, soft delete, and the public search surface.
type ProductService struct {
	DB       *gorm.DB
	Verifier *VerificationService
}

func NewProductService(db *gorm.DB, verifier *VerificationService) *ProductService {
	return &ProductService{DB: db, Verifier: verifier}
}

// CreateProductInput carries the submitted listing fields. Numeric fields
// arrive as strings because the endpoint is multipart form data.
type CreateProductInput struct {
	Title       string
	Description string
	Price       string
	Category    string
	Condition   string
	DealMethod  string

	MeetupDate      string
	MeetupLocation  string
	MeetupTime      string
	MeetupLocations []models.MeetupLocation

	Gender       string
	ProductType  string
	SubCategory  string
	Brand        string
	Model        string
	Designer     string
	Year         int
	SKU          string
	Size         string
	ProductStyle string
	Colors       []string
	Tags         []string

	MeasurementChest        string
	MeasurementSleeveLength string
	MeasurementLength       string
	MeasurementHem          string
	MeasurementShoulders    string

	PurchaseButtonEnabled *bool
	DeliveryMethod        string
	DeliveryTime          string
	DeliveryFee           string
	DeliveryFeeType       string
	TrackingProvided      bool
	ShippingAddress       string
	Location              string

	StockQuantity *int

	ImageURLs []string
}

// Create validates the submission, persists the listing in
// pending_verification, and emails the activation code to the owner.
func (s *ProductService) Create(actor Actor, in CreateProductInput) (*models.Product, error) {
	if in.Title == "" || in.Description == "" || in.Price == "" || in.Category == "" || in.Condition == "" || in.DealMethod == "" {
		return nil, validationf("missing required fields: title, description, price, category, condition, deal_method")
	}

	if !models.ValidCondition(in.Condition) {
		return nil, validationf("condition must be one of: %s", strings.Join(models.ProductConditions, ", "))
	}

	dealMethod, err := normalizeDealMethod(in.DealMethod)
	if err != nil {
		return nil, err
	}

	price, err := decimal.NewFromString(in.Price)
	if err != nil || price.IsNegative() {
		return nil, validationf("price must be a non-negative decimal")
	}
	price = price.Round(2)

	purchaseEnabled := true
	if in.PurchaseButtonEnabled != nil {
		purchaseEnabled = *in.PurchaseButtonEnabled
	}

	stockQuantity := 1
	if in.StockQuantity != nil {
		if *in.StockQuantity < 0 {
			return nil, validationf("stock_quantity must be a non-negative integer")
		}
		stockQuantity = *in.StockQuantity
	}

	var deliveryFee *decimal.Decimal
	if in.DeliveryFee != "" {
		fee, err := decimal.NewFromString(in.DeliveryFee)
		if err != nil || fee.IsNegative() {
			return nil, validationf("delivery_fee must be a non-negative decimal")
		}
		fee = fee.Round(2)
		deliveryFee = &fee
	}

	deliveryMethod, deliveryTime, deliveryFeeType, err := normalizeDeliveryFields(in.DeliveryMethod, in.DeliveryTime, in.DeliveryFeeType)
	if err != nil {
		return nil, err
	}

	if dealMethod == models.DealMethodMeetup {
		if in.MeetupDate == "" || in.MeetupTime == "" {
			return nil, validationf("meetup_date and meetup_time are required for Meet Up listings")
		}
		if purchaseEnabled && len(in.MeetupLocations) == 0 {
			return nil, validationf("at least one meetup location is required when the purchase button is enabled")
		}
	} else if purchaseEnabled {
		var missing []string
		if deliveryMethod == "" {
			missing = append(missing, "delivery_method")
		}
		if deliveryTime == "" {
			missing = append(missing, "delivery_time")
		}
		if deliveryFee == nil {
			missing = append(missing, "delivery_fee")
		}
		if deliveryFeeType == "" {
			missing = append(missing, "delivery_fee_type")
		}
		if len(missing) > 0 {
			return nil, validationf("missing required delivery fields: %s", strings.Join(missing, ", "))
		}
	}
	if deliveryMethod == "partner" && in.ShippingAddress == "" {
		return nil, validationf("shipping_address is required when delivery_method is 'partner'")
	}

	if err := validateImageURLs(in.ImageURLs, models.MinProductImages); err != nil {
		return nil, err
	}

	var owner models.User
	if err := s.DB.First(&owner, actor.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("user %d", actor.UserID)
		}
		return nil, err
	}

	product := models.Product{
		OwnerID:     actor.UserID,
		Title:       in.Title,
		Description: in.Description,
		Price:       price,
		Category:    in.Category,
		Condition:   in.Condition,

		Gender:       in.Gender,
		ProductType:  in.ProductType,
		SubCategory:  in.SubCategory,
		Brand:        in.Brand,
		Model:        in.Model,
		Designer:     in.Designer,
		Year:         in.Year,
		SKU:          in.SKU,
		Size:         in.Size,
		ProductStyle: in.ProductStyle,
		Colors:       in.Colors,
		Tags:         in.Tags,

		MeasurementChest:        in.MeasurementChest,
		MeasurementSleeveLength: in.MeasurementSleeveLength,
		MeasurementLength:       in.MeasurementLength,
		MeasurementHem:          in.MeasurementHem,
		MeasurementShoulders:    in.MeasurementShoulders,

		DealMethod:      dealMethod,
		MeetupDate:      in.MeetupDate,
		MeetupLocation:  in.MeetupLocation,
		MeetupTime:      in.MeetupTime,
		MeetupLocations: in.MeetupLocations,

		PurchaseButtonEnabled: purchaseEnabled,
		DeliveryMethod:        deliveryMethod,
		DeliveryTime:          deliveryTime,
		DeliveryFee:           deliveryFee,
		DeliveryFeeType:       deliveryFeeType,
		TrackingProvided:      in.TrackingProvided,
		ShippingAddress:       strings.TrimSpace(in.ShippingAddress),
		Location:              in.Location,

		StockQuantity: stockQuantity,
		StockStatus:   models.StockStatusFor(stockQuantity),

		Images: in.ImageURLs,
		Status: models.ProductStatusPending,
	}

	if err := s.DB.Create(&product).Error; err != nil {
		return nil, err
	}

	if err := s.Verifier.SendProductCode(&product, owner.Email); err != nil {
		return nil, err
	}

	product.Owner = owner
	return &product, nil
}

// Get fetches a product with its owner. Sold and inactive products remain
// individually retrievable by id.
func (s *ProductService) Get(id uint) (*models.Product, error) {
	var product models.Product
	if err := s.DB.Preload("Owner").First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("product %d", id)
		}
		return nil, err
	}
	return &product, nil
}

// ListFilter is the composable filter set for public listing queries.
type ListFilter struct {
	Page     int
	PageSize int

	Category   string
	Search     string
	Conditions []string
	MinPrice   *float64
	MaxPrice   *float64
	Sort       string // newest, price_low_high, price_high_low, popular

	FeaturedOnly    bool
	ExcludeFeatured bool
}

func (f *ListFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

// List runs a public listing query: only active products are visible.
// Ordering is deterministic so pagination is stable.
func (s *ProductService) List(f ListFilter) ([]models.Product, int64, error) {
	f.normalize()

	query := s.DB.Model(&models.Product{}).
		Preload("Owner").
		Where("status = ?", models.ProductStatusActive)

	if f.FeaturedOnly {
		query = query.Where("is_featured = ?", true)
	}
	if f.ExcludeFeatured {
		query = query.Where("is_featured = ?", false)
	}
	query = applyListFilters(query, f)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applySort(query, f.Sort)

	var products []models.Product
	offset := (f.Page - 1) * f.PageSize
	if err := query.Offset(offset).Limit(f.PageSize).Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// OwnFilter narrows a seller's own listings.
type OwnFilter struct {
	Page     int
	PageSize int
	Status   string // active, inactive, sold, verification_pending
	Search   string
}

// ListMine returns the caller's listings in every lifecycle state.
func (s *ProductService) ListMine(actor Actor, f OwnFilter) ([]models.Product, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}

	query := s.DB.Model(&models.Product{}).Preload("Owner").Where("owner_id = ?", actor.UserID)

	switch f.Status {
	case "":
	case "active":
		query = query.Where("status = ?", models.ProductStatusActive)
	case "inactive":
		query = query.Where("status = ?", models.ProductStatusInactive)
	case "sold":
		query = query.Where("status = ?", models.ProductStatusSold)
	case "verification_pending":
		query = query.Where("status = ?", models.ProductStatusPending)
	default:
		return nil, 0, validationf("invalid status filter: %s", f.Status)
	}

	if f.Search != "" {
		term := "%" + f.Search + "%"
		query = query.Where("title LIKE ? OR description LIKE ?", term, term)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []models.Product
	offset := (f.Page - 1) * f.PageSize
	err := query.Order("created_at desc, id desc").Offset(offset).Limit(f.PageSize).Find(&products).Error
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// SendVerification re-issues the listing activation code. The previous
// code is superseded and the attempt counter resets. Only listings still
// awaiting verification qualify: deactivated listings cannot be brought
// back through this path.
func (s *ProductService) SendVerification(actor Actor, id uint) error {
	product, err := s.Get(id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && product.OwnerID != actor.UserID {
		return forbiddenf("only the owner can verify this listing")
	}
	if product.IsVerified || product.Status == models.ProductStatusActive {
		return validationf("listing is already verified")
	}
	if product.Status != models.ProductStatusPending {
		return validationf("only listings awaiting verification can request a code")
	}
	return s.Verifier.SendProductCode(product, product.Owner.Email)
}

// Verify checks a submitted code and activates the listing on success.
// The record is consumed exactly once; repeated submissions fail.
func (s *ProductService) Verify(actor Actor, id uint, code string) (*models.Product, error) {
	product, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && product.OwnerID != actor.UserID {
		return nil, forbiddenf("only the owner can verify this listing")
	}
	if product.Status == models.ProductStatusActive {
		return product, nil
	}
	if product.Status != models.ProductStatusPending {
		return nil, validationf("listing is not awaiting verification")
	}

	result, err := s.Verifier.CheckProductCode(id, code)
	if err != nil {
		return nil, err
	}
	switch result {
	case CheckInvalid:
		return nil, ErrCodeInvalid
	case CheckExpired:
		return nil, ErrCodeExpired
	case CheckExhausted:
		return nil, ErrCodeExhausted
	}

	err = s.DB.Model(&models.Product{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      models.ProductStatusActive,
			"is_verified": true,
		}).Error
	if err != nil {
		return nil, err
	}
	return s.Get(id)
}

// UpdateProductInput carries the owner-editable descriptive fields.
// Lifecycle state, flags, and identity are not reachable from here.
type UpdateProductInput struct {
	Title       *string
	Description *string
	Price       *string
	Category    *string
	Condition   *string

	Brand        *string
	Model        *string
	Designer     *string
	Size         *string
	ProductStyle *string
	Colors       []string
	Tags         []string

	MeetupDate     *string
	MeetupLocation *string
	MeetupTime     *string

	StockQuantity *int
}

// Update applies descriptive changes. Owners may only touch their own
// products; admins may touch any.
func (s *ProductService) Update(actor Actor, id uint, in UpdateProductInput) (*models.Product, error) {
	product, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && product.OwnerID != actor.UserID {
		return nil, forbiddenf("you don't have permission to update this product")
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		if *in.Title == "" {
			return nil, validationf("title cannot be empty")
		}
		updates["title"] = *in.Title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Price != nil {
		price, err := decimal.NewFromString(*in.Price)
		if err != nil || price.IsNegative() {
			return nil, validationf("price must be a non-negative decimal")
		}
		updates["price"] = price.Round(2)
	}
	if in.Category != nil {
		updates["category"] = *in.Category
	}
	if in.Condition != nil {
		if !models.ValidCondition(*in.Condition) {
			return nil, validationf("condition must be one of: %s", strings.Join(models.ProductConditions, ", "))
		}
		updates["condition"] = *in.Condition
	}
	if in.Brand != nil {
		updates["brand"] = *in.Brand
	}
	if in.Model != nil {
		updates["model"] = *in.Model
	}
	if in.Designer != nil {
		updates["designer"] = *in.Designer
	}
	if in.Size != nil {
		updates["size"] = *in.Size
	}
	if in.ProductStyle != nil {
		updates["product_style"] = *in.ProductStyle
	}
	if in.Colors != nil {
		updates["colors"] = datatypes.JSONSlice[string](in.Colors)
	}
	if in.Tags != nil {
		updates["tags"] = datatypes.JSONSlice[string](in.Tags)
	}
	if in.MeetupDate != nil {
		updates["meetup_date"] = *in.MeetupDate
	}
	if in.MeetupLocation != nil {
		updates["meetup_location"] = *in.MeetupLocation
	}
	if in.MeetupTime != nil {
		updates["meetup_time"] = *in.MeetupTime
	}
	if in.StockQuantity != nil {
		if *in.StockQuantity < 0 {
			return nil, validationf("stock_quantity must be a non-negative integer")
		}
		updates["stock_quantity"] = *in.StockQuantity
		updates["stock_status"] = models.StockStatusFor(*in.StockQuantity)
	}

	if len(updates) == 0 {
		return product, nil
	}
	if err := s.DB.Model(product).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(id)
}

// AddImages appends image URLs to a product. A request that would push the
// total past the maximum is rejected whole; the list is never truncated.
func (s *ProductService) AddImages(actor Actor, id uint, urls []string) (*models.Product, error) {
	product, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && product.OwnerID != actor.UserID {
		return nil, forbiddenf("you don't have permission to update this product")
	}
	if len(urls) == 0 {
		return nil, validationf("no images provided")
	}
	if len(product.Images)+len(urls) > models.MaxProductImages {
		return nil, validationf("maximum %d images allowed per product; you have %d",
			models.MaxProductImages, len(product.Images))
	}
	if err := validateImageURLs(urls, 1); err != nil {
		return nil, err
	}

	combined := append(append([]string{}, product.Images...), urls...)
	err = s.DB.Model(product).Update("images", datatypes.JSONSlice[string](combined)).Error
	if err != nil {
		return nil, err
	}
	return s.Get(id)
}

// MarkSold transitions an active listing to sold.
func (s *ProductService) MarkSold(actor Actor, id uint) (*models.Product, error) {
	product, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && product.OwnerID != actor.UserID {
		return nil, forbiddenf("you don't have permission to update this product")
	}
	if !actor.IsAdmin() && product.Status != models.ProductStatusActive {
		return nil, validationf("only active listings can be marked sold")
	}
	err = s.DB.Model(product).Update("status", models.ProductStatusSold).Error
	if err != nil {
		return nil, err
	}
	return s.Get(id)
}

// SoftDelete deactivates a listing. The row stays retrievable by id but
// leaves every public query; owners cannot undo it.
func (s *ProductService) SoftDelete(actor Actor, id uint) error {
	product, err := s.Get(id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && product.OwnerID != actor.UserID {
		return forbiddenf("you don't have permission to delete this product")
	}
	return s.DB.Model(product).Update("status", models.ProductStatusInactive).Error
}

// HardDelete removes the row. Admin only.
func (s *ProductService) HardDelete(actor Actor, id uint) error {
	if !actor.IsAdmin() {
		return forbiddenf("admin access required")
	}
	res := s.DB.Delete(&models.Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFoundf("product %d", id)
	}
	return nil
}

// AdminFilter is the moderation listing filter: every status is visible.
type AdminFilter struct {
	Page     int
	PageSize int
	Status   string
	Search   string
	Flagged  *bool
}

// AdminList returns products across all lifecycle states.
func (s *ProductService) AdminList(actor Actor, f AdminFilter) ([]models.Product, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, forbiddenf("admin access required")
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}

	query := s.DB.Model(&models.Product{}).Preload("Owner")
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Flagged != nil {
		query = query.Where("is_flagged = ?", *f.Flagged)
	}
	if f.Search != "" {
		term := "%" + f.Search + "%"
		query = query.Where("title LIKE ? OR description LIKE ?", term, term)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []models.Product
	offset := (f.Page - 1) * f.PageSize
	err := query.Order("created_at desc, id desc").Offset(offset).Limit(f.PageSize).Find(&products).Error
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// AdminUpdateInput toggles moderation state directly, bypassing the
// normal state machine.
type AdminUpdateInput struct {
	Status     *string
	IsFeatured *bool
	IsFlagged  *bool
	IsVerified *bool
}

// AdminUpdate applies moderation changes without ownership or lifecycle
// guards.
func (s *ProductService) AdminUpdate(actor Actor, id uint, in AdminUpdateInput) (*models.Product, error) {
	if !actor.IsAdmin() {
		return nil, forbiddenf("admin access required")
	}
	product, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Status != nil {
		switch *in.Status {
		case models.ProductStatusPending, models.ProductStatusActive,
			models.ProductStatusSold, models.ProductStatusInactive:
			updates["status"] = *in.Status
		default:
			return nil, validationf("invalid status: %s", *in.Status)
		}
	}
	if in.IsFeatured != nil {
		updates["is_featured"] = *in.IsFeatured
	}
	if in.IsFlagged != nil {
		updates["is_flagged"] = *in.IsFlagged
	}
	if in.IsVerified != nil {
		updates["is_verified"] = *in.IsVerified
	}

	if len(updates) == 0 {
		return product, nil
	}
	if err := s.DB.Model(product).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(id)
}

func applyListFilters(query *gorm.DB, f ListFilter) *gorm.DB {
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.Search != "" {
		term := "%" + f.Search + "%"
		query = query.Where("title LIKE ? OR description LIKE ?", term, term)
	}
	if len(f.Conditions) > 0 {
		query = query.Where("condition IN ?", f.Conditions)
	}
	if f.MinPrice != nil {
		query = query.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		query = query.Where("price <= ?", *f.MaxPrice)
	}
	return query
}

func applySort(query *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case "price_low_high":
		return query.Order("price asc, created_at desc, id desc")
	case "price_high_low":
		return query.Order("price desc, created_at desc, id desc")
	case "popular":
		return query.Order("rating desc, review_count desc, created_at desc, id desc")
	default: // newest
		return query.Order("created_at desc, id desc")
	}
}

func normalizeDealMethod(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "delivery":
		return models.DealMethodDelivery, nil
	case "meetup", "meet up":
		return models.DealMethodMeetup, nil
	}
	return "", validationf("deal_method must be either 'Delivery' or 'Meet Up'")
}

func normalizeDeliveryFields(method, deliveryTime, feeType string) (string, string, string, error) {
	if method != "" {
		method = strings.ToLower(strings.TrimSpace(method))
		if method != "own" && method != "partner" {
			return "", "", "", validationf("delivery_method must be either 'own' or 'partner'")
		}
	}
	if deliveryTime != "" {
		deliveryTime = strings.ToLower(strings.TrimSpace(deliveryTime))
		switch deliveryTime {
		case "same_day", "1_3_days", "2_5_days", "4_7_days":
		default:
			return "", "", "", validationf("delivery_time must be one of: same_day, 1_3_days, 2_5_days, 4_7_days")
		}
	}
	if feeType != "" {
		feeType = strings.ToLower(strings.TrimSpace(feeType))
		if feeType != "free" && feeType != "custom" {
			return "", "", "", validationf("delivery_fee_type must be either 'free' or 'custom'")
		}
	}
	return method, deliveryTime, feeType, nil
}

func validateImageURLs(urls []string, min int) error {
	if len(urls) < min {
		return validationf("minimum %d product images required, received %d", min, len(urls))
	}
	if len(urls) > models.MaxProductImages {
		return validationf("maximum %d images allowed per product", models.MaxProductImages)
	}
	for i, raw := range urls {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return validationf("invalid image URL at index %d: %s", i, raw)
		}
	}
	return nil
}

