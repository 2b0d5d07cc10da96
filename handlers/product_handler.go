package handlers

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/eazisol/Driptyard-backend/models"
	"github.com/eazisol/Driptyard-backend/services"
)

type ProductHandler struct {
	Service  *services.ProductService
	Uploader Uploader
}

func NewProductHandler(service *services.ProductService, uploader Uploader) *ProductHandler {
	return &ProductHandler{Service: service, Uploader: uploader}
}

// CreateProduct - POST /api/products (multipart form)
//
// Images are uploaded first so the service receives durable URLs; the
// listing starts in pending_verification until the emailed code is
// confirmed.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user session"})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Expected multipart form data"})
	}

	files := form.File["images"]
	if len(files) < models.MinProductImages || len(files) > models.MaxProductImages {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Between " + strconv.Itoa(models.MinProductImages) + " and " + strconv.Itoa(models.MaxProductImages) + " images are required",
		})
	}

	urls, err := h.Uploader.UploadImages(c.Context(), files, "products", actor.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	in := createInputFromForm(c)
	in.ImageURLs = urls

	product, err := h.Service.Create(actor, in)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.SuccessResponse(
		"Product created. Check your email for the verification code.",
		models.NewProductResponse(product, &product.Owner),
		nil,
	))
}

// GetAllProducts - GET /api/products
func (h *ProductHandler) GetAllProducts(c *fiber.Ctx) error {
	filter := listFilterFromQuery(c)

	products, total, err := h.Service.List(filter)
	if err != nil {
		return serviceError(c, err)
	}

	meta := models.NewPaginationMeta(filter.Page, filter.PageSize, total)
	return c.JSON(models.SuccessResponse("Products retrieved", productResponses(products), meta))
}

// GetFeaturedProducts - GET /api/products/featured
func (h *ProductHandler) GetFeaturedProducts(c *fiber.Ctx) error {
	filter := listFilterFromQuery(c)
	filter.FeaturedOnly = true

	products, total, err := h.Service.List(filter)
	if err != nil {
		return serviceError(c, err)
	}

	meta := models.NewPaginationMeta(filter.Page, filter.PageSize, total)
	return c.JSON(models.SuccessResponse("Featured products retrieved", productResponses(products), meta))
}

// GetRecommendedProducts - GET /api/products/recommended
//
// The non-featured slice of the catalog, most popular first.
func (h *ProductHandler) GetRecommendedProducts(c *fiber.Ctx) error {
	filter := listFilterFromQuery(c)
	filter.ExcludeFeatured = true
	if filter.Sort == "" {
		filter.Sort = "popular"
	}

	products, total, err := h.Service.List(filter)
	if err != nil {
		return serviceError(c, err)
	}

	meta := models.NewPaginationMeta(filter.Page, filter.PageSize, total)
	return c.JSON(models.SuccessResponse("Recommended products retrieved", productResponses(products), meta))
}

// GetProduct - GET /api/products/:id
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid product id"})
	}

	product, err := h.Service.Get(uint(id))
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(models.SuccessResponse("Product retrieved", models.NewProductResponse(product, &product.Owner), nil))
}

// GetMyProducts - GET /api/my-products
func (h *ProductHandler) GetMyProducts(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user session"})
	}

	filter := services.OwnFilter{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
		Status:   c.Query("status"),
		Search:   c.Query("q"),
	}

	products, total, err := h.Service.ListMine(actor, filter)
	if err != nil {
		return serviceError(c, err)
	}

	meta := models.NewPaginationMeta(filter.Page, filter.PageSize, total)
	return c.JSON(models.SuccessResponse("Your products retrieved", productResponses(products), meta))
}

// UpdateProductRequest carries the owner-editable fields. Only the keys
// present in the body are applied.
type UpdateProductRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Price       *string `json:"price"`
	Category    *string `json:"category"`
	Condition   *string `json:"condition"`

	Brand        *string  `json:"brand"`
	Model        *string  `json:"model"`
	Designer     *string  `json:"designer"`
	Size         *string  `json:"size"`
	ProductStyle *string  `json:"product_style"`
	Colors       []string `json:"colors"`
	Tags         []string `json:"tags"`

	MeetupDate     *string `json:"meetup_date"`
	MeetupLocation *string `json:"meetup_location"`
	MeetupTime     *string `json:"meetup_time"`

	StockQuantity *int `json:"stock_quantity"`
}

// UpdateProduct - PATCH /api/products/:id
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user session"})
	}
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid product id"})
	}

	var req UpdateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	product, err := h.Service.Update(actor, uint(id), services.UpdateProductInput{
		Title:          req.Title,
		Description:    req.Description,
		Price:          req.Price,
		Category:       req.Category,
		Condition:      req.Condition,
		Brand:          req.Brand,
		Model:          req.Model,
		Designer:       req.Designer,
		Size:           req.Size,
		ProductStyle:   req.ProductStyle,
		Colors:         req.Colors,
		Tags:           req.Tags,
		MeetupDate:     req.MeetupDate,
		MeetupLocation: req.MeetupLocation,
		MeetupTime:     req.MeetupTime,
		StockQuantity:  req.StockQuantity,
	})
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(models.SuccessResponse("Product updated", models.NewProductResponse(product, &product.Owner), nil))
}

// AddProductImages - POST /api/products/:id/images (multipart form)
func (h *ProductHandler) AddProductImages(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user session"})
	}
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid product id"})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Expected multipart form data"})
	}
	files := form.File["images"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No images provided"})
	}

	urls, err := h.Uploader.UploadImages(c.Context(), files, "products", actor.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	product, err := h.Service.AddImages(actor, uint(id), urls)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(models.SuccessResponse("Images added", models.NewProductResponse(product, &product.Owner), nil))
}

// SendVerification - POST /api/products/:id/send-verification
func (h *ProductHandler) SendVerification(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user session"})
	}
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid product id"})
	}

	if err := h.Service.SendVerification(actor, uint(id)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(models.SuccessResponse("Verification code sent", nil, nil))
}

// VerifyProduct - POST /api/products/:id/verify
func (h *ProductHandler) VerifyProduct(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user session"})
	}
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid product id"})
	}

	var req struct {
		Code string `json:"verification_code"`
	}
	if err := c.BodyParser(&req); err != nil || req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "verification_code is required"})
	}

	product, err := h.Service.Verify(actor, uint(id), req.Code)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(models.SuccessResponse("Product verified and activated", models.NewProductResponse(product, &product.Owner), nil))
}

// MarkProductSold - POST /api/products/:id/sold
func (h *ProductHandler) MarkProductSold(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user session"})
	}
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid product id"})
	}

	product, err := h.Service.MarkSold(actor, uint(id))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(models.SuccessResponse("Product marked as sold", models.NewProductResponse(product, &product.Owner), nil))
}

// DeleteProduct - DELETE /api/products/:id
//
// Deactivates the listing; the record stays retrievable by id.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user session"})
	}
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid product id"})
	}

	if err := h.Service.SoftDelete(actor, uint(id)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(models.SuccessResponse("Product deactivated", nil, nil))
}

func productResponses(products []models.Product) []models.ProductResponse {
	out := make([]models.ProductResponse, 0, len(products))
	for i := range products {
		out = append(out, models.NewProductResponse(&products[i], &products[i].Owner))
	}
	return out
}

func listFilterFromQuery(c *fiber.Ctx) services.ListFilter {
	filter := services.ListFilter{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
		Category: c.Query("category"),
		Search:   c.Query("q"),
		Sort:     c.Query("sort"),
	}
	if raw := c.Query("conditions"); raw != "" {
		for _, cond := range strings.Split(raw, ",") {
			if cond = strings.TrimSpace(cond); cond != "" {
				filter.Conditions = append(filter.Conditions, cond)
			}
		}
	}
	if raw := c.Query("min_price"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.MinPrice = &v
		}
	}
	if raw := c.Query("max_price"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.MaxPrice = &v
		}
	}
	return filter
}

// createInputFromForm maps the multipart fields of a create request.
// Numbers stay as strings; the service parses and validates them.
func createInputFromForm(c *fiber.Ctx) services.CreateProductInput {
	in := services.CreateProductInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Price:       c.FormValue("price"),
		Category:    c.FormValue("category"),
		Condition:   c.FormValue("condition"),
		DealMethod:  c.FormValue("deal_method"),

		MeetupDate:     c.FormValue("meetup_date"),
		MeetupLocation: c.FormValue("meetup_location"),
		MeetupTime:     c.FormValue("meetup_time"),

		Gender:       c.FormValue("gender"),
		ProductType:  c.FormValue("product_type"),
		SubCategory:  c.FormValue("sub_category"),
		Brand:        c.FormValue("brand"),
		Model:        c.FormValue("model"),
		Designer:     c.FormValue("designer"),
		SKU:          c.FormValue("sku"),
		Size:         c.FormValue("size"),
		ProductStyle: c.FormValue("product_style"),

		MeasurementChest:        c.FormValue("measurement_chest"),
		MeasurementSleeveLength: c.FormValue("measurement_sleeve_length"),
		MeasurementLength:       c.FormValue("measurement_length"),
		MeasurementHem:          c.FormValue("measurement_hem"),
		MeasurementShoulders:    c.FormValue("measurement_shoulders"),

		DeliveryMethod:   c.FormValue("delivery_method"),
		DeliveryTime:     c.FormValue("delivery_time"),
		DeliveryFee:      c.FormValue("delivery_fee"),
		DeliveryFeeType:  c.FormValue("delivery_fee_type"),
		TrackingProvided: c.FormValue("tracking_provided") == "true",
		ShippingAddress:  c.FormValue("shipping_address"),
		Location:         c.FormValue("location"),
	}

	if raw := c.FormValue("year"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			in.Year = v
		}
	}
	if raw := c.FormValue("purchase_button_enabled"); raw != "" {
		enabled := raw == "true"
		in.PurchaseButtonEnabled = &enabled
	}
	if raw := c.FormValue("stock_quantity"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			in.StockQuantity = &v
		}
	}
	if raw := c.FormValue("colors"); raw != "" {
		in.Colors = splitOrJSONList(raw)
	}
	if raw := c.FormValue("tags"); raw != "" {
		in.Tags = splitOrJSONList(raw)
	}
	if raw := c.FormValue("meetup_locations"); raw != "" {
		var locations []models.MeetupLocation
		if err := json.Unmarshal([]byte(raw), &locations); err == nil {
			in.MeetupLocations = locations
		}
	}
	return in
}

// splitOrJSONList accepts either a JSON array or a comma-separated string.
func splitOrJSONList(raw string) []string {
	if strings.HasPrefix(strings.TrimSpace(raw), "[") {
		var items []string
		if err := json.Unmarshal([]byte(raw), &items); err == nil {
			return items
		}
	}
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
