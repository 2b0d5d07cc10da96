package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/eazisol/Driptyard-backend/models"
	"github.com/eazisol/Driptyard-backend/services"
)

// AdminHandler exposes the moderation surface. Routes are mounted behind
// AuthMiddleware and AdminOnly; the service re-checks the role on every
// call.
type AdminHandler struct {
	DB      *gorm.DB
	Service *services.ProductService
}

func NewAdminHandler(db *gorm.DB, service *services.ProductService) *AdminHandler {
	return &AdminHandler{DB: db, Service: service}
}

// ListProducts - GET /api/admin/products
//
// Unlike the public listing, every lifecycle state is visible here.
func (h *AdminHandler) ListProducts(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user session"})
	}

	filter := services.AdminFilter{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
		Status:   c.Query("status"),
		Search:   c.Query("q"),
	}
	if raw := c.Query("flagged"); raw != "" {
		flagged := raw == "true"
		filter.Flagged = &flagged
	}

	products, total, err := h.Service.AdminList(actor, filter)
	if err != nil {
		return serviceError(c, err)
	}

	meta := models.NewPaginationMeta(filter.Page, filter.PageSize, total)
	return c.JSON(models.SuccessResponse("Products retrieved", productResponses(products), meta))
}

// AdminUpdateProductRequest toggles moderation state on a listing.
type AdminUpdateProductRequest struct {
	Status     *string `json:"status"`
	IsFeatured *bool   `json:"is_featured"`
	IsFlagged  *bool   `json:"is_flagged"`
	IsVerified *bool   `json:"is_verified"`
}

// UpdateProduct - PATCH /api/admin/products/:id
func (h *AdminHandler) UpdateProduct(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user session"})
	}
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid product id"})
	}

	var req AdminUpdateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	product, err := h.Service.AdminUpdate(actor, uint(id), services.AdminUpdateInput{
		Status:     req.Status,
		IsFeatured: req.IsFeatured,
		IsFlagged:  req.IsFlagged,
		IsVerified: req.IsVerified,
	})
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(models.SuccessResponse("Product updated", models.NewProductResponse(product, &product.Owner), nil))
}

// DeleteProduct - DELETE /api/admin/products/:id
//
// Permanently removes the row, unlike the owner-facing soft delete.
func (h *AdminHandler) DeleteProduct(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user session"})
	}
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid product id"})
	}

	if err := h.Service.HardDelete(actor, uint(id)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(models.SuccessResponse("Product deleted", nil, nil))
}

// ListUsers - GET /api/admin/users
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := c.QueryInt("page_size", 20)
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > services.MaxPageSize {
		pageSize = services.MaxPageSize
	}

	query := h.DB.Model(&models.User{})
	if q := c.Query("q"); q != "" {
		term := "%" + q + "%"
		query = query.Where("username LIKE ? OR email LIKE ? OR full_name LIKE ?", term, term, term)
	}
	if raw := c.Query("suspended"); raw != "" {
		query = query.Where("is_suspended = ?", raw == "true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch users"})
	}

	var users []models.User
	err := query.Order("created_at desc, id desc").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&users).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch users"})
	}

	meta := models.NewPaginationMeta(page, pageSize, total)
	return c.JSON(models.SuccessResponse("Users retrieved", users, meta))
}

// SuspendUser - POST /api/admin/users/:id/suspend
//
// A suspended user cannot log in; their listings stay untouched.
func (h *AdminHandler) SuspendUser(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user id"})
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	if user.IsAdmin() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Cannot suspend an admin account"})
	}

	now := time.Now()
	err = h.DB.Model(&user).Updates(map[string]interface{}{
		"is_suspended": true,
		"suspended_at": &now,
	}).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not suspend user"})
	}
	return c.JSON(models.SuccessResponse("User suspended", user, nil))
}

// UnsuspendUser - POST /api/admin/users/:id/unsuspend
func (h *AdminHandler) UnsuspendUser(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user id"})
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	err = h.DB.Model(&user).Updates(map[string]interface{}{
		"is_suspended": false,
		"suspended_at": nil,
	}).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not unsuspend user"})
	}
	return c.JSON(models.SuccessResponse("User unsuspended", user, nil))
}

// DeleteUser - DELETE /api/admin/users/:id
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user id"})
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	if user.IsAdmin() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Cannot delete an admin account"})
	}

	if err := h.DB.Delete(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not delete user"})
	}
	return c.JSON(models.SuccessResponse("User deleted", nil, nil))
}
