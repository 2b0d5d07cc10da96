package handlers

import (
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/eazisol/Driptyard-backend/models"
)

type UserHandler struct {
	DB       *gorm.DB
	Uploader Uploader
}

func NewUserHandler(db *gorm.DB, uploader Uploader) *UserHandler {
	return &UserHandler{DB: db, Uploader: uploader}
}

// GetMe - GET /api/me
func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user session"})
	}

	var user models.User
	if err := h.DB.First(&user, actor.UserID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	return c.JSON(models.SuccessResponse("Profile retrieved", user, nil))
}

// UpdateMeRequest carries the editable profile fields.
type UpdateMeRequest struct {
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
}

// UpdateMe - PATCH /api/me
func (h *UserHandler) UpdateMe(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user session"})
	}

	var req UpdateMeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	var user models.User
	if err := h.DB.First(&user, actor.UserID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	updates := map[string]interface{}{}
	if req.FullName != nil {
		updates["full_name"] = *req.FullName
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&user).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not update profile"})
		}
	}
	return c.JSON(models.SuccessResponse("Profile updated", user, nil))
}

// UploadAvatar - POST /api/me/avatar (multipart form, field "avatar")
func (h *UserHandler) UploadAvatar(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user session"})
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar file is required"})
	}

	urls, err := h.Uploader.UploadImages(c.Context(), []*multipart.FileHeader{file}, "avatars", actor.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var user models.User
	if err := h.DB.First(&user, actor.UserID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	if err := h.DB.Model(&user).Update("avatar_url", urls[0]).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not update avatar"})
	}
	return c.JSON(models.SuccessResponse("Avatar updated", fiber.Map{"avatar_url": urls[0]}, nil))
}

// SearchUsers - GET /api/users/search
func (h *UserHandler) SearchUsers(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query parameter 'q' is required",
		})
	}

	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user session"})
	}

	var users []models.User
	err := h.DB.Select("id, username, email, full_name, avatar_url").
		Where("(username LIKE ? OR email LIKE ?) AND id != ? AND is_suspended = ?",
			"%"+query+"%", "%"+query+"%", actor.UserID, false).
		Limit(10).
		Find(&users).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not search users",
		})
	}

	return c.JSON(models.SuccessResponse("Users retrieved", users, nil))
}
