package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/eazisol/Driptyard-backend/models"
	"github.com/eazisol/Driptyard-backend/services"
	"github.com/eazisol/Driptyard-backend/utils"
)

type AuthHandler struct {
	DB       *gorm.DB
	Verifier *services.VerificationService
}

func NewAuthHandler(db *gorm.DB, verifier *services.VerificationService) *AuthHandler {
	return &AuthHandler{DB: db, Verifier: verifier}
}

// RegisterRequest defines the payload for registration
type RegisterRequest struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName string  `json:"full_name"`
	Phone    *string `json:"phone"`
}

// LoginRequest defines the payload for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyEmailRequest carries the code submitted after registration
type VerifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"verification_code"`
}

// Register stores the submitted details as a pending registration and
// emails a verification code. The account is only created once the code
// is confirmed via VerifyEmail.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "username, email, and password are required"})
	}

	var existing models.User
	err := h.DB.Where("email = ? OR username = ?", req.Email, req.Username).First(&existing).Error
	if err == nil {
		if existing.Email == req.Email {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email already registered"})
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Username already taken"})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not register"})
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not hash password"})
	}

	// Re-registering the same address replaces the earlier pending record.
	pending := models.PendingRegistration{
		Email:    req.Email,
		Username: req.Username,
		Password: hashedPassword,
		FullName: req.FullName,
		Phone:    req.Phone,
	}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", req.Email).Delete(&models.PendingRegistration{}).Error; err != nil {
			return err
		}
		return tx.Create(&pending).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not register"})
	}

	if err := h.Verifier.SendEmailCode(req.Email); err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Registration received. Check your email for the verification code.",
		"email":   req.Email,
	})
}

// VerifyEmail checks the emailed code, creates the account from the
// pending registration, and returns a token so the user is logged in
// immediately.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	var req VerifyEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}
	if req.Email == "" || req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email and verification_code are required"})
	}

	result, err := h.Verifier.CheckEmailCode(req.Email, req.Code)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not verify email"})
	}
	switch result {
	case services.CheckInvalid:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid verification code"})
	case services.CheckExpired:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Verification code has expired. Request a new one."})
	case services.CheckExhausted:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Too many failed attempts. Request a new code."})
	}

	var pending models.PendingRegistration
	if err := h.DB.Where("email = ?", req.Email).First(&pending).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No pending registration for this email"})
	}

	user := models.User{
		Username:   pending.Username,
		Email:      pending.Email,
		Password:   pending.Password,
		FullName:   pending.FullName,
		Phone:      pending.Phone,
		Role:       models.RoleUser,
		IsVerified: true,
	}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Delete(&pending).Error
	})
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "User already exists"})
	}

	token, err := utils.GenerateToken(user.ID, user.Role)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not issue token"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":         user.ID,
			"username":   user.Username,
			"email":      user.Email,
			"role":       user.Role,
			"avatar_url": user.AvatarURL,
		},
	})
}

// ResendVerification issues a fresh registration code, superseding any
// earlier one for the address.
func (h *AuthHandler) ResendVerification(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email is required"})
	}

	var pending models.PendingRegistration
	if err := h.DB.Where("email = ?", req.Email).First(&pending).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No pending registration for this email"})
	}

	if err := h.Verifier.SendEmailCode(req.Email); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Verification code sent"})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
	}

	// Verify password
	if !utils.CheckPasswordHash(req.Password, user.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
	}

	if user.IsSuspended {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Account is suspended"})
	}

	token, err := utils.GenerateToken(user.ID, user.Role)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not login"})
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":         user.ID,
			"username":   user.Username,
			"email":      user.Email,
			"role":       user.Role,
			"avatar_url": user.AvatarURL,
		},
	})
}
