package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eazisol/Driptyard-backend/models"
)

func adminTestApp(role interface{}) *fiber.App {
	app := fiber.New()
	app.Get("/admin", func(c *fiber.Ctx) error {
		if role != nil {
			c.Locals("role", role)
		}
		return c.Next()
	}, AdminOnly, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestAdminOnly(t *testing.T) {
	cases := []struct {
		name string
		role interface{}
		want int
	}{
		{"admin passes", models.RoleAdmin, fiber.StatusOK},
		{"regular user rejected", models.RoleUser, fiber.StatusForbidden},
		{"missing role rejected", nil, fiber.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := adminTestApp(tc.role)
			resp, err := app.Test(httptest.NewRequest("GET", "/admin", nil), -1)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestGenerateTokenRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := GenerateToken(42, models.RoleAdmin)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/me", AuthMiddleware, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user_id": c.Locals("user_id"),
			"role":    c.Locals("role"),
		})
	})

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// No token, bad token.
	resp, err = app.Test(httptest.NewRequest("GET", "/me", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
