package config

import (
	"log"

	"gorm.io/gorm"

	"github.com/eazisol/Driptyard-backend/models"
	"github.com/eazisol/Driptyard-backend/utils"
)

func SeedCategories(db *gorm.DB) {
	categories := []models.Category{
		{Name: "Fashion", Slug: "fashion"},
		{Name: "Electronics", Slug: "electronics"},
		{Name: "Home & Living", Slug: "home-living"},
		{Name: "Sports", Slug: "sports"},
		{Name: "Collectibles", Slug: "collectibles"},
		{Name: "Books", Slug: "books"},
	}

	for _, category := range categories {
		var existing models.Category
		if err := db.Where("slug = ?", category.Slug).First(&existing).Error; err == gorm.ErrRecordNotFound {
			if err := db.Create(&category).Error; err != nil {
				log.Printf("Failed to seed category %s: %v", category.Name, err)
			}
		}
	}
}

func SeedUsers(db *gorm.DB) {
	log.Println("🌱 Seeding users...")

	password, _ := utils.HashPassword("password123")

	users := []models.User{
		{
			Username:   "admin",
			Email:      "admin@driptyard.com",
			Password:   password,
			FullName:   "Platform Admin",
			Role:       models.RoleAdmin,
			IsVerified: true,
		},
		{
			Username:   "seller1",
			Email:      "seller1@example.com",
			Password:   password,
			FullName:   "Seller One",
			Role:       models.RoleUser,
			IsVerified: true,
		},
	}

	for _, user := range users {
		var existingUser models.User
		if err := db.Where("email = ?", user.Email).First(&existingUser).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				if err := db.Create(&user).Error; err != nil {
					log.Printf("Failed to seed user %s: %v", user.Username, err)
				} else {
					log.Printf("User seeded: %s (ID: %d)", user.Username, user.ID)
				}
			}
		} else {
			log.Printf("User already exists: %s", user.Username)
		}
	}

	log.Println("✅ Seeding complete.")
}
