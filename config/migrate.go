package config

import (
	"log"

	"gorm.io/gorm"

	"github.com/eazisol/Driptyard-backend/models"
)

func Migrate(db *gorm.DB) error {
	// Migrate the schema
	err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Category{},
		&models.EmailVerification{},
		&models.PendingRegistration{},
	)

	if err != nil {
		log.Printf("Failed to migrate database schema: %v", err)
		return err
	}

	log.Println("Database Migrations completed succesfully...")

	// Ensure categories are seeded even on normal migration
	SeedCategories(db)

	return err
}

func ResetAndMigrate(db *gorm.DB) error {
	// Drop all tables
	models := []interface{}{
		&models.User{},
		&models.Product{},
		&models.Category{},
		&models.EmailVerification{},
		&models.PendingRegistration{},
	}

	if err := db.Migrator().DropTable(models...); err != nil {
		log.Printf("Failed to drop tables: %v", err)
		return err
	}

	log.Println("All tables dropped successfully.")

	if err := db.AutoMigrate(models...); err != nil {
		log.Printf("Failed to auto migrate: %v", err)
		return err
	}

	SeedCategories(db)
	SeedUsers(db)

	log.Println("Database reset and migration completed successfully.")
	return nil
}
