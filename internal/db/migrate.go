package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&models.User{}, &models.RefreshToken{}, &models.Product{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func SampleProducts() []models.Product {
	return []models.Product{
		{Name: "Sample Product 1", Description: "This is a sample product", Price: 29.99, Stock: 100, Category: "Electronics"},
		{Name: "Sample Product 2", Description: "Another sample product", Price: 49.99, Stock: 50, Category: "Books"},
	}
}

// Seed inserts the sample products into an empty catalog and reports how many rows it added.
func Seed(ctx context.Context, db *gorm.DB) (int, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("seed count: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	products := SampleProducts()
	if err := db.WithContext(ctx).Create(&products).Error; err != nil {
		return 0, fmt.Errorf("seed insert: %w", err)
	}
	return len(products), nil
}
