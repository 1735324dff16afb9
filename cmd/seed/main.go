package main

import (
	"fmt"
	"time"

	"github.com/bazaar-next/internal/config"
	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/models"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 演示用户
	users := []struct {
		Email       string
		Password    string
		DisplayName string
	}{
		{Email: "alice@example.com", Password: "alice-demo-password", DisplayName: "Alice"},
		{Email: "bob@example.com", Password: "bob-demo-password", DisplayName: "Bob"},
	}
	for _, u := range users {
		var existing models.User
		if err := models.DB.Where("email = ?", u.Email).First(&existing).Error; err != nil {
			user := models.User{Email: u.Email, DisplayName: u.DisplayName, Status: constants.UserStatusActive}
			if err := user.SetPassword(u.Password); err != nil {
				stdLog.Printf("Failed to hash password for %s: %v", u.Email, err)
				continue
			}
			if err := models.DB.Create(&user).Error; err != nil {
				stdLog.Printf("Failed to create user %s: %v", u.Email, err)
			} else {
				stdLog.Printf("Created user: %s", u.Email)
			}
		} else {
			stdLog.Printf("User already exists: %s", u.Email)
		}
	}

	// 演示地址
	var alice models.User
	if err := models.DB.Where("email = ?", "alice@example.com").First(&alice).Error; err == nil {
		var count int64
		models.DB.Model(&models.Address{}).Where("user_id = ?", alice.ID).Count(&count)
		if count == 0 {
			address := models.Address{
				UserID:     alice.ID,
				FullName:   "Alice Zhang",
				Phone:      "+1-202-555-0101",
				Line1:      "100 Market Street",
				City:       "San Francisco",
				State:      "CA",
				PostalCode: "94105",
				Country:    "US",
				IsDefault:  true,
			}
			if err := models.DB.Create(&address).Error; err != nil {
				stdLog.Printf("Failed to create address: %v", err)
			} else {
				stdLog.Printf("Created default address for %s", alice.Email)
			}
		}
	}

	// 演示商品与变体
	products := []models.Product{
		{
			Slug:          "wireless-earphones",
			Name:          "Wireless Bluetooth Earphones",
			SKU:           "SKU-EARPHONE",
			Description:   "High quality sound, long battery life, comfortable to wear",
			PriceAmount:   models.NewMoneyFromDecimal(decimal.NewFromFloat(99.99)),
			Images:        models.StringArray([]string{"https://images.unsplash.com/photo-1590658268037-6bf12165a8df?w=800"}),
			TrackQuantity: true,
			Quantity:      120,
			IsActive:      true,
		},
		{
			Slug:          "smart-watch",
			Name:          "Smart Watch",
			SKU:           "SKU-WATCH",
			Description:   "Health monitoring, fitness tracking, message notifications",
			PriceAmount:   models.NewMoneyFromDecimal(decimal.NewFromFloat(199.99)),
			Images:        models.StringArray([]string{"https://images.unsplash.com/photo-1579586337278-3befd40fd17a?w=800"}),
			TrackQuantity: true,
			Quantity:      45,
			IsActive:      true,
		},
		{
			Slug:          "power-bank",
			Name:          "Portable Power Bank",
			SKU:           "SKU-POWERBANK",
			Description:   "High capacity, fast charging, multi-device compatible",
			PriceAmount:   models.NewMoneyFromDecimal(decimal.NewFromFloat(49.99)),
			Images:        models.StringArray([]string{"https://images.unsplash.com/photo-1609091839311-d5365f9ff1c5?w=800"}),
			TrackQuantity: false,
			IsActive:      true,
		},
		{
			Slug:          "demo-sold-out",
			Name:          "Demo Product - Sold Out",
			SKU:           "SKU-SOLDOUT",
			Description:   "For out-of-stock checkout demo",
			PriceAmount:   models.NewMoneyFromDecimal(decimal.NewFromFloat(29.90)),
			TrackQuantity: true,
			Quantity:      0,
			IsActive:      true,
		},
	}

	for _, prod := range products {
		var existing models.Product
		if err := models.DB.Where("slug = ?", prod.Slug).First(&existing).Error; err != nil {
			if err := models.DB.Create(&prod).Error; err != nil {
				stdLog.Printf("Failed to create product %s: %v", prod.Slug, err)
			} else {
				stdLog.Printf("Created product: %s", prod.Slug)
			}
		} else {
			existing.Name = prod.Name
			existing.Description = prod.Description
			existing.PriceAmount = prod.PriceAmount
			existing.Images = prod.Images
			existing.TrackQuantity = prod.TrackQuantity
			existing.Quantity = prod.Quantity
			existing.IsActive = prod.IsActive
			if err := models.DB.Save(&existing).Error; err != nil {
				stdLog.Printf("Failed to update product %s: %v", prod.Slug, err)
			} else {
				stdLog.Printf("Updated product: %s", prod.Slug)
			}
		}
	}

	// 智能手表的颜色变体
	var watch models.Product
	if err := models.DB.Where("slug = ?", "smart-watch").First(&watch).Error; err == nil {
		variants := []models.ProductVariant{
			{ProductID: watch.ID, Name: "Black", SKU: "SKU-WATCH-BLK", TrackQuantity: true, Quantity: 30, IsActive: true},
			{ProductID: watch.ID, Name: "Silver", SKU: "SKU-WATCH-SLV", PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromFloat(219.99)), TrackQuantity: true, Quantity: 15, IsActive: true},
		}
		for _, variant := range variants {
			var existing models.ProductVariant
			if err := models.DB.Where("sku = ?", variant.SKU).First(&existing).Error; err != nil {
				if err := models.DB.Create(&variant).Error; err != nil {
					stdLog.Printf("Failed to create variant %s: %v", variant.SKU, err)
				} else {
					stdLog.Printf("Created variant: %s", variant.SKU)
				}
			} else {
				existing.Name = variant.Name
				existing.PriceAmount = variant.PriceAmount
				existing.TrackQuantity = variant.TrackQuantity
				existing.Quantity = variant.Quantity
				existing.IsActive = variant.IsActive
				if err := models.DB.Save(&existing).Error; err != nil {
					stdLog.Printf("Failed to update variant %s: %v", variant.SKU, err)
				}
			}
		}
	}

	// 演示优惠券
	now := time.Now()
	saveStart := now.Add(-24 * time.Hour)
	saveEnd := now.AddDate(0, 3, 0)
	coupons := []models.Coupon{
		{
			Code:            "SAVE10",
			Description:     "10% off, capped at 40",
			Type:            constants.CouponTypePercentage,
			Value:           models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
			MinimumAmount:   models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
			MaximumDiscount: models.NewMoneyFromDecimal(decimal.NewFromInt(40)),
			UsageLimit:      1000,
			PerUserLimit:    1,
			StartsAt:        &saveStart,
			EndsAt:          &saveEnd,
			IsActive:        true,
		},
		{
			Code:          "WELCOME20",
			Description:   "Fixed 20 off first purchase",
			Type:          constants.CouponTypeFixed,
			Value:         models.NewMoneyFromDecimal(decimal.NewFromInt(20)),
			MinimumAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
			PerUserLimit:  1,
			StartsAt:      &saveStart,
			IsActive:      true,
		},
	}
	for _, coupon := range coupons {
		var existing models.Coupon
		if err := models.DB.Where("code = ?", coupon.Code).First(&existing).Error; err != nil {
			if err := models.DB.Create(&coupon).Error; err != nil {
				stdLog.Printf("Failed to create coupon %s: %v", coupon.Code, err)
			} else {
				stdLog.Printf("Created coupon: %s", coupon.Code)
			}
		} else {
			stdLog.Printf("Coupon already exists: %s", coupon.Code)
		}
	}

	fmt.Println("\n✅ Test data created successfully!")
	fmt.Println("Summary:")
	fmt.Println("- 2 Users (alice, bob)")
	fmt.Println("- 1 Default address")
	fmt.Println("- 4 Products (1 untracked, 1 sold out)")
	fmt.Println("- 2 Watch variants")
	fmt.Println("- 2 Coupons (SAVE10, WELCOME20)")
}
