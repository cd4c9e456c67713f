package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	SKU         string          `json:"sku" db:"sku"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Category    string          `json:"category" db:"category"`
	CouponID    *uuid.UUID      `json:"coupon_id,omitempty" db:"coupon_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`

	// Coupon is populated when the product row is loaded with its
	// coupon joined in; nil when the product has none.
	Coupon *Coupon `json:"coupon,omitempty" db:"-"`
}

// ActiveCoupon returns the product's coupon if one is attached and active.
func (p *Product) ActiveCoupon() *Coupon {
	if p.Coupon != nil && p.Coupon.Active {
		return p.Coupon
	}
	return nil
}

// Coupon represents a percentage discount applicable to a product
type Coupon struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	Code            string          `json:"code" db:"code"`
	DiscountPercent decimal.Decimal `json:"discount_percent" db:"discount_percent"`
	Active          bool            `json:"active" db:"active"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// Categories lists the allowed product categories.
var Categories = []string{
	"other",
	"electronics",
	"clothing",
	"home",
	"toys",
	"books",
	"sports",
	"automotive",
	"health",
	"beauty",
	"garden",
	"computers",
	"jewelry",
	"musical_instruments",
	"office_products",
	"pet_supplies",
	"tools",
	"video_games",
	"baby",
	"groceries",
	"furniture",
	"appliances",
	"clothing_shoes",
	"bags",
	"accessories",
	"watches",
	"phones",
	"tablets",
	"cameras",
	"drones",
}

// ValidCategory reports whether c is an allowed category value.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
