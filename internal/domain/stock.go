package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementKind tags a stock movement as an entry, an exit, or a manual
// adjustment against a physical count.
type MovementKind string

const (
	MovementIn     MovementKind = "in"
	MovementOut    MovementKind = "out"
	MovementAdjust MovementKind = "adjust"
)

// StockMovement is one append-only change to a product's stock. Delta is
// positive for entries, negative for exits, and after-before for adjustments.
// Rows are never updated or deleted once written.
type StockMovement struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	ProductID   uuid.UUID    `json:"product_id" db:"product_id"`
	Kind        MovementKind `json:"kind" db:"kind"`
	Delta       int          `json:"delta" db:"delta"`
	BeforeCount *int         `json:"before_count,omitempty" db:"before_count"`
	AfterCount  *int         `json:"after_count,omitempty" db:"after_count"`
	Reason      string       `json:"reason" db:"reason"`
	PerformedBy *uuid.UUID   `json:"performed_by,omitempty" db:"performed_by"`
	Seq         int64        `json:"seq" db:"seq"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}

// LedgerEntry is the financial mirror of one stock movement. The monetary
// fields are a snapshot of the product's price and coupon at the moment the
// movement was committed and never change afterwards.
type LedgerEntry struct {
	ID                 uuid.UUID        `json:"id" db:"id"`
	MovementID         uuid.UUID        `json:"movement_id" db:"movement_id"`
	ProductID          uuid.UUID        `json:"product_id" db:"product_id"`
	Kind               MovementKind     `json:"kind" db:"kind"`
	Quantity           int              `json:"quantity" db:"quantity"`
	PriceAtTransaction decimal.Decimal  `json:"price_at_transaction" db:"price_at_transaction"`
	TotalValue         decimal.Decimal  `json:"total_value" db:"total_value"`
	CouponCode         *string          `json:"coupon_code,omitempty" db:"coupon_code"`
	DiscountPercent    *decimal.Decimal `json:"discount_percent,omitempty" db:"discount_percent"`
	DiscountAmount     decimal.Decimal  `json:"discount_amount" db:"discount_amount"`
	FinalValue         decimal.Decimal  `json:"final_value" db:"final_value"`
	Note               string           `json:"note" db:"note"`
	PerformedBy        *uuid.UUID       `json:"performed_by,omitempty" db:"performed_by"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`
}

// StockValue is the live valuation of a product's current stock, computed
// from the product's current price and coupon (not from ledger snapshots).
type StockValue struct {
	Total      decimal.Decimal `json:"total"`
	Discount   decimal.Decimal `json:"discount"`
	FinalTotal decimal.Decimal `json:"final_total"`
	CouponCode *string         `json:"coupon_code,omitempty"`
}

// StockLogEntry pairs a movement with its ledger mirror for log views.
type StockLogEntry struct {
	Movement StockMovement `json:"movement"`
	Ledger   LedgerEntry   `json:"ledger"`
}
