package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventract/internal/domain"
	"inventract/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInsufficientStock = errors.New("insufficient stock")
)

var oneHundred = decimal.NewFromInt(100)

// StockService runs the movement pipeline: validate the request, then append
// the movement and its ledger mirror as one atomic step. Reads always
// re-derive stock from the movement log.
type StockService interface {
	RecordStockIn(ctx context.Context, productID uuid.UUID, quantity int, reason string, performedBy *uuid.UUID) (*domain.StockMovement, *domain.LedgerEntry, error)
	RecordStockOut(ctx context.Context, productID uuid.UUID, quantity int, reason string, performedBy *uuid.UUID) (*domain.StockMovement, *domain.LedgerEntry, error)
	RecordAdjustment(ctx context.Context, productID uuid.UUID, before, after int, reason string, performedBy *uuid.UUID) (*domain.StockMovement, *domain.LedgerEntry, error)

	CurrentStock(ctx context.Context, productID uuid.UUID) (int, error)
	TotalValue(ctx context.Context, productID uuid.UUID) (*domain.StockValue, error)
	StockLog(ctx context.Context, productID uuid.UUID) ([]*domain.StockLogEntry, error)
}

type stockService struct {
	stockRepo   repository.StockRepository
	productRepo repository.ProductRepository
}

// NewStockService creates a new instance of StockService
func NewStockService(stockRepo repository.StockRepository, productRepo repository.ProductRepository) StockService {
	return &stockService{
		stockRepo:   stockRepo,
		productRepo: productRepo,
	}
}

// RecordStockIn appends a movement with a positive delta. Quantity must be
// strictly positive; the request is rejected before anything is persisted.
func (s *stockService) RecordStockIn(ctx context.Context, productID uuid.UUID, quantity int, reason string, performedBy *uuid.UUID) (*domain.StockMovement, *domain.LedgerEntry, error) {
	if quantity <= 0 {
		return nil, nil, fmt.Errorf("%w: stock-in quantity %d", ErrInvalidQuantity, quantity)
	}

	return s.stockRepo.Append(ctx, productID, func(product *domain.Product, currentStock int) (*domain.StockMovement, *domain.LedgerEntry, error) {
		movement := newMovement(productID, domain.MovementIn, quantity, reason, performedBy)
		return movement, snapshotLedger(movement, product), nil
	})
}

// RecordStockOut appends a movement with a negative delta. The sufficiency
// check runs against stock derived inside the append transaction, under the
// product row lock, so it holds at commit time.
func (s *stockService) RecordStockOut(ctx context.Context, productID uuid.UUID, quantity int, reason string, performedBy *uuid.UUID) (*domain.StockMovement, *domain.LedgerEntry, error) {
	if quantity <= 0 {
		return nil, nil, fmt.Errorf("%w: stock-out quantity %d", ErrInvalidQuantity, quantity)
	}

	return s.stockRepo.Append(ctx, productID, func(product *domain.Product, currentStock int) (*domain.StockMovement, *domain.LedgerEntry, error) {
		if currentStock-quantity < 0 {
			return nil, nil, fmt.Errorf("%w: current stock %d, requested %d", ErrInsufficientStock, currentStock, quantity)
		}
		movement := newMovement(productID, domain.MovementOut, -quantity, reason, performedBy)
		return movement, snapshotLedger(movement, product), nil
	})
}

// RecordAdjustment reconciles an observed physical count against the derived
// stock. The delta is after-before with no sign constraint: manual correction
// deliberately bypasses the stock-out sufficiency guard and may drive stock
// negative.
func (s *stockService) RecordAdjustment(ctx context.Context, productID uuid.UUID, before, after int, reason string, performedBy *uuid.UUID) (*domain.StockMovement, *domain.LedgerEntry, error) {
	return s.stockRepo.Append(ctx, productID, func(product *domain.Product, currentStock int) (*domain.StockMovement, *domain.LedgerEntry, error) {
		movement := newMovement(productID, domain.MovementAdjust, after-before, reason, performedBy)
		movement.BeforeCount = &before
		movement.AfterCount = &after
		return movement, snapshotLedger(movement, product), nil
	})
}

// CurrentStock derives stock from the movement log
func (s *stockService) CurrentStock(ctx context.Context, productID uuid.UUID) (int, error) {
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		return 0, err
	}
	return s.stockRepo.CurrentStock(ctx, productID)
}

// TotalValue computes the live valuation of the product's current stock from
// its current price and coupon, in contrast to the ledger's frozen snapshots.
func (s *stockService) TotalValue(ctx context.Context, productID uuid.UUID) (*domain.StockValue, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	stock, err := s.stockRepo.CurrentStock(ctx, productID)
	if err != nil {
		return nil, err
	}

	return liveValue(stock, product), nil
}

// StockLog returns all movements merged with their ledger entries,
// chronologically ascending
func (s *stockService) StockLog(ctx context.Context, productID uuid.UUID) ([]*domain.StockLogEntry, error) {
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.stockRepo.ListLog(ctx, productID)
}

func newMovement(productID uuid.UUID, kind domain.MovementKind, delta int, reason string, performedBy *uuid.UUID) *domain.StockMovement {
	return &domain.StockMovement{
		ID:          uuid.New(),
		ProductID:   productID,
		Kind:        kind,
		Delta:       delta,
		Reason:      reason,
		PerformedBy: performedBy,
		CreatedAt:   time.Now(),
	}
}

// snapshotLedger freezes the product's price and coupon discount into a
// ledger entry for the movement. The copied values never change afterwards,
// no matter how the catalog evolves.
func snapshotLedger(movement *domain.StockMovement, product *domain.Product) *domain.LedgerEntry {
	quantity := movement.Delta
	if quantity < 0 {
		quantity = -quantity
	}

	price := product.Price.Round(2)
	totalValue := price.Mul(decimal.NewFromInt(int64(quantity)))

	entry := &domain.LedgerEntry{
		ID:                 uuid.New(),
		MovementID:         movement.ID,
		ProductID:          product.ID,
		Kind:               movement.Kind,
		Quantity:           quantity,
		PriceAtTransaction: price,
		TotalValue:         totalValue,
		DiscountAmount:     decimal.Zero.Round(2),
		FinalValue:         totalValue,
		Note:               movement.Reason,
		PerformedBy:        movement.PerformedBy,
		CreatedAt:          movement.CreatedAt,
	}

	if coupon := product.ActiveCoupon(); coupon != nil {
		code := coupon.Code
		percent := coupon.DiscountPercent.Round(2)
		entry.CouponCode = &code
		entry.DiscountPercent = &percent
		entry.DiscountAmount = totalValue.Mul(percent).Div(oneHundred).Round(2)
		entry.FinalValue = totalValue.Sub(entry.DiscountAmount)
	}

	return entry
}

// liveValue values the current stock at the product's current price and
// coupon. Negative stock (possible via adjustments) yields a negative total.
func liveValue(stock int, product *domain.Product) *domain.StockValue {
	total := product.Price.Round(2).Mul(decimal.NewFromInt(int64(stock)))

	value := &domain.StockValue{
		Total:      total,
		Discount:   decimal.Zero.Round(2),
		FinalTotal: total,
	}

	if coupon := product.ActiveCoupon(); coupon != nil {
		code := coupon.Code
		value.CouponCode = &code
		value.Discount = total.Mul(coupon.DiscountPercent).Div(oneHundred).Round(2)
		value.FinalTotal = total.Sub(value.Discount)
	}

	return value
}
