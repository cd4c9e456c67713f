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
	ErrInvalidPrice    = errors.New("price must not be negative")
	ErrInvalidDiscount = errors.New("discount percent must be between 0 and 100")
	ErrInvalidCategory = errors.New("unknown product category")
)

// ProductWithStock carries a product together with its derived stock and
// live valuation
type ProductWithStock struct {
	Product      *domain.Product    `json:"product"`
	CurrentStock int                `json:"current_stock"`
	Value        *domain.StockValue `json:"total_value"`
}

// CatalogService defines product and coupon management
type CatalogService interface {
	CreateProduct(ctx context.Context, name, sku, description string, price decimal.Decimal, category string, couponID *uuid.UUID) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, name, sku, description string, price decimal.Decimal, category string, couponID *uuid.UUID) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetProductWithStock(ctx context.Context, id uuid.UUID) (*ProductWithStock, error)
	ListProducts(ctx context.Context, category *string, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error)
	SearchProducts(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error)

	CreateCoupon(ctx context.Context, code string, discountPercent decimal.Decimal, active bool) (*domain.Coupon, error)
	UpdateCoupon(ctx context.Context, id uuid.UUID, discountPercent decimal.Decimal, active bool) (*domain.Coupon, error)
	ListCoupons(ctx context.Context) ([]*domain.Coupon, error)
}

type catalogService struct {
	productRepo repository.ProductRepository
	couponRepo  repository.CouponRepository
	stockRepo   repository.StockRepository
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	productRepo repository.ProductRepository,
	couponRepo repository.CouponRepository,
	stockRepo repository.StockRepository,
) CatalogService {
	return &catalogService{
		productRepo: productRepo,
		couponRepo:  couponRepo,
		stockRepo:   stockRepo,
	}
}

// CreateProduct validates and creates a catalog product
func (s *catalogService) CreateProduct(ctx context.Context, name, sku, description string, price decimal.Decimal, category string, couponID *uuid.UUID) (*domain.Product, error) {
	if err := s.validateProduct(ctx, price, category, couponID); err != nil {
		return nil, err
	}

	product := &domain.Product{
		ID:          uuid.New(),
		Name:        name,
		SKU:         sku,
		Description: description,
		Price:       price.Round(2),
		Category:    category,
		CouponID:    couponID,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	// Reload so the coupon relation comes back populated
	return s.productRepo.FindByID(ctx, product.ID)
}

// UpdateProduct validates and applies a catalog edit. Edits never touch
// existing ledger snapshots.
func (s *catalogService) UpdateProduct(ctx context.Context, id uuid.UUID, name, sku, description string, price decimal.Decimal, category string, couponID *uuid.UUID) (*domain.Product, error) {
	if err := s.validateProduct(ctx, price, category, couponID); err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	product.Name = name
	product.SKU = sku
	product.Description = description
	product.Price = price.Round(2)
	product.Category = category
	product.CouponID = couponID
	product.UpdatedAt = time.Now()

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	return s.productRepo.FindByID(ctx, id)
}

// DeleteProduct removes a product along with its movements and ledger
// entries (cascade). Audit history for the product is gone after this.
func (s *catalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.productRepo.Delete(ctx, id)
}

// GetProduct retrieves a product by ID
func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

// GetProductWithStock retrieves a product with its derived stock and live
// valuation attached
func (s *catalogService) GetProductWithStock(ctx context.Context, id uuid.UUID) (*ProductWithStock, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	stock, err := s.stockRepo.CurrentStock(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ProductWithStock{
		Product:      product,
		CurrentStock: stock,
		Value:        liveValue(stock, product),
	}, nil
}

// ListProducts retrieves products with optional category filter
func (s *catalogService) ListProducts(ctx context.Context, category *string, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	if category != nil && !domain.ValidCategory(*category) {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidCategory, *category)
	}
	return s.productRepo.List(ctx, category, page, pageSize, sortBy, sortOrder)
}

// SearchProducts searches products by name, SKU, or description
func (s *catalogService) SearchProducts(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	return s.productRepo.Search(ctx, query, page, pageSize)
}

// CreateCoupon validates and creates a coupon
func (s *catalogService) CreateCoupon(ctx context.Context, code string, discountPercent decimal.Decimal, active bool) (*domain.Coupon, error) {
	if err := validateDiscount(discountPercent); err != nil {
		return nil, err
	}

	coupon := &domain.Coupon{
		ID:              uuid.New(),
		Code:            code,
		DiscountPercent: discountPercent.Round(2),
		Active:          active,
		CreatedAt:       time.Now(),
	}

	if err := s.couponRepo.Create(ctx, coupon); err != nil {
		return nil, err
	}

	return coupon, nil
}

// UpdateCoupon changes a coupon's discount and active flag. Products keep
// referencing it; only future snapshots see the new values.
func (s *catalogService) UpdateCoupon(ctx context.Context, id uuid.UUID, discountPercent decimal.Decimal, active bool) (*domain.Coupon, error) {
	if err := validateDiscount(discountPercent); err != nil {
		return nil, err
	}

	coupon, err := s.couponRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	coupon.DiscountPercent = discountPercent.Round(2)
	coupon.Active = active

	if err := s.couponRepo.Update(ctx, coupon); err != nil {
		return nil, err
	}

	return coupon, nil
}

// ListCoupons retrieves all coupons
func (s *catalogService) ListCoupons(ctx context.Context) ([]*domain.Coupon, error) {
	return s.couponRepo.List(ctx)
}

func (s *catalogService) validateProduct(ctx context.Context, price decimal.Decimal, category string, couponID *uuid.UUID) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}
	if !domain.ValidCategory(category) {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	if couponID != nil {
		if _, err := s.couponRepo.FindByID(ctx, *couponID); err != nil {
			return err
		}
	}
	return nil
}

func validateDiscount(discountPercent decimal.Decimal) error {
	if discountPercent.IsNegative() || discountPercent.GreaterThan(oneHundred) {
		return fmt.Errorf("%w: %s", ErrInvalidDiscount, discountPercent)
	}
	return nil
}
