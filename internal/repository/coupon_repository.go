package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"inventract/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrCouponNotFound      = errors.New("coupon not found")
	ErrCouponAlreadyExists = errors.New("coupon with this code already exists")
)

// CouponRepository defines the interface for coupon data access
type CouponRepository interface {
	Create(ctx context.Context, coupon *domain.Coupon) error
	List(ctx context.Context) ([]*domain.Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Coupon, error)
	FindByCode(ctx context.Context, code string) (*domain.Coupon, error)
	Update(ctx context.Context, coupon *domain.Coupon) error
}

type couponRepository struct {
	db *sql.DB
}

// NewCouponRepository creates a new instance of CouponRepository
func NewCouponRepository(db *sql.DB) CouponRepository {
	return &couponRepository{db: db}
}

// Create inserts a new coupon into the database using parameterized queries
func (r *couponRepository) Create(ctx context.Context, coupon *domain.Coupon) error {
	query := `
		INSERT INTO coupons (id, code, discount_percent, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		coupon.ID,
		coupon.Code,
		coupon.DiscountPercent,
		coupon.Active,
		coupon.CreatedAt,
	)

	if err != nil {
		// Unique violation on coupons_code_key
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return ErrCouponAlreadyExists
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}

	return nil
}

// List retrieves all coupons
func (r *couponRepository) List(ctx context.Context) ([]*domain.Coupon, error) {
	query := `
		SELECT id, code, discount_percent, active, created_at
		FROM coupons
		ORDER BY code ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	coupons := []*domain.Coupon{}
	for rows.Next() {
		coupon := &domain.Coupon{}
		err := rows.Scan(
			&coupon.ID,
			&coupon.Code,
			&coupon.DiscountPercent,
			&coupon.Active,
			&coupon.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, coupon)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coupons: %w", err)
	}

	return coupons, nil
}

// FindByID retrieves a coupon by ID using parameterized queries
func (r *couponRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Coupon, error) {
	query := `
		SELECT id, code, discount_percent, active, created_at
		FROM coupons
		WHERE id = $1
	`

	coupon := &domain.Coupon{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&coupon.ID,
		&coupon.Code,
		&coupon.DiscountPercent,
		&coupon.Active,
		&coupon.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to find coupon by ID: %w", err)
	}

	return coupon, nil
}

// FindByCode retrieves a coupon by its unique code
func (r *couponRepository) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := `
		SELECT id, code, discount_percent, active, created_at
		FROM coupons
		WHERE code = $1
	`

	coupon := &domain.Coupon{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&coupon.ID,
		&coupon.Code,
		&coupon.DiscountPercent,
		&coupon.Active,
		&coupon.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to find coupon by code: %w", err)
	}

	return coupon, nil
}

// Update changes the discount percent and active flag of a coupon
func (r *couponRepository) Update(ctx context.Context, coupon *domain.Coupon) error {
	query := `
		UPDATE coupons
		SET discount_percent = $2, active = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, coupon.ID, coupon.DiscountPercent, coupon.Active)
	if err != nil {
		return fmt.Errorf("failed to update coupon: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCouponNotFound
	}

	return nil
}
