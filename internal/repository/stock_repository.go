package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inventract/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrLedgerMirror reports that a movement could not be mirrored into the
	// transaction ledger. The movement insert is rolled back with it; if the
	// rollback itself fails the returned error says so and must be treated as
	// a data-corruption signal, not swallowed.
	ErrLedgerMirror = errors.New("failed to mirror movement into transaction ledger")
)

// AppendFunc builds a movement and its ledger mirror from the product row and
// the stock derived inside the append transaction. The product row is locked
// for the duration of the transaction, so currentStock cannot move underneath
// the caller. Returning an error aborts the append with nothing persisted.
type AppendFunc func(product *domain.Product, currentStock int) (*domain.StockMovement, *domain.LedgerEntry, error)

// StockRepository defines the interface for the append-only movement store
// and its ledger mirror. Movements are never updated or deleted.
type StockRepository interface {
	// Append runs the movement pipeline in one transaction: lock the product
	// row, derive current stock, build the movement and ledger entry via fn,
	// and persist both or neither.
	Append(ctx context.Context, productID uuid.UUID, fn AppendFunc) (*domain.StockMovement, *domain.LedgerEntry, error)

	// CurrentStock derives stock by summing every movement delta for the
	// product. Reads never consult a cached counter.
	CurrentStock(ctx context.Context, productID uuid.UUID) (int, error)

	ListMovements(ctx context.Context, productID uuid.UUID) ([]*domain.StockMovement, error)
	ListLog(ctx context.Context, productID uuid.UUID) ([]*domain.StockLogEntry, error)
	FindLedgerByMovement(ctx context.Context, movementID uuid.UUID) (*domain.LedgerEntry, error)
}

type stockRepository struct {
	db *sql.DB
}

// NewStockRepository creates a new instance of StockRepository
func NewStockRepository(db *sql.DB) StockRepository {
	return &stockRepository{db: db}
}

// Append locks the product row, derives stock inside the transaction, and
// inserts the movement together with its ledger mirror. The row lock
// serializes concurrent writers on the same product, so two stock-outs can
// never both observe sufficient stock. Writers on different products do not
// contend.
func (r *stockRepository) Append(ctx context.Context, productID uuid.UUID, fn AppendFunc) (*domain.StockMovement, *domain.LedgerEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin movement transaction: %w", err)
	}
	defer tx.Rollback()

	product, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return nil, nil, err
	}

	var currentStock int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(delta), 0) FROM stock_movements WHERE product_id = $1`,
		productID,
	).Scan(&currentStock)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive current stock: %w", err)
	}

	movement, entry, err := fn(product, currentStock)
	if err != nil {
		return nil, nil, err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO stock_movements (id, product_id, kind, delta, before_count, after_count, reason, performed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`,
		movement.ID,
		movement.ProductID,
		movement.Kind,
		movement.Delta,
		movement.BeforeCount,
		movement.AfterCount,
		movement.Reason,
		movement.PerformedBy,
		movement.CreatedAt,
	).Scan(&movement.Seq)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert movement: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transaction_ledger (id, movement_id, product_id, kind, quantity,
			price_at_transaction, total_value, coupon_code, discount_percent,
			discount_amount, final_value, note, performed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		entry.ID,
		entry.MovementID,
		entry.ProductID,
		entry.Kind,
		entry.Quantity,
		entry.PriceAtTransaction,
		entry.TotalValue,
		entry.CouponCode,
		entry.DiscountPercent,
		entry.DiscountAmount,
		entry.FinalValue,
		entry.Note,
		entry.PerformedBy,
		entry.CreatedAt,
	)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return nil, nil, fmt.Errorf("%w: %v (rollback also failed: %v)", ErrLedgerMirror, err, rbErr)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrLedgerMirror, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit movement transaction: %w", err)
	}

	return movement, entry, nil
}

// CurrentStock folds every movement delta ever recorded for the product.
func (r *stockRepository) CurrentStock(ctx context.Context, productID uuid.UUID) (int, error) {
	var stock int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(delta), 0) FROM stock_movements WHERE product_id = $1`,
		productID,
	).Scan(&stock)
	if err != nil {
		return 0, fmt.Errorf("failed to derive current stock: %w", err)
	}
	return stock, nil
}

// ListMovements retrieves all movements for a product in chronological order
func (r *stockRepository) ListMovements(ctx context.Context, productID uuid.UUID) ([]*domain.StockMovement, error) {
	query := `
		SELECT id, product_id, kind, delta, before_count, after_count, reason, performed_by, seq, created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	defer rows.Close()

	movements := []*domain.StockMovement{}
	for rows.Next() {
		movement := &domain.StockMovement{}
		err := rows.Scan(
			&movement.ID,
			&movement.ProductID,
			&movement.Kind,
			&movement.Delta,
			&movement.BeforeCount,
			&movement.AfterCount,
			&movement.Reason,
			&movement.PerformedBy,
			&movement.Seq,
			&movement.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, movement)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating movements: %w", err)
	}

	return movements, nil
}

// ListLog retrieves all movements for a product merged with their ledger
// entries, ordered by sequence ascending.
func (r *stockRepository) ListLog(ctx context.Context, productID uuid.UUID) ([]*domain.StockLogEntry, error) {
	query := `
		SELECT m.id, m.product_id, m.kind, m.delta, m.before_count, m.after_count,
		       m.reason, m.performed_by, m.seq, m.created_at,
		       l.id, l.movement_id, l.product_id, l.kind, l.quantity,
		       l.price_at_transaction, l.total_value, l.coupon_code, l.discount_percent,
		       l.discount_amount, l.final_value, l.note, l.performed_by, l.created_at
		FROM stock_movements m
		JOIN transaction_ledger l ON l.movement_id = m.id
		WHERE m.product_id = $1
		ORDER BY m.seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock log: %w", err)
	}
	defer rows.Close()

	log := []*domain.StockLogEntry{}
	for rows.Next() {
		item := &domain.StockLogEntry{}
		err := rows.Scan(
			&item.Movement.ID,
			&item.Movement.ProductID,
			&item.Movement.Kind,
			&item.Movement.Delta,
			&item.Movement.BeforeCount,
			&item.Movement.AfterCount,
			&item.Movement.Reason,
			&item.Movement.PerformedBy,
			&item.Movement.Seq,
			&item.Movement.CreatedAt,
			&item.Ledger.ID,
			&item.Ledger.MovementID,
			&item.Ledger.ProductID,
			&item.Ledger.Kind,
			&item.Ledger.Quantity,
			&item.Ledger.PriceAtTransaction,
			&item.Ledger.TotalValue,
			&item.Ledger.CouponCode,
			&item.Ledger.DiscountPercent,
			&item.Ledger.DiscountAmount,
			&item.Ledger.FinalValue,
			&item.Ledger.Note,
			&item.Ledger.PerformedBy,
			&item.Ledger.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock log entry: %w", err)
		}
		log = append(log, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock log: %w", err)
	}

	return log, nil
}

// FindLedgerByMovement retrieves the ledger mirror of one movement
func (r *stockRepository) FindLedgerByMovement(ctx context.Context, movementID uuid.UUID) (*domain.LedgerEntry, error) {
	query := `
		SELECT id, movement_id, product_id, kind, quantity, price_at_transaction,
		       total_value, coupon_code, discount_percent, discount_amount,
		       final_value, note, performed_by, created_at
		FROM transaction_ledger
		WHERE movement_id = $1
	`

	entry := &domain.LedgerEntry{}
	err := r.db.QueryRowContext(ctx, query, movementID).Scan(
		&entry.ID,
		&entry.MovementID,
		&entry.ProductID,
		&entry.Kind,
		&entry.Quantity,
		&entry.PriceAtTransaction,
		&entry.TotalValue,
		&entry.CouponCode,
		&entry.DiscountPercent,
		&entry.DiscountAmount,
		&entry.FinalValue,
		&entry.Note,
		&entry.PerformedBy,
		&entry.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: no ledger entry for movement %s", ErrLedgerMirror, movementID)
		}
		return nil, fmt.Errorf("failed to find ledger entry: %w", err)
	}

	return entry, nil
}

// lockProduct reads the product row with its coupon under FOR UPDATE OF the
// product row only, so coupon rows stay unlocked for catalog edits.
func lockProduct(ctx context.Context, tx *sql.Tx, productID uuid.UUID) (*domain.Product, error) {
	query := `
		SELECT p.id, p.name, p.sku, p.description, p.price, p.category, p.coupon_id,
		       p.created_at, p.updated_at,
		       c.id, c.code, c.discount_percent, c.active, c.created_at
		FROM products p
		LEFT JOIN coupons c ON c.id = p.coupon_id
		WHERE p.id = $1
		FOR UPDATE OF p
	`

	product := &domain.Product{}

	var (
		couponID       uuid.NullUUID
		couponCode     sql.NullString
		couponDiscount decimal.NullDecimal
		couponActive   sql.NullBool
		couponCreated  sql.NullTime
	)

	err := tx.QueryRowContext(ctx, query, productID).Scan(
		&product.ID,
		&product.Name,
		&product.SKU,
		&product.Description,
		&product.Price,
		&product.Category,
		&product.CouponID,
		&product.CreatedAt,
		&product.UpdatedAt,
		&couponID,
		&couponCode,
		&couponDiscount,
		&couponActive,
		&couponCreated,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to lock product row: %w", err)
	}

	if couponID.Valid {
		product.Coupon = &domain.Coupon{
			ID:              couponID.UUID,
			Code:            couponCode.String,
			DiscountPercent: couponDiscount.Decimal,
			Active:          couponActive.Bool,
			CreatedAt:       couponCreated.Time,
		}
	}

	return product, nil
}
