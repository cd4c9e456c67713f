package repository

import (
	"context"
	"database/sql"
	"fmt"

	"inventract/internal/domain"

	"github.com/google/uuid"
)

// EditHistoryRepository defines the interface for profile edit history access
type EditHistoryRepository interface {
	Create(ctx context.Context, edit *domain.ProfileEdit) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ProfileEdit, error)
}

type editHistoryRepository struct {
	db *sql.DB
}

// NewEditHistoryRepository creates a new instance of EditHistoryRepository
func NewEditHistoryRepository(db *sql.DB) EditHistoryRepository {
	return &editHistoryRepository{db: db}
}

// Create inserts a profile edit record using parameterized queries
func (r *editHistoryRepository) Create(ctx context.Context, edit *domain.ProfileEdit) error {
	query := `
		INSERT INTO user_edit_history (id, user_id, field_changed, old_value, new_value, edited_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		edit.ID,
		edit.UserID,
		edit.FieldChanged,
		edit.OldValue,
		edit.NewValue,
		edit.EditedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create profile edit record: %w", err)
	}

	return nil
}

// ListByUser retrieves a user's profile edit trail, most recent first
func (r *editHistoryRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ProfileEdit, error) {
	query := `
		SELECT id, user_id, field_changed, old_value, new_value, edited_at
		FROM user_edit_history
		WHERE user_id = $1
		ORDER BY edited_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profile edits: %w", err)
	}
	defer rows.Close()

	edits := []*domain.ProfileEdit{}
	for rows.Next() {
		edit := &domain.ProfileEdit{}
		err := rows.Scan(
			&edit.ID,
			&edit.UserID,
			&edit.FieldChanged,
			&edit.OldValue,
			&edit.NewValue,
			&edit.EditedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile edit: %w", err)
		}
		edits = append(edits, edit)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile edits: %w", err)
	}

	return edits, nil
}
