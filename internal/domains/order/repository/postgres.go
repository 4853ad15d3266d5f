package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"plantshop-backend/internal/domains/order/model"
)

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) OrderRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, status, total, created_at
		FROM orders
		WHERE id = $1`, id,
	).Scan(&o.ID, &o.UserID, &o.Status, &o.Total, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}
		return nil, fmt.Errorf("find order by id: %w", err)
	}
	return &o, nil
}

func (r *PostgresRepository) CountNonCancelledOrders(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM orders
		WHERE user_id = $1 AND status <> $2`, userID, model.StatusCancelled,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count non-cancelled orders: %w", err)
	}
	return count, nil
}
