package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"plantshop-backend/internal/domains/catalog/model"
)

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) ProductRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, name, price, category, is_active
		FROM products
		WHERE id = ANY($1) AND is_active = TRUE`, ids)
	if err != nil {
		return nil, fmt.Errorf("get products by ids: %w", err)
	}

	products, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.Product])
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	return products, nil
}
