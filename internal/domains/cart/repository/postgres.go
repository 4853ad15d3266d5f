package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"plantshop-backend/internal/domains/cart/model"
	"plantshop-backend/pkg/database"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) CartRepository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	return r.load(ctx, r.pool, userID)
}

func (r *postgresRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	query := `
		INSERT INTO carts (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return r.load(ctx, r.pool, userID)
}

func (r *postgresRepository) load(ctx context.Context, q querier, userID uuid.UUID) (*model.Cart, error) {
	query := `
		SELECT id, user_id, subtotal, total_discount, final_amount, version, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`

	var cart model.Cart
	err := q.QueryRow(ctx, query, userID).Scan(
		&cart.ID,
		&cart.UserID,
		&cart.Subtotal,
		&cart.TotalDiscount,
		&cart.FinalAmount,
		&cart.Version,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	if cart.Items, err = r.loadItems(ctx, q, cart.ID); err != nil {
		return nil, err
	}
	if cart.AppliedCoupons, err = r.loadCoupons(ctx, q, cart.ID); err != nil {
		return nil, err
	}

	// stored totals are a projection; recompute so the value handed out always matches its parts
	recomputed := model.RecomputeTotals(cart)
	return &recomputed, nil
}

func (r *postgresRepository) loadItems(ctx context.Context, q querier, cartID uuid.UUID) ([]model.CartItem, error) {
	query := `
		SELECT ci.product_id, ci.name, COALESCE(p.category, ''), ci.quantity, ci.price, ci.added_at
		FROM cart_items ci
		LEFT JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.added_at, ci.product_id
	`
	rows, err := q.Query(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart items: %w", err)
	}

	items, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.CartItem])
	if err != nil {
		return nil, fmt.Errorf("failed to scan cart items: %w", err)
	}
	return items, nil
}

func (r *postgresRepository) loadCoupons(ctx context.Context, q querier, cartID uuid.UUID) ([]model.AppliedCoupon, error) {
	query := `
		SELECT coupon_id, code, discount_amount, free_shipping, stackable, applied_at
		FROM cart_coupons
		WHERE cart_id = $1
		ORDER BY applied_at, coupon_id
	`
	rows, err := q.Query(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart coupons: %w", err)
	}

	coupons, err := pgx.CollectRows(rows, pgx.RowToStructByPos[model.AppliedCoupon])
	if err != nil {
		return nil, fmt.Errorf("failed to scan cart coupons: %w", err)
	}
	return coupons, nil
}

func (r *postgresRepository) Save(ctx context.Context, tx pgx.Tx, cart *model.Cart) error {
	if tx == nil {
		return database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
			return r.save(ctx, tx, cart)
		})
	}
	return r.save(ctx, tx, cart)
}

func (r *postgresRepository) save(ctx context.Context, q querier, cart *model.Cart) error {
	query := `
		UPDATE carts
		SET subtotal = $3, total_discount = $4, final_amount = $5,
		    version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`

	var (
		version   int
		updatedAt time.Time
	)
	err := q.QueryRow(ctx, query, cart.ID, cart.Version, cart.Subtotal, cart.TotalDiscount, cart.FinalAmount).
		Scan(&version, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrVersionConflict
		}
		return fmt.Errorf("failed to update cart: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM cart_items WHERE cart_id = $1`, cart.ID)
	batch.Queue(`DELETE FROM cart_coupons WHERE cart_id = $1`, cart.ID)
	for _, item := range cart.Items {
		batch.Queue(`
			INSERT INTO cart_items (cart_id, product_id, name, quantity, price, added_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			cart.ID, item.ProductID, item.Name, item.Quantity, item.Price, item.AddedAt)
	}
	for _, applied := range cart.AppliedCoupons {
		batch.Queue(`
			INSERT INTO cart_coupons (cart_id, coupon_id, code, discount_amount, free_shipping, stackable, applied_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			cart.ID, applied.CouponID, applied.Code, applied.DiscountAmount, applied.FreeShipping, applied.Stackable, applied.AppliedAt)
	}

	results := q.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to write cart lines: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to write cart lines: %w", err)
	}

	cart.Version = version
	cart.UpdatedAt = updatedAt
	return nil
}
