package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"plantshop-backend/internal/domains/coupon/model"
)

// GetUserUsage returns a zero usage when the user never used the coupon.
func (r *PostgresRepository) GetUserUsage(ctx context.Context, couponID, userID uuid.UUID) (*model.UserUsage, error) {
	usage := model.UserUsage{UserID: userID}
	err := r.db.QueryRow(ctx, `
		SELECT use_count, last_used_at
		FROM coupon_user_usages
		WHERE coupon_id = $1 AND user_id = $2`, couponID, userID,
	).Scan(&usage.Count, &usage.LastUsed)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get user usage: %w", err)
	}
	return &usage, nil
}

// GetUserUsages returns the user's entries for the given coupons, keyed by coupon id.
func (r *PostgresRepository) GetUserUsages(ctx context.Context, couponIDs []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]model.UserUsage, error) {
	usages := make(map[uuid.UUID]model.UserUsage, len(couponIDs))
	if len(couponIDs) == 0 {
		return usages, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT coupon_id, use_count, last_used_at
		FROM coupon_user_usages
		WHERE coupon_id = ANY($1) AND user_id = $2`, couponIDs, userID)
	if err != nil {
		return nil, fmt.Errorf("get user usages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var couponID uuid.UUID
		usage := model.UserUsage{UserID: userID}
		if err := rows.Scan(&couponID, &usage.Count, &usage.LastUsed); err != nil {
			return nil, fmt.Errorf("scan user usage: %w", err)
		}
		usages[couponID] = usage
	}
	return usages, rows.Err()
}

// ListUserUsages returns every user entry in first-use order.
func (r *PostgresRepository) ListUserUsages(ctx context.Context, couponID uuid.UUID) ([]model.UserUsage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id, use_count, last_used_at
		FROM coupon_user_usages
		WHERE coupon_id = $1
		ORDER BY first_used_at ASC`, couponID)
	if err != nil {
		return nil, fmt.Errorf("list user usages: %w", err)
	}
	defer rows.Close()

	usages := []model.UserUsage{}
	for rows.Next() {
		var u model.UserUsage
		if err := rows.Scan(&u.UserID, &u.Count, &u.LastUsed); err != nil {
			return nil, fmt.Errorf("scan user usage: %w", err)
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}

// RecordUsage commits one use of the coupon inside tx.
//
// Both counters are bumped by conditional statements, so the limit check and
// the increment are a single atomic step in the database. A zero-row result
// means a concurrent request took the last slot; the caller must roll back.
func (r *PostgresRepository) RecordUsage(ctx context.Context, tx pgx.Tx, c *model.Coupon, rec model.UsageRecord) error {
	db := r.q(tx)

	tag, err := db.Exec(ctx, `
		UPDATE coupons
		SET usage_total = usage_total + 1, updated_at = NOW()
		WHERE id = $1
		  AND (usage_limit_total IS NULL OR usage_total < usage_limit_total)`, c.ID)
	if err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUsageLimitRace
	}

	usedAt := rec.UsedAt
	if usedAt.IsZero() {
		usedAt = time.Now()
	}

	var useCount int
	err = db.QueryRow(ctx, `
		INSERT INTO coupon_user_usages (coupon_id, user_id, use_count, first_used_at, last_used_at)
		VALUES ($1, $2, 1, $3, $3)
		ON CONFLICT (coupon_id, user_id) DO UPDATE
		SET use_count = coupon_user_usages.use_count + 1,
			last_used_at = EXCLUDED.last_used_at
		WHERE coupon_user_usages.use_count < $4
		RETURNING use_count`, c.ID, rec.UserID, usedAt, c.PerUserLimit(),
	).Scan(&useCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrUserLimitRace
		}
		return fmt.Errorf("increment user usage: %w", err)
	}

	_, err = db.Exec(ctx, `
		INSERT INTO coupon_usages (coupon_id, user_id, cart_id, order_id, discount_amount, used_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, rec.UserID, rec.CartID, rec.OrderID, rec.DiscountAmount, usedAt)
	if err != nil {
		return fmt.Errorf("insert usage history: %w", err)
	}

	c.UsageCount.Total++
	setUserCount(c, rec.UserID, useCount, usedAt)
	return nil
}

func setUserCount(c *model.Coupon, userID uuid.UUID, count int, at time.Time) {
	for i := range c.UsageCount.ByUser {
		if c.UsageCount.ByUser[i].UserID == userID {
			c.UsageCount.ByUser[i].Count = count
			c.UsageCount.ByUser[i].LastUsed = at
			return
		}
	}
	c.UsageCount.ByUser = append(c.UsageCount.ByUser, model.UserUsage{UserID: userID, Count: count, LastUsed: at})
}

// -------------------------------------------------------------------
// STATS
// -------------------------------------------------------------------

func (r *PostgresRepository) GetUsageAggregate(ctx context.Context, couponID uuid.UUID) (*model.UsageAggregate, error) {
	var agg model.UsageAggregate
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT user_id),
			COALESCE(SUM(discount_amount), 0),
			COUNT(DISTINCT order_id),
			MAX(used_at)
		FROM coupon_usages
		WHERE coupon_id = $1`, couponID,
	).Scan(&agg.TotalUses, &agg.UniqueUsers, &agg.TotalDiscount, &agg.OrdersAttributed, &agg.LastUsedAt)
	if err != nil {
		return nil, fmt.Errorf("get usage aggregate: %w", err)
	}
	return &agg, nil
}

// GetDailyUsage groups history by UTC day starting at since.
func (r *PostgresRepository) GetDailyUsage(ctx context.Context, couponID uuid.UUID, since time.Time) ([]model.DailyUsage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT
			date_trunc('day', used_at AT TIME ZONE 'UTC') AS day,
			COUNT(*),
			COALESCE(SUM(discount_amount), 0)
		FROM coupon_usages
		WHERE coupon_id = $1 AND used_at >= $2
		GROUP BY day
		ORDER BY day ASC`, couponID, since)
	if err != nil {
		return nil, fmt.Errorf("get daily usage: %w", err)
	}
	defer rows.Close()

	days := []model.DailyUsage{}
	for rows.Next() {
		var d model.DailyUsage
		if err := rows.Scan(&d.Date, &d.Uses, &d.Discount); err != nil {
			return nil, fmt.Errorf("scan daily usage: %w", err)
		}
		d.Date = d.Date.UTC()
		days = append(days, d)
	}
	return days, rows.Err()
}
