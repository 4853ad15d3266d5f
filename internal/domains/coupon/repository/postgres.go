package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"plantshop-backend/internal/domains/coupon/model"
)

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) CouponRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) q(tx pgx.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.db
}

const couponColumns = `
	id, code, name, description, type,
	value, max_discount, min_order_value,
	usage_limit_total, usage_limit_per_user, usage_total,
	valid_from, valid_to,
	applicable_type, applicable_products, applicable_categories, excluded_products,
	buy_quantity, get_quantity, max_sets,
	is_active, is_automatic, stackable, first_time_only,
	version, created_by, created_at, updated_at`

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var (
		c                       model.Coupon
		products, excluded      []string
		buyQty, getQty, maxSets *int
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Name, &c.Description, &c.Type,
		&c.Value, &c.MaxDiscount, &c.MinOrderValue,
		&c.UsageLimit.Total, &c.UsageLimit.PerUser, &c.UsageCount.Total,
		&c.ValidFrom, &c.ValidTo,
		&c.ApplicableProducts.Type, &products, &c.ApplicableProducts.Categories, &excluded,
		&buyQty, &getQty, &maxSets,
		&c.IsActive, &c.IsAutomatic, &c.Stackable, &c.FirstTimeOnly,
		&c.Version, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if c.ApplicableProducts.Products, err = parseIDs(products); err != nil {
		return nil, fmt.Errorf("coupon %s applicable_products: %w", c.ID, err)
	}
	if c.ApplicableProducts.ExcludedProducts, err = parseIDs(excluded); err != nil {
		return nil, fmt.Errorf("coupon %s excluded_products: %w", c.ID, err)
	}
	if buyQty != nil && getQty != nil && maxSets != nil {
		c.BuyXGetY = &model.BuyXGetY{BuyQuantity: *buyQty, GetQuantity: *getQty, MaxSets: *maxSets}
	}
	return &c, nil
}

func collectCoupons(rows pgx.Rows) ([]*model.Coupon, error) {
	defer rows.Close()

	coupons := []*model.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func bxgyArgs(rule *model.BuyXGetY) (buy, get, sets *int) {
	if rule == nil {
		return nil, nil, nil
	}
	return &rule.BuyQuantity, &rule.GetQuantity, &rule.MaxSets
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// -------------------------------------------------------------------
// READ OPERATIONS
// -------------------------------------------------------------------

func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	c, err := scanCoupon(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrCouponNotFound
		}
		return nil, fmt.Errorf("find coupon by id: %w", err)
	}
	return c, nil
}

// FindByCode expects an already normalized code.
func (r *PostgresRepository) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	c, err := scanCoupon(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrCouponNotFound
		}
		return nil, fmt.Errorf("find coupon by code: %w", err)
	}
	return c, nil
}

// ListActive returns coupons that are currently valid at the given instant.
func (r *PostgresRepository) ListActive(ctx context.Context, at time.Time) ([]*model.Coupon, error) {
	query := `
		SELECT ` + couponColumns + `
		FROM coupons
		WHERE is_active = TRUE
		  AND valid_from <= $1
		  AND valid_to >= $1
		  AND (usage_limit_total IS NULL OR usage_total < usage_limit_total)
		ORDER BY valid_to ASC`

	rows, err := r.db.Query(ctx, query, at)
	if err != nil {
		return nil, fmt.Errorf("list active coupons: %w", err)
	}
	coupons, err := collectCoupons(rows)
	if err != nil {
		return nil, fmt.Errorf("scan active coupons: %w", err)
	}
	return coupons, nil
}

func buildFilter(filter model.ListCouponsFilter) (string, []interface{}) {
	whereClauses := []string{}
	args := []interface{}{}
	argIndex := 1

	if filter.IsActive != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("is_active = $%d", argIndex))
		args = append(args, *filter.IsActive)
		argIndex++
	}
	if filter.Type != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("type = $%d", argIndex))
		args = append(args, filter.Type)
		argIndex++
	}
	if filter.Search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("(code LIKE $%d OR UPPER(name) LIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+filter.Search+"%")
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = "WHERE " + strings.Join(whereClauses, " AND ")
	}
	return whereSQL, args
}

// List returns one page of coupons plus the total matching the filter.
func (r *PostgresRepository) List(ctx context.Context, filter model.ListCouponsFilter) ([]*model.Coupon, int, error) {
	whereSQL, args := buildFilter(filter)
	argIndex := len(args) + 1

	query := fmt.Sprintf(`
		SELECT %s
		FROM coupons
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, couponColumns, whereSQL, argIndex, argIndex+1)

	rows, err := r.db.Query(ctx, query, append(args, filter.Limit, filter.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}
	coupons, err := collectCoupons(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("scan coupons: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM coupons %s", whereSQL)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count coupons: %w", err)
	}

	return coupons, total, nil
}

// ListForExport returns every coupon matching the filter, ignoring pagination.
func (r *PostgresRepository) ListForExport(ctx context.Context, filter model.ListCouponsFilter) ([]*model.Coupon, error) {
	whereSQL, args := buildFilter(filter)
	query := fmt.Sprintf(`SELECT %s FROM coupons %s ORDER BY code ASC`, couponColumns, whereSQL)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("export coupons: %w", err)
	}
	coupons, err := collectCoupons(rows)
	if err != nil {
		return nil, fmt.Errorf("scan exported coupons: %w", err)
	}
	return coupons, nil
}

// -------------------------------------------------------------------
// WRITE OPERATIONS
// -------------------------------------------------------------------

func (r *PostgresRepository) Create(ctx context.Context, c *model.Coupon) error {
	buy, get, sets := bxgyArgs(c.BuyXGetY)

	query := `
		INSERT INTO coupons (
			code, name, description, type,
			value, max_discount, min_order_value,
			usage_limit_total, usage_limit_per_user,
			valid_from, valid_to,
			applicable_type, applicable_products, applicable_categories, excluded_products,
			buy_quantity, get_quantity, max_sets,
			is_active, is_automatic, stackable, first_time_only,
			created_by
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23
		)
		RETURNING id, usage_total, version, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		c.Code, c.Name, c.Description, c.Type,
		c.Value, c.MaxDiscount, c.MinOrderValue,
		c.UsageLimit.Total, c.UsageLimit.PerUser,
		c.ValidFrom, c.ValidTo,
		c.ApplicableProducts.Type,
		pq.Array(idStrings(c.ApplicableProducts.Products)),
		pq.Array(nonNilStrings(c.ApplicableProducts.Categories)),
		pq.Array(idStrings(c.ApplicableProducts.ExcludedProducts)),
		buy, get, sets,
		c.IsActive, c.IsAutomatic, c.Stackable, c.FirstTimeOnly,
		c.CreatedBy,
	).Scan(&c.ID, &c.UsageCount.Total, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrDuplicateCode
		}
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}

// Update writes every editable column guarded by the version the caller read.
// usage_total is never written here. On success c.Version is bumped.
func (r *PostgresRepository) Update(ctx context.Context, c *model.Coupon) error {
	buy, get, sets := bxgyArgs(c.BuyXGetY)

	query := `
		UPDATE coupons
		SET code = $3,
			name = $4,
			description = $5,
			type = $6,
			value = $7,
			max_discount = $8,
			min_order_value = $9,
			usage_limit_total = $10,
			usage_limit_per_user = $11,
			valid_from = $12,
			valid_to = $13,
			applicable_type = $14,
			applicable_products = $15,
			applicable_categories = $16,
			excluded_products = $17,
			buy_quantity = $18,
			get_quantity = $19,
			max_sets = $20,
			is_active = $21,
			is_automatic = $22,
			stackable = $23,
			first_time_only = $24,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`

	err := r.db.QueryRow(ctx, query,
		c.ID, c.Version,
		c.Code, c.Name, c.Description, c.Type,
		c.Value, c.MaxDiscount, c.MinOrderValue,
		c.UsageLimit.Total, c.UsageLimit.PerUser,
		c.ValidFrom, c.ValidTo,
		c.ApplicableProducts.Type,
		pq.Array(idStrings(c.ApplicableProducts.Products)),
		pq.Array(nonNilStrings(c.ApplicableProducts.Categories)),
		pq.Array(idStrings(c.ApplicableProducts.ExcludedProducts)),
		buy, get, sets,
		c.IsActive, c.IsAutomatic, c.Stackable, c.FirstTimeOnly,
	).Scan(&c.Version, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrVersionConflict
		}
		if isUniqueViolation(err) {
			return model.ErrDuplicateCode
		}
		return fmt.Errorf("update coupon: %w", err)
	}
	return nil
}

// Delete removes a coupon that has never been used.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM coupons WHERE id = $1 AND usage_total = 0`, id)
	if err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM coupons WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check coupon exists: %w", err)
		}
		if exists {
			return model.ErrCouponInUse
		}
		return model.ErrCouponNotFound
	}
	return nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// -------------------------------------------------------------------
// BULK OPERATIONS
// -------------------------------------------------------------------

func (r *PostgresRepository) SetActive(ctx context.Context, ids []uuid.UUID, active bool) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE coupons
		SET is_active = $2, version = version + 1, updated_at = NOW()
		WHERE id = ANY($1) AND is_active <> $2`, ids, active)
	if err != nil {
		return 0, fmt.Errorf("bulk set active: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteUnused deletes the unused coupons among ids and returns the ones removed.
func (r *PostgresRepository) DeleteUnused(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		DELETE FROM coupons
		WHERE id = ANY($1) AND usage_total = 0
		RETURNING id`, ids)
	if err != nil {
		return nil, fmt.Errorf("bulk delete coupons: %w", err)
	}
	deleted, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan deleted coupons: %w", err)
	}
	return deleted, nil
}

// UpdateExpiry moves valid_to for coupons whose window stays well formed.
func (r *PostgresRepository) UpdateExpiry(ctx context.Context, ids []uuid.UUID, validTo time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE coupons
		SET valid_to = $2, version = version + 1, updated_at = NOW()
		WHERE id = ANY($1) AND valid_from < $2
		RETURNING id`, ids, validTo)
	if err != nil {
		return nil, fmt.Errorf("bulk update expiry: %w", err)
	}
	updated, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan updated coupons: %w", err)
	}
	return updated, nil
}

// DeactivateExpired flips is_active off for at most limit coupons past their window.
func (r *PostgresRepository) DeactivateExpired(ctx context.Context, at time.Time, limit int) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE coupons
		SET is_active = FALSE, version = version + 1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM coupons
			WHERE is_active = TRUE AND valid_to < $1
			ORDER BY valid_to
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`, at, limit)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired coupons: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
