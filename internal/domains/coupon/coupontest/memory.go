// Package coupontest provides in-memory doubles for the coupon data layer and
// its collaborators. The doubles mirror the guarded SQL of the Postgres
// repositories so service tests exercise the same limit semantics.
package coupontest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"plantshop-backend/internal/domains/coupon/model"
)

type userUsage struct {
	count     int
	firstUsed time.Time
	lastUsed  time.Time
}

type memoryState struct {
	coupons map[uuid.UUID]model.Coupon
	usages  map[uuid.UUID]map[uuid.UUID]userUsage
	history []model.UsageRecord
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		coupons: make(map[uuid.UUID]model.Coupon, len(s.coupons)),
		usages:  make(map[uuid.UUID]map[uuid.UUID]userUsage, len(s.usages)),
		history: append([]model.UsageRecord(nil), s.history...),
	}
	for id, c := range s.coupons {
		out.coupons[id] = c
	}
	for id, byUser := range s.usages {
		m := make(map[uuid.UUID]userUsage, len(byUser))
		for u, usage := range byUser {
			m[u] = usage
		}
		out.usages[id] = m
	}
	return out
}

// MemoryRepository is a concurrency safe in-memory CouponRepository.
type MemoryRepository struct {
	mu    sync.Mutex
	state memoryState

	// RecordUsageErr, when set, is returned by RecordUsage before any change.
	RecordUsageErr error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{state: memoryState{
		coupons: map[uuid.UUID]model.Coupon{},
		usages:  map[uuid.UUID]map[uuid.UUID]userUsage{},
	}}
}

// Seed stores c as is, including its usage counters.
func (r *MemoryRepository) Seed(c *model.Coupon) *model.Coupon {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Version == 0 {
		c.Version = 1
	}
	stored := *c
	stored.UsageCount.ByUser = nil
	r.state.coupons[c.ID] = stored

	for _, u := range c.UsageCount.ByUser {
		r.usagesFor(c.ID)[u.UserID] = userUsage{count: u.Count, firstUsed: u.LastUsed, lastUsed: u.LastUsed}
	}
	return c
}

// Snapshot captures the whole state and returns a func restoring it.
func (r *MemoryRepository) Snapshot() func() {
	r.mu.Lock()
	saved := r.state.clone()
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		r.state = saved
		r.mu.Unlock()
	}
}

// UsageTotal returns the stored global counter.
func (r *MemoryRepository) UsageTotal(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.coupons[id].UsageCount.Total
}

// History returns a copy of the recorded uses.
func (r *MemoryRepository) History() []model.UsageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.UsageRecord(nil), r.state.history...)
}

func (r *MemoryRepository) usagesFor(id uuid.UUID) map[uuid.UUID]userUsage {
	m, ok := r.state.usages[id]
	if !ok {
		m = map[uuid.UUID]userUsage{}
		r.state.usages[id] = m
	}
	return m
}

func copyCoupon(c model.Coupon) *model.Coupon {
	c.UsageCount.ByUser = nil
	return &c
}

func (r *MemoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.state.coupons[id]
	if !ok {
		return nil, model.ErrCouponNotFound
	}
	return copyCoupon(c), nil
}

func (r *MemoryRepository) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.state.coupons {
		if c.Code == code {
			return copyCoupon(c), nil
		}
	}
	return nil, model.ErrCouponNotFound
}

func (r *MemoryRepository) ListActive(ctx context.Context, at time.Time) ([]*model.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*model.Coupon{}
	for _, c := range r.state.coupons {
		if c.IsCurrentlyValid(at) {
			out = append(out, copyCoupon(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ValidTo.Before(out[j].ValidTo) })
	return out, nil
}

func (r *MemoryRepository) filtered(filter model.ListCouponsFilter) []*model.Coupon {
	out := []*model.Coupon{}
	for _, c := range r.state.coupons {
		if filter.IsActive != nil && c.IsActive != *filter.IsActive {
			continue
		}
		if filter.Type != "" && c.Type != filter.Type {
			continue
		}
		if filter.Search != "" &&
			!strings.Contains(c.Code, filter.Search) &&
			!strings.Contains(strings.ToUpper(c.Name), filter.Search) {
			continue
		}
		out = append(out, copyCoupon(c))
	}
	return out
}

func (r *MemoryRepository) List(ctx context.Context, filter model.ListCouponsFilter) ([]*model.Coupon, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.filtered(filter)
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].Code < all[j].Code
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	start := filter.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (r *MemoryRepository) ListForExport(ctx context.Context, filter model.ListCouponsFilter) ([]*model.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.filtered(filter)
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	return all, nil
}

func (r *MemoryRepository) codeTaken(code string, except uuid.UUID) bool {
	for id, c := range r.state.coupons {
		if id != except && c.Code == code {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) Create(ctx context.Context, c *model.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.codeTaken(c.Code, uuid.Nil) {
		return model.ErrDuplicateCode
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	c.UsageCount = model.UsageCount{}
	c.Version = 1
	c.CreatedAt, c.UpdatedAt = now, now
	r.state.coupons[c.ID] = *copyCoupon(*c)
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, c *model.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.state.coupons[c.ID]
	if !ok || stored.Version != c.Version {
		return model.ErrVersionConflict
	}
	if r.codeTaken(c.Code, c.ID) {
		return model.ErrDuplicateCode
	}

	updated := *copyCoupon(*c)
	updated.UsageCount.Total = stored.UsageCount.Total
	updated.Version = stored.Version + 1
	updated.UpdatedAt = time.Now()
	r.state.coupons[c.ID] = updated

	c.Version = updated.Version
	c.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.state.coupons[id]
	if !ok {
		return model.ErrCouponNotFound
	}
	if c.UsageCount.Total > 0 {
		return model.ErrCouponInUse
	}
	delete(r.state.coupons, id)
	delete(r.state.usages, id)
	return nil
}

func (r *MemoryRepository) SetActive(ctx context.Context, ids []uuid.UUID, active bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, id := range ids {
		c, ok := r.state.coupons[id]
		if !ok || c.IsActive == active {
			continue
		}
		c.IsActive = active
		c.Version++
		r.state.coupons[id] = c
		n++
	}
	return n, nil
}

func (r *MemoryRepository) DeleteUnused(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := []uuid.UUID{}
	for _, id := range ids {
		c, ok := r.state.coupons[id]
		if !ok || c.UsageCount.Total > 0 {
			continue
		}
		delete(r.state.coupons, id)
		deleted = append(deleted, id)
	}
	return deleted, nil
}

func (r *MemoryRepository) UpdateExpiry(ctx context.Context, ids []uuid.UUID, validTo time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := []uuid.UUID{}
	for _, id := range ids {
		c, ok := r.state.coupons[id]
		if !ok || !c.ValidFrom.Before(validTo) {
			continue
		}
		c.ValidTo = validTo
		c.Version++
		r.state.coupons[id] = c
		updated = append(updated, id)
	}
	return updated, nil
}

func (r *MemoryRepository) DeactivateExpired(ctx context.Context, at time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, c := range r.state.coupons {
		if n >= limit {
			break
		}
		if c.IsActive && c.ValidTo.Before(at) {
			c.IsActive = false
			c.Version++
			r.state.coupons[id] = c
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) GetUserUsage(ctx context.Context, couponID, userID uuid.UUID) (*model.UserUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.state.usages[couponID][userID]
	return &model.UserUsage{UserID: userID, Count: u.count, LastUsed: u.lastUsed}, nil
}

func (r *MemoryRepository) GetUserUsages(ctx context.Context, couponIDs []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]model.UserUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[uuid.UUID]model.UserUsage, len(couponIDs))
	for _, id := range couponIDs {
		if u, ok := r.state.usages[id][userID]; ok {
			out[id] = model.UserUsage{UserID: userID, Count: u.count, LastUsed: u.lastUsed}
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListUserUsages(ctx context.Context, couponID uuid.UUID) ([]model.UserUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	type entry struct {
		usage model.UserUsage
		first time.Time
	}
	entries := []entry{}
	for userID, u := range r.state.usages[couponID] {
		entries = append(entries, entry{
			usage: model.UserUsage{UserID: userID, Count: u.count, LastUsed: u.lastUsed},
			first: u.firstUsed,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].first.Before(entries[j].first) })

	out := make([]model.UserUsage, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.usage)
	}
	return out, nil
}

// RecordUsage applies the same guards as the SQL ledger: the global and the
// per-user counters only move when they are below their limits.
func (r *MemoryRepository) RecordUsage(ctx context.Context, tx pgx.Tx, c *model.Coupon, rec model.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.RecordUsageErr != nil {
		return r.RecordUsageErr
	}

	stored, ok := r.state.coupons[c.ID]
	if !ok {
		return model.ErrUsageLimitRace
	}
	if stored.UsageLimit.Total != nil && stored.UsageCount.Total >= *stored.UsageLimit.Total {
		return model.ErrUsageLimitRace
	}

	usedAt := rec.UsedAt
	if usedAt.IsZero() {
		usedAt = time.Now()
	}
	byUser := r.usagesFor(c.ID)
	u, seen := byUser[rec.UserID]
	if seen && u.count >= stored.PerUserLimit() {
		return model.ErrUserLimitRace
	}
	if !seen {
		u.firstUsed = usedAt
	}
	u.count++
	u.lastUsed = usedAt
	byUser[rec.UserID] = u

	stored.UsageCount.Total++
	r.state.coupons[c.ID] = stored
	rec.UsedAt = usedAt
	r.state.history = append(r.state.history, rec)

	c.UsageCount.Total = stored.UsageCount.Total
	found := false
	for i := range c.UsageCount.ByUser {
		if c.UsageCount.ByUser[i].UserID == rec.UserID {
			c.UsageCount.ByUser[i].Count = u.count
			c.UsageCount.ByUser[i].LastUsed = usedAt
			found = true
		}
	}
	if !found {
		c.UsageCount.ByUser = append(c.UsageCount.ByUser, model.UserUsage{UserID: rec.UserID, Count: u.count, LastUsed: usedAt})
	}
	return nil
}

func (r *MemoryRepository) GetUsageAggregate(ctx context.Context, couponID uuid.UUID) (*model.UsageAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agg := &model.UsageAggregate{TotalDiscount: decimal.Zero}
	users := map[uuid.UUID]struct{}{}
	orders := map[uuid.UUID]struct{}{}
	for _, rec := range r.state.history {
		if rec.CouponID != couponID {
			continue
		}
		agg.TotalUses++
		agg.TotalDiscount = agg.TotalDiscount.Add(rec.DiscountAmount)
		users[rec.UserID] = struct{}{}
		if rec.OrderID != nil {
			orders[*rec.OrderID] = struct{}{}
		}
		if agg.LastUsedAt == nil || rec.UsedAt.After(*agg.LastUsedAt) {
			at := rec.UsedAt
			agg.LastUsedAt = &at
		}
	}
	agg.UniqueUsers = len(users)
	agg.OrdersAttributed = len(orders)
	return agg, nil
}

func (r *MemoryRepository) GetDailyUsage(ctx context.Context, couponID uuid.UUID, since time.Time) ([]model.DailyUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byDay := map[time.Time]*model.DailyUsage{}
	for _, rec := range r.state.history {
		if rec.CouponID != couponID || rec.UsedAt.Before(since) {
			continue
		}
		day := rec.UsedAt.UTC().Truncate(24 * time.Hour)
		d, ok := byDay[day]
		if !ok {
			d = &model.DailyUsage{Date: day, Discount: decimal.Zero}
			byDay[day] = d
		}
		d.Uses++
		d.Discount = d.Discount.Add(rec.DiscountAmount)
	}

	out := make([]model.DailyUsage, 0, len(byDay))
	for _, d := range byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
