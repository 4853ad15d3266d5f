// Package carttest provides an in-memory cart repository for service and handler tests.
package carttest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"plantshop-backend/internal/domains/cart/model"
)

// MemoryRepository is a concurrency safe CartRepository keeping the same
// version check as the Postgres implementation.
type MemoryRepository struct {
	mu    sync.Mutex
	carts map[uuid.UUID]*model.Cart

	// SaveErr, when set, fails every Save.
	SaveErr error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{carts: map[uuid.UUID]*model.Cart{}}
}

func normalized(c *model.Cart) *model.Cart {
	cp := c.Clone()
	if cp.Items == nil {
		cp.Items = []model.CartItem{}
	}
	if cp.AppliedCoupons == nil {
		cp.AppliedCoupons = []model.AppliedCoupon{}
	}
	return cp
}

func (r *MemoryRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[userID]
	if !ok {
		return nil, model.ErrCartNotFound
	}
	return normalized(c), nil
}

func (r *MemoryRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[userID]
	if !ok {
		now := time.Now()
		c = &model.Cart{ID: uuid.New(), UserID: userID, Version: 1, CreatedAt: now, UpdatedAt: now}
		recomputed := model.RecomputeTotals(*c)
		c = &recomputed
		r.carts[userID] = c
	}
	return normalized(c), nil
}

func (r *MemoryRepository) Save(ctx context.Context, tx pgx.Tx, cart *model.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.SaveErr != nil {
		return r.SaveErr
	}
	stored, ok := r.carts[cart.UserID]
	if !ok || stored.Version != cart.Version {
		return model.ErrVersionConflict
	}

	cart.Version++
	cart.UpdatedAt = time.Now()
	r.carts[cart.UserID] = cart.Clone()
	return nil
}

// Put stores cart as is, replacing any existing cart of the same user.
func (r *MemoryRepository) Put(cart *model.Cart) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cart.Version == 0 {
		cart.Version = 1
	}
	r.carts[cart.UserID] = cart.Clone()
}

// Snapshot captures every cart and returns a func restoring them.
func (r *MemoryRepository) Snapshot() func() {
	r.mu.Lock()
	saved := make(map[uuid.UUID]*model.Cart, len(r.carts))
	for id, c := range r.carts {
		saved[id] = c.Clone()
	}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		r.carts = saved
		r.mu.Unlock()
	}
}
