package coupontest

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	catalogModel "plantshop-backend/internal/domains/catalog/model"
	orderModel "plantshop-backend/internal/domains/order/model"
	"plantshop-backend/pkg/database"
)

// Snapshotter is any double whose state Transactor can roll back.
type Snapshotter interface {
	Snapshot() (restore func())
}

// Transactor runs transactions one at a time and restores every participant
// when fn fails, mimicking a database rollback.
type Transactor struct {
	mu           sync.Mutex
	participants []Snapshotter

	Commits   int
	Rollbacks int
}

func NewTransactor(participants ...Snapshotter) *Transactor {
	return &Transactor{participants: participants}
}

func (t *Transactor) WithinTransaction(ctx context.Context, fn database.TxFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	restores := make([]func(), 0, len(t.participants))
	for _, p := range t.participants {
		restores = append(restores, p.Snapshot())
	}

	if err := fn(nil); err != nil {
		for _, restore := range restores {
			restore()
		}
		t.Rollbacks++
		return err
	}
	t.Commits++
	return nil
}

// Products is an in-memory catalog.
type Products struct {
	mu       sync.Mutex
	products map[uuid.UUID]catalogModel.Product
}

func NewProducts(products ...catalogModel.Product) *Products {
	p := &Products{products: map[uuid.UUID]catalogModel.Product{}}
	for _, product := range products {
		p.Add(product)
	}
	return p
}

func (p *Products) Add(product catalogModel.Product) {
	p.mu.Lock()
	defer p.mu.Unlock()
	product.IsActive = true
	p.products[product.ID] = product
}

func (p *Products) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]catalogModel.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := []catalogModel.Product{}
	for _, id := range ids {
		if product, ok := p.products[id]; ok && product.IsActive {
			out = append(out, product)
		}
	}
	return out, nil
}

// Orders is an in-memory order history.
type Orders struct {
	mu     sync.Mutex
	orders map[uuid.UUID]orderModel.Order

	// CountErr, when set, fails CountNonCancelledOrders.
	CountErr error
}

func NewOrders(orders ...orderModel.Order) *Orders {
	o := &Orders{orders: map[uuid.UUID]orderModel.Order{}}
	for _, order := range orders {
		o.Add(order)
	}
	return o
}

func (o *Orders) Add(order orderModel.Order) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = orderModel.StatusPending
	}
	o.orders[order.ID] = order
}

func (o *Orders) FindByID(ctx context.Context, id uuid.UUID) (*orderModel.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	order, ok := o.orders[id]
	if !ok {
		return nil, orderModel.ErrOrderNotFound
	}
	return &order, nil
}

func (o *Orders) CountNonCancelledOrders(ctx context.Context, userID uuid.UUID) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.CountErr != nil {
		return 0, o.CountErr
	}
	n := 0
	for _, order := range o.orders {
		if order.UserID == userID && !order.IsCancelled() {
			n++
		}
	}
	return n, nil
}

// ErrInjected is a generic failure for fault injection.
var ErrInjected = errors.New("injected failure")
