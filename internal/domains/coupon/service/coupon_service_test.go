package service

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	catalogModel "plantshop-backend/internal/domains/catalog/model"
	"plantshop-backend/internal/domains/coupon/coupontest"
	"plantshop-backend/internal/domains/coupon/model"
	orderModel "plantshop-backend/internal/domains/order/model"
	"plantshop-backend/internal/shared/apperror"
)

type fakeCarts struct {
	snapshots map[uuid.UUID]*CartSnapshot
}

func (f *fakeCarts) Snapshot(ctx context.Context, userID uuid.UUID) (*CartSnapshot, error) {
	if snap, ok := f.snapshots[userID]; ok {
		return snap, nil
	}
	return &CartSnapshot{Subtotal: decimal.Zero}, nil
}

type serviceFixture struct {
	repo     *coupontest.MemoryRepository
	products *coupontest.Products
	orders   *coupontest.Orders
	carts    *fakeCarts
	tx       *coupontest.Transactor
	cache    *coupontest.Cache
	svc      ServiceInterface
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		repo:     coupontest.NewMemoryRepository(),
		products: coupontest.NewProducts(),
		orders:   coupontest.NewOrders(),
		carts:    &fakeCarts{snapshots: map[uuid.UUID]*CartSnapshot{}},
		cache:    coupontest.NewCache(),
	}
	f.tx = coupontest.NewTransactor(f.repo)
	f.svc = NewCouponService(f.repo, f.products, f.orders, f.carts, f.tx, f.cache, nil,
		NewEligibilityChecker(newTestCalculator()), 0)
	return f
}

func (f *serviceFixture) product(name, price, category string) catalogModel.Product {
	p := catalogModel.Product{ID: uuid.New(), Name: name, Price: dec(price), Category: category}
	f.products.Add(p)
	return p
}

func (f *serviceFixture) order(userID uuid.UUID, total string) orderModel.Order {
	o := orderModel.Order{ID: uuid.New(), UserID: userID, Total: dec(total), CreatedAt: testNow}
	f.orders.Add(o)
	return o
}

func assertAppError(t *testing.T, err error, code apperror.ErrorCode, status int) {
	t.Helper()
	appErr, ok := apperror.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
	assert.Equal(t, status, appErr.HTTPStatus)
}

// ============================================================
// ValidateCoupon
// ============================================================

func TestValidateCoupon_ExplicitItems(t *testing.T) {
	f := newServiceFixture(t)
	fern := f.product("Boston Fern", "20.00", "ferns")
	pot := f.product("Clay Pot", "10.00", "pots")

	c := activeCoupon("FERN25", model.TypePercentage, "25")
	c.MaxDiscount = decPtr("100")
	c.ApplicableProducts = model.ApplicableProducts{Type: model.ApplicableCategory, Categories: []string{"ferns"}}
	f.repo.Seed(c)

	resp, err := f.svc.ValidateCoupon(context.Background(), uuid.Nil, model.ValidateCouponRequest{
		Code: " fern25 ",
		CartItems: []model.CartItemInput{
			{ProductID: fern.ID, Quantity: 1},
			{ProductID: pot.ID, Quantity: 2},
			{ProductID: fern.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)

	assert.True(t, resp.Discount.Equal(dec("10")), "25%% of 40.00, got %s", resp.Discount)
	require.Len(t, resp.ApplicableProducts, 1)
	assert.Equal(t, fern.ID, resp.ApplicableProducts[0].ProductID)
	assert.Equal(t, 2, resp.ApplicableProducts[0].Quantity)
	assert.Equal(t, "FERN25", resp.Coupon.Code)
	assert.Equal(t, 0, f.repo.UsageTotal(c.ID), "preview must not record usage")
}

func TestValidateCoupon_UsesStoredCart(t *testing.T) {
	f := newServiceFixture(t)
	userID := uuid.New()
	items := []model.LineItem{line("30.00", 2, "succulents")}
	f.carts.snapshots[userID] = &CartSnapshot{Subtotal: model.SumLineItems(items), Items: items}
	f.repo.Seed(activeCoupon("TENOFF", model.TypeFixed, "10"))

	resp, err := f.svc.ValidateCoupon(context.Background(), userID, model.ValidateCouponRequest{Code: "TENOFF"})
	require.NoError(t, err)
	assert.True(t, resp.Discount.Equal(dec("10")))
}

func TestValidateCoupon_RequiresItemsForAnonymousCaller(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.Seed(activeCoupon("TENOFF", model.TypeFixed, "10"))

	_, err := f.svc.ValidateCoupon(context.Background(), uuid.Nil, model.ValidateCouponRequest{Code: "TENOFF"})
	assertAppError(t, err, apperror.CodeValidationFailed, 400)
}

func TestValidateCoupon_AnonymousUserIDNeverReadsStoredCart(t *testing.T) {
	f := newServiceFixture(t)
	shopper := uuid.New()
	items := []model.LineItem{line("42.00", 3, "orchids")}
	f.carts.snapshots[shopper] = &CartSnapshot{Subtotal: model.SumLineItems(items), Items: items}
	f.repo.Seed(activeCoupon("TENOFF", model.TypeFixed, "10"))

	resp, err := f.svc.ValidateCoupon(context.Background(), uuid.Nil, model.ValidateCouponRequest{
		Code: "TENOFF", UserID: &shopper,
	})
	assertAppError(t, err, apperror.CodeValidationFailed, 400)
	assert.Nil(t, resp)

	// with explicit items the body user still drives the per-user checks
	c := activeCoupon("ONCE", model.TypeFixed, "5")
	c.UsageCount = model.UsageCount{Total: 1, ByUser: []model.UserUsage{{UserID: shopper, Count: 1, LastUsed: testNow}}}
	f.repo.Seed(c)
	fern := f.product("Boston Fern", "20.00", "ferns")

	resp, err = f.svc.ValidateCoupon(context.Background(), uuid.Nil, model.ValidateCouponRequest{
		Code: "ONCE", UserID: &shopper, CartItems: []model.CartItemInput{{ProductID: fern.ID, Quantity: 1}},
	})
	assertAppError(t, err, model.CodeUserLimitReached, 400)
	assert.Nil(t, resp)
}

func TestValidateCoupon_UnknownCodeIsNotFound(t *testing.T) {
	f := newServiceFixture(t)
	p := f.product("Monstera", "45.00", "tropicals")

	_, err := f.svc.ValidateCoupon(context.Background(), uuid.Nil, model.ValidateCouponRequest{
		Code:      "NOPE",
		CartItems: []model.CartItemInput{{ProductID: p.ID, Quantity: 1}},
	})
	assertAppError(t, err, model.CodeNotFound, 404)
}

func TestValidateCoupon_UnknownProduct(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.Seed(activeCoupon("TENOFF", model.TypeFixed, "10"))

	_, err := f.svc.ValidateCoupon(context.Background(), uuid.Nil, model.ValidateCouponRequest{
		Code:      "TENOFF",
		CartItems: []model.CartItemInput{{ProductID: uuid.New(), Quantity: 1}},
	})
	assertAppError(t, err, catalogModel.CodeProductNotFound, 404)
}

func TestValidateCoupon_UserChecks(t *testing.T) {
	f := newServiceFixture(t)
	p := f.product("Pothos", "25.00", "vines")
	items := []model.CartItemInput{{ProductID: p.ID, Quantity: 2}}

	t.Run("per-user limit from the ledger", func(t *testing.T) {
		userID := uuid.New()
		c := activeCoupon("ONCE", model.TypeFixed, "5")
		c.UsageCount = model.UsageCount{Total: 1, ByUser: []model.UserUsage{{UserID: userID, Count: 1, LastUsed: testNow}}}
		f.repo.Seed(c)

		_, err := f.svc.ValidateCoupon(context.Background(), userID, model.ValidateCouponRequest{Code: "ONCE", CartItems: items})
		assertAppError(t, err, model.CodeUserLimitReached, 400)

		// an anonymous preview skips the per-user check
		_, err = f.svc.ValidateCoupon(context.Background(), uuid.Nil, model.ValidateCouponRequest{Code: "ONCE", CartItems: items})
		assert.NoError(t, err)
	})

	t.Run("first order only uses the body user when anonymous", func(t *testing.T) {
		userID := uuid.New()
		f.order(userID, "30.00")
		c := activeCoupon("WELCOME", model.TypeFixed, "5")
		c.FirstTimeOnly = true
		f.repo.Seed(c)

		_, err := f.svc.ValidateCoupon(context.Background(), uuid.Nil, model.ValidateCouponRequest{
			Code: "WELCOME", CartItems: items, UserID: &userID,
		})
		assertAppError(t, err, model.CodeFirstOrderOnly, 400)

		newcomer := uuid.New()
		_, err = f.svc.ValidateCoupon(context.Background(), newcomer, model.ValidateCouponRequest{Code: "WELCOME", CartItems: items})
		assert.NoError(t, err)
	})

	t.Run("cancelled orders do not count", func(t *testing.T) {
		userID := uuid.New()
		f.orders.Add(orderModel.Order{UserID: userID, Status: orderModel.StatusCancelled, Total: dec("10")})
		c := activeCoupon("FIRSTPLANT", model.TypeFixed, "5")
		c.FirstTimeOnly = true
		f.repo.Seed(c)

		_, err := f.svc.ValidateCoupon(context.Background(), userID, model.ValidateCouponRequest{Code: "FIRSTPLANT", CartItems: items})
		assert.NoError(t, err)
	})
}

func TestValidateCoupon_OrderLookupFailure(t *testing.T) {
	f := newServiceFixture(t)
	p := f.product("Pothos", "25.00", "vines")
	c := activeCoupon("WELCOME", model.TypeFixed, "5")
	c.FirstTimeOnly = true
	f.repo.Seed(c)
	f.orders.CountErr = coupontest.ErrInjected

	_, err := f.svc.ValidateCoupon(context.Background(), uuid.New(), model.ValidateCouponRequest{
		Code: "WELCOME", CartItems: []model.CartItemInput{{ProductID: p.ID, Quantity: 1}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, coupontest.ErrInjected)
}

// ============================================================
// ApplyToOrder
// ============================================================

func TestApplyToOrder_RecordsUsage(t *testing.T) {
	f := newServiceFixture(t)
	userID := uuid.New()
	o := f.order(userID, "80.00")
	c := activeCoupon("SAVE15", model.TypeFixed, "15")
	f.repo.Seed(c)

	resp, err := f.svc.ApplyToOrder(context.Background(), userID, model.ApplyToOrderRequest{CouponID: c.ID, OrderID: o.ID})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Coupon.UsageCount.Total)
	assert.Equal(t, 1, f.repo.UsageTotal(c.ID))
	history := f.repo.History()
	require.Len(t, history, 1)
	assert.Equal(t, o.ID, *history[0].OrderID)
	assert.True(t, history[0].DiscountAmount.Equal(dec("15")))
	assert.Equal(t, 1, f.tx.Commits)

	// the same user is now at the per-user limit
	_, err = f.svc.ApplyToOrder(context.Background(), userID, model.ApplyToOrderRequest{CouponID: c.ID, OrderID: o.ID})
	assertAppError(t, err, model.CodeUserLimitReached, 400)
}

func TestApplyToOrder_ItemBasedCouponsRecordZero(t *testing.T) {
	f := newServiceFixture(t)
	userID := uuid.New()
	o := f.order(userID, "80.00")
	c := activeCoupon("BOGO", model.TypeBuyXGetY, "0")
	c.BuyXGetY = &model.BuyXGetY{BuyQuantity: 1, GetQuantity: 1, MaxSets: 2}
	f.repo.Seed(c)

	_, err := f.svc.ApplyToOrder(context.Background(), userID, model.ApplyToOrderRequest{CouponID: c.ID, OrderID: o.ID})
	require.NoError(t, err)

	history := f.repo.History()
	require.Len(t, history, 1)
	assert.True(t, history[0].DiscountAmount.IsZero(), "orders have no lines to discount, got %s", history[0].DiscountAmount)
	assert.Equal(t, 1, f.repo.UsageTotal(c.ID))
}

func TestApplyToOrder_OrderChecks(t *testing.T) {
	f := newServiceFixture(t)
	owner := uuid.New()
	c := activeCoupon("SAVE15", model.TypeFixed, "15")
	f.repo.Seed(c)

	t.Run("missing order", func(t *testing.T) {
		_, err := f.svc.ApplyToOrder(context.Background(), owner, model.ApplyToOrderRequest{CouponID: c.ID, OrderID: uuid.New()})
		assertAppError(t, err, orderModel.CodeOrderNotFound, 404)
	})

	t.Run("someone else's order", func(t *testing.T) {
		o := f.order(owner, "50.00")
		_, err := f.svc.ApplyToOrder(context.Background(), uuid.New(), model.ApplyToOrderRequest{CouponID: c.ID, OrderID: o.ID})
		assertAppError(t, err, orderModel.CodeOrderNotFound, 404)
	})

	t.Run("cancelled order", func(t *testing.T) {
		o := orderModel.Order{ID: uuid.New(), UserID: owner, Status: orderModel.StatusCancelled, Total: dec("50")}
		f.orders.Add(o)
		_, err := f.svc.ApplyToOrder(context.Background(), owner, model.ApplyToOrderRequest{CouponID: c.ID, OrderID: o.ID})
		assertAppError(t, err, orderModel.CodeOrderCancelled, 400)
	})

	t.Run("missing coupon", func(t *testing.T) {
		o := f.order(owner, "50.00")
		_, err := f.svc.ApplyToOrder(context.Background(), owner, model.ApplyToOrderRequest{CouponID: uuid.New(), OrderID: o.ID})
		assertAppError(t, err, model.CodeNotFound, 404)
	})

	assert.Equal(t, 0, f.repo.UsageTotal(c.ID))
}

func TestApplyToOrder_LedgerRaceIsConflict(t *testing.T) {
	for _, raceErr := range []error{model.ErrUsageLimitRace, model.ErrUserLimitRace} {
		t.Run(raceErr.Error(), func(t *testing.T) {
			f := newServiceFixture(t)
			userID := uuid.New()
			o := f.order(userID, "40.00")
			c := activeCoupon("RACE", model.TypeFixed, "5")
			f.repo.Seed(c)
			f.repo.RecordUsageErr = raceErr

			_, err := f.svc.ApplyToOrder(context.Background(), userID, model.ApplyToOrderRequest{CouponID: c.ID, OrderID: o.ID})
			assertAppError(t, err, model.CodeUsageConflict, 409)
			assert.Equal(t, 1, f.tx.Rollbacks)
		})
	}
}

func TestApplyToOrder_UnexpectedLedgerError(t *testing.T) {
	f := newServiceFixture(t)
	userID := uuid.New()
	o := f.order(userID, "40.00")
	c := activeCoupon("BROKEN", model.TypeFixed, "5")
	f.repo.Seed(c)
	f.repo.RecordUsageErr = coupontest.ErrInjected

	_, err := f.svc.ApplyToOrder(context.Background(), userID, model.ApplyToOrderRequest{CouponID: c.ID, OrderID: o.ID})
	require.Error(t, err)
	assert.ErrorIs(t, err, coupontest.ErrInjected)
	_, isAppErr := apperror.As(err)
	assert.False(t, isAppErr)
}

func TestApplyToOrder_ConcurrentLastSlot(t *testing.T) {
	f := newServiceFixture(t)
	c := activeCoupon("LAST", model.TypeFixed, "5")
	c.UsageLimit.Total = intPtr(1)
	f.repo.Seed(c)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		userID := uuid.New()
		o := f.order(userID, "40.00")
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ApplyToOrder(context.Background(), userID, model.ApplyToOrderRequest{CouponID: c.ID, OrderID: o.ID})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			appErr, ok := apperror.As(err)
			if ok && (appErr.Code == model.CodeUsageConflict || appErr.Code == model.CodeUsageLimitReached) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)
	assert.Equal(t, 1, f.repo.UsageTotal(c.ID))
}

// ============================================================
// Admin
// ============================================================

func validCreateRequest(code string) model.CreateCouponRequest {
	return model.CreateCouponRequest{
		Code:          code,
		Name:          "Spring sale",
		Type:          model.TypeFixed,
		Value:         dec("10"),
		MinOrderValue: decimal.Zero,
		ValidFrom:     testNow.AddDate(0, 0, -1),
		ValidTo:       testNow.AddDate(0, 1, 0),
	}
}

func TestCreateCoupon(t *testing.T) {
	f := newServiceFixture(t)
	adminID := uuid.New()

	resp, err := f.svc.CreateCoupon(context.Background(), adminID, validCreateRequest(" spring10 "))
	require.NoError(t, err)
	assert.Equal(t, "SPRING10", resp.Code)
	assert.Equal(t, 1, resp.UsageLimit.PerUser)
	assert.Equal(t, model.ApplicableAll, resp.ApplicableProducts.Type)
	assert.True(t, resp.IsActive)
	assert.Equal(t, "active", resp.Status)
	require.NotNil(t, resp.CreatedBy)
	assert.Equal(t, adminID, *resp.CreatedBy)

	_, err = f.svc.CreateCoupon(context.Background(), adminID, validCreateRequest("SPRING10"))
	assertAppError(t, err, model.CodeDuplicateCode, 409)
}

func TestCreateCoupon_Invalid(t *testing.T) {
	f := newServiceFixture(t)

	tests := []struct {
		name   string
		mutate func(r *model.CreateCouponRequest)
		field  string
	}{
		{"bad code", func(r *model.CreateCouponRequest) { r.Code = "NO-DASH" }, "code"},
		{"percentage without cap", func(r *model.CreateCouponRequest) {
			r.Type = model.TypePercentage
			r.Value = dec("20")
		}, "maxDiscount"},
		{"inverted window", func(r *model.CreateCouponRequest) { r.ValidTo = r.ValidFrom.Add(-1) }, "validTo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest("VALID10")
			tt.mutate(&req)

			_, err := f.svc.CreateCoupon(context.Background(), uuid.New(), req)
			appErr, ok := apperror.As(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidationFailed, appErr.Code)
			assert.Contains(t, appErr.Details, tt.field)
		})
	}
}

func TestUpdateCoupon(t *testing.T) {
	f := newServiceFixture(t)
	c := f.repo.Seed(activeCoupon("SUMMER", model.TypeFixed, "10"))

	name := "Summer plants"
	value := dec("12")
	resp, err := f.svc.UpdateCoupon(context.Background(), c.ID, model.UpdateCouponRequest{
		Name:    &name,
		Value:   &value,
		Version: intPtr(1),
	})
	require.NoError(t, err)
	assert.Equal(t, "Summer plants", resp.Name)
	assert.True(t, resp.Value.Equal(dec("12")))
	assert.Equal(t, 2, resp.Version)

	t.Run("stale version", func(t *testing.T) {
		_, err := f.svc.UpdateCoupon(context.Background(), c.ID, model.UpdateCouponRequest{Name: &name, Version: intPtr(1)})
		assertAppError(t, err, model.CodeUpdateConflict, 409)
	})

	t.Run("invalid merge", func(t *testing.T) {
		negative := dec("-1")
		_, err := f.svc.UpdateCoupon(context.Background(), c.ID, model.UpdateCouponRequest{Value: &negative})
		assertAppError(t, err, apperror.CodeValidationFailed, 400)
	})

	t.Run("unknown coupon", func(t *testing.T) {
		_, err := f.svc.UpdateCoupon(context.Background(), uuid.New(), model.UpdateCouponRequest{Name: &name})
		assertAppError(t, err, model.CodeNotFound, 404)
	})
}

func TestUpdateCoupon_CodeFrozenAfterUse(t *testing.T) {
	f := newServiceFixture(t)
	used := activeCoupon("USED", model.TypeFixed, "10")
	used.UsageCount.Total = 3
	f.repo.Seed(used)

	newCode := "RENAMED"
	_, err := f.svc.UpdateCoupon(context.Background(), used.ID, model.UpdateCouponRequest{Code: &newCode})
	assertAppError(t, err, model.CodeImmutableAfterUse, 409)

	// resending the same code is not a change
	same := "used"
	name := "Still editable"
	resp, err := f.svc.UpdateCoupon(context.Background(), used.ID, model.UpdateCouponRequest{Code: &same, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "USED", resp.Code)
	assert.Equal(t, 3, resp.UsageCount.Total, "usage count survives updates")

	unused := f.repo.Seed(activeCoupon("FRESH", model.TypeFixed, "10"))
	resp, err = f.svc.UpdateCoupon(context.Background(), unused.ID, model.UpdateCouponRequest{Code: &newCode})
	require.NoError(t, err)
	assert.Equal(t, "RENAMED", resp.Code)
}

func TestDeleteCoupon(t *testing.T) {
	f := newServiceFixture(t)
	unused := f.repo.Seed(activeCoupon("GONE", model.TypeFixed, "10"))
	used := activeCoupon("KEPT", model.TypeFixed, "10")
	used.UsageCount.Total = 1
	f.repo.Seed(used)

	require.NoError(t, f.svc.DeleteCoupon(context.Background(), unused.ID))
	_, err := f.svc.GetCoupon(context.Background(), unused.ID)
	assertAppError(t, err, model.CodeNotFound, 404)

	err = f.svc.DeleteCoupon(context.Background(), used.ID)
	assertAppError(t, err, model.CodeImmutableAfterUse, 409)

	err = f.svc.DeleteCoupon(context.Background(), uuid.New())
	assertAppError(t, err, model.CodeNotFound, 404)
}

func TestGetCoupon_IncludesPerUserUsage(t *testing.T) {
	f := newServiceFixture(t)
	userID := uuid.New()
	o := f.order(userID, "40.00")
	c := activeCoupon("TRACKED", model.TypeFixed, "5")
	c.UsageLimit.Total = intPtr(10)
	f.repo.Seed(c)

	_, err := f.svc.ApplyToOrder(context.Background(), userID, model.ApplyToOrderRequest{CouponID: c.ID, OrderID: o.ID})
	require.NoError(t, err)

	resp, err := f.svc.GetCoupon(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, resp.UsageCount.ByUser, 1)
	assert.Equal(t, userID, resp.UsageCount.ByUser[0].UserID)
	require.NotNil(t, resp.RemainingUses)
	assert.Equal(t, 9, *resp.RemainingUses)
}

func TestListCoupons(t *testing.T) {
	f := newServiceFixture(t)
	for _, code := range []string{"AAA111", "BBB222", "CCC333"} {
		f.repo.Seed(activeCoupon(code, model.TypeFixed, "5"))
	}
	inactive := activeCoupon("DDD444", model.TypeFixed, "5")
	inactive.IsActive = false
	f.repo.Seed(inactive)

	active := true
	items, total, err := f.svc.ListCoupons(context.Background(), model.ListCouponsFilter{IsActive: &active, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, items, 2)

	items, total, err = f.svc.ListCoupons(context.Background(), model.ListCouponsFilter{Search: "ddd"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "inactive", items[0].Status)

	_, _, err = f.svc.ListCoupons(context.Background(), model.ListCouponsFilter{Type: "bogus"})
	assertAppError(t, err, apperror.CodeValidationFailed, 400)
}

func TestBulkUpdate(t *testing.T) {
	f := newServiceFixture(t)
	a := f.repo.Seed(activeCoupon("BULKA", model.TypeFixed, "5"))
	b := activeCoupon("BULKB", model.TypeFixed, "5")
	b.IsActive = false
	f.repo.Seed(b)
	used := activeCoupon("BULKC", model.TypeFixed, "5")
	used.UsageCount.Total = 2
	f.repo.Seed(used)
	missing := uuid.New()

	t.Run("deactivate counts only changed rows", func(t *testing.T) {
		res, err := f.svc.BulkUpdate(context.Background(), model.BulkRequest{
			Operation: model.BulkDeactivate,
			CouponIDs: []uuid.UUID{a.ID, b.ID, a.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Requested)
		assert.Equal(t, 1, res.Modified)
		assert.Empty(t, res.Skipped)
	})

	t.Run("update expiry skips invalid windows", func(t *testing.T) {
		past := a.ValidFrom.Add(-1)
		future := testNow.AddDate(0, 6, 0)

		res, err := f.svc.BulkUpdate(context.Background(), model.BulkRequest{
			Operation: model.BulkUpdateExpiry,
			CouponIDs: []uuid.UUID{a.ID, b.ID},
			Data:      &model.BulkData{ValidTo: &future},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Modified)

		res, err = f.svc.BulkUpdate(context.Background(), model.BulkRequest{
			Operation: model.BulkUpdateExpiry,
			CouponIDs: []uuid.UUID{a.ID},
			Data:      &model.BulkData{ValidTo: &past},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, res.Modified)
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, a.ID, res.Skipped[0].CouponID)
	})

	t.Run("delete keeps used coupons", func(t *testing.T) {
		res, err := f.svc.BulkUpdate(context.Background(), model.BulkRequest{
			Operation: model.BulkDelete,
			CouponIDs: []uuid.UUID{a.ID, used.ID, missing},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Requested)
		assert.Equal(t, 1, res.Modified)

		skippedIDs := []uuid.UUID{}
		for _, s := range res.Skipped {
			skippedIDs = append(skippedIDs, s.CouponID)
		}
		assert.ElementsMatch(t, []uuid.UUID{used.ID, missing}, skippedIDs)
		assert.Equal(t, 2, f.repo.UsageTotal(used.ID))
	})

	t.Run("update expiry requires data", func(t *testing.T) {
		_, err := f.svc.BulkUpdate(context.Background(), model.BulkRequest{
			Operation: model.BulkUpdateExpiry,
			CouponIDs: []uuid.UUID{b.ID},
		})
		assertAppError(t, err, apperror.CodeValidationFailed, 400)
	})
}

func TestDeactivateExpired(t *testing.T) {
	f := newServiceFixture(t)
	for i := 0; i < 5; i++ {
		c := activeCoupon("OLD"+string(rune('A'+i)), model.TypeFixed, "5")
		c.ValidTo = testNow.Add(-1)
		f.repo.Seed(c)
	}
	live := f.repo.Seed(activeCoupon("LIVE", model.TypeFixed, "5"))

	n, err := f.svc.DeactivateExpired(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	stillLive, err := f.svc.GetCoupon(context.Background(), live.ID)
	require.NoError(t, err)
	assert.True(t, stillLive.IsActive)

	n, err = f.svc.DeactivateExpired(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// ============================================================
// Stats and export
// ============================================================

func TestGetStats(t *testing.T) {
	f := newServiceFixture(t)
	c := activeCoupon("STATS", model.TypeFixed, "10")
	c.UsageLimit = model.UsageLimit{Total: intPtr(5), PerUser: 2}
	f.repo.Seed(c)

	userA, userB := uuid.New(), uuid.New()
	for _, userID := range []uuid.UUID{userA, userA, userB} {
		o := f.order(userID, "50.00")
		_, err := f.svc.ApplyToOrder(context.Background(), userID, model.ApplyToOrderRequest{CouponID: c.ID, OrderID: o.ID})
		require.NoError(t, err)
	}

	stats, err := f.svc.GetStats(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalUses)
	assert.Equal(t, 2, stats.UniqueUsers)
	assert.True(t, stats.TotalDiscount.Equal(dec("30")))
	assert.True(t, stats.AverageDiscount.Equal(dec("10")))
	assert.Equal(t, 3, stats.OrdersAttributed)
	assert.Equal(t, 100.0, stats.ConversionRate)
	require.NotNil(t, stats.RemainingUses)
	assert.Equal(t, 2, *stats.RemainingUses)
	require.Len(t, stats.DailyUsage, 1)
	assert.Equal(t, 3, stats.DailyUsage[0].Uses)
	assert.True(t, f.cache.Has(StatsCacheKey(c.ID)))

	// a new use invalidates the cached stats
	o := f.order(uuid.New(), "50.00")
	_, err = f.svc.ApplyToOrder(context.Background(), o.UserID, model.ApplyToOrderRequest{CouponID: c.ID, OrderID: o.ID})
	require.NoError(t, err)
	assert.False(t, f.cache.Has(StatsCacheKey(c.ID)))

	stats, err = f.svc.GetStats(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalUses)
}

func TestGetStats_ServedFromCache(t *testing.T) {
	f := newServiceFixture(t)
	c := f.repo.Seed(activeCoupon("CACHED", model.TypeFixed, "10"))
	cached := model.CouponStats{CouponID: c.ID, Code: "CACHED", TotalUses: 42, TotalDiscount: dec("1.5")}
	require.NoError(t, f.cache.Set(context.Background(), StatsCacheKey(c.ID), cached, 0))

	stats, err := f.svc.GetStats(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, stats.TotalUses)

	_, err = f.svc.BulkUpdate(context.Background(), model.BulkRequest{Operation: model.BulkDeactivate, CouponIDs: []uuid.UUID{c.ID}})
	require.NoError(t, err)
	assert.False(t, f.cache.Has(StatsCacheKey(c.ID)), "bulk operations drop every cached stat")
}

func TestGetStats_UnusedAndMissing(t *testing.T) {
	f := newServiceFixture(t)
	c := f.repo.Seed(activeCoupon("QUIET", model.TypeFixed, "10"))

	stats, err := f.svc.GetStats(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalUses)
	assert.True(t, stats.AverageDiscount.IsZero())
	assert.Zero(t, stats.ConversionRate)
	assert.NotNil(t, stats.DailyUsage)
	assert.Nil(t, stats.RemainingUses)

	_, err = f.svc.GetStats(context.Background(), uuid.New())
	assertAppError(t, err, model.CodeNotFound, 404)
}

func TestExportCoupons(t *testing.T) {
	f := newServiceFixture(t)
	pct := activeCoupon("PCT20", model.TypePercentage, "20")
	pct.MaxDiscount = decPtr("15")
	f.repo.Seed(pct)
	f.repo.Seed(activeCoupon("FIX5", model.TypeFixed, "5"))

	data, err := f.svc.ExportCoupons(context.Background(), model.ListCouponsFilter{})
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows("Coupons")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Code", rows[0][0])
	assert.Equal(t, "FIX5", rows[1][0])
	assert.Equal(t, "PCT20", rows[2][0])
	assert.Equal(t, "percentage", rows[2][2])
}
