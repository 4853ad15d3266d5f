package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"plantshop-backend/internal/domains/coupon/model"
	"plantshop-backend/internal/shared/apperror"
	"plantshop-backend/pkg/logger"
)

// -------------------------------------------------------------------
// STATS
// -------------------------------------------------------------------

// StatsCacheKey is the redis key holding the cached stats of one coupon.
func StatsCacheKey(id uuid.UUID) string {
	return statsCacheKeyPrefix + id.String()
}

// GetStats aggregates the usage history of one coupon. Results are cached for statsTTL.
func (s *couponService) GetStats(ctx context.Context, id uuid.UUID) (*model.CouponStats, error) {
	key := StatsCacheKey(id)
	if s.cache != nil {
		var cached model.CouponStats
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			logger.Warn("coupon stats cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		} else if found {
			return &cached, nil
		}
	}

	var (
		coupon *model.Coupon
		agg    *model.UsageAggregate
		daily  []model.DailyUsage
	)
	since := s.now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -statsWindowDays)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.findByID(gctx, id)
		coupon = c
		return err
	})
	g.Go(func() error {
		a, err := s.repo.GetUsageAggregate(gctx, id)
		if err != nil {
			return fmt.Errorf("usage aggregate: %w", err)
		}
		agg = a
		return nil
	})
	g.Go(func() error {
		d, err := s.repo.GetDailyUsage(gctx, id, since)
		if err != nil {
			return fmt.Errorf("daily usage: %w", err)
		}
		daily = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := buildStats(coupon, agg, daily)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.statsTTL); err != nil {
			logger.Warn("coupon stats cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return stats, nil
}

func buildStats(coupon *model.Coupon, agg *model.UsageAggregate, daily []model.DailyUsage) *model.CouponStats {
	stats := &model.CouponStats{
		CouponID:         coupon.ID,
		Code:             coupon.Code,
		TotalUses:        agg.TotalUses,
		UniqueUsers:      agg.UniqueUsers,
		TotalDiscount:    agg.TotalDiscount.Round(2),
		AverageDiscount:  decimal.Zero,
		OrdersAttributed: agg.OrdersAttributed,
		RemainingUses:    coupon.RemainingUses(),
		LastUsedAt:       agg.LastUsedAt,
		DailyUsage:       daily,
	}
	if agg.TotalUses > 0 {
		uses := decimal.NewFromInt(int64(agg.TotalUses))
		stats.AverageDiscount = agg.TotalDiscount.Div(uses).Round(2)
		stats.ConversionRate = decimal.NewFromInt(int64(agg.OrdersAttributed)).
			Div(uses).
			Mul(decimal.NewFromInt(100)).
			Round(2).
			InexactFloat64()
	}
	if stats.DailyUsage == nil {
		stats.DailyUsage = []model.DailyUsage{}
	}
	return stats
}

// invalidateStats drops one coupon's cached stats, or all of them for uuid.Nil.
// Cache failures are logged and never fail the caller.
func (s *couponService) invalidateStats(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	var err error
	if id == uuid.Nil {
		err = s.cache.DeletePattern(ctx, statsCachePattern)
	} else {
		err = s.cache.Delete(ctx, StatsCacheKey(id))
	}
	if err != nil {
		logger.Warn("coupon stats cache invalidation failed", map[string]interface{}{"coupon_id": id, "error": err.Error()})
	}
}

// -------------------------------------------------------------------
// EXPORT
// -------------------------------------------------------------------

const exportSheet = "Coupons"

var exportHeaders = []string{
	"Code", "Name", "Type", "Value", "Max Discount", "Min Order",
	"Used", "Total Limit", "Per User", "Valid From", "Valid To",
	"Applies To", "Stackable", "First Order Only", "Status",
}

// ExportCoupons renders every coupon matching the filter as an xlsx workbook.
func (s *couponService) ExportCoupons(ctx context.Context, filter model.ListCouponsFilter) ([]byte, error) {
	filter.Normalize()
	if err := filter.Validate(); err != nil {
		return nil, apperror.Validation(err)
	}

	coupons, err := s.repo.ListForExport(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list coupons for export: %w", err)
	}

	f, err := buildCouponsWorkbook(coupons, s.now())
	if err != nil {
		return nil, fmt.Errorf("build coupons workbook: %w", err)
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write coupons workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func buildCouponsWorkbook(coupons []*model.Coupon, now time.Time) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}

	for col, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			return nil, err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
		_ = f.SetCellStyle(exportSheet, "A1", last, style)
	}

	for i, c := range coupons {
		var maxDiscount, totalLimit interface{}
		if c.MaxDiscount != nil {
			maxDiscount = c.MaxDiscount.InexactFloat64()
		}
		if c.UsageLimit.Total != nil {
			totalLimit = *c.UsageLimit.Total
		}

		row := []interface{}{
			c.Code,
			c.Name,
			string(c.Type),
			c.Value.InexactFloat64(),
			maxDiscount,
			c.MinOrderValue.InexactFloat64(),
			c.UsageCount.Total,
			totalLimit,
			c.PerUserLimit(),
			c.ValidFrom.UTC().Format(time.RFC3339),
			c.ValidTo.UTC().Format(time.RFC3339),
			string(c.ApplicableProducts.Type),
			c.Stackable,
			c.FirstTimeOnly,
			c.Status(now),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	return f, nil
}
