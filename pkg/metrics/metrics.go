package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels for coupon outcomes.
const (
	ResultApplied  = "applied"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultError    = "error"
	ResultValid    = "valid"
	ResultInvalid  = "invalid"
)

// CouponMetrics records pricing engine outcomes.
// A nil *CouponMetrics is valid and records nothing.
type CouponMetrics struct {
	applications *prometheus.CounterVec
	validations  *prometheus.CounterVec
	discount     prometheus.Counter
	removals     prometheus.Counter
}

// NewCouponMetrics registers the coupon metrics on the provided registerer.
func NewCouponMetrics(reg prometheus.Registerer) *CouponMetrics {
	if reg == nil {
		return &CouponMetrics{}
	}
	applications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coupon_applications_total",
		Help: "Coupon application attempts on carts and orders by result.",
	}, []string{"result", "reason"})
	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coupon_validations_total",
		Help: "Coupon preview validations by result.",
	}, []string{"result"})
	discount := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coupon_discount_granted_total",
		Help: "Sum of discount amounts frozen into carts.",
	})
	removals := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coupon_removals_total",
		Help: "Coupons removed from carts.",
	})
	reg.MustRegister(applications, validations, discount, removals)
	return &CouponMetrics{
		applications: applications,
		validations:  validations,
		discount:     discount,
		removals:     removals,
	}
}

// ObserveApplication counts one apply attempt. reason is the rejection code, empty on success.
func (m *CouponMetrics) ObserveApplication(result, reason string) {
	if m == nil || m.applications == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.applications.WithLabelValues(result, reason).Inc()
}

func (m *CouponMetrics) ObserveValidation(result string) {
	if m == nil || m.validations == nil {
		return
	}
	m.validations.WithLabelValues(result).Inc()
}

func (m *CouponMetrics) AddDiscount(amount float64) {
	if m == nil || m.discount == nil || amount <= 0 {
		return
	}
	m.discount.Add(amount)
}

func (m *CouponMetrics) IncRemoval() {
	if m == nil || m.removals == nil {
		return
	}
	m.removals.Inc()
}

// HTTPMetrics records request latency per route template.
type HTTPMetrics struct {
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		return &HTTPMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	reg.MustRegister(duration)
	return &HTTPMetrics{duration: duration}
}

func (m *HTTPMetrics) Observe(method, route string, status int, elapsed time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.duration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
