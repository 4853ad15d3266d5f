package shared

// Asynq task types
const (
	TypeDeactivateExpiredCoupons = "coupon:deactivate_expired"
)

// Asynq queues
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueCoupon   = "coupon"
)

// Queues maps each queue to its asynq priority weight.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueCoupon:   3,
	QueueDefault:  1,
}
