package queue

import (
	"time"

	"github.com/hibiken/asynq"

	"plantshop-backend/internal/config"
	"plantshop-backend/internal/domains/coupon/job"
	"plantshop-backend/internal/shared"
	"plantshop-backend/pkg/logger"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
	jobConfig config.JobConfig
}

func NewScheduler(redis asynq.RedisClientOpt, jobConfig config.JobConfig) *Scheduler {
	scheduler := asynq.NewScheduler(
		redis,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
		jobConfig: jobConfig,
	}
}

func (s *Scheduler) RegisterJobs() error {
	return s.registerDeactivateExpiredCouponsJob()
}

// ================================================
// Deactivate expired coupons (COUPON_EXPIRY_CRON, every 3 hours by default)
// ================================================
// Coupons already sitting in carts keep their frozen discount.
func (s *Scheduler) registerDeactivateExpiredCouponsJob() error {
	task, err := job.NewDeactivateExpiredTask(s.jobConfig.ExpiryBatchSize)
	if err != nil {
		return err
	}

	_, err = s.scheduler.Register(
		s.jobConfig.CouponExpiryCron,
		task,
		asynq.Queue(shared.QueueCoupon),
		asynq.MaxRetry(2),
		asynq.Timeout(10*time.Minute),
	)
	if err != nil {
		logger.Error("Failed to register DeactivateExpiredCoupons job", err)
		return err
	}

	logger.Info("Registered DeactivateExpiredCoupons", map[string]interface{}{
		"cron":       s.jobConfig.CouponExpiryCron,
		"batch_size": s.jobConfig.ExpiryBatchSize,
	})
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Run()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
