package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
	"github.com/rs/zerolog/log"

	couponJob "plantshop-backend/internal/domains/coupon/job"
	"plantshop-backend/internal/shared"
	"plantshop-backend/pkg/container"
)

// HealthChecker performs startup health checks
type HealthChecker struct {
	redisClient *redis.Client
	container   *container.Container
}

// startServices checks dependencies, queues one expiry sweep and starts the health endpoint.
func startServices(c *container.Container, redisOpt asynq.RedisClientOpt) error {
	log.Info().Str("service", c.Config.App.Name).Msg("[Startup] Worker starting")

	checker := &HealthChecker{
		redisClient: redis.NewClient(&redis.Options{
			Addr:     redisOpt.Addr,
			Password: redisOpt.Password,
			DB:       redisOpt.DB,
			MaintNotificationsConfig: &maintnotifications.Config{
				Mode: maintnotifications.ModeDisabled,
			},
		}),
		container: c,
	}
	defer checker.redisClient.Close()

	if err := checker.checkAll(); err != nil {
		return err
	}

	if err := enqueueStartupSweep(c); err != nil {
		log.Warn().Err(err).Msg("[Startup] Initial coupon expiry sweep not queued")
	}

	go startHealthCheckServer()

	return nil
}

func (h *HealthChecker) checkAll() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"Redis Connection", h.checkRedis},
		{"PostgreSQL Connection", h.checkDatabase},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			log.Error().Err(err).Str("check", check.name).Msg("[Startup] Check failed")
			return fmt.Errorf("%s failed: %w", check.name, err)
		}
		log.Info().Str("check", check.name).Msg("[Startup] OK")
	}

	return nil
}

func (h *HealthChecker) checkRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return h.redisClient.Ping(ctx).Err()
}

func (h *HealthChecker) checkDatabase() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return h.container.DB.HealthCheck(ctx)
}

// enqueueStartupSweep deactivates coupons that expired while the worker was down.
func enqueueStartupSweep(c *container.Container) error {
	task, err := couponJob.NewDeactivateExpiredTask(c.Config.Jobs.ExpiryBatchSize)
	if err != nil {
		return err
	}

	_, err = c.AsynqClient.Enqueue(task,
		asynq.Queue(shared.QueueCoupon),
		asynq.Unique(time.Hour),
		asynq.MaxRetry(2),
	)
	return err
}

// startHealthCheckServer starts HTTP server for health checks
func startHealthCheckServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthCheckHandler)
	mux.HandleFunc("/ready", readyCheckHandler)

	log.Info().Msg("[Health] Starting health check server on :9999")
	if err := http.ListenAndServe(":9999", mux); err != nil {
		log.Error().Err(err).Msg("[Health] Failed to start")
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"UP","service":"plantshop-worker"}`))
}

// readyCheckHandler handles /ready (Kubernetes readiness probe)
func readyCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"READY"}`))
}
