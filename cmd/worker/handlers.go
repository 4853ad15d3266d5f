package main

import (
	"github.com/hibiken/asynq"

	couponJob "plantshop-backend/internal/domains/coupon/job"
	"plantshop-backend/internal/shared"
	"plantshop-backend/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	deactivateExpired *couponJob.DeactivateExpiredHandler
}

func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		deactivateExpired: c.DeactivateExpiredHandler,
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(shared.TypeDeactivateExpiredCoupons, h.deactivateExpired.ProcessTask)
}
