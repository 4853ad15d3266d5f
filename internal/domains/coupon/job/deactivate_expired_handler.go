package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"plantshop-backend/internal/domains/coupon/service"
	"plantshop-backend/internal/shared"
	"plantshop-backend/pkg/logger"
)

// DeactivateExpiredPayload is the scheduled task body. BatchSize <= 0 uses the service default.
type DeactivateExpiredPayload struct {
	BatchSize int `json:"batchSize"`
}

// NewDeactivateExpiredTask builds the task registered with the scheduler.
func NewDeactivateExpiredTask(batchSize int) (*asynq.Task, error) {
	payload, err := json.Marshal(DeactivateExpiredPayload{BatchSize: batchSize})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(shared.TypeDeactivateExpiredCoupons, payload), nil
}

// DeactivateExpiredHandler switches off coupons whose validity window has closed.
// Coupons already applied to carts stay there with their frozen discount.
type DeactivateExpiredHandler struct {
	service service.ServiceInterface
}

func NewDeactivateExpiredHandler(service service.ServiceInterface) *DeactivateExpiredHandler {
	return &DeactivateExpiredHandler{service: service}
}

func (h *DeactivateExpiredHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload DeactivateExpiredPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w: %v", asynq.SkipRetry, err)
		}
	}

	started := time.Now()
	n, err := h.service.DeactivateExpired(ctx, payload.BatchSize)
	if err != nil {
		logger.Error("Failed to deactivate expired coupons", err)
		return err
	}

	logger.Info("Deactivated expired coupons", map[string]interface{}{
		"deactivated": n,
		"duration_ms": time.Since(started).Milliseconds(),
	})
	return nil
}
