package job

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantshop-backend/internal/domains/coupon/service"
	"plantshop-backend/internal/shared"
)

// stubService records DeactivateExpired calls; every other method is unused.
type stubService struct {
	service.ServiceInterface
	batchSizes []int
	n          int
	err        error
}

func (s *stubService) DeactivateExpired(ctx context.Context, batchSize int) (int, error) {
	s.batchSizes = append(s.batchSizes, batchSize)
	return s.n, s.err
}

func TestNewDeactivateExpiredTask(t *testing.T) {
	task, err := NewDeactivateExpiredTask(250)
	require.NoError(t, err)
	assert.Equal(t, shared.TypeDeactivateExpiredCoupons, task.Type())
	assert.JSONEq(t, `{"batchSize":250}`, string(task.Payload()))
}

func TestDeactivateExpiredHandler(t *testing.T) {
	t.Run("passes batch size", func(t *testing.T) {
		svc := &stubService{n: 3}
		task, err := NewDeactivateExpiredTask(50)
		require.NoError(t, err)

		require.NoError(t, NewDeactivateExpiredHandler(svc).ProcessTask(context.Background(), task))
		assert.Equal(t, []int{50}, svc.batchSizes)
	})

	t.Run("empty payload uses default", func(t *testing.T) {
		svc := &stubService{}
		task := asynq.NewTask(shared.TypeDeactivateExpiredCoupons, nil)

		require.NoError(t, NewDeactivateExpiredHandler(svc).ProcessTask(context.Background(), task))
		assert.Equal(t, []int{0}, svc.batchSizes)
	})

	t.Run("bad payload skips retry", func(t *testing.T) {
		svc := &stubService{}
		task := asynq.NewTask(shared.TypeDeactivateExpiredCoupons, []byte("{"))

		err := NewDeactivateExpiredHandler(svc).ProcessTask(context.Background(), task)
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.Empty(t, svc.batchSizes)
	})

	t.Run("service failure is retried", func(t *testing.T) {
		boom := errors.New("db down")
		svc := &stubService{err: boom}
		task, err := NewDeactivateExpiredTask(10)
		require.NoError(t, err)

		err = NewDeactivateExpiredHandler(svc).ProcessTask(context.Background(), task)
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, asynq.SkipRetry)
	})
}
