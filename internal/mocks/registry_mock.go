package mocks

import (
	"context"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/dto"
	"github.com/joshu-sajeev/queuectl/internal/models"
	"github.com/stretchr/testify/mock"
)

type WorkerRegistryMock struct {
	mock.Mock
}

func (m *WorkerRegistryMock) List(ctx context.Context) ([]models.WorkerRecord, error) {
	args := m.Called(ctx)
	workers, _ := args.Get(0).([]models.WorkerRecord)
	return workers, args.Error(1)
}

func (m *WorkerRegistryMock) ActiveCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type WorkerStopperMock struct {
	mock.Mock
}

func (m *WorkerStopperMock) StopWorkers(ctx context.Context, workerID string, grace time.Duration) (*dto.StopWorkersResponse, error) {
	args := m.Called(ctx, workerID, grace)
	r, _ := args.Get(0).(*dto.StopWorkersResponse)
	return r, args.Error(1)
}
