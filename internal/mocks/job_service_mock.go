package mocks

import (
	"context"

	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/dto"
	"github.com/joshu-sajeev/queuectl/internal/models"
	"github.com/stretchr/testify/mock"
)

type JobServiceMock struct {
	mock.Mock
}

func (m *JobServiceMock) Enqueue(ctx context.Context, req *dto.EnqueueRequest) (*models.Job, error) {
	args := m.Called(ctx, req)
	j, _ := args.Get(0).(*models.Job)
	return j, args.Error(1)
}

func (m *JobServiceMock) Claim(ctx context.Context, workerID string) (*models.Job, error) {
	args := m.Called(ctx, workerID)
	j, _ := args.Get(0).(*models.Job)
	return j, args.Error(1)
}

func (m *JobServiceMock) ReportSuccess(ctx context.Context, jobID, workerID string, res models.ExecutionResult) (*models.Job, error) {
	args := m.Called(ctx, jobID, workerID, res)
	j, _ := args.Get(0).(*models.Job)
	return j, args.Error(1)
}

func (m *JobServiceMock) ReportFailure(ctx context.Context, jobID, workerID string, res models.ExecutionResult) (*models.Job, error) {
	args := m.Called(ctx, jobID, workerID, res)
	j, _ := args.Get(0).(*models.Job)
	return j, args.Error(1)
}

func (m *JobServiceMock) Get(ctx context.Context, id string) (*models.Job, error) {
	args := m.Called(ctx, id)
	j, _ := args.Get(0).(*models.Job)
	return j, args.Error(1)
}

func (m *JobServiceMock) List(ctx context.Context, q dto.ListQuery) ([]models.Job, error) {
	args := m.Called(ctx, q)
	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobServiceMock) DLQList(ctx context.Context, limit int) ([]models.Job, error) {
	args := m.Called(ctx, limit)
	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobServiceMock) DLQRequeue(ctx context.Context, id string) (*models.Job, error) {
	args := m.Called(ctx, id)
	j, _ := args.Get(0).(*models.Job)
	return j, args.Error(1)
}

func (m *JobServiceMock) Stats(ctx context.Context) (map[config.JobState]int, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).(map[config.JobState]int)
	return counts, args.Error(1)
}
