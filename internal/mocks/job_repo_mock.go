package mocks

import (
	"context"

	"github.com/joshu-sajeev/queuectl/internal/models"
	"github.com/stretchr/testify/mock"
)

// JobRepoMock stands in for the jobs record. Update runs fn against the
// list passed to On("Update") unless an error is configured.
type JobRepoMock struct {
	mock.Mock
}

func (m *JobRepoMock) Snapshot(ctx context.Context) (*models.JobList, error) {
	args := m.Called(ctx)
	l, _ := args.Get(0).(*models.JobList)
	return l, args.Error(1)
}

func (m *JobRepoMock) Update(ctx context.Context, fn func(*models.JobList) error) error {
	args := m.Called(ctx, fn)
	if err := args.Error(1); err != nil {
		return err
	}

	l, _ := args.Get(0).(*models.JobList)
	if l == nil {
		l = &models.JobList{}
	}
	return fn(l)
}

type PolicyRepoMock struct {
	mock.Mock
}

func (m *PolicyRepoMock) Load(ctx context.Context) (models.QueueConfig, error) {
	args := m.Called(ctx)
	cfg, _ := args.Get(0).(models.QueueConfig)
	return cfg, args.Error(1)
}
