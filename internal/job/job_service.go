package job

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joshu-sajeev/queuectl/internal/backoff"
	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/dto"
	"github.com/joshu-sajeev/queuectl/internal/models"
	"github.com/sirupsen/logrus"
)

const defaultStaleClaimThreshold = 30 * time.Second

// errUnchanged aborts an Update whose transform made no modification,
// so idle polls do not rewrite the jobs file.
var errUnchanged = errors.New("unchanged")

type JobService struct {
	repo       JobRepoInterface
	policy     PolicyRepoInterface
	liveness   WorkerLiveness
	staleAfter time.Duration
	now        func() time.Time
	newID      func() (string, error)
	log        logrus.FieldLogger
}

type Option func(*JobService)

// WithWorkerLiveness makes Claim spare stale looking claims whose owner
// is still heartbeating. Without it only the claim age is considered.
func WithWorkerLiveness(l WorkerLiveness) Option {
	return func(s *JobService) { s.liveness = l }
}

func WithStaleClaimThreshold(d time.Duration) Option {
	return func(s *JobService) { s.staleAfter = d }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *JobService) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *JobService) { s.now = now }
}

func NewJobService(repo JobRepoInterface, policy PolicyRepoInterface, opts ...Option) *JobService {
	s := &JobService{
		repo:       repo,
		policy:     policy,
		staleAfter: defaultStaleClaimThreshold,
		now:        time.Now,
		newID:      newJobID,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ JobServiceInterface = (*JobService)(nil)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func newJobID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Enqueue validates req, fills unset policy fields from the config record,
// and appends a pending job. An explicit id that already exists is rejected.
func (s *JobService) Enqueue(ctx context.Context, req *dto.EnqueueRequest) (*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if req == nil {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidJob)
	}

	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidJob, describeValidation(err))
	}

	if strings.TrimSpace(req.Command) == "" {
		return nil, fmt.Errorf("%w: command is required", ErrInvalidJob)
	}

	policy, err := s.policy.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load queue config: %w", err)
	}

	maxRetries := policy.MaxRetries
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}
	if maxRetries < 0 {
		return nil, fmt.Errorf("%w: max_retries must be non-negative", ErrInvalidJob)
	}

	backoffBase := policy.BackoffBase
	if req.BackoffBase != nil {
		backoffBase = *req.BackoffBase
	}
	if backoffBase <= 0 {
		return nil, fmt.Errorf("%w: backoff_base must be positive", ErrInvalidJob)
	}

	now := s.now().UTC()
	eligible := now
	switch {
	case req.RunAt != nil:
		eligible = req.RunAt.UTC()
	case req.Delay != nil:
		eligible = now.Add(req.Delay.Std())
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		if id, err = s.newID(); err != nil {
			return nil, fmt.Errorf("generate job id: %w", err)
		}
	}

	job := models.Job{
		ID:             id,
		Command:        req.Command,
		State:          config.JobStatePending,
		MaxRetries:     maxRetries,
		BackoffBase:    backoffBase,
		NextEligibleAt: eligible,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.repo.Update(ctx, func(l *models.JobList) error {
		if l.Find(id) >= 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		l.Jobs = append(l.Jobs, job)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"max_retries": job.MaxRetries,
		"eligible_at": job.NextEligibleAt,
	}).Info("job enqueued")

	return &job, nil
}

// Claim hands the oldest eligible job to workerID. Before selecting it
// returns abandoned claims to pending. It returns nil when nothing is due.
func (s *JobService) Claim(ctx context.Context, workerID string) (*models.Job, error) {
	if workerID == "" {
		return nil, errors.New("job: worker id is required")
	}

	live, canReclaim := s.liveOwners(ctx)

	var claimed *models.Job
	err := s.repo.Update(ctx, func(l *models.JobList) error {
		now := s.now().UTC()

		reclaimed := 0
		if canReclaim {
			reclaimed = s.reclaimStale(l, now, live)
		}

		idx := -1
		for i := range l.Jobs {
			if !l.Jobs[i].Claimable(now) {
				continue
			}
			if idx < 0 || runsBefore(&l.Jobs[i], &l.Jobs[idx]) {
				idx = i
			}
		}

		if idx < 0 {
			if reclaimed > 0 {
				return nil
			}
			return errUnchanged
		}

		j := &l.Jobs[idx]
		if err := ValidateTransition(j.State, config.JobStateRunning); err != nil {
			return err
		}

		claimedAt := now
		j.State = config.JobStateRunning
		j.ClaimedBy = workerID
		j.ClaimedAt = &claimedAt
		j.UpdatedAt = now

		c := *j
		claimed = &c
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if claimed != nil {
		s.log.WithFields(logrus.Fields{
			"job_id":    claimed.ID,
			"worker_id": workerID,
			"attempt":   claimed.Attempts + 1,
		}).Debug("job claimed")
	}

	return claimed, nil
}

func (s *JobService) liveOwners(ctx context.Context) (map[string]bool, bool) {
	if s.liveness == nil {
		return nil, true
	}

	live, err := s.liveness.LiveWorkerIDs(ctx)
	if err != nil {
		// without liveness data a busy worker could lose its job
		s.log.WithError(err).Warn("worker registry unavailable, skipping stale claim recovery")
		return nil, false
	}
	return live, true
}

func (s *JobService) reclaimStale(l *models.JobList, now time.Time, live map[string]bool) int {
	n := 0
	for i := range l.Jobs {
		j := &l.Jobs[i]
		if j.State != config.JobStateRunning {
			continue
		}
		if j.ClaimedAt != nil && now.Sub(*j.ClaimedAt) <= s.staleAfter {
			continue
		}
		if live[j.ClaimedBy] {
			continue
		}

		s.log.WithFields(logrus.Fields{
			"job_id":     j.ID,
			"claimed_by": j.ClaimedBy,
			"claimed_at": j.ClaimedAt,
			"attempts":   j.Attempts,
		}).Info("stale claim reclaimed")

		j.State = config.JobStatePending
		j.ClaimedBy = ""
		j.ClaimedAt = nil
		j.NextEligibleAt = now
		j.UpdatedAt = now
		n++
	}
	return n
}

// runsBefore orders jobs FIFO by creation time, ties broken by id.
func runsBefore(a, b *models.Job) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (s *JobService) ReportSuccess(ctx context.Context, jobID, workerID string, res models.ExecutionResult) (*models.Job, error) {
	j, err := s.settle(ctx, jobID, workerID, func(j *models.Job, now time.Time) error {
		if err := ValidateTransition(j.State, config.JobStateSucceeded); err != nil {
			return err
		}
		j.Attempts++
		j.State = config.JobStateSucceeded
		j.LastError = ""
		recordResult(j, res)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"job_id":    j.ID,
		"worker_id": workerID,
		"attempts":  j.Attempts,
	}).Info("job succeeded")

	return j, nil
}

// ReportFailure records a failed attempt. While attempts stay within the
// retry budget the job goes back to pending behind an exponential delay,
// otherwise it moves to the dead letter queue.
func (s *JobService) ReportFailure(ctx context.Context, jobID, workerID string, res models.ExecutionResult) (*models.Job, error) {
	var delay time.Duration

	j, err := s.settle(ctx, jobID, workerID, func(j *models.Job, now time.Time) error {
		next := config.JobStateDeadLetter
		if j.Attempts+1 <= j.MaxRetries {
			next = config.JobStatePending
		}
		if err := ValidateTransition(j.State, next); err != nil {
			return err
		}

		j.Attempts++
		j.State = next
		recordResult(j, res)
		j.LastError = res.Err
		if j.LastError == "" {
			j.LastError = fmt.Sprintf("exit status %d", res.ExitCode)
		}

		if next == config.JobStatePending {
			strategy := backoff.NewExponential(j.BackoffBase.Std(), 0)
			delay = strategy.Delay(j.Attempts)
			j.NextEligibleAt = backoff.NextEligible(strategy, now, j.Attempts)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{
		"job_id":    j.ID,
		"worker_id": workerID,
		"attempts":  j.Attempts,
		"error":     j.LastError,
	}
	if j.State == config.JobStateDeadLetter {
		s.log.WithFields(fields).Error("job moved to dead letter queue")
	} else {
		fields["delay"] = delay
		s.log.WithFields(fields).Warn("job failed, retry scheduled")
	}

	return j, nil
}

// settle applies a terminal or retry outcome to a job the worker still owns.
func (s *JobService) settle(ctx context.Context, jobID, workerID string, apply func(*models.Job, time.Time) error) (*models.Job, error) {
	var out *models.Job

	err := s.repo.Update(ctx, func(l *models.JobList) error {
		idx := l.Find(jobID)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}

		j := &l.Jobs[idx]
		if j.State != config.JobStateRunning || j.ClaimedBy != workerID {
			return fmt.Errorf("%w: %s is %s and claimed by %q", ErrClaimLost, jobID, j.State, j.ClaimedBy)
		}

		now := s.now().UTC()
		if err := apply(j, now); err != nil {
			return err
		}

		j.ClaimedBy = ""
		j.ClaimedAt = nil
		j.UpdatedAt = now

		c := *j
		out = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func recordResult(j *models.Job, res models.ExecutionResult) {
	code := res.ExitCode
	j.ExitCode = &code
	j.Stdout = res.Stdout
	j.Stderr = res.Stderr
}

func (s *JobService) Get(ctx context.Context, id string) (*models.Job, error) {
	l, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	idx := l.Find(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	j := l.Jobs[idx]
	return &j, nil
}

// List returns jobs ordered by creation time, optionally filtered by state.
// A zero limit returns everything.
func (s *JobService) List(ctx context.Context, opts dto.ListQuery) ([]models.Job, error) {
	if opts.State != "" && !opts.State.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidJob, opts.State)
	}

	l, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Job, 0, len(l.Jobs))
	for _, j := range l.Jobs {
		if opts.State == "" || j.State == opts.State {
			out = append(out, j)
		}
	}

	sort.SliceStable(out, func(a, b int) bool { return runsBefore(&out[a], &out[b]) })

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *JobService) DLQList(ctx context.Context, limit int) ([]models.Job, error) {
	return s.List(ctx, dto.ListQuery{State: config.JobStateDeadLetter, Limit: limit})
}

// DLQRequeue gives a dead lettered job a fresh retry budget.
func (s *JobService) DLQRequeue(ctx context.Context, id string) (*models.Job, error) {
	var out *models.Job

	err := s.repo.Update(ctx, func(l *models.JobList) error {
		idx := l.Find(id)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}

		j := &l.Jobs[idx]
		if j.State != config.JobStateDeadLetter {
			return fmt.Errorf("%w: %s is %s, not in the dead letter queue", ErrInvalidState, id, j.State)
		}
		if err := ValidateTransition(j.State, config.JobStatePending); err != nil {
			return err
		}

		now := s.now().UTC()
		j.State = config.JobStatePending
		j.Attempts = 0
		j.NextEligibleAt = now
		j.LastError = ""
		j.ClaimedBy = ""
		j.ClaimedAt = nil
		j.UpdatedAt = now

		c := *j
		out = &c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("job_id", id).Info("job requeued from dead letter queue")
	return out, nil
}

// Stats counts jobs per state. Every state is present in the result.
func (s *JobService) Stats(ctx context.Context) (map[config.JobState]int, error) {
	l, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[config.JobState]int, len(config.AllJobStates))
	for _, st := range config.AllJobStates {
		counts[st] = 0
	}
	for _, j := range l.Jobs {
		counts[j.State]++
	}
	return counts, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, e := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", e.Field(), e.Tag()))
	}
	return strings.Join(parts, "; ")
}
