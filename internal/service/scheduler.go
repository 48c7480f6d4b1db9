package service

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sirupsen/logrus"

	"sendlater/internal/audit"
	apperrors "sendlater/internal/errors"
	"sendlater/internal/models"
)

// JobStore is the durable state the scheduler operates on.
type JobStore interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	TransitionJobStatus(ctx context.Context, id string, from, to models.JobStatus) (bool, error)
	ListJobs(ctx context.Context, filter models.JobFilter) ([]models.Job, error)
	CleanupTerminalJobs(ctx context.Context, retentionDays int) error
}

// Notifier receives the outcome of timed fires. Inline fires report
// through the command reply instead.
type Notifier interface {
	FireSucceeded(ctx context.Context, job *models.Job, messageID string)
	FireFailed(ctx context.Context, job *models.Job, err error)
}

const fireTimeout = time.Minute

// Scheduler owns the job state machine. The store's compare-and-set on
// status is the single at-most-once gate; the timer set here is only a
// cache over pending rows and every fire re-checks the store first.
type Scheduler struct {
	store    JobStore
	executor ActionExecutor
	notifier Notifier
	audit    *audit.Logger
	logger   *logrus.Logger
	errlog   *apperrors.Logger

	mu       sync.Mutex
	timers   map[string]*time.Timer
	stopping bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(store JobStore, executor ActionExecutor, notifier Notifier, auditLog *audit.Logger, logger *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:    store,
		executor: executor,
		notifier: notifier,
		audit:    auditLog,
		logger:   logger,
		errlog:   apperrors.WrapLogger(logger),
		timers:   make(map[string]*time.Timer),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Schedule persists the job as pending and arms a timer for its fire
// time. The job is durable before Schedule returns.
func (s *Scheduler) Schedule(ctx context.Context, job *models.Job) error {
	job.Status = models.JobStatusPending
	if err := s.store.SaveJob(ctx, job); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStore, "failed to persist job").
			WithUserMessage("Failed to store the task. Nothing was scheduled.")
	}

	s.audit.Scheduled(job)
	s.arm(job.ID, job.FireAt)
	return nil
}

// Execute persists the job and fires it inline on the caller's
// goroutine, so the command reply can carry the delivery outcome.
// Used for immediate commands.
func (s *Scheduler) Execute(ctx context.Context, job *models.Job) (string, error) {
	job.Status = models.JobStatusPending
	if err := s.store.SaveJob(ctx, job); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeStore, "failed to persist job").
			WithUserMessage("Failed to store the task. Nothing was executed.")
	}
	s.audit.Scheduled(job)

	_, messageID, err := s.fire(ctx, job.ID)
	return messageID, err
}

// Cancel moves a pending job to cancelled and disarms its timer. The
// status transition and the fire gate share the same compare-and-set,
// so a job is never both cancelled and executed.
func (s *Scheduler) Cancel(ctx context.Context, jobID string) (models.CancelOutcome, error) {
	won, err := s.store.TransitionJobStatus(ctx, jobID, models.JobStatusPending, models.JobStatusCancelled)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeStore, "failed to cancel job").
			WithUserMessage("Failed to cancel the task.")
	}
	if won {
		s.disarm(jobID)
		s.audit.Cancelled(jobID, models.CancelOutcomeCancelled)
		return models.CancelOutcomeCancelled, nil
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeStore, "failed to load job").
			WithUserMessage("Failed to cancel the task.")
	}

	outcome := models.CancelOutcomeNotFound
	if job != nil {
		if job.Status == models.JobStatusCancelled {
			outcome = models.CancelOutcomeAlreadyCancelled
		} else {
			outcome = models.CancelOutcomeAlreadyFired
		}
	}
	s.audit.Cancelled(jobID, outcome)
	return outcome, nil
}

// Query delegates to the store's filtered scan.
func (s *Scheduler) Query(ctx context.Context, filter models.JobFilter) ([]models.Job, error) {
	jobs, err := s.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStore, "failed to query jobs").
			WithUserMessage("Failed to query tasks.")
	}
	return jobs, nil
}

// Recover scans non-terminal jobs on startup. Future pending jobs are
// re-armed and past-due ones fire immediately rather than being
// dropped. Jobs caught mid-fire by the previous shutdown may already
// have reached the backend, so re-executing them would break the
// at-most-once guarantee; they are marked failed instead.
func (s *Scheduler) Recover(ctx context.Context) error {
	jobs, err := s.store.ListJobs(ctx, models.JobFilter{
		Statuses: []models.JobStatus{models.JobStatusPending, models.JobStatusFiring},
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStore, "failed to scan unfinished jobs")
	}

	now := time.Now()
	rearmed, catchup, interrupted := 0, 0, 0
	for _, job := range jobs {
		if job.Status == models.JobStatusFiring {
			interrupted++
			if _, trErr := s.store.TransitionJobStatus(ctx, job.ID, models.JobStatusFiring, models.JobStatusFailed); trErr != nil {
				return apperrors.Wrap(trErr, apperrors.ErrCodeStore, "failed to fail interrupted job").
					WithContext("job", job.ID)
			}
			fireErr := apperrors.New(apperrors.ErrCodeAction, "fire interrupted by restart")
			s.audit.Fired(&job, "", fireErr)
			continue
		}

		if job.FireAt.After(now) {
			rearmed++
		} else {
			catchup++
		}
		s.arm(job.ID, job.FireAt)
	}

	s.logger.WithFields(logrus.Fields{
		"rearmed":     rearmed,
		"catchup":     catchup,
		"interrupted": interrupted,
	}).Info("Recovered unfinished jobs")
	return nil
}

// Stop disarms all timers and waits for in-flight fires to finish.
// The stopping flag is raised under the same lock the fire path uses
// to register with the wait group, so no fire can slip in after Wait
// starts.
func (s *Scheduler) Stop() {
	s.cancel()

	s.mu.Lock()
	s.stopping = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) arm(jobID string, fireAt time.Time) {
	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[jobID]; ok {
		old.Stop()
	}
	s.timers[jobID] = time.AfterFunc(delay, func() {
		s.disarm(jobID)
		s.fireTimed(jobID)
	})
}

func (s *Scheduler) disarm(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[jobID]; ok {
		timer.Stop()
		delete(s.timers, jobID)
	}
}

func (s *Scheduler) fireTimed(jobID string) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.ctx, fireTimeout)
	defer cancel()

	job, messageID, err := s.fire(ctx, jobID)
	if job == nil {
		return
	}
	if s.notifier == nil {
		return
	}
	if err != nil {
		s.notifier.FireFailed(ctx, job, err)
		return
	}
	s.notifier.FireSucceeded(ctx, job, messageID)
}

// fire drives one job through pending -> firing -> done/failed. The
// returned job is nil when this caller lost the gate (a concurrent
// cancel or fire won) or the store failed before execution.
func (s *Scheduler) fire(ctx context.Context, jobID string) (*models.Job, string, error) {
	ctx, span := otel.Tracer("sendlater/service").Start(ctx, "job.fire")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	won, err := s.store.TransitionJobStatus(ctx, jobID, models.JobStatusPending, models.JobStatusFiring)
	if err != nil {
		claimErr := apperrors.Wrap(err, apperrors.ErrCodeStore, "failed to claim job").
			WithContext("job", jobID).
			WithUserMessage("Failed to execute the task.")
		s.errlog.LogError(claimErr, "Failed to claim job for firing")
		return nil, "", claimErr
	}
	if !won {
		s.logger.WithField("job", jobID).Debug("Job already claimed or cancelled, skipping fire")
		return nil, "", nil
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil || job == nil {
		s.logger.WithError(err).WithField("job", jobID).Error("Failed to load job after claiming it")
		// The claim is already ours; the job must still land in a
		// terminal state rather than staying in firing forever.
		if _, trErr := s.store.TransitionJobStatus(ctx, jobID, models.JobStatusFiring, models.JobStatusFailed); trErr != nil {
			s.logger.WithError(trErr).WithField("job", jobID).Error("Failed to mark job as failed")
		}
		return nil, "", nil
	}

	messageID, execErr := s.executor.Execute(ctx, job)
	if execErr != nil {
		if _, trErr := s.store.TransitionJobStatus(ctx, jobID, models.JobStatusFiring, models.JobStatusFailed); trErr != nil {
			s.logger.WithError(trErr).WithField("job", jobID).Error("Failed to mark job as failed")
		}
		s.errlog.LogError(execErr, "Job execution failed", logrus.Fields{"job": jobID})
		s.audit.Fired(job, "", execErr)
		return job, "", execErr
	}

	if _, trErr := s.store.TransitionJobStatus(ctx, jobID, models.JobStatusFiring, models.JobStatusDone); trErr != nil {
		s.logger.WithError(trErr).WithField("job", jobID).Error("Failed to mark job as done")
	}
	s.audit.Fired(job, messageID, nil)
	return job, messageID, nil
}
