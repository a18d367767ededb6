package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/algoflow/algoflow/common/logger"
	"github.com/algoflow/algoflow/common/models"
)

// WorkflowStore is the persistence surface the scheduler needs
type WorkflowStore interface {
	ListActive(ctx context.Context) ([]*models.Workflow, error)
	SetActive(ctx context.Context, id int64, active bool, jobID *string) error
}

// Trigger fires one workflow run. Cron invokes it on its own goroutine,
// so it may block for the length of the execution.
type Trigger func(workflowID int64)

type job struct {
	workflowID int64
	entryID    cron.EntryID
	timer      *time.Timer
	runAt      time.Time
}

// Scheduler turns start-node schedules into cron entries and one-shot
// timers, and remembers them by persisted job id so activation survives
// restarts via Rehydrate.
type Scheduler struct {
	cron      *cron.Cron
	workflows WorkflowStore
	trigger   Trigger
	log       *logger.Logger
	loc       *time.Location
	now       func() time.Time

	mu   sync.Mutex
	jobs map[string]*job
}

// Opts configures a Scheduler
type Opts struct {
	Workflows WorkflowStore
	Trigger   Trigger
	Logger    *logger.Logger
	// Location anchors wall-clock schedules; defaults to time.Local
	Location *time.Location
}

// New creates a stopped scheduler; call Start to begin firing
func New(opts Opts) *Scheduler {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		workflows: opts.Workflows,
		trigger:   opts.Trigger,
		log:       opts.Logger,
		loc:       loc,
		now:       time.Now,
		jobs:      make(map[string]*job),
	}
}

// Start begins firing schedules
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts cron and pending one-shot timers. Running executions finish
// on their own.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, j := range s.jobs {
		if j.timer != nil {
			j.timer.Stop()
		}
		delete(s.jobs, id)
	}
}

// Activate registers a workflow's schedule and returns the job id to
// persist on the workflow row.
func (s *Scheduler) Activate(wf *models.Workflow) (string, error) {
	spec, err := ParseSpec(wf, s.loc, s.now())
	if err != nil {
		return "", err
	}

	jobID := fmt.Sprintf("workflow_%d_%s", wf.ID, uuid.NewString()[:8])

	s.mu.Lock()
	defer s.mu.Unlock()

	if spec.Type == TypeOnce {
		wait := spec.RunAt.Sub(s.now())
		workflowID := wf.ID
		j := &job{workflowID: workflowID, runAt: spec.RunAt}
		j.timer = time.AfterFunc(wait, func() {
			s.fireOnce(jobID, workflowID)
		})
		s.jobs[jobID] = j
		s.log.Info("scheduled one-shot workflow",
			"workflow_id", workflowID, "job_id", jobID, "run_at", spec.RunAt)
		return jobID, nil
	}

	expr := spec.CronExpr()
	workflowID := wf.ID
	entryID, err := s.cron.AddFunc(expr, func() {
		s.trigger(workflowID)
	})
	if err != nil {
		return "", fmt.Errorf("failed to register schedule %q: %w", expr, err)
	}

	s.jobs[jobID] = &job{workflowID: workflowID, entryID: entryID}
	s.log.Info("scheduled workflow",
		"workflow_id", workflowID, "job_id", jobID, "cron", expr)
	return jobID, nil
}

// Deactivate removes a job. Unknown ids are a no-op so deactivation stays
// idempotent.
func (s *Scheduler) Deactivate(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return
	}
	if j.timer != nil {
		j.timer.Stop()
	} else {
		s.cron.Remove(j.entryID)
	}
	delete(s.jobs, jobID)
	s.log.Info("unscheduled workflow", "workflow_id", j.workflowID, "job_id", jobID)
}

// NextRun reports when a job will next fire, or nil for unknown jobs
func (s *Scheduler) NextRun(jobID string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	if j.timer != nil {
		runAt := j.runAt
		return &runAt
	}

	entry := s.cron.Entry(j.entryID)
	if entry.ID == 0 || entry.Next.IsZero() {
		return nil
	}
	next := entry.Next
	return &next
}

// Rehydrate re-registers every active workflow after a restart. Job ids
// are minted fresh and written back; workflows whose schedules no longer
// parse are deactivated rather than left half-armed.
func (s *Scheduler) Rehydrate(ctx context.Context) error {
	workflows, err := s.workflows.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active workflows: %w", err)
	}

	for _, wf := range workflows {
		jobID, err := s.Activate(wf)
		if err != nil {
			s.log.Warn("could not rehydrate schedule, deactivating",
				"workflow_id", wf.ID, "error", err)
			if err := s.workflows.SetActive(ctx, wf.ID, false, nil); err != nil {
				s.log.Error("failed to deactivate workflow", "error", err, "workflow_id", wf.ID)
			}
			continue
		}
		if err := s.workflows.SetActive(ctx, wf.ID, true, &jobID); err != nil {
			s.log.Error("failed to store job id", "error", err, "workflow_id", wf.ID)
		}
	}

	s.log.Info("rehydrated schedules", "count", len(workflows))
	return nil
}

// fireOnce runs a one-shot workflow then deactivates it
func (s *Scheduler) fireOnce(jobID string, workflowID int64) {
	s.mu.Lock()
	delete(s.jobs, jobID)
	s.mu.Unlock()

	s.trigger(workflowID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.workflows.SetActive(ctx, workflowID, false, nil); err != nil {
		s.log.Error("failed to deactivate one-shot workflow", "error", err, "workflow_id", workflowID)
	}
}
