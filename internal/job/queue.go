package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/catdesk/backend/internal/caterr"
	"github.com/catdesk/backend/internal/logging"
)

// JobQueue manages job persistence and dispatching
type JobQueue struct {
	db       *sqlx.DB
	mu       sync.RWMutex
	pending  chan string // job IDs to process
	cancels  map[string]context.CancelFunc
	handlers map[JobType]JobHandler
	notify   func(*Job)
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	start    sync.Once
	log      *logrus.Entry
}

// jobRow mirrors the jobs table; nullable columns are scanned separately.
type jobRow struct {
	ID          string         `db:"id"`
	Type        string         `db:"type"`
	Status      string         `db:"status"`
	ProjectID   string         `db:"project_id"`
	Params      string         `db:"params"`
	Progress    float64        `db:"progress"`
	Result      sql.NullString `db:"result"`
	Error       sql.NullString `db:"error"`
	CreatedBy   int64          `db:"created_by"`
	CreatedAt   time.Time      `db:"created_at"`
	StartedAt   sql.NullTime   `db:"started_at"`
	CompletedAt sql.NullTime   `db:"completed_at"`
}

const jobColumns = `id, type, status, project_id, params, progress, result, error,
	created_by, created_at, started_at, completed_at`

func (r jobRow) job() *Job {
	j := &Job{
		ID:        r.ID,
		Type:      JobType(r.Type),
		Status:    JobStatus(r.Status),
		ProjectID: r.ProjectID,
		Params:    json.RawMessage(r.Params),
		Progress:  r.Progress,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
	}
	if r.Result.Valid {
		j.Result = json.RawMessage(r.Result.String)
	}
	if r.Error.Valid {
		j.Error = r.Error.String
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		j.StartedAt = &t
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		j.CompletedAt = &t
	}
	return j
}

// NewJobQueue creates a job queue. Register handlers, then call Start.
func NewJobQueue(db *sqlx.DB) *JobQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobQueue{
		db:       db,
		pending:  make(chan string, 100),
		cancels:  make(map[string]context.CancelFunc),
		handlers: make(map[JobType]JobHandler),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		log:      logging.For("job"),
	}
}

// Start re-queues jobs left pending or running by a previous process and
// starts the worker. Jobs whose type has no handler by then fail.
func (q *JobQueue) Start() {
	q.start.Do(func() {
		q.resumeJobs()
		go q.worker()
	})
}

// RegisterHandler registers a handler for a job type
func (q *JobQueue) RegisterHandler(jobType JobType, handler JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// OnUpdate sets a callback invoked after every state change of a job.
func (q *JobQueue) OnUpdate(fn func(*Job)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notify = fn
}

// Enqueue creates a new job and adds it to the queue
func (q *JobQueue) Enqueue(jobType JobType, projectID string, createdBy int64, params interface{}) (*Job, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	job := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Status:    StatusPending,
		ProjectID: projectID,
		Params:    paramsJSON,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}

	_, err = q.db.Exec(`
		INSERT INTO jobs (id, type, status, project_id, params, progress, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Type, job.Status, job.ProjectID, string(job.Params), job.Progress, job.CreatedBy, job.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	q.push(job.ID)
	q.changed(job.ID)
	return job, nil
}

func (q *JobQueue) push(id string) {
	select {
	case q.pending <- id:
	default:
		q.log.WithField("job", id).Warn("queue full, job will be picked up on next restart")
	}
}

// GetJob retrieves a job by ID
func (q *JobQueue) GetJob(id string) (*Job, error) {
	var row jobRow
	if err := q.db.Get(&row, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, caterr.Field(caterr.ErrNotFound, "job.GetJob", "id", id)
		}
		return nil, err
	}
	return row.job(), nil
}

// ListJobs returns the jobs of a project, or all jobs when projectID is
// empty, newest first
func (q *JobQueue) ListJobs(projectID string) ([]*Job, error) {
	var rows []jobRow
	var err error
	if projectID == "" {
		err = q.db.Select(&rows, "SELECT "+jobColumns+" FROM jobs ORDER BY created_at DESC")
	} else {
		err = q.db.Select(&rows, "SELECT "+jobColumns+" FROM jobs WHERE project_id = ? ORDER BY created_at DESC", projectID)
	}
	if err != nil {
		return nil, err
	}
	jobs := make([]*Job, len(rows))
	for i, r := range rows {
		jobs[i] = r.job()
	}
	return jobs, nil
}

// CancelJob cancels a pending or running job
func (q *JobQueue) CancelJob(id string) error {
	q.mu.Lock()
	if cancelFn, ok := q.cancels[id]; ok {
		cancelFn()
		delete(q.cancels, id)
	}
	q.mu.Unlock()

	_, err := q.db.Exec(`
		UPDATE jobs SET status = ?, completed_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		StatusCancelled, time.Now(), id, StatusPending, StatusRunning,
	)
	if err == nil {
		q.changed(id)
	}
	return err
}

// RetryJob re-queues a failed or cancelled job
func (q *JobQueue) RetryJob(id string) error {
	res, err := q.db.Exec(`
		UPDATE jobs SET status = ?, progress = 0, result = NULL, error = NULL, started_at = NULL, completed_at = NULL
		WHERE id = ? AND status IN (?, ?)`,
		StatusPending, id, StatusFailed, StatusCancelled,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return caterr.Field(caterr.ErrInvalidInput, "job.RetryJob", "status", id)
	}
	q.push(id)
	q.changed(id)
	return nil
}

// UpdateProgress records progress of a running job as a fraction in [0, 1].
func (q *JobQueue) UpdateProgress(id string, progress float64) {
	if progress < 0 {
		progress = 0
	} else if progress > 1 {
		progress = 1
	}
	q.db.Exec("UPDATE jobs SET progress = ? WHERE id = ?", progress, id)
	q.changed(id)
}

// Purge deletes finished jobs completed before cutoff and returns them.
func (q *JobQueue) Purge(cutoff time.Time) ([]*Job, error) {
	var rows []jobRow
	if err := q.db.Select(&rows, "SELECT "+jobColumns+" FROM jobs WHERE status IN (?, ?, ?) AND completed_at < ?",
		StatusCompleted, StatusFailed, StatusCancelled, cutoff); err != nil {
		return nil, err
	}
	jobs := make([]*Job, 0, len(rows))
	for _, r := range rows {
		if _, err := q.db.Exec("DELETE FROM jobs WHERE id = ?", r.ID); err != nil {
			return jobs, err
		}
		jobs = append(jobs, r.job())
	}
	return jobs, nil
}

// Stop shuts down the queue and waits for the worker to return
func (q *JobQueue) Stop() {
	q.cancel()
	q.start.Do(func() { close(q.done) })
	<-q.done
}

// worker processes jobs from the pending channel one at a time
func (q *JobQueue) worker() {
	defer close(q.done)
	for {
		select {
		case <-q.ctx.Done():
			return
		case jobID := <-q.pending:
			q.processJob(jobID)
		}
	}
}

// processJob runs a single job
func (q *JobQueue) processJob(jobID string) {
	log := q.log.WithField("job", jobID)
	job, err := q.GetJob(jobID)
	if err != nil {
		log.WithError(err).Warn("failed to load job")
		return
	}

	// Skip if not pending
	if job.Status != StatusPending {
		return
	}

	q.mu.RLock()
	handler, ok := q.handlers[job.Type]
	q.mu.RUnlock()

	if !ok {
		q.failJob(job, fmt.Sprintf("no handler for job type: %s", job.Type))
		return
	}

	// Mark as running
	now := time.Now()
	job.StartedAt = &now
	job.Status = StatusRunning
	q.db.Exec("UPDATE jobs SET status = ?, started_at = ? WHERE id = ?", StatusRunning, now, job.ID)
	q.changed(job.ID)

	ctx, cancelFn := context.WithCancel(q.ctx)
	q.mu.Lock()
	q.cancels[job.ID] = cancelFn
	q.mu.Unlock()

	updateProgress := func(progress float64) {
		q.UpdateProgress(job.ID, progress)
	}

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := handler(ctx, job, updateProgress)
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		log.Info("job cancelled")
	case out := <-done:
		if ctx.Err() != nil {
			log.Info("job cancelled")
			break
		}
		if out.err != nil {
			q.failJob(job, out.err.Error())
		} else {
			q.completeJob(job, out.result)
		}
	}

	q.mu.Lock()
	delete(q.cancels, job.ID)
	q.mu.Unlock()
	cancelFn()
}

func (q *JobQueue) completeJob(job *Job, result interface{}) {
	var resultJSON sql.NullString
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			q.failJob(job, fmt.Sprintf("marshal result: %v", err))
			return
		}
		resultJSON = sql.NullString{String: string(b), Valid: true}
	}
	q.db.Exec("UPDATE jobs SET status = ?, progress = 1.0, result = ?, completed_at = ? WHERE id = ? AND status = ?",
		StatusCompleted, resultJSON, time.Now(), job.ID, StatusRunning)
	q.log.WithField("job", job.ID).Info("job completed")
	q.changed(job.ID)
}

func (q *JobQueue) failJob(job *Job, errMsg string) {
	q.db.Exec("UPDATE jobs SET status = ?, error = ?, completed_at = ? WHERE id = ? AND status IN (?, ?)",
		StatusFailed, errMsg, time.Now(), job.ID, StatusPending, StatusRunning)
	q.log.WithField("job", job.ID).Warnf("job failed: %s", errMsg)
	q.changed(job.ID)
}

func (q *JobQueue) changed(id string) {
	q.mu.RLock()
	fn := q.notify
	q.mu.RUnlock()
	if fn == nil {
		return
	}
	if j, err := q.GetJob(id); err == nil {
		fn(j)
	}
}

// resumeJobs re-queues any pending jobs found in DB on startup
func (q *JobQueue) resumeJobs() {
	// Mark any previously "running" jobs as pending (server restarted)
	q.db.Exec("UPDATE jobs SET status = ? WHERE status = ?", StatusPending, StatusRunning)

	var ids []string
	if err := q.db.Select(&ids, "SELECT id FROM jobs WHERE status = ? ORDER BY created_at ASC", StatusPending); err != nil {
		q.log.WithError(err).Warn("failed to resume jobs")
		return
	}

	count := 0
	for _, id := range ids {
		select {
		case q.pending <- id:
			count++
		default:
		}
	}

	if count > 0 {
		q.log.Infof("resumed %d pending jobs", count)
	}
}
