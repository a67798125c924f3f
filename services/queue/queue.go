// Package queue runs enhancement jobs one at a time in submission order.
//
// Pending jobs live in memory. They are written to a JSON snapshot on shutdown and
// put back at the head of the queue on the next start.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
	"github.com/sahilchouksey/module-enhancer/utils/validation"
)

const (
	// ConcurrencyLimit is the number of jobs allowed to run at once
	ConcurrencyLimit = 1

	DefaultTickInterval = 2 * time.Second
	DefaultSnapshotPath = "data/enhancement_queue.json"
)

var (
	// ErrQueueShutdown is delivered to jobs that were still pending when the queue stopped
	ErrQueueShutdown = errors.New("queue shutdown")
	// ErrInvalidJob is delivered when a request lacks a module id or title
	ErrInvalidJob = errors.New("invalid job")
)

var requestValidator = validation.NewValidator()

// Processor does the work for one job
type Processor interface {
	Process(ctx context.Context, job Job) (*Result, error)
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc func(ctx context.Context, job Job) (*Result, error)

func (f ProcessorFunc) Process(ctx context.Context, job Job) (*Result, error) {
	return f(ctx, job)
}

type Config struct {
	TickInterval time.Duration
	SnapshotPath string
	// SoftLimit is advisory; Enqueue never refuses work
	SoftLimit int
}

type Queue struct {
	cfg       Config
	processor Processor
	log       *logger.Logger
	cron      *cron.Cron
	now       func() time.Time

	mu       sync.Mutex
	pending  []*Job
	inFlight map[string]*Job
	closed   bool

	sem     chan struct{}
	running sync.WaitGroup

	startOnce    sync.Once
	shutdownOnce sync.Once
}

// New builds a queue and loads any jobs left in the snapshot file by a previous run.
// The snapshot file is deleted once read. Jobs do not run until Start is called.
func New(cfg Config, processor Processor, log *logger.Logger) (*Queue, error) {
	if processor == nil {
		return nil, errors.New("queue needs a processor")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.SnapshotPath == "" {
		cfg.SnapshotPath = DefaultSnapshotPath
	}

	q := &Queue{
		cfg:       cfg,
		processor: processor,
		log:       log,
		now:       time.Now,
		inFlight:  make(map[string]*Job),
		sem:       make(chan struct{}, ConcurrencyLimit),
	}

	q.cron = cron.New(cron.WithLogger(cronLogger{log: log}))
	q.cron.Schedule(intervalSchedule{interval: cfg.TickInterval}, cron.FuncJob(q.tick))

	recovered, err := readSnapshot(cfg.SnapshotPath)
	if err != nil {
		log.Error("Discarding unreadable queue snapshot", "path", cfg.SnapshotPath, "error", err)
	}
	for _, job := range recovered {
		job.result = make(chan Outcome, 1)
		q.pending = append(q.pending, job)
	}
	if len(recovered) > 0 {
		log.Info("Recovered queued jobs from snapshot", "count", len(recovered), "path", cfg.SnapshotPath)
	}

	return q, nil
}

// Start begins the periodic tick. Calling it more than once has no effect.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.log.Info("Starting enhancement queue", "tick_interval", q.cfg.TickInterval, "pending", q.Status().PendingCount)
		q.cron.Start()
	})
}

// Enqueue accepts a job and returns a channel that receives its single Outcome
func (q *Queue) Enqueue(req EnqueueRequest) <-chan Outcome {
	_, done := q.EnqueueJob(req)
	return done
}

// EnqueueJob is Enqueue that also returns the assigned job id. A refused request gets
// an empty id and its Outcome says why.
func (q *Queue) EnqueueJob(req EnqueueRequest) (string, <-chan Outcome) {
	result := make(chan Outcome, 1)

	if err := requestValidator.ValidateStruct(req); err != nil {
		result <- Outcome{Err: fmt.Errorf("%w: %v", ErrInvalidJob, err)}
		return "", result
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		result <- Outcome{Err: ErrQueueShutdown}
		return "", result
	}

	job := &Job{
		ID:                  q.nextID(req.ModuleID),
		ModuleID:            req.ModuleID,
		Title:               req.Title,
		Content:             req.Content,
		SubjectID:           req.SubjectID,
		InstructionOverride: req.InstructionOverride,
		SubjectName:         req.SubjectName,
		ProfessionName:      req.ProfessionName,
		ModuleNumber:        req.ModuleNumber,
		Timestamp:           q.now(),
		result:              result,
	}
	q.pending = append(q.pending, job)

	q.log.Info("Job enqueued", "job_id", job.ID, "module_id", job.ModuleID, "pending", len(q.pending))
	return job.ID, result
}

// nextID must be called with mu held
func (q *Queue) nextID(moduleID uint) string {
	base := fmt.Sprintf("module-%d-%d", moduleID, q.now().UnixMilli())
	id := base
	for n := 1; q.known(id); n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}

func (q *Queue) known(id string) bool {
	if _, ok := q.inFlight[id]; ok {
		return true
	}
	for _, job := range q.pending {
		if job.ID == id {
			return true
		}
	}
	return false
}

// Status is a point-in-time view of the queue
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]StatusItem, 0, len(q.pending))
	for _, job := range q.pending {
		items = append(items, StatusItem{
			ID:         job.ID,
			ModuleID:   job.ModuleID,
			Title:      job.Title,
			EnqueuedAt: job.Timestamp,
		})
	}

	return Status{
		PendingCount:     len(q.pending),
		InFlightCount:    len(q.inFlight),
		ConcurrencyLimit: ConcurrencyLimit,
		SoftLimit:        q.cfg.SoftLimit,
		Items:            items,
	}
}

// tick starts the next pending job when nothing is running. It never waits for the job.
func (q *Queue) tick() {
	q.mu.Lock()
	if q.closed || len(q.inFlight) >= ConcurrencyLimit || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}

	job := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.inFlight[job.ID] = job
	q.running.Add(1)
	q.mu.Unlock()

	go q.execute(job)
}

func (q *Queue) execute(job *Job) {
	defer q.running.Done()

	q.sem <- struct{}{}
	started := time.Now()
	q.log.Info("Job started", "job_id", job.ID, "module_id", job.ModuleID)

	outcome := q.invoke(job)
	<-q.sem

	q.mu.Lock()
	delete(q.inFlight, job.ID)
	q.mu.Unlock()

	if outcome.Err != nil {
		q.log.Error("Job failed", "job_id", job.ID, "duration", time.Since(started), "error", outcome.Err)
	} else {
		q.log.Info("Job finished", "job_id", job.ID, "duration", time.Since(started))
	}
	job.result <- outcome
}

func (q *Queue) invoke(job *Job) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Err: fmt.Errorf("processor panicked: %v", r)}
		}
	}()

	result, err := q.processor.Process(context.Background(), *job)
	if err == nil && result == nil {
		err = errors.New("processor returned no result")
	}
	return Outcome{Result: result, Err: err}
}

// Shutdown stops the tick, snapshots the pending jobs and rejects them with
// ErrQueueShutdown. A job already running is left to finish. Safe to call twice.
func (q *Queue) Shutdown() {
	q.shutdownOnce.Do(func() {
		<-q.cron.Stop().Done()

		q.mu.Lock()
		q.closed = true
		pending := q.pending
		q.pending = nil
		q.mu.Unlock()

		if err := writeSnapshot(q.cfg.SnapshotPath, pending); err != nil {
			q.log.Error("Failed to write queue snapshot", "path", q.cfg.SnapshotPath, "error", err)
		} else if len(pending) > 0 {
			q.log.Info("Queue snapshot written", "path", q.cfg.SnapshotPath, "jobs", len(pending))
		}

		for _, job := range pending {
			job.result <- Outcome{Err: ErrQueueShutdown}
		}
		q.log.Info("Enhancement queue stopped", "rejected", len(pending))
	})
}

// PersistSnapshot writes the pending jobs without stopping the queue
func (q *Queue) PersistSnapshot() error {
	q.mu.Lock()
	pending := make([]*Job, len(q.pending))
	copy(pending, q.pending)
	q.mu.Unlock()

	return writeSnapshot(q.cfg.SnapshotPath, pending)
}

// Wait blocks until running jobs finish or ctx is done. Call it after Shutdown.
func (q *Queue) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
