package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/notegest/internal/config"
	"github.com/dgallion1/notegest/internal/parser"
	"github.com/dgallion1/notegest/internal/pathstore"
)

// Orchestrator manages the notes compilation pipeline.
type Orchestrator struct {
	jobs      *JobStore
	queue     chan *Job
	stats     *Stats
	publisher *pathstore.Publisher
	log       *slog.Logger
	cfg       config.Config

	mu      sync.RWMutex // guards stopped and the close of queue
	stopped bool

	cancel  context.CancelFunc
	workers sync.WaitGroup
	wg      sync.WaitGroup
}

// NewOrchestrator creates the pipeline. A nil publisher disables publishing;
// jobs then finish after compilation.
func NewOrchestrator(cfg config.Config, publisher *pathstore.Publisher, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:      NewJobStore(cfg.JobTTL),
		queue:     make(chan *Job, cfg.MaxQueueSize),
		stats:     NewStats(cfg.StatsWindow),
		publisher: publisher,
		log:       log,
		cfg:       cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.workers.Add(1)
		go func() {
			defer o.workers.Done()
			w := o.newWorker()
			for job := range o.queue {
				w.Process(workerCtx, job)
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

func (o *Orchestrator) newWorker() *Worker {
	return NewWorker(o.publisher, o.stats, o.log, WorkerOptions{
		Parser:               parser.Options{PDFFallbackPdftotext: o.cfg.PDFFallbackPdftotext},
		ParseConcurrency:     o.cfg.ParseConcurrency,
		MaxConcurrentPublish: o.cfg.MaxConcurrentPublish,
	})
}

// Stop rejects new jobs, waits for the workers to finish every queued job,
// then stops the cleanup loop. Cancelling the context passed to Start makes
// the remaining jobs fail fast instead.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	o.workers.Wait()
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "shutdown")
		return fmt.Errorf("pipeline is shutting down")
	}
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Stats returns the compile latency tracker.
func (o *Orchestrator) Stats() *Stats {
	return o.stats
}

// Publisher returns the pathstore publisher, or nil when publishing is off.
func (o *Orchestrator) Publisher() *pathstore.Publisher {
	return o.publisher
}
