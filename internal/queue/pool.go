// Package queue implements the bounded, rate-limited, retrying worker
// pool shared by the tick pipeline and the candle engine. Retry/backoff
// is hand-rolled rather than pulled from a backoff library: nothing in
// the retrieved example pack imports one directly, and every reconnect
// or retry loop in the pack (e.g. the fixed/exponential delay loop in
// a websocket ingest client) hand-rolls the same doubling-delay pattern
// this pool follows.
package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Job is a unit of work submitted to a Pool. Run should be idempotent:
// it may be invoked more than once for the same job on retry.
type Job struct {
	ID  string
	Run func(ctx context.Context) error
}

// Config controls a Pool's concurrency, rate limit, retry policy, and
// per-job timeout.
type Config struct {
	Name          string
	Concurrency   int
	RatePerSecond float64
	MaxAttempts   int
	BackoffStart  time.Duration
	JobTimeout    time.Duration
	QueueSize     int
}

// Pool is a bounded worker pool: a fixed number of goroutines pull
// jobs off a buffered channel, each gated by a shared rate limiter,
// retrying failed jobs with exponential backoff up to MaxAttempts.
// Successful jobs are simply dropped (no separate cleanup step is
// needed since nothing is queue-durable in this port).
type Pool struct {
	cfg     Config
	limiter *rate.Limiter
	jobs    chan Job
	log     *zap.SugaredLogger

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New builds a Pool from cfg. Concurrency and QueueSize both default
// to 1 if left unset.
func New(cfg Config, log *zap.SugaredLogger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Pool{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		jobs:    make(chan Job, cfg.QueueSize),
		log:     log,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the pool's worker goroutines. Workers run until ctx
// is canceled or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Enqueue submits a job. It blocks if the queue is full, applying
// natural backpressure to producers rather than dropping work.
func (p *Pool) Enqueue(ctx context.Context, job Job) error {
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return context.Canceled
	}
}

// Stop closes the job channel and waits for in-flight jobs (and their
// retries) to finish or for ctx to be canceled.
func (p *Pool) Stop(ctx context.Context) {
	p.stopOnce.Do(func() { close(p.stopCh) })
	close(p.jobs)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.log.Warnw("pool stop timed out, in-flight jobs abandoned", "pool", p.cfg.Name)
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for job := range p.jobs {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
		p.runWithRetry(ctx, job)
	}
}

// runWithRetry attempts job.Run up to MaxAttempts times, doubling the
// backoff delay starting at BackoffStart, bounding each attempt to
// JobTimeout. A job that still fails after the last attempt is
// logged and dropped (see the tick/candle normalizer error policy for
// why a drop is the correct terminal state here).
func (p *Pool) runWithRetry(ctx context.Context, job Job) {
	delay := p.cfg.BackoffStart

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		jobCtx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
		err := job.Run(jobCtx)
		cancel()

		if err == nil {
			return
		}

		if attempt == p.cfg.MaxAttempts {
			p.log.Warnw("job exhausted retries, dropping",
				"pool", p.cfg.Name, "job", job.ID, "attempts", attempt, "err", err)
			return
		}

		p.log.Infow("job failed, retrying",
			"pool", p.cfg.Name, "job", job.ID, "attempt", attempt, "err", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
		delay *= 2
	}
}
