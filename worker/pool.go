// Package worker runs check batteries on a bounded pool of goroutines.
// Batteries are independent of each other, so the pool imposes no ordering;
// the report's grouping, not execution order, defines the output structure.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	sv "github.com/jisantuc/stac-api-validator"
)

// Job is one battery bound to the class it runs under.
type Job struct {
	CheckID string
	Class   string
	Run     func(ctx context.Context) []sv.Finding
}

// JobResult carries a battery's findings. Err is set only when the battery
// panicked; ordinary scenario failures are FAIL findings, not errors.
type JobResult struct {
	CheckID  string
	Class    string
	Findings []sv.Finding
	Duration time.Duration
	Err      error
}

// Pool runs jobs on a fixed set of workers. A collector goroutine drains
// results as they complete, so Submit can queue arbitrarily many jobs ahead
// of the workers without anyone reading results in between.
type Pool struct {
	workers       int
	jobsChan      chan Job
	resultChan    chan *JobResult
	collected     []*JobResult
	collectorDone chan struct{}
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	closed        atomic.Bool

	jobsSubmitted atomic.Uint64
	jobsCompleted atomic.Uint64
	totalDuration atomic.Uint64
}

// NewPool starts a pool. workers <= 0 defaults to runtime.NumCPU().
// The parent context cancels in-flight batteries; completed results are
// still delivered so a cancelled run yields a well-formed partial report.
func NewPool(parent context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(parent)

	p := &Pool{
		workers:       workers,
		jobsChan:      make(chan Job, workers*2),
		resultChan:    make(chan *JobResult, workers*2),
		collectorDone: make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	go p.collect()

	return p
}

// Submit queues a job, blocking while the queue is full. It reports false
// when the pool is closed or cancelled.
func (p *Pool) Submit(job Job) bool {
	if p.closed.Load() {
		return false
	}

	select {
	case <-p.ctx.Done():
		return false
	case p.jobsChan <- job:
		p.jobsSubmitted.Add(1)
		return true
	}
}

// CloseAndWait stops accepting jobs, waits for in-flight batteries, and
// returns every collected result.
func (p *Pool) CloseAndWait() []*JobResult {
	if p.closed.Swap(true) {
		return nil
	}

	close(p.jobsChan)
	p.wg.Wait()
	close(p.resultChan)
	<-p.collectorDone
	p.cancel()

	return p.collected
}

// Stats returns current pool counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:       p.workers,
		JobsSubmitted: p.jobsSubmitted.Load(),
		JobsCompleted: p.jobsCompleted.Load(),
		AvgDuration:   p.averageDuration(),
	}
}

// PoolStats contains pool counters.
type PoolStats struct {
	Workers       int
	JobsSubmitted uint64
	JobsCompleted uint64
	AvgDuration   time.Duration
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for job := range p.jobsChan {
		if err := p.ctx.Err(); err != nil {
			// Queued but never started: report the cancellation rather
			// than running against a dead context.
			p.resultChan <- &JobResult{CheckID: job.CheckID, Class: job.Class, Err: err}
			continue
		}

		result := p.run(job)
		p.jobsCompleted.Add(1)
		p.totalDuration.Add(uint64(result.Duration))

		// The collector drains until CloseAndWait closes the channel, so
		// this send cannot deadlock even under cancellation.
		p.resultChan <- result
	}
}

// collect receives results as workers finish them. Only the collector
// touches collected until CloseAndWait observes collectorDone, so no lock
// is needed.
func (p *Pool) collect() {
	for result := range p.resultChan {
		p.collected = append(p.collected, result)
	}
	close(p.collectorDone)
}

// run executes one battery with panic isolation: a faulty check must not
// take down the run.
func (p *Pool) run(job Job) (result *JobResult) {
	start := time.Now()
	result = &JobResult{CheckID: job.CheckID, Class: job.Class}

	defer func() {
		result.Duration = time.Since(start)
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("check %s panicked: %v", job.CheckID, r)
		}
	}()

	result.Findings = job.Run(p.ctx)
	return result
}

func (p *Pool) averageDuration() time.Duration {
	completed := p.jobsCompleted.Load()
	if completed == 0 {
		return 0
	}
	return time.Duration(p.totalDuration.Load() / completed)
}
