package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job states.
const (
	StateIdle    = "idle"
	StateRunning = "running"
)

// JobFunc is one cadence job. The context is the scheduler's lifetime
// context; jobs are expected to run their batch to completion.
type JobFunc func(ctx context.Context) error

type job struct {
	name    string
	spec    string
	fn      JobFunc
	entryID cron.EntryID

	mu           sync.Mutex
	running      bool
	skippedTicks int64
	lastRun      time.Time
	lastErr      string
}

// tryAcquire flips the job to running unless a previous tick still holds it.
func (j *job) tryAcquire() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		j.skippedTicks++
		return false
	}
	j.running = true
	return true
}

func (j *job) release(ranAt time.Time, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.running = false
	j.lastRun = ranAt
	if err != nil {
		j.lastErr = err.Error()
	} else {
		j.lastErr = ""
	}
}

type JobStatus struct {
	Name         string     `json:"name"`
	Spec         string     `json:"spec"`
	State        string     `json:"state"`
	SkippedTicks int64      `json:"skipped_ticks"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	NextRun      *time.Time `json:"next_run,omitempty"`
}

// Scheduler drives the periodic sweeps and reminder passes. Each job is
// single-flight: a tick arriving while the previous tick of the same job is
// still running is skipped and counted, never queued behind it.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	stop context.CancelFunc

	mu   sync.Mutex
	jobs map[string]*job
	list []*job
}

func New(loc *time.Location) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc)),
		ctx:  ctx,
		stop: cancel,
		jobs: make(map[string]*job),
	}
}

// Register adds a named job on the given cron spec.
func (s *Scheduler) Register(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	j := &job{name: name, spec: spec, fn: fn}
	entryID, err := s.cron.AddFunc(spec, func() { s.runJob(j) })
	if err != nil {
		return fmt.Errorf("register job %q: %w", name, err)
	}
	j.entryID = entryID
	s.jobs[name] = j
	s.list = append(s.list, j)
	return nil
}

func (s *Scheduler) runJob(j *job) {
	if !j.tryAcquire() {
		log.Printf("[scheduler] %s: previous run still in progress, skipping tick", j.name)
		return
	}

	started := time.Now()
	err := j.fn(s.ctx)
	if err != nil {
		log.Printf("[scheduler] %s: %v", j.name, err)
	}
	j.release(started, err)
}

// RunNow triggers one job outside its cadence, through the same
// single-flight guard a cron tick uses.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}

	if !j.tryAcquire() {
		return fmt.Errorf("job %q is already running", name)
	}
	started := time.Now()
	err := j.fn(s.ctx)
	j.release(started, err)
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("[scheduler] started with %d job(s)", len(s.list))
}

// Stop halts new ticks and waits for in-flight jobs started by cron to
// finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.stop()
	log.Println("[scheduler] stopped")
}

func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]JobStatus, 0, len(s.list))
	for _, j := range s.list {
		j.mu.Lock()
		status := JobStatus{
			Name:         j.name,
			Spec:         j.spec,
			State:        StateIdle,
			SkippedTicks: j.skippedTicks,
			LastError:    j.lastErr,
		}
		if j.running {
			status.State = StateRunning
		}
		if !j.lastRun.IsZero() {
			lastRun := j.lastRun
			status.LastRun = &lastRun
		}
		j.mu.Unlock()

		if next := s.cron.Entry(j.entryID).Next; !next.IsZero() {
			nextRun := next
			status.NextRun = &nextRun
		}
		statuses = append(statuses, status)
	}
	return statuses
}
