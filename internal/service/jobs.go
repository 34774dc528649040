package service

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Progress is the externally visible state of a bulk job.
type Progress struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Label      string     `json:"label"`
	Current    int        `json:"current"`
	Total      int        `json:"total"`
	Skipped    int        `json:"skipped"`
	Done       bool       `json:"done"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Step is one write of a bulk job.  Returning skipped=true counts the step
// as processed but not applied.
type Step func(ctx context.Context) (skipped bool, err error)

// ProgressSink receives every progress change; ws.Hub implements it.
type ProgressSink interface {
	Broadcast(topic string, v any)
}

// Job is a running or finished bulk operation.
type Job struct {
	mu   sync.Mutex
	p    Progress
	done chan struct{}
}

func (j *Job) ID() string { return j.p.ID }

// Progress returns a snapshot.
func (j *Job) Progress() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.p
}

// Done is closed when the job finishes.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job finishes and returns its final progress.
func (j *Job) Wait() Progress {
	<-j.done
	return j.Progress()
}

// Jobs runs bulk mutations one at a time in the background.  Steps run
// sequentially with a fixed delay between them; the first failing step
// stops the job.  A started job cannot be cancelled.
type Jobs struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	running *Job
	delay   time.Duration
	sink    ProgressSink
	keep    int
}

func NewJobs(delay time.Duration, sink ProgressSink) *Jobs {
	return &Jobs{jobs: make(map[string]*Job), delay: delay, sink: sink, keep: 50}
}

// Start launches steps as a new job.  It fails with ErrJobRunning while
// another job is in progress.  onDone, when set, runs after the last step
// with the final progress.
func (s *Jobs) Start(kind, label string, steps []Step, onDone func(Progress)) (*Job, error) {
	s.mu.Lock()
	if s.running != nil {
		s.mu.Unlock()
		return nil, ErrJobRunning
	}
	job := &Job{
		p: Progress{
			ID:        uuid.NewString(),
			Kind:      kind,
			Label:     label,
			Total:     len(steps),
			StartedAt: time.Now().UTC(),
		},
		done: make(chan struct{}),
	}
	s.jobs[job.p.ID] = job
	s.running = job
	s.prune()
	s.mu.Unlock()

	go s.run(job, steps, onDone)
	return job, nil
}

// Get returns a job by id.
func (s *Jobs) Get(id string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return j, ok
}

// Running returns the job in progress, if any.
func (s *Jobs) Running() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Jobs) run(job *Job, steps []Step, onDone func(Progress)) {
	// Detached from the request that started the job.
	ctx := context.Background()
	s.publish(job)
	for i, step := range steps {
		if i > 0 && s.delay > 0 {
			time.Sleep(s.delay)
		}
		skipped, err := runStep(ctx, step)
		job.mu.Lock()
		if err != nil {
			job.p.Error = err.Error()
		} else {
			job.p.Current = i + 1
			if skipped {
				job.p.Skipped++
			}
		}
		job.mu.Unlock()
		s.publish(job)
		if err != nil {
			log.Printf("jobs: %s %s stopped at step %d/%d: %v", job.p.Kind, job.p.ID, i+1, len(steps), err)
			break
		}
	}

	now := time.Now().UTC()
	job.mu.Lock()
	job.p.Done = true
	job.p.FinishedAt = &now
	final := job.p
	job.mu.Unlock()

	if onDone != nil {
		onDone(final)
	}
	s.mu.Lock()
	if s.running == job {
		s.running = nil
	}
	s.mu.Unlock()
	s.publish(job)
	close(job.done)
}

func runStep(ctx context.Context, step Step) (skipped bool, err error) {
	stepCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return step(stepCtx)
}

func (s *Jobs) publish(job *Job) {
	if s.sink != nil {
		s.sink.Broadcast(job.ID(), job.Progress())
	}
}

// prune drops the oldest finished jobs beyond keep; caller holds mu.
func (s *Jobs) prune() {
	if len(s.jobs) <= s.keep {
		return
	}
	var finished []*Job
	for _, j := range s.jobs {
		if j != s.running {
			finished = append(finished, j)
		}
	}
	sort.Slice(finished, func(a, b int) bool {
		return finished[a].Progress().StartedAt.Before(finished[b].Progress().StartedAt)
	})
	for _, j := range finished {
		if len(s.jobs) <= s.keep {
			break
		}
		delete(s.jobs, j.ID())
	}
}
