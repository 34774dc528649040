package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestJobsRunSequentiallyAndReportProgress(t *testing.T) {
	sink := &recordingSink{}
	jobs := NewJobs(5*time.Millisecond, sink)

	var order []int
	steps := make([]Step, 3)
	for i := range steps {
		i := i
		steps[i] = func(context.Context) (bool, error) {
			order = append(order, i)
			return i == 1, nil
		}
	}
	var finished atomic.Bool
	job, err := jobs.Start("test", "three steps", steps, func(p Progress) { finished.Store(p.Done) })
	if err != nil {
		t.Fatal(err)
	}
	p := job.Wait()
	if !p.Done || p.Current != 3 || p.Total != 3 || p.Skipped != 1 || p.FinishedAt == nil {
		t.Fatalf("final = %+v", p)
	}
	if len(order) != 3 || order[0] != 0 || order[2] != 2 {
		t.Fatalf("order = %v", order)
	}
	if !finished.Load() {
		t.Fatal("onDone not called with a finished job")
	}
	got, ok := jobs.Get(job.ID())
	if !ok || got.Progress().Current != 3 {
		t.Fatal("finished job must stay queryable")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) < 4 || !sink.events[len(sink.events)-1].Done {
		t.Fatalf("sink events = %+v", sink.events)
	}
}

func TestJobsStopOnFirstError(t *testing.T) {
	jobs := NewJobs(0, nil)
	var ran atomic.Int32
	boom := errors.New("boom")
	steps := []Step{
		func(context.Context) (bool, error) { ran.Add(1); return false, nil },
		func(context.Context) (bool, error) { ran.Add(1); return false, boom },
		func(context.Context) (bool, error) { ran.Add(1); return false, nil },
	}
	job, err := jobs.Start("test", "", steps, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := job.Wait()
	if p.Error != "boom" || p.Current != 1 || !p.Done {
		t.Fatalf("final = %+v", p)
	}
	if ran.Load() != 2 {
		t.Fatalf("ran %d steps", ran.Load())
	}
}

func TestJobsOneAtATime(t *testing.T) {
	jobs := NewJobs(0, nil)
	release := make(chan struct{})
	job, err := jobs.Start("slow", "", []Step{
		func(context.Context) (bool, error) { <-release; return false, nil },
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := jobs.Start("other", "", nil, nil); !errors.Is(err, ErrJobRunning) {
		t.Fatalf("second job: %v", err)
	}
	if jobs.Running() != job {
		t.Fatal("running job not reported")
	}
	close(release)
	job.Wait()
	if jobs.Running() != nil {
		t.Fatal("running job not cleared")
	}
	next, err := jobs.Start("other", "", nil, nil)
	if err != nil {
		t.Fatalf("start after finish: %v", err)
	}
	if p := next.Wait(); !p.Done || p.Total != 0 {
		t.Fatalf("empty job = %+v", p)
	}
}
