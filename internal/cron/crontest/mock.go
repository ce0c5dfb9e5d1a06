// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"

	"github.com/flemzord/ephemera/internal/cron"
)

// MockJob is a configurable cron.Job. An empty ScheduleVal reports
// cron.DefaultSchedule, like the maintenance jobs do.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu        sync.Mutex
	calls     int
	deadlines int
}

var _ cron.Job = (*MockJob)(nil)

func (m *MockJob) Name() string { return m.NameVal }

func (m *MockJob) Schedule() string {
	if m.ScheduleVal == "" {
		return cron.DefaultSchedule
	}
	return m.ScheduleVal
}

func (m *MockJob) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	if _, ok := ctx.Deadline(); ok {
		m.deadlines++
	}
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns the number of times Run was called.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// DeadlineCount returns how many runs received a context with a deadline.
func (m *MockJob) DeadlineCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deadlines
}

// BlockingJob parks inside Run until Release is called. Started is closed
// when the first run begins.
type BlockingJob struct {
	MockJob

	Started chan struct{}
	release chan struct{}
	once    sync.Once
}

// NewBlockingJob returns a BlockingJob named name.
func NewBlockingJob(name string) *BlockingJob {
	j := &BlockingJob{
		Started: make(chan struct{}),
		release: make(chan struct{}),
	}
	j.NameVal = name
	j.RunFunc = func(ctx context.Context) error {
		j.once.Do(func() { close(j.Started) })
		select {
		case <-j.release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j
}

// Release lets every parked and future run return.
func (j *BlockingJob) Release() { close(j.release) }
