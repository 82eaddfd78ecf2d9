package resource

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/YuminosukeSato/athena/pkg/errors"
)

// Sample is one utilisation reading in percent.
type Sample struct {
	CPU float64
	RAM float64
}

// Sampler reads current utilisation.
type Sampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// SystemSampler reads host-wide CPU and RAM usage through gopsutil.
type SystemSampler struct{}

// Sample returns CPU usage since the previous call and current RAM usage.
func (SystemSampler) Sample(ctx context.Context) (Sample, error) {
	cpus, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Sample{}, errors.Wrap(err, "read cpu usage")
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Sample{}, errors.Wrap(err, "read memory usage")
	}
	var s Sample
	if len(cpus) > 0 {
		s.CPU = cpus[0]
	}
	s.RAM = vm.UsedPercent
	return s, nil
}

// SequenceSampler replays Samples in order and repeats the last one.
type SequenceSampler struct {
	mu      sync.Mutex
	Samples []Sample
	next    int
}

// Constant returns a sampler that always reports s.
func Constant(s Sample) *SequenceSampler {
	return &SequenceSampler{Samples: []Sample{s}}
}

func (q *SequenceSampler) Sample(ctx context.Context) (Sample, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.Samples) == 0 {
		return Sample{}, errors.New("no samples")
	}
	i := q.next
	if i >= len(q.Samples) {
		i = len(q.Samples) - 1
	} else {
		q.next++
	}
	return q.Samples[i], nil
}

// Clock abstracts the sleep between validation cycles.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Sleep waits for d or until ctx is done.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FakeClock advances instantly on Sleep.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	Sleeps int
}

// NewFakeClock starts at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.Sleeps++
	c.mu.Unlock()
	return nil
}

// Elapsed returns the time slept since start.
func (c *FakeClock) Elapsed(start time.Time) time.Duration {
	return c.Now().Sub(start)
}
