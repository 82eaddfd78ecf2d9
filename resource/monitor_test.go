package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/athena/notify"
	"github.com/YuminosukeSato/athena/pkg/log"
)

func secondMonitor(s Sampler, opts ...Option) *Monitor {
	base := []Option{
		WithInterval(time.Second),
		WithHighDuration(10 * time.Second),
		WithCriticalDuration(15 * time.Second),
	}
	return NewMonitor(s, append(base, opts...)...)
}

func TestSustainedCPUEscalates(t *testing.T) {
	ctx := context.Background()
	mem := &notify.MemorySink{}
	m := secondMonitor(Constant(Sample{CPU: 95, RAM: 10}), WithNotifier(notify.New("run", mem)))
	m.Scope("north", "xgboost")

	for tick := 1; tick <= 9; tick++ {
		assert.Equal(t, Normal, m.Tick(ctx), "tick %d", tick)
	}
	assert.Equal(t, Elevated, m.Tick(ctx), "tick 10")
	require.Len(t, mem.Alerts(), 1)
	assert.Equal(t, notify.Warning, mem.Alerts()[0].Level)

	assert.Equal(t, Critical, m.Tick(ctx), "tick 11")
	assert.Equal(t, Critical, m.Tick(ctx), "tick 12")
	assert.Len(t, mem.Alerts(), 1)

	for tick := 13; tick <= 24; tick++ {
		assert.Equal(t, Critical, m.Tick(ctx), "tick %d", tick)
	}
	assert.Equal(t, Aborted, m.Tick(ctx), "tick 25")
	require.Len(t, mem.Alerts(), 2)
	assert.Equal(t, notify.Error, mem.Alerts()[1].Level)
	assert.Equal(t, "north", mem.Alerts()[1].Zone)

	// terminal until reset
	assert.Equal(t, Aborted, m.Tick(ctx))
	assert.Len(t, mem.Alerts(), 2)
	assert.Equal(t, 25*time.Second, m.ElevatedFor())
}

func TestBelowThresholdTickResets(t *testing.T) {
	ctx := context.Background()
	high := Sample{CPU: 95}
	low := Sample{CPU: 10}
	seq := []Sample{}
	for i := 0; i < 11; i++ {
		seq = append(seq, high)
	}
	seq = append(seq, low)
	for i := 0; i < 9; i++ {
		seq = append(seq, high)
	}
	m := secondMonitor(&SequenceSampler{Samples: seq})

	for i := 0; i < 11; i++ {
		m.Tick(ctx)
	}
	assert.Equal(t, Critical, m.State())
	assert.Equal(t, Normal, m.Tick(ctx))
	assert.Zero(t, m.ElevatedFor())

	// nine more seconds is not enough to re-enter ELEVATED
	for i := 0; i < 9; i++ {
		assert.Equal(t, Normal, m.Tick(ctx))
	}
	assert.Equal(t, Elevated, m.Tick(ctx))
}

func TestRAMAloneCountsAsElevated(t *testing.T) {
	m := secondMonitor(Constant(Sample{CPU: 1, RAM: 99}), WithHighDuration(2*time.Second))
	m.Tick(context.Background())
	assert.Equal(t, Elevated, m.Tick(context.Background()))
}

func TestScopeResets(t *testing.T) {
	m := secondMonitor(Constant(Sample{CPU: 99}), WithHighDuration(time.Second), WithCriticalDuration(time.Second))
	ctx := context.Background()
	m.Tick(ctx)
	m.Tick(ctx)
	require.Equal(t, Aborted, m.State())

	m.Scope("south", "ridge")
	assert.Equal(t, Normal, m.State())
	assert.Zero(t, m.ElevatedFor())
}

func TestThresholdSanityWarning(t *testing.T) {
	tl, _ := log.NewTestLogger(log.LevelDebug)
	prev := log.GetLogger()
	log.SetLogger(tl)
	defer log.SetLogger(prev)

	NewMonitor(Constant(Sample{}), WithMaxCPU(95))
	assert.True(t, tl.ContainsMessage("Configured resource maxima exceed recommended values"))

	tl.Clear()
	NewMonitor(Constant(Sample{}))
	assert.False(t, tl.ContainsMessage("Configured resource maxima exceed recommended values"))
}

func TestSequenceSamplerRepeatsLast(t *testing.T) {
	s := &SequenceSampler{Samples: []Sample{{CPU: 1}, {CPU: 2}}}
	ctx := context.Background()
	for _, want := range []float64{1, 2, 2, 2} {
		got, err := s.Sample(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got.CPU)
	}
	_, err := (&SequenceSampler{}).Sample(ctx)
	assert.Error(t, err)
}

func TestFakeClock(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)
	require.NoError(t, c.Sleep(context.Background(), 5*time.Second))
	assert.Equal(t, 5*time.Second, c.Elapsed(start))
	assert.Equal(t, 1, c.Sleeps)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Sleep(ctx, time.Second), context.Canceled)
	assert.ErrorIs(t, SystemClock{}.Sleep(ctx, time.Hour), context.Canceled)
}
