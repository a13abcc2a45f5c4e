package perf

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummaryAverages(t *testing.T) {
	m := newWithCap(100)

	m.Record(10 * time.Millisecond)
	m.Record(20 * time.Millisecond)
	m.Record(30 * time.Millisecond)

	s := m.Summary()
	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 0.020, s.AllTime, 1e-9)
	assert.InDelta(t, 0.030, s.Last1, 1e-9)
	assert.InDelta(t, 0.020, s.Last10, 1e-9)
	assert.InDelta(t, 0.020, s.Last100, 1e-9)
}

func TestEmptySummary(t *testing.T) {
	m := newWithCap(10)

	s := m.Summary()
	assert.Equal(t, 0, s.Count)
	assert.Zero(t, s.AllTime)
}

func TestCapEvictsOldestFirst(t *testing.T) {
	m := newWithCap(5)

	for i := 1; i <= 6; i++ {
		m.Record(time.Duration(i) * time.Second)
	}

	s := m.Summary()
	assert.Equal(t, 5, s.Count)
	// the 1s sample is gone: remaining are 2..6
	assert.InDelta(t, 4.0, s.AllTime, 1e-9)
	assert.InDelta(t, 6.0, s.Last1, 1e-9)
}

func TestDefaultCap(t *testing.T) {
	assert.Equal(t, 1_000_000, MaxSamples)
	assert.Equal(t, MaxSamples, New().cap)
}

func TestConcurrentRecords(t *testing.T) {
	m := newWithCap(10_000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Record(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5000, m.Summary().Count)
}
