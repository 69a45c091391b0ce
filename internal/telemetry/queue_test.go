package telemetry

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplesAt(times ...int64) []Sample {
	out := make([]Sample, len(times))
	for i, ts := range times {
		out[i] = Sample{CaptureTimeMs: ts, Position: Vec3{X: float64(i)}}
	}
	return out
}

func timesOf(samples []Sample) []int64 {
	out := make([]int64, len(samples))
	for i, s := range samples {
		out[i] = s.CaptureTimeMs
	}
	return out
}

func TestQueue_PopN_PreservesOrder(t *testing.T) {
	q := NewQueue()
	q.Push(samplesAt(1, 2, 3)...)
	q.Push(samplesAt(4, 5)...)

	got := q.PopN(4)
	if diff := cmp.Diff([]int64{1, 2, 3, 4}, timesOf(got)); diff != "" {
		t.Errorf("PopN mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, []int64{5}, timesOf(q.PopN(10)))
	assert.Nil(t, q.PopN(1))
}

func TestQueue_PopN_NonPositive(t *testing.T) {
	q := NewQueue()
	q.Push(samplesAt(1)...)
	assert.Nil(t, q.PopN(0))
	assert.Nil(t, q.PopN(-3))
	assert.Equal(t, 1, q.Len())
}

func TestQueue_PushFront(t *testing.T) {
	tests := []struct {
		name   string
		pushed []int64
		pop    int
		want   []int64
	}{
		{name: "into consumed prefix", pushed: []int64{1, 2, 3, 4, 5}, pop: 2, want: []int64{1, 2, 3, 4, 5}},
		{name: "whole queue popped", pushed: []int64{1, 2}, pop: 2, want: []int64{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue()
			q.Push(samplesAt(tt.pushed...)...)
			batch := q.PopN(tt.pop)
			q.PushFront(batch)
			assert.Equal(t, tt.want, timesOf(q.PopN(100)))
		})
	}
}

func TestQueue_PushFront_AheadOfNewerSamples(t *testing.T) {
	q := NewQueue()
	q.Push(samplesAt(1, 2)...)
	batch := q.PopN(2)
	q.Push(samplesAt(3)...)

	q.PushFront(batch)
	assert.Equal(t, []int64{1, 2, 3}, timesOf(q.PopN(10)))
}

func TestQueue_ConcurrentProducerConsumer(t *testing.T) {
	q := NewQueue()
	const total = 5000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			q.Push(Sample{CaptureTimeMs: int64(i)})
		}
	}()

	var got []int64
	for len(got) < total {
		got = append(got, timesOf(q.PopN(50))...)
	}
	wg.Wait()

	require.Len(t, got, total)
	for i, ts := range got {
		if ts != int64(i) {
			t.Fatalf("sample %d has time %d, order not preserved", i, ts)
		}
	}
	assert.Equal(t, 0, q.Len())
}
