package clocksync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_PublishOnce(t *testing.T) {
	s := NewState()

	offset, computed := s.Load()
	assert.False(t, computed)
	assert.Equal(t, int64(0), offset)

	select {
	case <-s.Ready():
		t.Fatal("Ready closed before publish")
	default:
	}

	assert.True(t, s.Publish(120))
	assert.False(t, s.Publish(-5), "second publish must be rejected")

	offset, computed = s.Load()
	assert.True(t, computed)
	assert.Equal(t, int64(120), offset)

	select {
	case <-s.Ready():
	default:
		t.Fatal("Ready not closed after publish")
	}
}

func TestState_ZeroOffsetIsComputed(t *testing.T) {
	s := NewState()
	s.Publish(0)

	offset, computed := s.Load()
	assert.True(t, computed)
	assert.Equal(t, int64(0), offset)
}

func TestState_ConcurrentReadersSeeConsistentPair(t *testing.T) {
	s := NewState()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				offset, computed := s.Load()
				if computed && offset != 42 {
					t.Errorf("observed computed offset %d, want 42", offset)
					return
				}
				if !computed && offset != 0 {
					t.Errorf("observed offset %d before publish", offset)
					return
				}
			}
		}()
	}

	winners := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		go func() { winners <- s.Publish(42) }()
	}
	won := 0
	for i := 0; i < 4; i++ {
		if <-winners {
			won++
		}
	}
	wg.Wait()

	assert.Equal(t, 1, won, "exactly one publisher must win")
}
