package ssem

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndValue(t *testing.T) {
	s := New(3)
	assert.Equal(t, uint32(3), s.Value())
}

func TestTryWait(t *testing.T) {
	s := New(1)
	assert.True(t, s.TryWait())
	assert.False(t, s.TryWait())
	assert.Equal(t, uint32(0), s.Value())
}

func TestWaitPostRoundTrip(t *testing.T) {
	s := New(0)
	done := make(chan struct{})

	go func() {
		require.NoError(t, s.Wait())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Post")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, s.Post())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Post")
	}
}

func TestInitResetsCount(t *testing.T) {
	s := New(5)
	s.Init(1)
	assert.Equal(t, uint32(1), s.Value())
}

func TestConcurrentWaitersEachGetExactlyOnePost(t *testing.T) {
	s := New(0)
	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Wait())
		}()
	}

	for i := 0; i < n; i++ {
		require.NoError(t, s.Post())
	}

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("not all waiters woke up after n posts")
	}
}
