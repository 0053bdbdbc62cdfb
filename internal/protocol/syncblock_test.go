package protocol

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInitialized(t *testing.T) *SyncBlock {
	t.Helper()
	sb := &SyncBlock{}
	sb.Init()
	return sb
}

func TestInitSetsSemaphoreValues(t *testing.T) {
	sb := newInitialized(t)
	assert.Equal(t, uint32(0), sb.MasterToView.Value())
	assert.Equal(t, uint32(0), sb.ViewToMaster.Value())
	assert.Equal(t, uint32(1), sb.MasterMutex.Value())
	assert.Equal(t, uint32(1), sb.StateMutex.Value())
	assert.Equal(t, uint32(1), sb.ReaderCountMutex.Value())
	assert.Equal(t, uint32(0), sb.ReaderCount)
	for i := range sb.PlayerReady {
		assert.Equal(t, uint32(0), sb.PlayerReady[i].Value())
	}
}

func TestReaderGuardEnterExit(t *testing.T) {
	sb := newInitialized(t)

	rg, err := EnterReader(sb)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), sb.ReaderCount)
	assert.Equal(t, uint32(0), sb.StateMutex.Value()) // taken by first reader

	require.NoError(t, rg.Exit())
	assert.Equal(t, uint32(0), sb.ReaderCount)
	assert.Equal(t, uint32(1), sb.StateMutex.Value()) // released by last reader
}

func TestMultipleReadersShareStateMutex(t *testing.T) {
	sb := newInitialized(t)

	rg1, err := EnterReader(sb)
	require.NoError(t, err)
	rg2, err := EnterReader(sb)
	require.NoError(t, err)

	assert.Equal(t, uint32(2), sb.ReaderCount)
	assert.Equal(t, uint32(0), sb.StateMutex.Value())

	require.NoError(t, rg1.Exit())
	assert.Equal(t, uint32(0), sb.StateMutex.Value(), "state_mutex stays held while a reader remains")

	require.NoError(t, rg2.Exit())
	assert.Equal(t, uint32(1), sb.StateMutex.Value())
}

func TestWriterExcludesReaders(t *testing.T) {
	sb := newInitialized(t)

	wg, err := EnterWriter(sb)
	require.NoError(t, err)

	readerEntered := make(chan struct{})
	go func() {
		rg, err := EnterReader(sb)
		assert.NoError(t, err)
		close(readerEntered)
		rg.Exit()
	}()

	select {
	case <-readerEntered:
		t.Fatal("reader entered while writer held state_mutex")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, wg.Exit())

	select {
	case <-readerEntered:
	case <-time.After(time.Second):
		t.Fatal("reader never entered after writer released state_mutex")
	}
}

func TestSignalWriterIntentIsANoOpRoundTrip(t *testing.T) {
	sb := newInitialized(t)
	require.NoError(t, SignalWriterIntent(sb))
	assert.Equal(t, uint32(1), sb.MasterMutex.Value())
}

func TestConcurrentReadersAndWritersDoNotDeadlock(t *testing.T) {
	sb := newInitialized(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				rg, err := EnterReader(sb)
				require.NoError(t, err)
				require.NoError(t, rg.Exit())
			}
		}()
	}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				w, err := EnterWriter(sb)
				require.NoError(t, err)
				require.NoError(t, w.Exit())
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("readers/writers did not all complete")
	}
	assert.Equal(t, uint32(0), sb.ReaderCount)
	assert.Equal(t, uint32(1), sb.StateMutex.Value())
}
