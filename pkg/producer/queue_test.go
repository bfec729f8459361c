package producer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkQueue_FIFO(t *testing.T) {
	t.Parallel()

	q := newWorkQueue(4)
	records := testRecords(3)
	for i := range records {
		q.put(&records[i], nil)
	}
	assert.Equal(t, 3, q.size())

	for i := range records {
		got, ok := q.poll(time.Second)
		require.True(t, ok)
		assert.Same(t, &records[i], got)
	}
	assert.Zero(t, q.size())
}

func TestWorkQueue_PollTimeout(t *testing.T) {
	t.Parallel()

	q := newWorkQueue(1)

	got, ok := q.poll(0)
	assert.False(t, ok)
	assert.Nil(t, got)

	start := time.Now()
	got, ok = q.poll(20 * time.Millisecond)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestWorkQueue_PollWakesOnPut(t *testing.T) {
	t.Parallel()

	q := newWorkQueue(1)
	r := &Record{Key: "k"}
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.put(r, nil)
	}()

	got, ok := q.poll(5 * time.Second)
	require.True(t, ok)
	assert.Same(t, r, got)
}

func TestWorkQueue_PutBlocksWhenFull(t *testing.T) {
	t.Parallel()

	q := newWorkQueue(1)
	q.put(&Record{Key: "first"}, nil)

	done := make(chan struct{})
	go func() {
		q.put(&Record{Key: "second"}, nil)
		close(done)
	}()

	select {
	case <-done:
		require.Fail(t, "put returned while the queue was full")
	case <-time.After(20 * time.Millisecond):
	}

	got, ok := q.poll(time.Second)
	require.True(t, ok)
	assert.Equal(t, "first", got.Key)

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "put did not resume after poll")
	}
}

func TestWorkQueue_PutGivesUpWhenDone(t *testing.T) {
	t.Parallel()

	q := newWorkQueue(1)
	done := make(chan struct{})

	assert.True(t, q.put(&Record{Key: "a"}, done))

	result := make(chan bool)
	go func() {
		result <- q.put(&Record{Key: "b"}, done)
	}()
	close(done)

	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(time.Second):
		require.Fail(t, "put did not observe done")
	}
	assert.Equal(t, 1, q.size())

	// done wins even when there is room
	_, _ = q.poll(0)
	assert.False(t, q.put(&Record{Key: "c"}, done))
	assert.Zero(t, q.size())
}

func TestWorkQueue_SizeExcludesShutdownSignals(t *testing.T) {
	t.Parallel()

	q := newWorkQueue(4)
	records := testRecords(2)
	require.True(t, q.put(&records[0], nil))
	require.True(t, q.put(shutdownSignal, nil))
	require.True(t, q.put(&records[1], nil))
	assert.Equal(t, 2, q.size())

	got, ok := q.poll(0)
	require.True(t, ok)
	assert.Same(t, &records[0], got)
	assert.Equal(t, 1, q.size())

	got, ok = q.poll(0)
	require.True(t, ok)
	assert.Same(t, shutdownSignal, got)
	assert.Equal(t, 1, q.size())

	_, _ = q.poll(time.Second)
	assert.Zero(t, q.size())

	// A signal that never made it into the queue is not counted.
	full := newWorkQueue(1)
	require.True(t, full.put(&records[0], nil))
	done := make(chan struct{})
	close(done)
	assert.False(t, full.put(shutdownSignal, done))
	assert.Equal(t, 1, full.size())
}
