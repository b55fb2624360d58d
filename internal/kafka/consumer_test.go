package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu      sync.Mutex
	pending []kafka.Message
	commits []kafka.Message
	closed  bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		m := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) committed() []kafka.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kafka.Message(nil), r.commits...)
}

func offsets(msgs []kafka.Message, partition int) []int64 {
	var out []int64
	for _, m := range msgs {
		if m.Partition == partition {
			out = append(out, m.Offset)
		}
	}
	return out
}

func TestConsumer_failedMessageBlocksItsPartitionUntilHandled(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{
		{Partition: 0, Offset: 5},
		{Partition: 1, Offset: 10},
		{Partition: 0, Offset: 6},
	}}
	c := newConsumer(r, 2, nil)
	c.retryBackoff = time.Millisecond

	var (
		mu       sync.Mutex
		handled  []int64
		failures = 2
	)
	h := func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		if m.Offset == 5 && failures > 0 {
			failures--
			return errors.New("ledger unavailable")
		}
		handled = append(handled, m.Offset)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, h) }()

	require.Eventually(t, func() bool { return len(r.committed()) == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	commits := r.committed()
	assert.Equal(t, []int64{5, 6}, offsets(commits, 0))
	assert.Equal(t, []int64{10}, offsets(commits, 1))

	mu.Lock()
	defer mu.Unlock()
	assert.Less(t, indexOf(handled, 5), indexOf(handled, 6))
	assert.True(t, r.closed)
}

func TestConsumer_neverCommitsAMessageThatKeepsFailing(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{{Partition: 0, Offset: 1}, {Partition: 0, Offset: 2}}}
	c := newConsumer(r, 1, nil)
	c.retryBackoff = time.Millisecond

	var (
		mu    sync.Mutex
		calls = map[int64]int{}
	)
	h := func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		calls[m.Offset]++
		return errors.New("ledger unavailable")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, h) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls[1] >= 3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Empty(t, r.committed())
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls[2], "a later offset must wait for the failing one")
}

func indexOf(xs []int64, v int64) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return -1
}
