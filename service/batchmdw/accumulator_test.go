package batchmdw

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kava-labs/webhook-batch-proxy/decode"
)

func TestUnitTestAccumulatorFlushesWhenWindowElapses(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	accumulator := NewAccumulator(AccumulatorConfig{FlushAfter: 100 * time.Millisecond, MessageLimit: 10}, dispatcher)

	start := time.Now()

	var replies []<-chan *Reply
	for _, content := range []string{"one", "two", "three"} {
		reply, err := accumulator.Join(destinationA, textPayload(content))
		require.NoError(t, err)
		replies = append(replies, reply)
	}

	assert.Equal(t, AccumulatorStats{OpenBatches: 1, PendingMessages: 3}, accumulator.Stats())

	batch := dispatcher.next(t, 2*time.Second)

	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, []string{"one", "two", "three"}, contents(batch))

	for _, reply := range replies {
		awaitReply(t, reply)
	}

	dispatcher.requireNone(t, 150*time.Millisecond)
	assert.Equal(t, AccumulatorStats{}, accumulator.Stats())
}

func TestUnitTestAccumulatorFlushWindowIsNotExtendedByLaterJoins(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	accumulator := NewAccumulator(AccumulatorConfig{FlushAfter: 150 * time.Millisecond, MessageLimit: 10}, dispatcher)

	start := time.Now()

	_, err := accumulator.Join(destinationA, textPayload("first"))
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	_, err = accumulator.Join(destinationA, textPayload("second"))
	require.NoError(t, err)

	batch := dispatcher.next(t, 2*time.Second)

	// a window restarted by the second join would close no earlier than 250ms
	assert.Less(t, time.Since(start), 240*time.Millisecond)
	assert.Equal(t, []string{"first", "second"}, contents(batch))
}

func TestUnitTestAccumulatorFlushesImmediatelyAtMessageLimit(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	accumulator := NewAccumulator(AccumulatorConfig{FlushAfter: time.Hour, MessageLimit: 3}, dispatcher)

	var replies []<-chan *Reply
	for _, content := range []string{"one", "two", "three"} {
		reply, err := accumulator.Join(destinationA, textPayload(content))
		require.NoError(t, err)
		replies = append(replies, reply)
	}

	batch := dispatcher.next(t, time.Second)
	assert.Equal(t, []string{"one", "two", "three"}, contents(batch))

	for _, reply := range replies {
		awaitReply(t, reply)
	}

	// the fourth message opens a new batch
	fourth, err := accumulator.Join(destinationA, textPayload("four"))
	require.NoError(t, err)

	assert.Equal(t, AccumulatorStats{OpenBatches: 1, PendingMessages: 1}, accumulator.Stats())
	dispatcher.requireNone(t, 50*time.Millisecond)

	require.NoError(t, accumulator.Close(context.Background()))

	batch = dispatcher.next(t, time.Second)
	assert.Equal(t, []string{"four"}, contents(batch))
	awaitReply(t, fourth)
}

func TestUnitTestAccumulatorKeepsDestinationsApart(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	accumulator := NewAccumulator(AccumulatorConfig{FlushAfter: 300 * time.Millisecond, MessageLimit: 100}, dispatcher)

	threaded := destinationA
	threaded.Options.ThreadID = "42"

	destinations := []decode.Destination{destinationA, destinationB, threaded}

	var wg sync.WaitGroup
	for _, destination := range destinations {
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(destination decode.Destination, i int) {
				defer wg.Done()
				_, err := accumulator.Join(destination, textPayload(fmt.Sprintf("%s/%d", destination.Key(), i)))
				assert.NoError(t, err)
			}(destination, i)
		}
	}
	wg.Wait()

	seen := map[string]int{}
	for range destinations {
		batch := dispatcher.next(t, 2*time.Second)

		require.Equal(t, 20, batch.Size())
		for _, content := range contents(batch) {
			assert.Contains(t, content, batch.Key()+"/")
		}
		seen[batch.Key()]++
	}

	for _, destination := range destinations {
		assert.Equal(t, 1, seen[destination.Key()], destination.Key())
	}
}

func TestUnitTestAccumulatorClosesEachBatchExactlyOnce(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	// a short window makes the timer race the message limit
	accumulator := NewAccumulator(AccumulatorConfig{FlushAfter: 2 * time.Millisecond, MessageLimit: 7}, dispatcher)

	const messages = 500

	replies := make(chan (<-chan *Reply), messages)

	var wg sync.WaitGroup
	for i := 0; i < messages; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reply, err := accumulator.Join(destinationA, textPayload(fmt.Sprint(i)))
			assert.NoError(t, err)
			replies <- reply
		}(i)
	}
	wg.Wait()
	close(replies)

	require.NoError(t, accumulator.Close(context.Background()))

	delivered := map[string]int{}
	for len(dispatcher.batches) > 0 {
		batch := <-dispatcher.batches
		assert.LessOrEqual(t, batch.Size(), 7)
		for _, content := range contents(batch) {
			delivered[content]++
		}
	}

	require.Len(t, delivered, messages)
	for content, count := range delivered {
		require.Equal(t, 1, count, content)
	}

	for reply := range replies {
		awaitReply(t, reply)
		// each member is resolved exactly once
		select {
		case <-reply:
			t.Fatal("member resolved twice")
		default:
		}
	}
}

func TestUnitTestAccumulatorFlushesBeforeExceedingMessageShapeLimits(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	accumulator := NewAccumulator(AccumulatorConfig{FlushAfter: time.Hour, MessageLimit: 100}, dispatcher)

	_, err := accumulator.Join(destinationA, embedPayload(6))
	require.NoError(t, err)

	// 6 + 6 embeds would exceed the per message limit
	_, err = accumulator.Join(destinationA, embedPayload(6))
	require.NoError(t, err)

	batch := dispatcher.next(t, time.Second)
	assert.Equal(t, 1, batch.Size())
	assert.Equal(t, 6, batch.EmbedCount())

	assert.Equal(t, AccumulatorStats{OpenBatches: 1, PendingMessages: 1}, accumulator.Stats())
}

func TestUnitTestAccumulatorFlushesBeforeExceedingContentLength(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	accumulator := NewAccumulator(AccumulatorConfig{FlushAfter: time.Hour, MessageLimit: 100}, dispatcher)

	long := make([]rune, 1000)
	for i := range long {
		long[i] = 'x'
	}

	_, err := accumulator.Join(destinationA, textPayload(string(long)))
	require.NoError(t, err)

	// 1000 + newline + 999 fits exactly
	_, err = accumulator.Join(destinationA, textPayload(string(long[:999])))
	require.NoError(t, err)
	dispatcher.requireNone(t, 20*time.Millisecond)

	_, err = accumulator.Join(destinationA, textPayload("y"))
	require.NoError(t, err)

	batch := dispatcher.next(t, time.Second)
	assert.Equal(t, 2, batch.Size())
	assert.Equal(t, decode.MaxContentLength, MergePayloads(batch.Payloads()).ContentLength())
}

func TestUnitTestAccumulatorSendsOversizedPayloadAlone(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	accumulator := NewAccumulator(AccumulatorConfig{FlushAfter: 30 * time.Millisecond, MessageLimit: 100}, dispatcher)

	_, err := accumulator.Join(destinationA, embedPayload(12))
	require.NoError(t, err)

	batch := dispatcher.next(t, time.Second)
	assert.Equal(t, 1, batch.Size())
}

func TestUnitTestAccumulatorPollOpensNewBatch(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	accumulator := NewAccumulator(AccumulatorConfig{FlushAfter: time.Hour, MessageLimit: 100}, dispatcher)

	_, err := accumulator.Join(destinationA, textPayload("text"))
	require.NoError(t, err)

	poll := decode.Payload{Extra: map[string]json.RawMessage{"poll": json.RawMessage(`{"question":{"text":"?"}}`)}}
	_, err = accumulator.Join(destinationA, poll)
	require.NoError(t, err)

	batch := dispatcher.next(t, time.Second)
	assert.Equal(t, []string{"text"}, contents(batch))

	assert.Equal(t, AccumulatorStats{OpenBatches: 1, PendingMessages: 1}, accumulator.Stats())
}

func TestUnitTestAccumulatorCloseFlushesAndRejectsNewMessages(t *testing.T) {
	dispatcher := newRecordingDispatcher()
	accumulator := NewAccumulator(AccumulatorConfig{FlushAfter: time.Hour, MessageLimit: 10}, dispatcher)

	replyA, err := accumulator.Join(destinationA, textPayload("a"))
	require.NoError(t, err)
	replyB, err := accumulator.Join(destinationB, textPayload("b"))
	require.NoError(t, err)

	assert.False(t, accumulator.Closed())
	require.NoError(t, accumulator.Close(context.Background()))
	assert.True(t, accumulator.Closed())

	awaitReply(t, replyA)
	awaitReply(t, replyB)
	assert.Len(t, dispatcher.batches, 2)

	_, err = accumulator.Join(destinationA, textPayload("late"))
	require.ErrorIs(t, err, ErrAccumulatorClosed)
}

type blockingDispatcher struct {
	release chan struct{}
}

func (d *blockingDispatcher) Dispatch(batch *Batch) {
	<-d.release
	batch.resolve(&Reply{StatusCode: 200})
}

func TestUnitTestAccumulatorCloseHonorsContext(t *testing.T) {
	dispatcher := &blockingDispatcher{release: make(chan struct{})}
	defer close(dispatcher.release)

	accumulator := NewAccumulator(AccumulatorConfig{FlushAfter: time.Hour, MessageLimit: 10}, dispatcher)

	_, err := accumulator.Join(destinationA, textPayload("a"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, accumulator.Close(ctx), context.DeadlineExceeded)
}
