package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/alicebob/miniredis/v2"
	"github.com/ledgerkraft/bookkeeping/internal/model"
	"github.com/ledgerkraft/bookkeeping/internal/queue"
	"github.com/ledgerkraft/bookkeeping/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() *model.ImportEvent {
	return &model.ImportEvent{
		ID:             "3f1c",
		AccountID:      42,
		TransactionIDs: []int64{1, 2},
		Duplicates:     1,
		ModifiedBy:     "alice",
		OccurredAt:     time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, "42", string(key))
		assert.Equal(t, "bookkeeping.imports", msg.Topic)

		value, err := msg.Value.Encode()
		require.NoError(t, err)
		var got model.ImportEvent
		require.NoError(t, json.Unmarshal(value, &got))
		assert.Equal(t, "3f1c", got.ID)
		assert.Equal(t, []int64{1, 2}, got.TransactionIDs)
		return nil
	})

	p := NewKafkaPublisher(producer, "bookkeeping.imports")
	require.NoError(t, p.Publish(context.Background(), testEvent()))
	require.NoError(t, p.Close())
}

func TestKafkaPublisher_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	p := NewKafkaPublisher(producer, "bookkeeping.imports")
	err := p.Publish(context.Background(), testEvent())
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, p.Close())
}

func TestKafkaPublisher_CancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	p := NewKafkaPublisher(producer, "bookkeeping.imports")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, testEvent()), context.Canceled)
	require.NoError(t, p.Close())
}

func TestStreamPublisher_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	adapter, err := redis.NewRedisAdapter(t.Name(), "", &redis.Options{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	ctx := context.Background()
	q, err := queue.New(ctx, adapter, queue.Config{Name: "imports", ConsumerGroup: "g"})
	require.NoError(t, err)

	require.NoError(t, NewStreamPublisher(q).Publish(ctx, testEvent()))

	entries, err := mr.Stream("imports")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Values, EventTypeImport)
	assert.Contains(t, entries[0].Values, "42")
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), testEvent()))
}
