package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHandler struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (h *recordingHandler) HandleMessage(ctx context.Context, key string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.payloads = append(h.payloads, payload)
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.payloads)
}

func TestInMemoryEventBus_DeliversPerTopic(t *testing.T) {
	bus := NewInMemoryEventBus()
	taskCh := bus.Subscribe("task", 4)
	userCh := bus.Subscribe("user", 4)

	require.NoError(t, bus.Publish(context.Background(), "task", "k", map[string]string{"type": "task.created"}))

	select {
	case payload := <-taskCh:
		assert.JSONEq(t, `{"type":"task.created"}`, string(payload))
	default:
		t.Fatal("expected a message on the task topic")
	}

	select {
	case <-userCh:
		t.Fatal("user topic must not receive task events")
	default:
	}
}

func TestInMemoryEventBus_FullBufferDrops(t *testing.T) {
	bus := NewInMemoryEventBus()
	_ = bus.Subscribe("task", 1)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, "task", "", 1))
	require.NoError(t, bus.Publish(ctx, "task", "", 2))

	assert.Equal(t, 1, bus.Dropped())
}

func TestBackgroundConsumerChan(t *testing.T) {
	bus := NewInMemoryEventBus()
	ch := bus.Subscribe("task", 4)
	handler := &recordingHandler{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	BackgroundConsumerChan(ctx, ch, handler)

	require.NoError(t, bus.Publish(ctx, "task", "", "hello"))
	assert.Eventually(t, func() bool { return handler.count() == 1 }, time.Second, 10*time.Millisecond)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaPublisher_SetsTopicAndKey(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, zap.NewNop())

	require.NoError(t, p.Publish(context.Background(), "task", "abc", map[string]int{"n": 1}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "task", w.msgs[0].Topic)
	assert.Equal(t, []byte("abc"), w.msgs[0].Key)
	assert.JSONEq(t, `{"n":1}`, string(w.msgs[0].Value))
}

func TestKafkaPublisher_PropagatesWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewKafkaPublisher(w, zap.NewNop())

	err := p.Publish(context.Background(), "task", "abc", 1)
	assert.Error(t, err)
}
