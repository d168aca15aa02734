package events

import (
	"context"
	"encoding/json"
	"sync"

	sharedBus "github.com/davicafu/pomotasks/internal/shared/infra/platform/bus"
)

// InMemoryEventBus reparte los eventos publicados a los suscriptores de cada topic.
// La entrega no bloquea: si el buffer de un suscriptor está lleno el mensaje se descarta.
type InMemoryEventBus struct {
	subscribers map[string][]chan []byte
	mu          sync.RWMutex
	dropped     int
}

var _ sharedBus.EventBus = (*InMemoryEventBus)(nil)

func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{subscribers: make(map[string][]chan []byte)}
}

// Publish serializa el evento y lo entrega a cada suscriptor del topic. La key se ignora.
func (b *InMemoryEventBus) Publish(ctx context.Context, topic, key string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	b.mu.RLock()
	subs := b.subscribers[topic]
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- payload:
		default:
			b.mu.Lock()
			b.dropped++
			b.mu.Unlock()
		}
	}
	return nil
}

// Subscribe registra un oyente para el topic con el buffer indicado.
func (b *InMemoryEventBus) Subscribe(topic string, bufferSize int) <-chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan []byte, bufferSize)
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

// Dropped devuelve cuántos mensajes se descartaron por buffers llenos.
func (b *InMemoryEventBus) Dropped() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// BackgroundConsumerChan consume un canal del bus hasta que se cancele el contexto.
func BackgroundConsumerChan(ctx context.Context, ch <-chan []byte, handler MessageHandler) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case payload := <-ch:
				// La 'key' no es relevante en el bus en memoria.
				handler.HandleMessage(ctx, "", payload)
			}
		}
	}()
}
