package bus

import "context"

// EventBus publica un evento de integración en un topic.
// La key decide la partición en Kafka; el bus en memoria la ignora.
type EventBus interface {
	Publish(ctx context.Context, topic, key string, event interface{}) error
}
