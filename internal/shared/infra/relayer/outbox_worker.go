package relayer

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
	sharedDomainEvents "github.com/davicafu/pomotasks/internal/shared/domain/events"
	sharedBus "github.com/davicafu/pomotasks/internal/shared/infra/platform/bus"
	"go.uber.org/zap"
)

// Worker procesa eventos pendientes de la tabla outbox de forma genérica.
type Worker struct {
	repo          sharedDomain.OutboxRepository
	publisher     sharedBus.EventBus
	eventRegistry map[string]sharedDomainEvents.EventMetadata
	interval      time.Duration
	batchSize     int
	log           *zap.Logger
	now           func() time.Time
}

func NewOutboxWorker(
	repo sharedDomain.OutboxRepository,
	publisher sharedBus.EventBus,
	registry map[string]sharedDomainEvents.EventMetadata,
	interval time.Duration,
	batchSize int,
	log *zap.Logger,
) *Worker {
	return &Worker{
		repo:          repo,
		publisher:     publisher,
		eventRegistry: registry,
		interval:      interval,
		batchSize:     batchSize,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Start inicia el bucle de polling del worker. Bloquea hasta que se cancele ctx.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("🚀 Outbox worker iniciado", zap.Duration("interval", w.interval), zap.Int("batch_size", w.batchSize))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🛑 Outbox worker detenido.")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch publica un lote de eventos pendientes y devuelve cuántos se marcaron.
func (w *Worker) ProcessBatch(ctx context.Context) int {
	events, err := w.repo.FetchPendingOutbox(ctx, w.batchSize)
	if err != nil {
		w.log.Warn("⚠️ Error al obtener eventos pendientes", zap.Error(err))
		return 0
	}
	if len(events) > 0 {
		w.log.Debug("📬 eventos encontrados para procesar", zap.Int("count", len(events)))
	}

	marked := 0
	for _, evt := range events {
		if w.publishAndMark(ctx, evt) {
			marked++
		}
	}
	return marked
}

func (w *Worker) publishAndMark(ctx context.Context, evt sharedDomain.OutboxEvent) bool {
	log := w.log.With(zap.String("event_id", evt.ID.String()), zap.String("event_type", evt.EventType))

	metadata, ok := w.eventRegistry[evt.EventType]
	if !ok {
		// Sin tipo registrado nunca se podrá publicar: se marca para no bloquear la cola.
		log.Error("Tipo de evento desconocido en registro, se descarta")
		return w.mark(ctx, evt, log)
	}

	data, err := decodePayload(metadata.Type, evt.Payload)
	if err != nil {
		log.Error("Error al decodificar payload del evento, se descarta", zap.Error(err))
		return w.mark(ctx, evt, log)
	}

	integrationEvent := sharedDomainEvents.IntegrationEvent{
		Type:      evt.EventType,
		Timestamp: w.now(),
		Data:      data,
	}

	if err := w.publisher.Publish(ctx, metadata.Topic, evt.AggregateID, integrationEvent); err != nil {
		log.Warn("⚠️ No se pudo publicar evento", zap.Error(err))
		return false // queda pendiente para el siguiente ciclo
	}

	if !w.mark(ctx, evt, log) {
		return false
	}
	log.Debug("✅ Evento publicado y marcado", zap.String("topic", metadata.Topic))
	return true
}

func (w *Worker) mark(ctx context.Context, evt sharedDomain.OutboxEvent, log *zap.Logger) bool {
	if err := w.repo.MarkOutboxProcessed(ctx, evt.ID); err != nil {
		log.Warn("⚠️ No se pudo marcar evento como procesado", zap.Error(err))
		return false
	}
	return true
}

// decodePayload valida el payload contra el tipo registrado y lo vuelve a serializar.
func decodePayload(t reflect.Type, payload interface{}) (json.RawMessage, error) {
	raw, ok := payload.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	typed := reflect.New(t).Interface()
	if err := json.Unmarshal(raw, typed); err != nil {
		return nil, err
	}
	return json.Marshal(typed)
}
