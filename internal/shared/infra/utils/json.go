package utils

import (
	"encoding/json"

	"go.uber.org/zap"
)

// UnmarshalAndHandle decodifica el 'data' de un evento de integración en T y se lo pasa al handler.
// Un payload corrupto se registra y se descarta; devuelve false en ese caso.
func UnmarshalAndHandle[T any](log *zap.Logger, eventType string, data json.RawMessage, handler func(T)) bool {
	if len(data) == 0 {
		log.Warn("Event without data, skipping", zap.String("event_type", eventType))
		return false
	}

	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn("Failed to unmarshal event data", zap.String("event_type", eventType), zap.Error(err))
		return false
	}
	handler(payload)
	return true
}
