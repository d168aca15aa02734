package domain

import (
	"reflect"

	sharedEvents "github.com/davicafu/pomotasks/internal/shared/domain/events"
)

// Tipos de evento del agregado Task.
const (
	TaskCreated = "task.created"
	TaskUpdated = "task.updated"
	TaskDeleted = "task.deleted"
)

const (
	TaskTopic         = "task"
	TaskAggregateType = "task"
)

// NewEventRegistry asocia cada tipo de evento al payload y topic con que se publica.
func NewEventRegistry() map[string]sharedEvents.EventMetadata {
	return map[string]sharedEvents.EventMetadata{
		TaskCreated: {
			Type:  reflect.TypeOf(Task{}),
			Topic: TaskTopic,
		},
		TaskUpdated: {
			Type:  reflect.TypeOf(Task{}),
			Topic: TaskTopic,
		},
		TaskDeleted: {
			Type:  reflect.TypeOf(Task{}),
			Topic: TaskTopic,
		},
	}
}
