package domain

import (
	"reflect"

	sharedEvents "github.com/davicafu/pomotasks/internal/shared/domain/events"
)

const UserCreated = "user.created"

const (
	UserTopic         = "user"
	UserAggregateType = "user"
)

func NewEventRegistry() map[string]sharedEvents.EventMetadata {
	return map[string]sharedEvents.EventMetadata{
		UserCreated: {
			Type:  reflect.TypeOf(User{}),
			Topic: UserTopic,
		},
	}
}
