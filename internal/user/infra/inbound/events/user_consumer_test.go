package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/pomotasks/internal/mocks"
	sharedEvents "github.com/davicafu/pomotasks/internal/shared/domain/events"
	userDomain "github.com/davicafu/pomotasks/internal/user/domain"
)

func TestUserConsumer_WarmsCacheOnUserCreated(t *testing.T) {
	cache := mocks.NewDummyCache()
	consumer := NewUserConsumer(cache, time.Minute, zap.NewNop())

	u := userDomain.NewUser("alice", "secret-hash")
	data, err := json.Marshal(u)
	require.NoError(t, err)
	payload, err := json.Marshal(sharedEvents.IntegrationEvent{Type: userDomain.UserCreated, Timestamp: time.Now(), Data: data})
	require.NoError(t, err)

	consumer.HandleMessage(context.Background(), u.ID.String(), payload)

	var cached userDomain.User
	ok, err := cache.Get(context.Background(), userDomain.CacheKeyByID(u.ID), &cached)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", cached.Username)
	assert.Empty(t, cached.PasswordHash)
}

func TestUserConsumer_IgnoresOtherMessages(t *testing.T) {
	cache := mocks.NewDummyCache()
	consumer := NewUserConsumer(cache, time.Minute, zap.NewNop())

	consumer.HandleMessage(context.Background(), "", []byte("{"))
	payload, _ := json.Marshal(sharedEvents.IntegrationEvent{Type: "user.renamed", Data: json.RawMessage(`{}`)})
	consumer.HandleMessage(context.Background(), "", payload)

	assert.Zero(t, cache.Len())
}
