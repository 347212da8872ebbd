package redis_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/venueflow/pkg/adapters/redis"
	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)

	store := redis.NewFromClient(client)
	ports.RunRepositoryContract(t, store)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	form := domain.NewRequestForm("form-1", "Venue/2025", 1, map[string]any{"title": "T"}, at)
	require.NoError(t, store.SaveForm(ctx, form))

	_, err := store.Append(ctx, domain.StageEvent{
		StageType:     domain.StageReview,
		RequestFormID: "form-1",
		Sequence:      4,
	})
	require.NoError(t, err)

	assert.True(t, mr.Exists("custom:app:form:form-1"), "Expected form key with custom prefix")
	assert.True(t, mr.Exists("custom:app:forms"), "Expected form index with custom prefix")
	assert.True(t, mr.Exists("custom:app:events:form-1"), "Expected journal with custom prefix")
	assert.True(t, mr.Exists("custom:app:events:form-1:Review_Stage"), "Expected stage index with custom prefix")

	list, err := store.ListForms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"form-1"}, list)
}

func TestRedisStore_JournalKeepsFirstWrite(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	first := domain.StageEvent{
		StageType:     domain.StageBid,
		RequestFormID: "f",
		Sequence:      1,
		Content:       map[string]any{"bid_count": 50},
	}
	ok, err := store.Append(ctx, first)
	require.NoError(t, err)
	require.True(t, ok)

	second := first
	second.Content = map[string]any{"bid_count": 10}
	ok, err = store.Append(ctx, second)
	require.NoError(t, err)
	assert.False(t, ok)

	events, err := store.Events(ctx, "f")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "50", fmt.Sprint(events[0].Content["bid_count"]))
}
