package redis_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/constraintflow/pkg/adapters/redis"
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/aretw0/constraintflow/pkg/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_Emit(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, redis.DefaultChannelPrefix+domain.TopicStatusChanged)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := redis.NewPublisher(client, "")
	err = pub.Emit(ctx, domain.Event{
		Topic:   domain.TopicStatusChanged,
		Payload: domain.StatusEvent{ConstraintFlowID: "c1", Status: domain.StatusViolated},
	})
	require.NoError(t, err)

	select {
	case msg := <-sub.Channel():
		var m redis.Message
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &m))
		assert.Equal(t, domain.TopicStatusChanged, m.Topic)

		var se domain.StatusEvent
		require.NoError(t, json.Unmarshal(m.Payload, &se))
		assert.Equal(t, "c1", se.ConstraintFlowID)
		assert.Equal(t, domain.StatusViolated, se.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRelay_ForwardsHostEvents(t *testing.T) {
	_, client := newClient(t)
	bus := eventbus.New()

	var (
		mu  sync.Mutex
		got []domain.Event
	)
	received := make(chan struct{}, 4)
	_, _ = bus.Subscribe(domain.TopicAll, func(_ context.Context, e domain.Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		received <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- redis.NewRelay(client, bus).Run(ctx, ready) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe")
	}

	pub := redis.NewPublisher(client, "")
	require.NoError(t, pub.Emit(ctx, domain.Event{
		Topic:   domain.TopicTrace,
		Payload: domain.ActivityEvent{ElementID: "A", Action: domain.ActionExit},
	}))
	require.NoError(t, pub.Emit(ctx, domain.Event{Topic: domain.TopicPlay}))
	// Not a host topic: never relayed.
	require.NoError(t, pub.Emit(ctx, domain.Event{Topic: domain.TopicStatusChanged}))

	for range 2 {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatal("event not relayed")
		}
	}

	cancel()
	assert.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, domain.TopicTrace, got[0].Topic)
	raw, ok := got[0].Payload.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"elementId":"A","action":"exit"}`, string(raw))
	assert.Equal(t, domain.TopicPlay, got[1].Topic)
	assert.Nil(t, got[1].Payload)
}
