package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/toolkit-engine/internal/models"
)

func sampleEvent(userID string) models.LevelUnlockedEvent {
	return models.LevelUnlockedEvent{
		UserID:         userID,
		GoalID:         "g1",
		GoalLevelID:    "l2",
		Title:          "Silver",
		SequenceNumber: 2,
		UnlockedAt:     time.Date(2024, 3, 6, 9, 30, 0, 0, time.UTC),
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	raw, err := encode(sampleEvent("u1"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"goal_level.unlocked"`)

	event, err := decode(raw)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, sampleEvent("u1"), *event)
}

func TestDecode_IgnoresOtherTypes(t *testing.T) {
	event, err := decode([]byte(`{"type":"answer.saved","payload":{}}`))
	require.NoError(t, err)
	assert.Nil(t, event)

	_, err = decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestLocalBus_ForwardsUntilCancelled(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())

	received := make(chan models.LevelUnlockedEvent, 2)
	require.NoError(t, bus.StartForwarder(ctx, func(e models.LevelUnlockedEvent) { received <- e }))

	require.NoError(t, bus.PublishLevelUnlocked(context.Background(), sampleEvent("u1")))
	select {
	case e := <-received:
		assert.Equal(t, "l2", e.GoalLevelID)
	case <-time.After(time.Second):
		t.Fatal("event not forwarded")
	}

	cancel()
	assert.Eventually(t, func() bool {
		for len(received) > 0 {
			<-received
		}
		_ = bus.PublishLevelUnlocked(context.Background(), sampleEvent("u1"))
		return len(received) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestHub_DeliversToUserSubscribersOnly(t *testing.T) {
	hub := NewHub()

	mine, cancelMine := hub.Subscribe("u1")
	other, cancelOther := hub.Subscribe("u2")
	defer cancelOther()

	hub.Dispatch(sampleEvent("u1"))

	select {
	case e := <-mine:
		assert.Equal(t, "u1", e.UserID)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}
	assert.Empty(t, other)

	cancelMine()
	cancelMine()
	assert.Zero(t, hub.Subscribers("u1"))
	_, open := <-mine
	assert.False(t, open)
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe("u1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			hub.Dispatch(sampleEvent("u1"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch blocked on a full subscriber")
	}
}
