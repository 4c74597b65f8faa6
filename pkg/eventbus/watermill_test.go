package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/require"

	"github.com/trigonhq/trigon/pkg/events"
	"github.com/trigonhq/trigon/pkg/models"
)

func TestWatermillEventBus_PublishSubscribeRoundTrip(t *testing.T) {
	bus := NewGoChannelBus(watermill.NopLogger{})
	defer bus.Close()

	received := make(chan *events.ActivationStatusChanged, 1)

	err := bus.Handle(events.ActivationStatusChangedEvent, func(_ context.Context, event any) error {
		statusEvent, ok := event.(*events.ActivationStatusChanged)
		require.True(t, ok)
		received <- statusEvent

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	sent := events.ActivationStatusChanged{
		BaseEvent:    events.NewBaseEvent(events.ActivationStatusChangedEvent, "auto-1"),
		ActivationID: "act-1",
		Status:       models.ActivationStatusStarted,
	}

	require.NoError(t, bus.Publish(ctx, "act-1", sent))

	select {
	case got := <-received:
		require.Equal(t, "act-1", got.ActivationID)
		require.Equal(t, models.ActivationStatusStarted, got.Status)
		require.Equal(t, "auto-1", got.AutomationID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBus_UnknownEventTypeIsAcked(t *testing.T) {
	bus := NewGoChannelBus(watermill.NopLogger{})
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered: publishing must not block or error.
	event := events.ScheduleFired{
		BaseEvent:  events.NewBaseEvent(events.ScheduleFiredEvent, "auto-1"),
		ScheduleID: "s1",
	}
	require.NoError(t, bus.Publish(ctx, "s1", event))
}
