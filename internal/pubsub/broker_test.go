package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBroker_PublishDelivers(t *testing.T) {
	b := NewBroker[[]string]()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx)
	b.Publish(UpdatedEvent, []string{"source.go"})

	select {
	case ev := <-ch:
		require.Equal(t, UpdatedEvent, ev.Type)
		require.Equal(t, []string{"source.go"}, ev.Payload)
		require.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected event")
	}
}

func TestBroker_DropsWhenFull(t *testing.T) {
	b := NewBrokerWithBuffer[int](1)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx)
	b.Publish(CreatedEvent, 1)
	b.Publish(CreatedEvent, 2)

	ev := <-ch
	require.Equal(t, 1, ev.Payload)
	select {
	case <-ch:
		t.Fatal("second event should have been dropped")
	default:
	}
}

func TestBroker_UnsubscribeOnCancel(t *testing.T) {
	b := NewBroker[string]()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)
	require.Equal(t, 1, b.SubscriberCount())

	cancel()
	require.Eventually(t, func() bool { return b.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)

	_, ok := <-ch
	require.False(t, ok)
}

func TestBroker_SubscribeAfterClose(t *testing.T) {
	b := NewBroker[string]()
	b.Close()
	b.Close()

	ch := b.Subscribe(context.Background())
	_, ok := <-ch
	require.False(t, ok)

	require.NotPanics(t, func() { b.Publish(FailedEvent, "x") })
}

func TestListenCmd_ReturnsEvent(t *testing.T) {
	b := NewBroker[string]()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewContinuousListener(ctx, b)
	b.Publish(CreatedEvent, "entry")

	msg := l.Listen()()
	ev, ok := msg.(Event[string])
	require.True(t, ok)
	require.Equal(t, "entry", ev.Payload)
}

func TestListenCmd_NilOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan Event[string])
	require.Nil(t, ListenCmd(ctx, ch)())
}

func TestBroker_Filters(t *testing.T) {
	b := NewBroker[string]()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failures := b.Subscribe(ctx, OfType[string](FailedEvent))
	long := b.Subscribe(ctx, func(e Event[string]) bool { return len(e.Payload) > 3 })
	all := b.Subscribe(ctx)

	b.Publish(UpdatedEvent, "source.go")
	b.Publish(FailedEvent, "bad")

	require.Equal(t, "bad", (<-failures).Payload)
	require.Equal(t, "source.go", (<-long).Payload)
	require.Equal(t, "source.go", (<-all).Payload)
	require.Equal(t, "bad", (<-all).Payload)

	select {
	case ev := <-failures:
		t.Fatalf("unexpected event %+v", ev)
	case ev := <-long:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestBroker_CloseEndsSubscriptions(t *testing.T) {
	b := NewBroker[string]()
	ch := b.Subscribe(context.Background())
	b.Close()

	_, ok := <-ch
	require.False(t, ok)
	require.Zero(t, b.SubscriberCount())
}
