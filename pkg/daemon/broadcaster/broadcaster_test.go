package broadcaster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_Subscribe(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe(EventProfileApplied)
	require.NotNil(t, sub)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, []EventType{EventProfileApplied}, sub.Types)
	assert.Equal(t, 1, b.SubscriberCount())
}

func TestBroadcaster_Notify_AllTypes(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe()

	b.Notify(Event{Type: EventProfileApplied, Profile: "Balanced", EntryID: "abc"})

	select {
	case event := <-sub.Events:
		assert.Equal(t, EventProfileApplied, event.Type)
		assert.Equal(t, "Balanced", event.Profile)
		assert.Equal(t, "abc", event.EntryID)
		assert.False(t, event.Time.IsZero(), "time should be filled in")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected event not received")
	}
}

func TestBroadcaster_Notify_FiltersByType(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe(EventStateRestored)

	b.Notify(Event{Type: EventProfileApplied, Profile: "Silent"})

	select {
	case <-sub.Events:
		t.Fatal("should not receive unrequested event type")
	case <-time.After(50 * time.Millisecond):
	}

	b.Notify(Event{Type: EventStateRestored})
	select {
	case event := <-sub.Events:
		assert.Equal(t, EventStateRestored, event.Type)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected event not received")
	}
}

func TestBroadcaster_Notify_DropsWhenFull(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe()
	for i := 0; i < subscriberBuffer+10; i++ {
		b.Notify(Event{Type: EventProfilesReloaded})
	}
	assert.Len(t, sub.Events, subscriberBuffer)
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe()
	b.Unsubscribe(sub.ID)

	_, ok := <-sub.Events
	assert.False(t, ok, "channel should be closed after unsubscribe")
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestBroadcaster_Close(t *testing.T) {
	b := New()
	sub := b.Subscribe()

	b.Close()
	b.Close()

	_, ok := <-sub.Events
	assert.False(t, ok)
	assert.Nil(t, b.Subscribe(), "subscribe after close")

	// Must not panic.
	b.Notify(Event{Type: EventProfileApplied})
}
