package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBus(t *testing.T) {
	var bus EventBus
	var got []string
	first := bus.Subscribe(func(e Event) { got = append(got, "first "+e.Type().String()) })
	var second string
	second = bus.Subscribe(func(e Event) {
		got = append(got, "second "+e.Type().String())
		// unsubscribing inside a listener does not disturb the running publish
		bus.Unsubscribe(second)
	})
	assert.NotEqual(t, first, second)

	bus.Publish(MapAdded{MapID: "A"}, MapRemoved{MapID: "A"})
	assert.Equal(t, []string{
		"first map-added",
		"second map-added",
		"first map-removed",
		"second map-removed",
	}, got)

	got = nil
	bus.Publish(TileLoaded{MapID: "A", URL: "u"})
	assert.Equal(t, []string{"first tile-loaded"}, got)
	assert.False(t, bus.Unsubscribe(second))
	assert.True(t, bus.Unsubscribe(first))
}

func TestEventTypeNames(t *testing.T) {
	assert.Equal(t, "tile-loading-error", TileLoadingError{}.Type().String())
	assert.Equal(t, "atlas-updated", AtlasUpdated{MapID: "B"}.Type().String())
	assert.Equal(t, "B", AtlasUpdated{MapID: "B"}.Map())
	assert.Equal(t, "unknown", EventType(99).String())
}
