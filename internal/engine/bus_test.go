package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpetrov/slotplan/internal/domain"
	"github.com/mpetrov/slotplan/internal/engine"
)

func TestBus_DeliversToOtherSubscribers(t *testing.T) {
	bus := engine.NewBus()
	var got []engine.Event
	bus.Subscribe("week", func(ev engine.Event) { got = append(got, ev) })

	bus.Publish("day", engine.TaskUpserted{Task: domain.Task{ID: "t1"}})

	assert.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].(engine.TaskUpserted).Task.ID)
}

// TestBus_NoSelfDelivery verifies that a subscriber never receives events it
// published itself — the publisher already applied them locally.
func TestBus_NoSelfDelivery(t *testing.T) {
	bus := engine.NewBus()
	var got []engine.Event
	bus.Subscribe("day", func(ev engine.Event) { got = append(got, ev) })

	bus.Publish("day", engine.SlotRenamed{From: "a", To: "b"})

	assert.Empty(t, got)
}

// TestBus_FIFO verifies synchronous in-order delivery: a subscriber can
// never observe a delete for a task it has not yet learned exists.
func TestBus_FIFO(t *testing.T) {
	bus := engine.NewBus()
	var order []string
	bus.Subscribe("week", func(ev engine.Event) {
		switch ev.(type) {
		case engine.TaskUpserted:
			order = append(order, "upsert")
		case engine.TaskDeleted:
			order = append(order, "delete")
		}
	})

	bus.Publish("day", engine.TaskUpserted{Task: domain.Task{ID: "t1"}})
	bus.Publish("day", engine.TaskDeleted{ID: "t1"})

	assert.Equal(t, []string{"upsert", "delete"}, order)
}

// TestBus_ReentrantPublish verifies a handler may publish a reply from
// within delivery, as the mount handshake does.
func TestBus_ReentrantPublish(t *testing.T) {
	bus := engine.NewBus()
	var dayGot []engine.Event
	bus.Subscribe("day", func(ev engine.Event) { dayGot = append(dayGot, ev) })
	bus.Subscribe("week", func(ev engine.Event) {
		if _, ok := ev.(engine.ViewMounted); ok {
			bus.Publish("week", engine.BulkSync{})
		}
	})

	bus.Publish("day", engine.ViewMounted{View: "day"})

	assert.Len(t, dayGot, 1)
	assert.IsType(t, engine.BulkSync{}, dayGot[0])
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := engine.NewBus()
	var got int
	unsub := bus.Subscribe("week", func(engine.Event) { got++ })

	bus.Publish("day", engine.SlotsUpdated{})
	unsub()
	bus.Publish("day", engine.SlotsUpdated{})

	assert.Equal(t, 1, got)
}
