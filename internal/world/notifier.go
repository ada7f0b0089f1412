package world

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/annel0/blockworld/internal/eventbus"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/google/uuid"
)

// BusNotifier публикует события измерений в шину событий
type BusNotifier struct {
	bus    eventbus.EventBus
	source string
	log    *logging.Logger
}

// NewBusNotifier создаёт слушателя, публикующего события в bus
func NewBusNotifier(bus eventbus.EventBus, source string) *BusNotifier {
	if source == "" {
		source = "blockworld"
	}
	return &BusNotifier{bus: bus, source: source, log: logging.GetWorldLogger()}
}

// OnWorldEvent превращает событие в Envelope и публикует его
func (n *BusNotifier) OnWorldEvent(ev Event) {
	env, err := n.Envelope(ev)
	if err != nil {
		n.log.Warn("Не удалось сериализовать событие %s: %v", ev.GetType(), err)
		return
	}
	if err := n.bus.Publish(context.Background(), env); err != nil {
		n.log.Warn("Не удалось опубликовать событие %s: %v", env.EventType, err)
	}
}

// Envelope собирает конверт шины для события
func (n *BusNotifier) Envelope(ev Event) (*eventbus.Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}

	env := &eventbus.Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    n.source,
		EventType: ev.GetType().String(),
		Version:   1,
		Priority:  3,
		Payload:   payload,
		Metadata:  map[string]string{},
	}

	switch e := ev.(type) {
	case BlockChangedEvent:
		// Приоритет 5 не отбрасывается при переполнении буфера шины
		env.Priority = 5
		env.Metadata["dimension"] = strconv.Itoa(e.Dimension)
		env.Metadata["position"] = e.New.Coordinates.String()
	case ChunkEvent:
		env.Metadata["dimension"] = strconv.Itoa(e.Dimension)
		env.Metadata["chunk"] = e.Coords.String()
	}
	return env, nil
}
