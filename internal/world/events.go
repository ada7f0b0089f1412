package world

import (
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// EventType определяет тип события измерения
type EventType uint8

const (
	EventTypeBlockChanged   EventType = iota // Изменился ID или метаданные блока
	EventTypeChunkGenerated                  // Чанк создан генератором
	EventTypeChunkLoaded                     // Чанк прочитан из файла региона
)

func (t EventType) String() string {
	switch t {
	case EventTypeBlockChanged:
		return "BlockChanged"
	case EventTypeChunkGenerated:
		return "ChunkGenerated"
	case EventTypeChunkLoaded:
		return "ChunkLoaded"
	default:
		return "Unknown"
	}
}

// Event представляет собой интерфейс для всех событий
type Event interface {
	GetType() EventType
}

// BlockChangedEvent - снимки блока до и после изменения
type BlockChangedEvent struct {
	Dimension int              `json:"dimension"`
	Old       block.Descriptor `json:"old"`
	New       block.Descriptor `json:"new"`
}

// GetType возвращает тип события
func (e BlockChangedEvent) GetType() EventType {
	return EventTypeBlockChanged
}

// ChunkEvent - чанк стал резидентным
type ChunkEvent struct {
	EventType EventType       `json:"-"`
	Dimension int             `json:"dimension"`
	Coords    vec.GlobalChunk `json:"coords"`
}

// GetType возвращает тип события
func (e ChunkEvent) GetType() EventType {
	return e.EventType
}

// Listener получает события измерения синхронно, в горутине,
// которая изменила мир. Долгая работа должна уходить в свою горутину.
type Listener interface {
	OnWorldEvent(ev Event)
}

// ListenerFunc позволяет использовать функцию как Listener
type ListenerFunc func(ev Event)

// OnWorldEvent вызывает f(ev)
func (f ListenerFunc) OnWorldEvent(ev Event) {
	f(ev)
}
