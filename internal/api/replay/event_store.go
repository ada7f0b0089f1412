package replay

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/annel0/blockworld/internal/eventbus"
)

// EventStore интерфейс хранилища событий мира
type EventStore interface {
	// WriteEvent записывает событие в хранилище
	WriteEvent(ctx context.Context, ev *eventbus.Envelope) error

	// QueryEvents возвращает события по фильтру, старые первыми
	QueryEvents(ctx context.Context, query EventQuery) ([]*eventbus.Envelope, error)

	// GetEventStats возвращает статистику событий
	GetEventStats(ctx context.Context, query EventQuery) (*EventStats, error)

	// GetEventTypes возвращает типы событий, встречавшиеся в хранилище
	GetEventTypes(ctx context.Context) ([]string, error)
}

// EventQuery представляет запрос к хранилищу событий
type EventQuery struct {
	EventTypes []string   `json:"event_types"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	Dimension  string     `json:"dimension,omitempty"`
	Limit      int        `json:"limit,omitempty"`
}

// EventStats представляет статистику событий
type EventStats struct {
	TotalEvents int64          `json:"total_events"`
	EventTypes  map[string]int `json:"event_types"`
	Oldest      *time.Time     `json:"oldest,omitempty"`
	Newest      *time.Time     `json:"newest,omitempty"`
}

func (q EventQuery) match(ev *eventbus.Envelope) bool {
	if len(q.EventTypes) > 0 {
		found := false
		for _, t := range q.EventTypes {
			if t == ev.EventType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.StartTime != nil && ev.Timestamp.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && ev.Timestamp.After(*q.EndTime) {
		return false
	}
	if q.Dimension != "" && ev.Metadata["dimension"] != q.Dimension {
		return false
	}
	return true
}

// MemoryStore - кольцевой буфер последних событий
type MemoryStore struct {
	mu       sync.RWMutex
	events   []*eventbus.Envelope
	next     int
	full     bool
	total    int64
	byType   map[string]int
	capacity int
}

// NewMemoryStore создаёт хранилище на capacity событий (1024 по умолчанию)
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryStore{
		events:   make([]*eventbus.Envelope, capacity),
		byType:   make(map[string]int),
		capacity: capacity,
	}
}

func (s *MemoryStore) WriteEvent(_ context.Context, ev *eventbus.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old := s.events[s.next]; s.full && old != nil {
		s.byType[old.EventType]--
		if s.byType[old.EventType] <= 0 {
			delete(s.byType, old.EventType)
		}
	}
	s.events[s.next] = ev
	s.next = (s.next + 1) % s.capacity
	if s.next == 0 {
		s.full = true
	}
	s.total++
	s.byType[ev.EventType]++
	return nil
}

// ordered возвращает события в порядке записи; вызывать под блокировкой
func (s *MemoryStore) ordered() []*eventbus.Envelope {
	if !s.full {
		return s.events[:s.next]
	}
	out := make([]*eventbus.Envelope, 0, s.capacity)
	out = append(out, s.events[s.next:]...)
	return append(out, s.events[:s.next]...)
}

func (s *MemoryStore) QueryEvents(ctx context.Context, query EventQuery) ([]*eventbus.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*eventbus.Envelope
	for _, ev := range s.ordered() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if query.match(ev) {
			out = append(out, ev)
		}
	}
	// Limit оставляет самые свежие события
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[len(out)-query.Limit:]
	}
	return out, nil
}

func (s *MemoryStore) GetEventStats(ctx context.Context, query EventQuery) (*EventStats, error) {
	events, err := s.QueryEvents(ctx, EventQuery{
		EventTypes: query.EventTypes,
		StartTime:  query.StartTime,
		EndTime:    query.EndTime,
		Dimension:  query.Dimension,
	})
	if err != nil {
		return nil, err
	}

	stats := &EventStats{EventTypes: make(map[string]int)}
	for _, ev := range events {
		stats.TotalEvents++
		stats.EventTypes[ev.EventType]++
		ts := ev.Timestamp
		if stats.Oldest == nil || ts.Before(*stats.Oldest) {
			stats.Oldest = &ts
		}
		if stats.Newest == nil || ts.After(*stats.Newest) {
			stats.Newest = &ts
		}
	}
	return stats, nil
}

func (s *MemoryStore) GetEventTypes(context.Context) ([]string, error) {
	s.mu.RLock()
	types := make([]string, 0, len(s.byType))
	for t := range s.byType {
		types = append(types, t)
	}
	s.mu.RUnlock()

	sort.Strings(types)
	return types, nil
}

// Total возвращает число событий, записанных за всё время
func (s *MemoryStore) Total() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}
