package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/blockworld/internal/eventbus"
	"github.com/annel0/blockworld/internal/logging"
)

// ReplayFilter определяет фильтры для воспроизведения
type ReplayFilter struct {
	EventTypes []string   `json:"event_types"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	Dimension  string     `json:"dimension,omitempty"`
	Limit      int        `json:"limit,omitempty"`
}

func (f *ReplayFilter) query() EventQuery {
	if f == nil {
		return EventQuery{}
	}
	return EventQuery{
		EventTypes: f.EventTypes,
		StartTime:  f.StartTime,
		EndTime:    f.EndTime,
		Dimension:  f.Dimension,
		Limit:      f.Limit,
	}
}

// ReplayService отдаёт журнал событий мира
type ReplayService struct {
	eventStore EventStore
}

// NewReplayService создает новый сервис воспроизведения
func NewReplayService(eventStore EventStore) *ReplayService {
	return &ReplayService{
		eventStore: eventStore,
	}
}

// Record подписывает хранилище на шину событий
func (s *ReplayService) Record(ctx context.Context, bus eventbus.EventBus) (eventbus.Subscription, error) {
	if s.eventStore == nil {
		return nil, fmt.Errorf("event store not configured")
	}
	sub, err := bus.Subscribe(ctx, eventbus.Filter{}, func(ctx context.Context, ev *eventbus.Envelope) {
		if err := s.eventStore.WriteEvent(ctx, ev); err != nil {
			logging.Warn("⚠️ Replay: не удалось записать событие %s: %v", ev.ID, err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return sub, nil
}

// StreamEvents возвращает события по фильтру
func (s *ReplayService) StreamEvents(ctx context.Context, filter *ReplayFilter) ([]*eventbus.Envelope, error) {
	if s.eventStore == nil {
		return nil, fmt.Errorf("event store not configured")
	}

	events, err := s.eventStore.QueryEvents(ctx, filter.query())
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return events, nil
}

// GetEventStats возвращает статистику событий
func (s *ReplayService) GetEventStats(ctx context.Context, filter *ReplayFilter) (*EventStats, error) {
	if s.eventStore == nil {
		return nil, fmt.Errorf("event store not configured")
	}

	stats, err := s.eventStore.GetEventStats(ctx, filter.query())
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}

// GetEventTypes возвращает доступные типы событий
func (s *ReplayService) GetEventTypes(ctx context.Context) ([]string, error) {
	if s.eventStore == nil {
		return nil, fmt.Errorf("event store not configured")
	}

	types, err := s.eventStore.GetEventTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get event types: %w", err)
	}
	return types, nil
}
