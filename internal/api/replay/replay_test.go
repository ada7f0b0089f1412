package replay

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/annel0/blockworld/internal/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(id int, typ, dim string) *eventbus.Envelope {
	return &eventbus.Envelope{
		ID:        strconv.Itoa(id),
		EventType: typ,
		Timestamp: time.Unix(int64(id), 0).UTC(),
		Metadata:  map[string]string{"dimension": dim},
	}
}

func TestMemoryStore_RingKeepsNewest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.WriteEvent(ctx, envelope(i, eventbus.TypeBlockChanged, "0")))
	}

	events, err := s.QueryEvents(ctx, EventQuery{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "3", events[0].ID)
	assert.Equal(t, "5", events[2].ID)
	assert.EqualValues(t, 5, s.Total())
}

func TestMemoryStore_Filters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(16)
	require.NoError(t, s.WriteEvent(ctx, envelope(1, eventbus.TypeBlockChanged, "0")))
	require.NoError(t, s.WriteEvent(ctx, envelope(2, eventbus.TypeChunkGenerated, "0")))
	require.NoError(t, s.WriteEvent(ctx, envelope(3, eventbus.TypeBlockChanged, "-1")))
	require.NoError(t, s.WriteEvent(ctx, envelope(4, eventbus.TypeBlockChanged, "0")))

	events, err := s.QueryEvents(ctx, EventQuery{EventTypes: []string{eventbus.TypeBlockChanged}, Dimension: "0"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "1", events[0].ID)
	assert.Equal(t, "4", events[1].ID)

	start := time.Unix(2, 0).UTC()
	events, err = s.QueryEvents(ctx, EventQuery{StartTime: &start, Limit: 2})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "3", events[0].ID)

	types, err := s.GetEventTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{eventbus.TypeBlockChanged, eventbus.TypeChunkGenerated}, types)

	stats, err := s.GetEventStats(ctx, EventQuery{Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.TotalEvents)
	assert.Equal(t, 3, stats.EventTypes[eventbus.TypeBlockChanged])
	require.NotNil(t, stats.Oldest)
	assert.Equal(t, time.Unix(1, 0).UTC(), *stats.Oldest)
}

func TestMemoryStore_EvictionUpdatesTypes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	require.NoError(t, s.WriteEvent(ctx, envelope(1, eventbus.TypeChunkLoaded, "0")))
	require.NoError(t, s.WriteEvent(ctx, envelope(2, eventbus.TypeBlockChanged, "0")))
	require.NoError(t, s.WriteEvent(ctx, envelope(3, eventbus.TypeBlockChanged, "0")))

	types, err := s.GetEventTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{eventbus.TypeBlockChanged}, types)
}

func TestReplayService_RecordsFromBus(t *testing.T) {
	ctx := context.Background()
	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()

	svc := NewReplayService(NewMemoryStore(16))
	sub, err := svc.Record(ctx, bus)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, bus.Publish(ctx, envelope(7, eventbus.TypeChunkGenerated, "0")))

	require.Eventually(t, func() bool {
		events, err := svc.StreamEvents(ctx, &ReplayFilter{})
		return err == nil && len(events) == 1
	}, time.Second, 10*time.Millisecond)

	stats, err := svc.GetEventStats(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalEvents)
}

func TestReplayService_NoStore(t *testing.T) {
	svc := NewReplayService(nil)
	_, err := svc.StreamEvents(context.Background(), nil)
	assert.Error(t, err)
}
