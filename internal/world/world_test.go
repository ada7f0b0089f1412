package world

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/annel0/blockworld/internal/eventbus"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/block/implementations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{Blocks: implementations.NewDefaultRegistry()}
}

func TestWorld_CreateAndOpen(t *testing.T) {
	dir := t.TempDir()

	w, err := Create(dir, "Test", 42, GeneratorTerrain, testOptions())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, ManifestFile))

	w.SetSpawnPoint(vec.GlobalVoxel{X: 10, Y: 70, Z: -4})
	require.NoError(t, w.Close())

	_, err = Create(dir, "Again", 1, GeneratorEmpty, testOptions())
	assert.ErrorIs(t, err, ErrWorldExists)

	opened, err := Open(dir, testOptions())
	require.NoError(t, err)
	m := opened.Manifest()
	assert.Equal(t, "Test", m.Name)
	assert.Equal(t, int64(42), m.Seed)
	assert.Equal(t, GeneratorTerrain, m.ChunkProvider)
	assert.Equal(t, vec.GlobalVoxel{X: 10, Y: 70, Z: -4}, m.SpawnPoint.Voxel())
}

func TestWorld_CreateRejectsUnknownGenerator(t *testing.T) {
	_, err := Create(t.TempDir(), "Bad", 1, "caves", testOptions())
	assert.Error(t, err)
}

func TestWorld_OpenOrCreate(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenOrCreate(dir, "First", 7, GeneratorFlatland, testOptions())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	again, err := OpenOrCreate(dir, "Second", 8, GeneratorEmpty, testOptions())
	require.NoError(t, err)
	assert.Equal(t, "First", again.Manifest().Name, "существующий мир не пересоздаётся")
}

func TestWorld_Dimensions(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(dir, "Dims", 1, GeneratorFlatland, testOptions())
	require.NoError(t, err)

	over, err := w.Dimension(Overworld)
	require.NoError(t, err)
	same, err := w.Dimension(Overworld)
	require.NoError(t, err)
	assert.Same(t, over, same)
	assert.Equal(t, filepath.Join(dir, "region"), over.RegionDir())
	assert.Equal(t, GeneratorFlatland, over.Generator().Name())

	nether, err := w.Dimension(Nether)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "DIM-1", "region"), nether.RegionDir())

	_, err = w.Dimension(7)
	assert.ErrorIs(t, err, ErrUnknownDimension)

	dims := w.Dimensions()
	require.Len(t, dims, 2)
	assert.Equal(t, Nether, dims[0].ID())
	assert.Equal(t, Overworld, dims[1].ID())
}

func TestWorld_SaveWritesRegions(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(dir, "Save", 1, GeneratorFlatland, testOptions())
	require.NoError(t, err)

	d, err := w.Dimension(End)
	require.NoError(t, err)
	_, err = d.GetChunk(vec.GlobalChunk{X: -1, Z: 0}, Generate)
	require.NoError(t, err)

	require.NoError(t, w.Save())
	assert.FileExists(t, filepath.Join(dir, "DIM1", "region", "r.-1.0.mcr"))
}

func TestGenerators(t *testing.T) {
	flat := NewFlatlandGenerator()
	c := flat.Generate(vec.GlobalChunk{X: 2, Z: 2})
	col := vec.LocalColumn{X: 1, Z: 1}
	assert.Equal(t, byte(block.BedrockBlockID), c.GetBlockID(col.Voxel(0)))
	assert.Equal(t, byte(block.DirtBlockID), c.GetBlockID(col.Voxel(3)))
	assert.Equal(t, byte(block.GrassBlockID), c.GetBlockID(col.Voxel(4)))
	assert.Equal(t, byte(block.AirBlockID), c.GetBlockID(col.Voxel(5)))
	assert.Equal(t, 5, c.GetHeight(col))
	assert.True(t, c.TerrainPopulated())

	terrain := NewTerrainGenerator(99)
	a := terrain.Generate(vec.GlobalChunk{X: -3, Z: 5})
	b := NewTerrainGenerator(99).Generate(vec.GlobalChunk{X: -3, Z: 5})
	var ea, eb bytes.Buffer
	require.NoError(t, a.Encode(&ea))
	require.NoError(t, b.Encode(&eb))
	assert.Equal(t, ea.Bytes(), eb.Bytes(), "один сид - один рельеф")

	for x := 0; x < vec.ChunkWidth; x++ {
		for z := 0; z < vec.ChunkDepth; z++ {
			col := vec.LocalColumn{X: x, Z: z}
			assert.Equal(t, byte(block.BedrockBlockID), a.GetBlockID(col.Voxel(0)))
			assert.Greater(t, a.GetHeight(col), 0)
		}
	}

	empty := EmptyGenerator{}.Generate(vec.GlobalChunk{})
	assert.Equal(t, 0, empty.GetHeight(vec.LocalColumn{}))

	_, err := NewGenerator("unknown", 1)
	assert.Error(t, err)
}

func TestBusNotifier_PublishesEvents(t *testing.T) {
	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()

	received := make(chan *eventbus.Envelope, 4)
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: []string{eventbus.TypeBlockChanged}}, func(ctx context.Context, ev *eventbus.Envelope) {
		received <- ev
	})
	require.NoError(t, err)

	d := newTestDimension(t, t.TempDir(), EmptyGenerator{})
	d.AddListener(NewBusNotifier(bus, "test"))
	_, err = d.GetChunk(vec.GlobalChunk{}, Generate)
	require.NoError(t, err)

	pos := vec.GlobalVoxel{X: 1, Y: 2, Z: 3}
	d.SetBlockID(pos, byte(block.StoneBlockID))

	select {
	case env := <-received:
		assert.Equal(t, eventbus.TypeBlockChanged, env.EventType)
		assert.Equal(t, "test", env.Source)
		assert.Equal(t, 5, env.Priority)
		assert.NotEmpty(t, env.ID)

		var payload BlockChangedEvent
		require.NoError(t, json.Unmarshal(env.Payload, &payload))
		assert.Equal(t, block.StoneBlockID, payload.New.ID)
		assert.Equal(t, pos, payload.New.Coordinates)
	case <-time.After(time.Second):
		t.Fatal("событие BlockChanged не опубликовано")
	}
}

func TestBusNotifier_ChunkEnvelope(t *testing.T) {
	n := NewBusNotifier(eventbus.NewMemoryBus(1), "")
	env, err := n.Envelope(ChunkEvent{EventType: EventTypeChunkLoaded, Dimension: -1, Coords: vec.GlobalChunk{X: 4, Z: 5}})
	require.NoError(t, err)
	assert.Equal(t, eventbus.TypeChunkLoaded, env.EventType)
	assert.Equal(t, "blockworld", env.Source)
	assert.Equal(t, "-1", env.Metadata["dimension"])
	assert.Equal(t, 3, env.Priority)
}
