package main

import (
	"context"
	"testing"
	"time"

	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/block/implementations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorldTicker_StepDrainsWork(t *testing.T) {
	w, err := world.Create(t.TempDir(), "Tick", 1, world.GeneratorFlatland, world.Options{
		Blocks: implementations.NewDefaultRegistry(),
	})
	require.NoError(t, err)
	defer w.Close()

	d, err := w.Dimension(world.Overworld)
	require.NoError(t, err)
	_, err = d.GetChunk(vec.GlobalChunk{}, world.Generate)
	require.NoError(t, err)
	require.Positive(t, d.LightingQueue().Len())

	d.SetBlockID(vec.GlobalVoxel{X: 2, Y: 20, Z: 2}, byte(block.GlowstoneBlockID))
	require.Positive(t, d.PendingBlockUpdates())

	cfg := config.Default()
	cfg.Lighting.BudgetPerTick = 0
	tk := newWorldTicker(w, cfg)
	tk.step(context.Background())

	assert.Equal(t, 0, d.PendingBlockUpdates())
	assert.Equal(t, 0, d.LightingQueue().Len())
	assert.EqualValues(t, 15, d.GetBlockLight(vec.GlobalVoxel{X: 2, Y: 20, Z: 2}))
	assert.EqualValues(t, 14, d.GetBlockLight(vec.GlobalVoxel{X: 3, Y: 20, Z: 2}))
}

func TestWorldTicker_RunStopsOnCancel(t *testing.T) {
	w, err := world.Create(t.TempDir(), "Tick", 1, world.GeneratorEmpty, world.Options{
		Blocks: implementations.NewDefaultRegistry(),
	})
	require.NoError(t, err)
	defer w.Close()

	cfg := config.Default()
	cfg.World.TickMillis = 1
	cfg.World.AutosaveSeconds = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newWorldTicker(w, cfg).Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ticker did not stop")
	}
}
