package lighting

import (
	"context"
	"testing"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/block/implementations"
	"github.com/annel0/blockworld/internal/world/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource map[vec.GlobalChunk]*chunk.Chunk

func (m mapSource) LoadedChunk(c vec.GlobalChunk) *chunk.Chunk {
	return m[c]
}

func (m mapSource) add(coords ...vec.GlobalChunk) {
	for _, c := range coords {
		m[c] = chunk.New(c)
	}
}

func (m mapSource) setBlock(p vec.GlobalVoxel, id block.ID) {
	m[p.Chunk()].SetBlockID(p.Local(), byte(id))
}

func (m mapSource) sky(p vec.GlobalVoxel) byte {
	return m[p.Chunk()].GetSkyLight(p.Local())
}

func (m mapSource) light(p vec.GlobalVoxel) byte {
	return m[p.Chunk()].GetBlockLight(p.Local())
}

func newTestLighter(src mapSource) *Lighter {
	return New(src, implementations.NewDefaultRegistry(), NewQueue(nil), nil)
}

func lightChunks(l *Lighter, coords ...vec.GlobalChunk) {
	for _, c := range coords {
		l.Process(Operation{Chunk: c, Mode: ModeInitial, Kind: KindInitial})
	}
}

func TestInitial_AirChunkIsFullyLit(t *testing.T) {
	src := mapSource{}
	origin := vec.GlobalChunk{}
	src.add(origin)
	l := newTestLighter(src)

	lightChunks(l, origin)

	c := src[origin]
	for _, y := range []int{0, 1, 64, 127} {
		for _, col := range []vec.LocalColumn{{X: 0, Z: 0}, {X: 7, Z: 9}, {X: 15, Z: 15}} {
			assert.Equal(t, byte(15), c.GetSkyLight(col.Voxel(y)), "столбец %v y=%d", col, y)
			assert.Equal(t, byte(0), c.GetBlockLight(col.Voxel(y)))
		}
	}
}

func TestInitial_ColumnAttenuation(t *testing.T) {
	src := mapSource{}
	origin := vec.GlobalChunk{}
	src.add(origin)
	src.setBlock(vec.GlobalVoxel{X: 3, Y: 100, Z: 3}, block.WaterBlockID)
	src.setBlock(vec.GlobalVoxel{X: 3, Y: 90, Z: 3}, block.LeavesBlockID)
	src.setBlock(vec.GlobalVoxel{X: 3, Y: 80, Z: 3}, block.StoneBlockID)
	l := newTestLighter(src)

	lightChunks(l, origin)

	assert.Equal(t, byte(15), src.sky(vec.GlobalVoxel{X: 3, Y: 101, Z: 3}))
	assert.Equal(t, byte(12), src.sky(vec.GlobalVoxel{X: 3, Y: 100, Z: 3}))
	assert.Equal(t, byte(12), src.sky(vec.GlobalVoxel{X: 3, Y: 95, Z: 3}))
	assert.Equal(t, byte(10), src.sky(vec.GlobalVoxel{X: 3, Y: 90, Z: 3}))
	assert.Equal(t, byte(10), src.sky(vec.GlobalVoxel{X: 3, Y: 81, Z: 3}))
	assert.Equal(t, byte(0), src.sky(vec.GlobalVoxel{X: 3, Y: 80, Z: 3}))
	assert.Equal(t, byte(0), src.sky(vec.GlobalVoxel{X: 3, Y: 0, Z: 3}))

	assert.Equal(t, 101, src[origin].GetHeight(vec.LocalColumn{X: 3, Z: 3}))
}

func TestInitial_BlockLightFromSource(t *testing.T) {
	src := mapSource{}
	origin := vec.GlobalChunk{}
	src.add(origin)
	src.setBlock(vec.GlobalVoxel{X: 8, Y: 64, Z: 8}, block.GlowstoneBlockID)
	l := newTestLighter(src)

	lightChunks(l, origin)

	assert.Equal(t, byte(15), src.light(vec.GlobalVoxel{X: 8, Y: 64, Z: 8}))
	assert.Equal(t, byte(14), src.light(vec.GlobalVoxel{X: 9, Y: 64, Z: 8}))
	assert.Equal(t, byte(13), src.light(vec.GlobalVoxel{X: 10, Y: 64, Z: 8}))
	assert.Equal(t, byte(12), src.light(vec.GlobalVoxel{X: 9, Y: 65, Z: 9}))
	assert.Equal(t, byte(0), src.light(vec.GlobalVoxel{X: 8, Y: 40, Z: 8}))
}

func TestInitial_PullsLightFromLoadedNeighbour(t *testing.T) {
	src := mapSource{}
	left, right := vec.GlobalChunk{X: 0}, vec.GlobalChunk{X: 1}
	src.add(left)
	src.setBlock(vec.GlobalVoxel{X: 15, Y: 64, Z: 8}, block.GlowstoneBlockID)
	l := newTestLighter(src)
	lightChunks(l, left)

	// Правый чанк появляется позже и должен получить свет через границу
	src.add(right)
	lightChunks(l, right)

	assert.Equal(t, byte(14), src.light(vec.GlobalVoxel{X: 16, Y: 64, Z: 8}))
	assert.Equal(t, byte(13), src.light(vec.GlobalVoxel{X: 17, Y: 64, Z: 8}))
}

func TestSkyBlockUpdate_OpaqueBlockShadowsColumn(t *testing.T) {
	src := mapSource{}
	origin := vec.GlobalChunk{}
	src.add(origin)
	l := newTestLighter(src)
	lightChunks(l, origin)

	pos := vec.GlobalVoxel{X: 5, Y: 10, Z: 5}
	src.setBlock(pos, block.StoneBlockID)
	l.Queue().EnqueueVoxel(pos, ModeBlockUpdate, KindSky, 0)
	require.True(t, l.TryLightNext())
	assert.False(t, l.TryLightNext())

	assert.Equal(t, byte(0), src.sky(vec.GlobalVoxel{X: 5, Y: 9, Z: 5}))
	assert.Equal(t, byte(0), src.sky(vec.GlobalVoxel{X: 5, Y: 0, Z: 5}))
	assert.Equal(t, byte(15), src.sky(vec.GlobalVoxel{X: 5, Y: 11, Z: 5}))
	assert.Equal(t, byte(15), src.sky(vec.GlobalVoxel{X: 6, Y: 9, Z: 5}), "соседний столбец не затронут")
	assert.Equal(t, 11, src[origin].GetHeight(vec.LocalColumn{X: 5, Z: 5}))

	// Блок убрали - столбец снова освещён целиком
	src.setBlock(pos, block.AirBlockID)
	l.Process(Operation{Seed: pos, Chunk: pos.Chunk(), Mode: ModeBlockUpdate, Kind: KindSky})
	assert.Equal(t, byte(15), src.sky(vec.GlobalVoxel{X: 5, Y: 9, Z: 5}))
	assert.Equal(t, 0, src[origin].GetHeight(vec.LocalColumn{X: 5, Z: 5}))
}

func TestSkyAdd_SpreadsSideways(t *testing.T) {
	src := mapSource{}
	origin := vec.GlobalChunk{}
	src.add(origin)
	c := src[origin]
	c.FillSkyLight(0)

	l := newTestLighter(src)
	seed := vec.GlobalVoxel{X: 8, Y: 60, Z: 8}
	l.Process(Operation{Seed: seed, Mode: ModeAdd, Kind: KindSky, Level: 15})

	assert.Equal(t, byte(15), src.sky(seed))
	assert.Equal(t, byte(15), src.sky(vec.GlobalVoxel{X: 8, Y: 127, Z: 8}), "свет поднимается до верха")
	assert.Equal(t, byte(15), src.sky(vec.GlobalVoxel{X: 8, Y: 59, Z: 8}), "полный свет спускается без потерь")
	assert.Equal(t, byte(14), src.sky(vec.GlobalVoxel{X: 9, Y: 60, Z: 8}))
	assert.Equal(t, byte(13), src.sky(vec.GlobalVoxel{X: 10, Y: 60, Z: 8}))
}

func TestTorch_AddAndSubtractAcrossChunkBorder(t *testing.T) {
	src := mapSource{}
	left, right := vec.GlobalChunk{X: 0}, vec.GlobalChunk{X: 1}
	src.add(left, right)
	l := newTestLighter(src)
	lightChunks(l, left, right)

	torch := vec.GlobalVoxel{X: 14, Y: 64, Z: 8}
	src.setBlock(torch, block.TorchBlockID)
	l.Queue().EnqueueVoxel(torch, ModeAdd, KindBlock, 13)
	assert.Equal(t, 1, l.Drain(context.Background(), 0))

	assert.Equal(t, byte(13), src.light(torch))
	assert.Equal(t, byte(12), src.light(vec.GlobalVoxel{X: 15, Y: 64, Z: 8}))
	assert.Equal(t, byte(11), src.light(vec.GlobalVoxel{X: 16, Y: 64, Z: 8}))
	assert.Equal(t, byte(10), src.light(vec.GlobalVoxel{X: 17, Y: 64, Z: 8}))
	assert.Equal(t, byte(12), src.light(vec.GlobalVoxel{X: 14, Y: 65, Z: 8}))

	src.setBlock(torch, block.AirBlockID)
	l.Queue().EnqueueVoxel(torch, ModeSubtract, KindBlock, 0)
	assert.Equal(t, 1, l.Drain(context.Background(), 0))

	for _, p := range []vec.GlobalVoxel{
		torch,
		{X: 15, Y: 64, Z: 8},
		{X: 16, Y: 64, Z: 8},
		{X: 17, Y: 64, Z: 8},
		{X: 14, Y: 70, Z: 8},
		{X: 14, Y: 64, Z: 0},
	} {
		assert.Equal(t, byte(0), src.light(p), "после удаления факела в %v не должно быть света", p)
	}
}

func TestSubtract_KeepsLightFromOtherSource(t *testing.T) {
	src := mapSource{}
	origin := vec.GlobalChunk{}
	src.add(origin)
	l := newTestLighter(src)
	lightChunks(l, origin)

	a := vec.GlobalVoxel{X: 4, Y: 64, Z: 8}
	b := vec.GlobalVoxel{X: 10, Y: 64, Z: 8}
	for _, p := range []vec.GlobalVoxel{a, b} {
		src.setBlock(p, block.TorchBlockID)
		l.Process(Operation{Seed: p, Mode: ModeAdd, Kind: KindBlock, Level: 13})
	}
	assert.Equal(t, byte(10), src.light(vec.GlobalVoxel{X: 7, Y: 64, Z: 8}))

	src.setBlock(a, block.AirBlockID)
	l.Process(Operation{Seed: a, Mode: ModeSubtract, Kind: KindBlock})

	assert.Equal(t, byte(13), src.light(b))
	assert.Equal(t, byte(7), src.light(a), "свет второго факела доходит до места первого")
	assert.Equal(t, byte(10), src.light(vec.GlobalVoxel{X: 7, Y: 64, Z: 8}))
	assert.Equal(t, byte(6), src.light(vec.GlobalVoxel{X: 3, Y: 64, Z: 8}))
}

func TestBlockUpdate_OpaqueBlockReroutesLight(t *testing.T) {
	src := mapSource{}
	origin := vec.GlobalChunk{}
	src.add(origin)
	l := newTestLighter(src)
	lightChunks(l, origin)

	torch := vec.GlobalVoxel{X: 8, Y: 64, Z: 8}
	src.setBlock(torch, block.TorchBlockID)
	l.Process(Operation{Seed: torch, Mode: ModeAdd, Kind: KindBlock, Level: 13})
	assert.Equal(t, byte(11), src.light(vec.GlobalVoxel{X: 10, Y: 64, Z: 8}))

	wall := vec.GlobalVoxel{X: 9, Y: 64, Z: 8}
	src.setBlock(wall, block.StoneBlockID)
	l.Process(Operation{Seed: wall, Mode: ModeBlockUpdate, Kind: KindBlock})

	assert.Equal(t, byte(0), src.light(wall))
	assert.Equal(t, byte(13), src.light(torch))
	// В обход стены на один шаг длиннее
	assert.Equal(t, byte(9), src.light(vec.GlobalVoxel{X: 10, Y: 64, Z: 8}))
	assert.Equal(t, byte(11), src.light(vec.GlobalVoxel{X: 9, Y: 65, Z: 8}))

	// Стену убрали - свет возвращается
	src.setBlock(wall, block.AirBlockID)
	l.Process(Operation{Seed: wall, Mode: ModeBlockUpdate, Kind: KindBlock})
	assert.Equal(t, byte(12), src.light(wall))
	assert.Equal(t, byte(11), src.light(vec.GlobalVoxel{X: 10, Y: 64, Z: 8}))
}

func TestFloodStopsAtUnloadedChunk(t *testing.T) {
	src := mapSource{}
	origin := vec.GlobalChunk{}
	src.add(origin)
	l := newTestLighter(src)
	lightChunks(l, origin)

	torch := vec.GlobalVoxel{X: 15, Y: 64, Z: 8}
	src.setBlock(torch, block.TorchBlockID)
	assert.NotPanics(t, func() {
		l.Process(Operation{Seed: torch, Mode: ModeAdd, Kind: KindBlock, Level: 13})
	})
	assert.Equal(t, byte(12), src.light(vec.GlobalVoxel{X: 14, Y: 64, Z: 8}))
	assert.Nil(t, src.LoadedChunk(vec.GlobalChunk{X: 1}))
}

func TestOperationOnUnloadedChunkIsIgnored(t *testing.T) {
	l := newTestLighter(mapSource{})
	assert.NotPanics(t, func() {
		l.Process(Operation{Chunk: vec.GlobalChunk{X: 9}, Mode: ModeInitial, Kind: KindInitial})
		l.Process(Operation{Seed: vec.GlobalVoxel{X: 1, Y: 2, Z: 3}, Mode: ModeAdd, Kind: KindBlock, Level: 10})
		l.Process(Operation{Seed: vec.GlobalVoxel{X: 1, Y: 2, Z: 3}, Mode: ModeBlockUpdate, Kind: KindSky})
	})
}

func TestDrain_BudgetAndCancel(t *testing.T) {
	src := mapSource{}
	l := newTestLighter(src)
	for i := 0; i < 5; i++ {
		l.Queue().EnqueueChunk(vec.GlobalChunk{X: i})
	}

	assert.Equal(t, 2, l.Drain(context.Background(), 2))
	assert.Equal(t, 3, l.Queue().Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, l.Drain(ctx, 0))
	assert.Equal(t, 3, l.Queue().Len())

	assert.Equal(t, 3, l.Drain(context.Background(), 0))
	assert.False(t, l.TryLightNext())
}
