package world

import (
	"fmt"
	"math/rand"

	"github.com/annel0/blockworld/internal/util"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/chunk"
)

// Generator создаёт содержимое нового чанка. Свет не заполняет:
// это делает начальное освещение измерения.
type Generator interface {
	Name() string
	Generate(coords vec.GlobalChunk) *chunk.Chunk
}

// Имена генераторов в manifest.nbt
const (
	GeneratorEmpty    = "empty"
	GeneratorFlatland = "flatland"
	GeneratorTerrain  = "terrain"
)

// NewGenerator создаёт генератор по имени из манифеста
func NewGenerator(name string, seed int64) (Generator, error) {
	switch name {
	case GeneratorEmpty:
		return EmptyGenerator{}, nil
	case GeneratorFlatland, "":
		return NewFlatlandGenerator(), nil
	case GeneratorTerrain:
		return NewTerrainGenerator(seed), nil
	default:
		return nil, fmt.Errorf("неизвестный генератор %q", name)
	}
}

// EmptyGenerator - чанки из одного воздуха
type EmptyGenerator struct{}

func (EmptyGenerator) Name() string { return GeneratorEmpty }

func (EmptyGenerator) Generate(coords vec.GlobalChunk) *chunk.Chunk {
	c := chunk.New(coords)
	c.SetTerrainPopulated(true)
	return c
}

// Layer - слой плоского мира снизу вверх
type Layer struct {
	Block  block.ID
	Height int
}

// FlatlandGenerator - одинаковые слои во всех столбцах
type FlatlandGenerator struct {
	Layers []Layer
}

// NewFlatlandGenerator создаёт классический плоский мир: бедрок, 3 земли, трава
func NewFlatlandGenerator() *FlatlandGenerator {
	return &FlatlandGenerator{Layers: []Layer{
		{Block: block.BedrockBlockID, Height: 1},
		{Block: block.DirtBlockID, Height: 3},
		{Block: block.GrassBlockID, Height: 1},
	}}
}

func (g *FlatlandGenerator) Name() string { return GeneratorFlatland }

// SurfaceHeight возвращает y первого воздуха над слоями
func (g *FlatlandGenerator) SurfaceHeight() int {
	h := 0
	for _, l := range g.Layers {
		h += l.Height
	}
	return min(h, vec.ChunkHeight)
}

func (g *FlatlandGenerator) Generate(coords vec.GlobalChunk) *chunk.Chunk {
	c := chunk.New(coords)
	for x := 0; x < vec.ChunkWidth; x++ {
		for z := 0; z < vec.ChunkDepth; z++ {
			col := vec.LocalColumn{X: x, Z: z}
			y := 0
			for _, l := range g.Layers {
				for i := 0; i < l.Height && y < vec.ChunkHeight; i++ {
					c.SetBlockID(col.Voxel(y), byte(l.Block))
					y++
				}
			}
		}
	}
	c.RecalculateHeightMap()
	c.SetTerrainPopulated(true)
	return c
}

// Константы рельефа
const (
	SeaLevel      = 62
	terrainBase   = 50
	terrainRange  = 40
	beachMargin   = 2
	treeChance    = 0.01
	dirtThickness = 3
)

// TerrainGenerator строит рельеф по шуму Перлина
type TerrainGenerator struct {
	Seed       int64
	NoiseScale float64 // масштаб шума высоты
	noise      *util.Noise
}

// NewTerrainGenerator создаёт генератор рельефа с указанным сидом
func NewTerrainGenerator(seed int64) *TerrainGenerator {
	return &TerrainGenerator{
		Seed:       seed,
		NoiseScale: 0.01,
		noise:      util.NewNoise(seed),
	}
}

func (g *TerrainGenerator) Name() string { return GeneratorTerrain }

// Height возвращает высоту поверхности в мировом столбце
func (g *TerrainGenerator) Height(x, z int) int {
	n := g.noise.Noise2D(float64(x)*g.NoiseScale, float64(z)*g.NoiseScale)
	h := terrainBase + int(n*terrainRange)
	return max(1, min(h, vec.ChunkHeight-8))
}

func (g *TerrainGenerator) Generate(coords vec.GlobalChunk) *chunk.Chunk {
	c := chunk.New(coords)

	// Отдельный сид на чанк, чтобы результат не зависел от порядка генерации
	rng := rand.New(rand.NewSource(g.Seed + int64(coords.X)*341873128712 + int64(coords.Z)*132897987541))

	for x := 0; x < vec.ChunkWidth; x++ {
		for z := 0; z < vec.ChunkDepth; z++ {
			col := coords.Column(vec.LocalColumn{X: x, Z: z})
			height := g.Height(col.X, col.Z)
			local := col.Local()

			c.SetBlockID(local.Voxel(0), byte(block.BedrockBlockID))
			for y := 1; y < height; y++ {
				c.SetBlockID(local.Voxel(y), byte(g.fill(y, height)))
			}
			for y := height; y < SeaLevel; y++ {
				c.SetBlockID(local.Voxel(y), byte(block.StationaryWaterBlockID))
			}

			if height > SeaLevel+beachMargin && rng.Float64() < treeChance && x > 1 && x < 14 && z > 1 && z < 14 {
				g.placeTree(c, local, height, rng)
			}
		}
	}

	c.RecalculateHeightMap()
	c.SetTerrainPopulated(true)
	return c
}

// fill выбирает блок на глубине y в столбце с поверхностью height
func (g *TerrainGenerator) fill(y, height int) block.ID {
	top := y == height-1
	switch {
	case height <= SeaLevel+beachMargin && y >= height-dirtThickness:
		return block.SandBlockID
	case top:
		return block.GrassBlockID
	case y >= height-dirtThickness:
		return block.DirtBlockID
	default:
		return block.StoneBlockID
	}
}

// placeTree ставит ствол и крону. Дерево не выходит за границы чанка.
func (g *TerrainGenerator) placeTree(c *chunk.Chunk, col vec.LocalColumn, base int, rng *rand.Rand) {
	trunk := 4 + rng.Intn(2)
	if base+trunk+2 >= vec.ChunkHeight {
		return
	}
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			for dz := -1; dz <= 1; dz++ {
				l := vec.LocalVoxel{X: col.X + dx, Y: base + trunk + dy, Z: col.Z + dz}
				if c.GetBlockID(l) == byte(block.AirBlockID) {
					c.SetBlockID(l, byte(block.LeavesBlockID))
				}
			}
		}
	}
	for y := base; y < base+trunk; y++ {
		c.SetBlockID(col.Voxel(y), byte(block.LogBlockID))
	}
}
