package chunk

import (
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/blockworld/internal/nibble"
	"github.com/annel0/blockworld/internal/vec"
)

// Размеры массивов чанка
const (
	Volume      = vec.ChunkWidth * vec.ChunkDepth * vec.ChunkHeight // 32768 блоков
	ColumnCount = vec.ChunkWidth * vec.ChunkDepth                   // 256 столбцов
	MaxLight    = 15
)

// ErrOutOfRange - локальные координаты вне чанка. Это ошибка программиста,
// поэтому аксессоры паникуют с ней, а не возвращают её.
var ErrOutOfRange = errors.New("local coordinates out of chunk range")

// TileEntity - произвольный NBT-compound, привязанный к блоку
type TileEntity map[string]any

// Chunk представляет столб мира размером 16x16x128 блоков
type Chunk struct {
	mu sync.RWMutex

	coords vec.GlobalChunk

	blocks     []byte        // один байт на блок
	metadata   *nibble.Array // полубайт на блок
	skyLight   *nibble.Array // полубайт на блок
	blockLight *nibble.Array // полубайт на блок

	heightMap [ColumnCount]int

	tileEntities map[vec.LocalVoxel]TileEntity
	entities     []map[string]any // сохраняются без разбора

	terrainPopulated bool
	lastUpdate       int64
	dirty            bool
	revision         uint64 // растёт при каждом изменении
}

// New создаёт пустой чанк (воздух, без света)
func New(coords vec.GlobalChunk) *Chunk {
	return &Chunk{
		coords:       coords,
		blocks:       make([]byte, Volume),
		metadata:     nibble.New(Volume),
		skyLight:     nibble.New(Volume),
		blockLight:   nibble.New(Volume),
		tileEntities: make(map[vec.LocalVoxel]TileEntity),
		dirty:        true,
	}
}

// index возвращает позицию блока в массивах. Порядок совпадает с MCRegion.
func index(l vec.LocalVoxel) int {
	if !l.Valid() {
		panic(fmt.Errorf("%w: %v", ErrOutOfRange, l))
	}
	return l.Y + l.Z*vec.ChunkHeight + l.X*vec.ChunkHeight*vec.ChunkDepth
}

func columnIndex(c vec.LocalColumn) int {
	if !c.Valid() {
		panic(fmt.Errorf("%w: column %v", ErrOutOfRange, c))
	}
	return c.Z<<4 | c.X
}

// Coordinates возвращает координаты чанка
func (c *Chunk) Coordinates() vec.GlobalChunk {
	return c.coords
}

// MaxHeight возвращает высоту чанка
func (c *Chunk) MaxHeight() int {
	return vec.ChunkHeight
}

// GetBlockID возвращает ID блока
func (c *Chunk) GetBlockID(l vec.LocalVoxel) byte {
	i := index(l)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[i]
}

// SetBlockID устанавливает ID блока. Свет и карта высот не пересчитываются.
func (c *Chunk) SetBlockID(l vec.LocalVoxel, id byte) {
	i := index(l)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks[i] = id
	c.touchLocked()
}

// GetMetadata возвращает метаданные блока (0-15)
func (c *Chunk) GetMetadata(l vec.LocalVoxel) byte {
	i := index(l)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metadata.Get(i)
}

// SetMetadata устанавливает метаданные блока
func (c *Chunk) SetMetadata(l vec.LocalVoxel, v byte) {
	i := index(l)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata.Set(i, v)
	c.touchLocked()
}

// GetSkyLight возвращает небесный свет блока
func (c *Chunk) GetSkyLight(l vec.LocalVoxel) byte {
	i := index(l)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.skyLight.Get(i)
}

// SetSkyLight устанавливает небесный свет блока
func (c *Chunk) SetSkyLight(l vec.LocalVoxel, v byte) {
	i := index(l)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skyLight.Set(i, v)
	c.touchLocked()
}

// GetBlockLight возвращает свет от источников
func (c *Chunk) GetBlockLight(l vec.LocalVoxel) byte {
	i := index(l)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blockLight.Get(i)
}

// SetBlockLight устанавливает свет от источников
func (c *Chunk) SetBlockLight(l vec.LocalVoxel, v byte) {
	i := index(l)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockLight.Set(i, v)
	c.touchLocked()
}

// FillSkyLight заполняет весь небесный свет значением v
func (c *Chunk) FillSkyLight(v byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skyLight.Fill(v)
	c.touchLocked()
}

// FillBlockLight заполняет весь свет источников значением v
func (c *Chunk) FillBlockLight(v byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockLight.Fill(v)
	c.touchLocked()
}

// GetHeight возвращает высоту столбца: Y первого воздуха над верхним непустым блоком
func (c *Chunk) GetHeight(col vec.LocalColumn) int {
	i := columnIndex(col)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.heightMap[i]
}

// SetHeight устанавливает высоту столбца
func (c *Chunk) SetHeight(col vec.LocalColumn, h int) {
	i := columnIndex(col)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heightMap[i] = h
	c.touchLocked()
}

// RecalculateHeight пересчитывает высоту одного столбца и возвращает её
func (c *Chunk) RecalculateHeight(col vec.LocalColumn) int {
	ci := columnIndex(col)
	c.mu.Lock()
	defer c.mu.Unlock()

	h := 0
	for y := vec.ChunkHeight - 1; y >= 0; y-- {
		if c.blocks[index(col.Voxel(y))] != 0 {
			h = y + 1
			break
		}
	}
	if c.heightMap[ci] != h {
		c.heightMap[ci] = h
		c.touchLocked()
	}
	return h
}

// RecalculateHeightMap пересчитывает высоты всех столбцов
func (c *Chunk) RecalculateHeightMap() {
	for x := 0; x < vec.ChunkWidth; x++ {
		for z := 0; z < vec.ChunkDepth; z++ {
			c.RecalculateHeight(vec.LocalColumn{X: x, Z: z})
		}
	}
}

// GetTileEntity возвращает tile entity блока или nil
func (c *Chunk) GetTileEntity(l vec.LocalVoxel) TileEntity {
	index(l)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tileEntities[l]
}

// SetTileEntity привязывает tile entity к блоку; nil удаляет запись
func (c *Chunk) SetTileEntity(l vec.LocalVoxel, te TileEntity) {
	index(l)
	c.mu.Lock()
	defer c.mu.Unlock()
	if te == nil {
		delete(c.tileEntities, l)
	} else {
		c.tileEntities[l] = te
	}
	c.touchLocked()
}

// TileEntityCount возвращает число tile entity в чанке
func (c *Chunk) TileEntityCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tileEntities)
}

// TerrainPopulated сообщает, прошёл ли чанк декорирование
func (c *Chunk) TerrainPopulated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.terrainPopulated
}

// SetTerrainPopulated помечает чанк как декорированный
func (c *Chunk) SetTerrainPopulated(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terrainPopulated = v
	c.touchLocked()
}

// LastUpdate возвращает время последнего сохранения (unix-миллисекунды)
func (c *Chunk) LastUpdate() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// IsDirty сообщает, есть ли несохранённые изменения
func (c *Chunk) IsDirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty
}

// Revision возвращает счётчик изменений чанка
func (c *Chunk) Revision() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revision
}

// MarkClean фиксирует запись ревизии seen на диск со штампом stamp.
// Флаг изменений сбрасывается, только если после seen чанк не менялся.
func (c *Chunk) MarkClean(seen uint64, stamp int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUpdate = stamp
	if c.revision != seen {
		return false
	}
	c.dirty = false
	return true
}

func (c *Chunk) touchLocked() {
	c.dirty = true
	c.revision++
}
