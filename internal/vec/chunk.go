package vec

import "fmt"

// GlobalChunk - координаты столба-чанка в единицах чанков
type GlobalChunk struct {
	X, Z int
}

// LocalChunk - положение чанка внутри региона, [0,32) x [0,32)
type LocalChunk struct {
	X, Z int
}

// Region возвращает регион, содержащий чанк
func (c GlobalChunk) Region() Region {
	return Region{X: FloorDiv(c.X, RegionWidth), Z: FloorDiv(c.Z, RegionDepth)}
}

// Local возвращает положение чанка внутри его региона
func (c GlobalChunk) Local() LocalChunk {
	return LocalChunk{X: FloorMod(c.X, RegionWidth), Z: FloorMod(c.Z, RegionDepth)}
}

// Origin возвращает глобальную позицию блока (0,0,0) чанка
func (c GlobalChunk) Origin() GlobalVoxel {
	return GlobalVoxel{X: c.X * ChunkWidth, Y: 0, Z: c.Z * ChunkDepth}
}

// Voxel собирает глобальную позицию из чанка и локальной позиции
func (c GlobalChunk) Voxel(l LocalVoxel) GlobalVoxel {
	return GlobalVoxel{X: c.X*ChunkWidth + l.X, Y: l.Y, Z: c.Z*ChunkDepth + l.Z}
}

// Column собирает глобальный столбец из чанка и локального столбца
func (c GlobalChunk) Column(l LocalColumn) GlobalColumn {
	return GlobalColumn{X: c.X*ChunkWidth + l.X, Z: c.Z*ChunkDepth + l.Z}
}

// Offset сдвигает координаты на dx, dz чанков
func (c GlobalChunk) Offset(dx, dz int) GlobalChunk {
	return GlobalChunk{X: c.X + dx, Z: c.Z + dz}
}

func (c GlobalChunk) String() string {
	return fmt.Sprintf("<%d,%d>", c.X, c.Z)
}

// Valid проверяет, что координаты лежат внутри региона
func (l LocalChunk) Valid() bool {
	return l.X >= 0 && l.X < RegionWidth && l.Z >= 0 && l.Z < RegionDepth
}

// Index возвращает номер ячейки в заголовке файла региона
func (l LocalChunk) Index() int {
	return l.X + l.Z*RegionWidth
}

func (l LocalChunk) String() string {
	return fmt.Sprintf("<%d,%d>", l.X, l.Z)
}
