package vec

import "fmt"

// GlobalColumn - столбец блоков в глобальных координатах
type GlobalColumn struct {
	X, Z int
}

// LocalColumn - столбец внутри чанка, [0,16) x [0,16)
type LocalColumn struct {
	X, Z int
}

// Chunk возвращает чанк, содержащий столбец
func (c GlobalColumn) Chunk() GlobalChunk {
	return GlobalChunk{X: FloorDiv(c.X, ChunkWidth), Z: FloorDiv(c.Z, ChunkDepth)}
}

// Local возвращает столбец внутри его чанка
func (c GlobalColumn) Local() LocalColumn {
	return LocalColumn{X: FloorMod(c.X, ChunkWidth), Z: FloorMod(c.Z, ChunkDepth)}
}

// Voxel поднимает столбец на высоту y
func (c GlobalColumn) Voxel(y int) GlobalVoxel {
	return GlobalVoxel{X: c.X, Y: y, Z: c.Z}
}

func (c GlobalColumn) String() string {
	return fmt.Sprintf("<%d,%d>", c.X, c.Z)
}

// Valid проверяет, что столбец лежит внутри чанка
func (l LocalColumn) Valid() bool {
	return l.X >= 0 && l.X < ChunkWidth && l.Z >= 0 && l.Z < ChunkDepth
}

// Voxel поднимает столбец на высоту y
func (l LocalColumn) Voxel(y int) LocalVoxel {
	return LocalVoxel{X: l.X, Y: y, Z: l.Z}
}

func (l LocalColumn) String() string {
	return fmt.Sprintf("<%d,%d>", l.X, l.Z)
}
