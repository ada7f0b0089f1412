package vec

import "fmt"

// GlobalVoxel - абсолютная позиция блока в мире
type GlobalVoxel struct {
	X, Y, Z int
}

// LocalVoxel - позиция блока внутри своего чанка
type LocalVoxel struct {
	X, Y, Z int
}

// Offset сдвигает позицию на вектор
func (v GlobalVoxel) Offset(d Vec3) GlobalVoxel {
	return GlobalVoxel{X: v.X + d.X, Y: v.Y + d.Y, Z: v.Z + d.Z}
}

// Neighbors возвращает шесть соседей по граням
func (v GlobalVoxel) Neighbors() [6]GlobalVoxel {
	var out [6]GlobalVoxel
	for i, d := range FaceOffsets {
		out[i] = v.Offset(d)
	}
	return out
}

// Chunk возвращает координаты чанка, которому принадлежит блок
func (v GlobalVoxel) Chunk() GlobalChunk {
	return GlobalChunk{X: FloorDiv(v.X, ChunkWidth), Z: FloorDiv(v.Z, ChunkDepth)}
}

// Local возвращает координаты блока внутри его чанка
func (v GlobalVoxel) Local() LocalVoxel {
	return LocalVoxel{X: FloorMod(v.X, ChunkWidth), Y: v.Y, Z: FloorMod(v.Z, ChunkDepth)}
}

// Region возвращает регион, в файле которого хранится блок
func (v GlobalVoxel) Region() Region {
	return v.Chunk().Region()
}

// Column отбрасывает высоту
func (v GlobalVoxel) Column() GlobalColumn {
	return GlobalColumn{X: v.X, Z: v.Z}
}

// InHeightRange проверяет, что Y попадает в [0, ChunkHeight)
func (v GlobalVoxel) InHeightRange() bool {
	return v.Y >= 0 && v.Y < ChunkHeight
}

func (v GlobalVoxel) String() string {
	return fmt.Sprintf("<%d,%d,%d>", v.X, v.Y, v.Z)
}

// Valid проверяет, что координаты лежат внутри чанка
func (l LocalVoxel) Valid() bool {
	return l.X >= 0 && l.X < ChunkWidth &&
		l.Y >= 0 && l.Y < ChunkHeight &&
		l.Z >= 0 && l.Z < ChunkDepth
}

// Column отбрасывает высоту
func (l LocalVoxel) Column() LocalColumn {
	return LocalColumn{X: l.X, Z: l.Z}
}

func (l LocalVoxel) String() string {
	return fmt.Sprintf("<%d,%d,%d>", l.X, l.Y, l.Z)
}
