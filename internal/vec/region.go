package vec

import "fmt"

// Region - координаты файла региона
type Region struct {
	X, Z int
}

// Chunk собирает глобальные координаты чанка из региона и локальной позиции
func (r Region) Chunk(l LocalChunk) GlobalChunk {
	return GlobalChunk{X: r.X*RegionWidth + l.X, Z: r.Z*RegionDepth + l.Z}
}

// FileName возвращает имя файла региона в формате MCRegion
func (r Region) FileName() string {
	return fmt.Sprintf("r.%d.%d.mcr", r.X, r.Z)
}

func (r Region) String() string {
	return fmt.Sprintf("<%d,%d>", r.X, r.Z)
}
