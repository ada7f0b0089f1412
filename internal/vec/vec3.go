package vec

import "fmt"

// Vec3 представляет трехмерное смещение с целочисленными координатами
type Vec3 struct {
	X int
	Y int
	Z int
}

// Смещения к шести соседям по граням
var (
	Up    = Vec3{X: 0, Y: 1, Z: 0}
	Down  = Vec3{X: 0, Y: -1, Z: 0}
	North = Vec3{X: 0, Y: 0, Z: -1}
	South = Vec3{X: 0, Y: 0, Z: 1}
	West  = Vec3{X: -1, Y: 0, Z: 0}
	East  = Vec3{X: 1, Y: 0, Z: 0}
)

// FaceOffsets перечисляет соседей по граням в фиксированном порядке.
var FaceOffsets = [6]Vec3{Up, Down, North, South, West, East}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

func (v Vec3) String() string {
	return fmt.Sprintf("<%d,%d,%d>", v.X, v.Y, v.Z)
}
