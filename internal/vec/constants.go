package vec

// Размеры мира в блоках и чанках
const (
	ChunkWidth  = 16  // ширина чанка по X
	ChunkDepth  = 16  // глубина чанка по Z
	ChunkHeight = 128 // высота чанка по Y

	RegionWidth = 32 // ширина региона в чанках
	RegionDepth = 32 // глубина региона в чанках
)

// FloorDiv делит с округлением к минус бесконечности.
// Для отрицательных координат -1/16 даёт -1, а не 0.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorMod возвращает остаток, всегда лежащий в [0, b) для b > 0.
func FloorMod(a, b int) int {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}
