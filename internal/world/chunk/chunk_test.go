package chunk

import (
	"bytes"
	"errors"
	"testing"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_BlockAccess(t *testing.T) {
	c := New(vec.GlobalChunk{X: 3, Z: -2})
	pos := vec.LocalVoxel{X: 5, Y: 64, Z: 9}

	assert.Equal(t, byte(0), c.GetBlockID(pos), "новый чанк должен состоять из воздуха")

	c.SetBlockID(pos, 1)
	c.SetMetadata(pos, 7)
	c.SetSkyLight(pos, 12)
	c.SetBlockLight(pos, 3)

	assert.Equal(t, byte(1), c.GetBlockID(pos))
	assert.Equal(t, byte(7), c.GetMetadata(pos))
	assert.Equal(t, byte(12), c.GetSkyLight(pos))
	assert.Equal(t, byte(3), c.GetBlockLight(pos))

	// Соседний по индексу блок не должен меняться
	next := vec.LocalVoxel{X: 5, Y: 65, Z: 9}
	assert.Equal(t, byte(0), c.GetBlockID(next))
	assert.Equal(t, byte(0), c.GetMetadata(next))
	assert.Equal(t, byte(0), c.GetSkyLight(next))
}

func TestChunk_OutOfRangePanics(t *testing.T) {
	c := New(vec.GlobalChunk{})
	bad := []vec.LocalVoxel{
		{X: 16, Y: 0, Z: 0},
		{X: 0, Y: 128, Z: 0},
		{X: 0, Y: 0, Z: -1},
	}
	for _, l := range bad {
		func() {
			defer func() {
				r := recover()
				require.NotNil(t, r, "ожидалась паника для %v", l)
				err, ok := r.(error)
				require.True(t, ok)
				assert.True(t, errors.Is(err, ErrOutOfRange))
			}()
			c.GetBlockID(l)
		}()
	}
	assert.Panics(t, func() { c.GetHeight(vec.LocalColumn{X: 16, Z: 0}) })
}

func TestChunk_HeightMap(t *testing.T) {
	c := New(vec.GlobalChunk{})
	col := vec.LocalColumn{X: 4, Z: 11}

	assert.Equal(t, 0, c.RecalculateHeight(col), "пустой столбец имеет высоту 0")

	c.SetBlockID(col.Voxel(10), 1)
	c.SetBlockID(col.Voxel(3), 1)
	assert.Equal(t, 11, c.RecalculateHeight(col))
	assert.Equal(t, 11, c.GetHeight(col))

	c.SetBlockID(col.Voxel(10), 0)
	assert.Equal(t, 4, c.RecalculateHeight(col))

	c.SetHeight(col, 99)
	assert.Equal(t, 99, c.GetHeight(col))
}

func TestChunk_TileEntities(t *testing.T) {
	c := New(vec.GlobalChunk{})
	pos := vec.LocalVoxel{X: 1, Y: 2, Z: 3}

	assert.Nil(t, c.GetTileEntity(pos))

	c.SetTileEntity(pos, TileEntity{"id": "Chest"})
	assert.Equal(t, "Chest", c.GetTileEntity(pos)["id"])
	assert.Equal(t, 1, c.TileEntityCount())

	c.SetTileEntity(pos, nil)
	assert.Nil(t, c.GetTileEntity(pos))
	assert.Equal(t, 0, c.TileEntityCount())
}

func TestChunk_Dirty(t *testing.T) {
	c := New(vec.GlobalChunk{})
	assert.True(t, c.IsDirty(), "новый чанк ещё не сохранён")

	assert.True(t, c.MarkClean(c.Revision(), 1234))
	assert.False(t, c.IsDirty())
	assert.Equal(t, int64(1234), c.LastUpdate())

	c.SetBlockLight(vec.LocalVoxel{}, 1)
	assert.True(t, c.IsDirty())
}

func TestChunk_MarkCleanAfterLaterEdit(t *testing.T) {
	c := New(vec.GlobalChunk{})

	var buf bytes.Buffer
	seen, err := c.EncodeAt(&buf, 5000)
	require.NoError(t, err)

	// Правка между записью и отметкой о сохранении
	c.SetBlockID(vec.LocalVoxel{X: 1, Y: 1, Z: 1}, 3)

	assert.False(t, c.MarkClean(seen, 5000))
	assert.True(t, c.IsDirty(), "несохранённая правка должна остаться грязной")
	assert.Equal(t, int64(5000), c.LastUpdate())

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), decoded.LastUpdate(), "штамп попадает в саму запись")
	assert.Equal(t, byte(0), decoded.GetBlockID(vec.LocalVoxel{X: 1, Y: 1, Z: 1}))
}

func TestCodec_RoundTrip(t *testing.T) {
	coords := vec.GlobalChunk{X: -5, Z: 7}
	c := New(coords)
	for x := 0; x < vec.ChunkWidth; x++ {
		for z := 0; z < vec.ChunkDepth; z++ {
			for y := 0; y < 4; y++ {
				l := vec.LocalVoxel{X: x, Y: y, Z: z}
				c.SetBlockID(l, byte(1+y))
				c.SetMetadata(l, byte((x+z)%16))
			}
		}
	}
	c.RecalculateHeightMap()
	c.FillSkyLight(9)
	c.SetBlockLight(vec.LocalVoxel{X: 2, Y: 3, Z: 4}, 14)
	c.SetTerrainPopulated(true)
	c.SetTileEntity(vec.LocalVoxel{X: 15, Y: 4, Z: 0}, TileEntity{"id": "Sign", "Text1": "hello"})

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, coords, decoded.Coordinates())
	assert.True(t, decoded.TerrainPopulated())
	assert.False(t, decoded.IsDirty(), "загруженный чанк не должен быть грязным")
	assert.Equal(t, byte(3), decoded.GetBlockID(vec.LocalVoxel{X: 7, Y: 2, Z: 8}))
	assert.Equal(t, byte(15), decoded.GetMetadata(vec.LocalVoxel{X: 7, Y: 2, Z: 8}))
	assert.Equal(t, byte(9), decoded.GetSkyLight(vec.LocalVoxel{X: 0, Y: 100, Z: 0}))
	assert.Equal(t, byte(14), decoded.GetBlockLight(vec.LocalVoxel{X: 2, Y: 3, Z: 4}))
	assert.Equal(t, 4, decoded.GetHeight(vec.LocalColumn{X: 3, Z: 3}))

	te := decoded.GetTileEntity(vec.LocalVoxel{X: 15, Y: 4, Z: 0})
	require.NotNil(t, te)
	assert.Equal(t, "Sign", te["id"])
	assert.Equal(t, "hello", te["Text1"])
	_, hasX := te["x"]
	assert.False(t, hasX, "координаты не должны попадать в данные tile entity")
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0x0A, 0x00}))
	assert.True(t, errors.Is(err, ErrMalformed))
}
