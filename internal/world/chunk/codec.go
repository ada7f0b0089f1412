package chunk

import (
	"errors"
	"fmt"
	"io"

	"github.com/Tnze/go-mc/nbt"
	"github.com/annel0/blockworld/internal/nibble"
	"github.com/annel0/blockworld/internal/vec"
)

// ErrMalformed - NBT чанка не соответствует формату MCRegion
var ErrMalformed = errors.New("malformed chunk data")

// levelRoot - корневой compound чанка
type levelRoot struct {
	Level levelTag `nbt:"Level"`
}

type levelTag struct {
	XPos             int32            `nbt:"xPos"`
	ZPos             int32            `nbt:"zPos"`
	LastUpdate       int64            `nbt:"LastUpdate"`
	TerrainPopulated byte             `nbt:"TerrainPopulated"`
	Blocks           []byte           `nbt:"Blocks"`
	Data             []byte           `nbt:"Data"`
	SkyLight         []byte           `nbt:"SkyLight"`
	BlockLight       []byte           `nbt:"BlockLight"`
	HeightMap        []byte           `nbt:"HeightMap"`
	Entities         []map[string]any `nbt:"Entities"`
	TileEntities     []map[string]any `nbt:"TileEntities"`
}

// Encode пишет чанк в w как несжатый NBT с текущим LastUpdate
func (c *Chunk) Encode(w io.Writer) error {
	_, err := c.encode(w, nil)
	return err
}

// EncodeAt пишет чанк со штампом LastUpdate = stamp и возвращает
// ревизию, попавшую в запись. Её передают в MarkClean.
func (c *Chunk) EncodeAt(w io.Writer, stamp int64) (uint64, error) {
	return c.encode(w, &stamp)
}

func (c *Chunk) encode(w io.Writer, stamp *int64) (uint64, error) {
	c.mu.RLock()
	tag := levelTag{
		XPos:         int32(c.coords.X),
		ZPos:         int32(c.coords.Z),
		LastUpdate:   c.lastUpdate,
		Blocks:       append([]byte(nil), c.blocks...),
		Data:         c.metadata.Serialize(),
		SkyLight:     c.skyLight.Serialize(),
		BlockLight:   c.blockLight.Serialize(),
		HeightMap:    make([]byte, ColumnCount),
		Entities:     make([]map[string]any, 0, len(c.entities)),
		TileEntities: make([]map[string]any, 0, len(c.tileEntities)),
	}
	if c.terrainPopulated {
		tag.TerrainPopulated = 1
	}
	if stamp != nil {
		tag.LastUpdate = *stamp
	}
	for i, h := range c.heightMap {
		if h > 0xFF {
			h = 0xFF
		}
		tag.HeightMap[i] = byte(h)
	}
	tag.Entities = append(tag.Entities, c.entities...)
	for local, te := range c.tileEntities {
		global := c.coords.Voxel(local)
		out := make(map[string]any, len(te)+3)
		for k, v := range te {
			out[k] = v
		}
		out["x"] = int32(global.X)
		out["y"] = int32(global.Y)
		out["z"] = int32(global.Z)
		tag.TileEntities = append(tag.TileEntities, out)
	}
	seen := c.revision
	c.mu.RUnlock()

	if err := nbt.NewEncoder(w).Encode(levelRoot{Level: tag}, ""); err != nil {
		return 0, fmt.Errorf("encode chunk %v: %w", c.coords, err)
	}
	return seen, nil
}

// Decode читает чанк из несжатого NBT
func Decode(r io.Reader) (*Chunk, error) {
	var root levelRoot
	if _, err := nbt.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	tag := root.Level

	if len(tag.Blocks) != Volume {
		return nil, fmt.Errorf("%w: Blocks has %d bytes, want %d", ErrMalformed, len(tag.Blocks), Volume)
	}

	coords := vec.GlobalChunk{X: int(tag.XPos), Z: int(tag.ZPos)}
	c := &Chunk{
		coords:           coords,
		blocks:           tag.Blocks,
		tileEntities:     make(map[vec.LocalVoxel]TileEntity, len(tag.TileEntities)),
		entities:         tag.Entities,
		terrainPopulated: tag.TerrainPopulated != 0,
		lastUpdate:       tag.LastUpdate,
	}

	var err error
	if c.metadata, err = decodeNibbles("Data", tag.Data); err != nil {
		return nil, err
	}
	if c.skyLight, err = decodeNibbles("SkyLight", tag.SkyLight); err != nil {
		return nil, err
	}
	if c.blockLight, err = decodeNibbles("BlockLight", tag.BlockLight); err != nil {
		return nil, err
	}

	switch len(tag.HeightMap) {
	case ColumnCount:
		for i, h := range tag.HeightMap {
			c.heightMap[i] = int(h)
		}
	case 0:
		c.RecalculateHeightMap()
	default:
		return nil, fmt.Errorf("%w: HeightMap has %d bytes, want %d", ErrMalformed, len(tag.HeightMap), ColumnCount)
	}

	for _, te := range tag.TileEntities {
		x, okX := intValue(te["x"])
		y, okY := intValue(te["y"])
		z, okZ := intValue(te["z"])
		if !okX || !okY || !okZ {
			continue
		}
		pos := vec.GlobalVoxel{X: x, Y: y, Z: z}
		if pos.Chunk() != coords || !pos.InHeightRange() {
			continue
		}
		entry := make(TileEntity, len(te))
		for k, v := range te {
			if k == "x" || k == "y" || k == "z" {
				continue
			}
			entry[k] = v
		}
		c.tileEntities[pos.Local()] = entry
	}

	c.dirty = false
	return c, nil
}

// decodeNibbles допускает отсутствующий массив (нулевой свет), но не чужую длину
func decodeNibbles(name string, packed []byte) (*nibble.Array, error) {
	switch len(packed) {
	case Volume / 2:
		return nibble.Deserialize(packed), nil
	case 0:
		return nibble.New(Volume), nil
	default:
		return nil, fmt.Errorf("%w: %s has %d bytes, want %d", ErrMalformed, name, len(packed), Volume/2)
	}
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case int16:
		return int(n), true
	case int8:
		return int(n), true
	case byte:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}
