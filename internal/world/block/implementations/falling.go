package implementations

import (
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// FallingBehavior - песок и гравий: падают, когда под ними пусто.
// Каждое падение - одна клетка за обновление; следующее падение
// приходит из очереди обновлений, а не рекурсией.
type FallingBehavior struct {
	BlockID   block.ID
	BlockName string
}

func (b *FallingBehavior) ID() block.ID       { return b.BlockID }
func (b *FallingBehavior) Name() string       { return b.BlockName }
func (b *FallingBehavior) LightOpacity() byte { return opaque }
func (b *FallingBehavior) Luminance() byte    { return 0 }

// BlockUpdate сдвигает блок на одну клетку вниз, если под ним воздух
func (b *FallingBehavior) BlockUpdate(desc, source block.Descriptor, world block.Accessor) {
	below := desc.Coordinates.Offset(vec.Down)
	if !world.IsValidPosition(below) {
		return
	}
	if world.GetBlockData(below).ID != block.AirBlockID {
		return
	}

	world.SetBlockData(desc.Coordinates, block.Descriptor{ID: block.AirBlockID})
	world.SetBlockData(below, block.Descriptor{ID: desc.ID, Metadata: desc.Metadata})
}
