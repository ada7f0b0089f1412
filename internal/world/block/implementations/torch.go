package implementations

import (
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// TorchBehavior - факел держится за соседний блок; без опоры исчезает.
// Метаданные: 1-4 - крепление к стене, 5 (или 0) - к полу.
type TorchBehavior struct {
	BlockID   block.ID
	BlockName string
	Light     byte
}

func (b *TorchBehavior) ID() block.ID       { return b.BlockID }
func (b *TorchBehavior) Name() string       { return b.BlockName }
func (b *TorchBehavior) LightOpacity() byte { return 0 }
func (b *TorchBehavior) Luminance() byte    { return b.Light }

// SupportOffset возвращает направление к опоре факела по метаданным
func SupportOffset(metadata byte) vec.Vec3 {
	switch metadata {
	case 1:
		return vec.West
	case 2:
		return vec.East
	case 3:
		return vec.North
	case 4:
		return vec.South
	default:
		return vec.Down
	}
}

// BlockUpdate убирает факел, если его опора стала воздухом
func (b *TorchBehavior) BlockUpdate(desc, source block.Descriptor, world block.Accessor) {
	support := desc.Coordinates.Offset(SupportOffset(desc.Metadata))
	if support != source.Coordinates {
		return
	}
	if !world.IsValidPosition(support) {
		return
	}
	if world.GetBlockData(support).ID == block.AirBlockID {
		world.SetBlockData(desc.Coordinates, block.Descriptor{ID: block.AirBlockID})
	}
}
