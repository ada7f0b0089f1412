package implementations

import "github.com/annel0/blockworld/internal/world/block"

// AirBehavior реализует поведение пустого блока (воздуха)
type AirBehavior struct{}

// ID возвращает идентификатор блока
func (b *AirBehavior) ID() block.ID {
	return block.AirBlockID
}

// Name возвращает имя блока
func (b *AirBehavior) Name() string {
	return "air"
}

// LightOpacity возвращает 0, воздух не задерживает свет
func (b *AirBehavior) LightOpacity() byte {
	return 0
}

// Luminance возвращает 0
func (b *AirBehavior) Luminance() byte {
	return 0
}

// BlockUpdate ничего не делает для воздуха
func (b *AirBehavior) BlockUpdate(desc, source block.Descriptor, world block.Accessor) {}
