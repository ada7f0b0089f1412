package block

import "github.com/annel0/blockworld/internal/vec"

// Descriptor - снимок блока в конкретной позиции
type Descriptor struct {
	ID          ID              `json:"id"`
	Metadata    byte            `json:"metadata"`
	SkyLight    byte            `json:"sky_light"`
	BlockLight  byte            `json:"block_light"`
	Coordinates vec.GlobalVoxel `json:"coordinates"`
}

// Same сравнивает содержимое блока без учёта света и позиции
func (d Descriptor) Same(other Descriptor) bool {
	return d.ID == other.ID && d.Metadata == other.Metadata
}

// Accessor - доступ провайдера к миру при обновлении соседей.
// Изменения через Accessor ставят новые обновления в очередь,
// а не вызывают провайдеры рекурсивно.
type Accessor interface {
	// IsValidPosition сообщает, что позиция внутри высоты мира и её чанк загружен.
	IsValidPosition(pos vec.GlobalVoxel) bool

	// GetBlockData возвращает снимок блока.
	GetBlockData(pos vec.GlobalVoxel) Descriptor

	// SetBlockData заменяет ID и метаданные блока.
	SetBlockData(pos vec.GlobalVoxel, d Descriptor)
}

// Provider описывает свойства и реакции типа блока
type Provider interface {
	ID() ID
	Name() string

	// LightOpacity - ослабление света при прохождении блока (0-255).
	LightOpacity() byte

	// Luminance - свет, который блок излучает сам (0-15).
	Luminance() byte

	// BlockUpdate вызывается, когда изменился соседний блок source.
	BlockUpdate(desc, source Descriptor, world Accessor)
}

// Standard - провайдер без поведения, только световые свойства
type Standard struct {
	BlockID   ID
	BlockName string
	Opacity   byte
	Light     byte
}

func (s *Standard) ID() ID              { return s.BlockID }
func (s *Standard) Name() string        { return s.BlockName }
func (s *Standard) LightOpacity() byte  { return s.Opacity }
func (s *Standard) Luminance() byte     { return s.Light }
func (s *Standard) BlockUpdate(desc, source Descriptor, world Accessor) {}
