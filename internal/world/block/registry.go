package block

import (
	"fmt"
	"sort"
	"sync"
)

// ID представляет идентификатор блока (один байт в формате MCRegion)
type ID byte

// Константы ID блоков
const (
	AirBlockID               ID = 0x00
	StoneBlockID             ID = 0x01
	GrassBlockID             ID = 0x02
	DirtBlockID              ID = 0x03
	CobblestoneBlockID       ID = 0x04
	PlanksBlockID            ID = 0x05
	SaplingBlockID           ID = 0x06
	BedrockBlockID           ID = 0x07
	WaterBlockID             ID = 0x08
	StationaryWaterBlockID   ID = 0x09
	LavaBlockID              ID = 0x0A
	StationaryLavaBlockID    ID = 0x0B
	SandBlockID              ID = 0x0C
	GravelBlockID            ID = 0x0D
	GoldOreBlockID           ID = 0x0E
	IronOreBlockID           ID = 0x0F
	CoalOreBlockID           ID = 0x10
	LogBlockID               ID = 0x11
	LeavesBlockID            ID = 0x12
	GlassBlockID             ID = 0x14
	DandelionBlockID         ID = 0x25
	RoseBlockID              ID = 0x26
	BrownMushroomBlockID     ID = 0x27
	RedMushroomBlockID       ID = 0x28
	SlabBlockID              ID = 0x2C
	ObsidianBlockID          ID = 0x31
	TorchBlockID             ID = 0x32
	FireBlockID              ID = 0x33
	WoodenStairsBlockID      ID = 0x35
	BurningFurnaceBlockID    ID = 0x3E
	CobblestoneStairsBlockID ID = 0x43
	RedstoneTorchBlockID     ID = 0x4C
	SnowBlockID              ID = 0x4E
	IceBlockID               ID = 0x4F
	GlowstoneBlockID         ID = 0x59
	JackOLanternBlockID      ID = 0x5B
)

// Repository выдаёт провайдеры блоков только для чтения.
// Передаётся в Dimension и Lighter при создании.
type Repository interface {
	Provider(id ID) Provider
}

// Opacity возвращает непрозрачность блока; неизвестный блок прозрачен
func Opacity(repo Repository, id ID) byte {
	if repo == nil {
		return 0
	}
	if p := repo.Provider(id); p != nil {
		return p.LightOpacity()
	}
	return 0
}

// Luminance возвращает яркость блока; неизвестный блок не светится
func Luminance(repo Repository, id ID) byte {
	if repo == nil {
		return 0
	}
	if p := repo.Provider(id); p != nil {
		return p.Luminance()
	}
	return 0
}

// Registry - реестр провайдеров блоков
type Registry struct {
	mu        sync.RWMutex
	providers [256]Provider
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{}
}

// Register добавляет или заменяет провайдер блока
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

// Provider возвращает провайдер или nil для неизвестного ID
func (r *Registry) Provider(id ID) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[id]
}

// IsValidBlockID проверяет, зарегистрирован ли ID
func (r *Registry) IsValidBlockID(id ID) bool {
	return r.Provider(id) != nil
}

// IDs возвращает зарегистрированные ID по возрастанию
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []ID
	for i, p := range r.providers {
		if p != nil {
			ids = append(ids, ID(i))
		}
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	return ids
}

func (id ID) String() string {
	return fmt.Sprintf("0x%02X", byte(id))
}
