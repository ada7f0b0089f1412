// Package implementations содержит провайдеры стандартных блоков.
package implementations

import "github.com/annel0/blockworld/internal/world/block"

// Непрозрачность полностью сплошного блока
const opaque = 255

// standardBlocks - блоки без поведения: ID, имя, непрозрачность, яркость
var standardBlocks = []block.Standard{
	{BlockID: block.StoneBlockID, BlockName: "stone", Opacity: opaque},
	{BlockID: block.GrassBlockID, BlockName: "grass", Opacity: opaque},
	{BlockID: block.DirtBlockID, BlockName: "dirt", Opacity: opaque},
	{BlockID: block.CobblestoneBlockID, BlockName: "cobblestone", Opacity: opaque},
	{BlockID: block.PlanksBlockID, BlockName: "planks", Opacity: opaque},
	{BlockID: block.SaplingBlockID, BlockName: "sapling"},
	{BlockID: block.BedrockBlockID, BlockName: "bedrock", Opacity: opaque},
	{BlockID: block.WaterBlockID, BlockName: "water", Opacity: 3},
	{BlockID: block.StationaryWaterBlockID, BlockName: "stationary_water", Opacity: 3},
	{BlockID: block.LavaBlockID, BlockName: "lava", Opacity: opaque, Light: 15},
	{BlockID: block.StationaryLavaBlockID, BlockName: "stationary_lava", Opacity: opaque, Light: 15},
	{BlockID: block.GoldOreBlockID, BlockName: "gold_ore", Opacity: opaque},
	{BlockID: block.IronOreBlockID, BlockName: "iron_ore", Opacity: opaque},
	{BlockID: block.CoalOreBlockID, BlockName: "coal_ore", Opacity: opaque},
	{BlockID: block.LogBlockID, BlockName: "log", Opacity: opaque},
	{BlockID: block.LeavesBlockID, BlockName: "leaves", Opacity: 2},
	{BlockID: block.GlassBlockID, BlockName: "glass"},
	{BlockID: block.DandelionBlockID, BlockName: "dandelion"},
	{BlockID: block.RoseBlockID, BlockName: "rose"},
	{BlockID: block.BrownMushroomBlockID, BlockName: "brown_mushroom", Light: 1},
	{BlockID: block.RedMushroomBlockID, BlockName: "red_mushroom"},
	{BlockID: block.SlabBlockID, BlockName: "slab", Opacity: opaque},
	{BlockID: block.ObsidianBlockID, BlockName: "obsidian", Opacity: opaque},
	{BlockID: block.FireBlockID, BlockName: "fire", Light: 15},
	{BlockID: block.WoodenStairsBlockID, BlockName: "wooden_stairs", Opacity: opaque},
	{BlockID: block.BurningFurnaceBlockID, BlockName: "burning_furnace", Opacity: opaque, Light: 13},
	{BlockID: block.CobblestoneStairsBlockID, BlockName: "cobblestone_stairs", Opacity: opaque},
	{BlockID: block.SnowBlockID, BlockName: "snow"},
	{BlockID: block.IceBlockID, BlockName: "ice", Opacity: 2},
	{BlockID: block.GlowstoneBlockID, BlockName: "glowstone", Opacity: opaque, Light: 15},
	{BlockID: block.JackOLanternBlockID, BlockName: "jack_o_lantern", Opacity: opaque, Light: 15},
}

// RegisterDefaults регистрирует все стандартные блоки в реестре
func RegisterDefaults(reg *block.Registry) {
	reg.Register(&AirBehavior{})
	for i := range standardBlocks {
		b := standardBlocks[i]
		reg.Register(&b)
	}
	reg.Register(&FallingBehavior{BlockID: block.SandBlockID, BlockName: "sand"})
	reg.Register(&FallingBehavior{BlockID: block.GravelBlockID, BlockName: "gravel"})
	reg.Register(&TorchBehavior{BlockID: block.TorchBlockID, BlockName: "torch", Light: 13})
	reg.Register(&TorchBehavior{BlockID: block.RedstoneTorchBlockID, BlockName: "redstone_torch", Light: 7})
}

// NewDefaultRegistry создаёт реестр со стандартными блоками
func NewDefaultRegistry() *block.Registry {
	reg := block.NewRegistry()
	RegisterDefaults(reg)
	return reg
}
