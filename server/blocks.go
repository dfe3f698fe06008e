package server

// BlockType 方块类型标识，如 "minecraft:stone"
type BlockType string

const (
	BlockAir          BlockType = "minecraft:air"
	BlockCaveAir      BlockType = "minecraft:cave_air"
	BlockVoidAir      BlockType = "minecraft:void_air"
	BlockWater        BlockType = "minecraft:water"
	BlockLava         BlockType = "minecraft:lava"
	BlockObsidian     BlockType = "minecraft:obsidian"
	BlockEndPortal    BlockType = "minecraft:end_portal"
	BlockNetherPortal BlockType = "minecraft:nether_portal"
)

// bedColors 床的全部 16 种颜色
var bedColors = []string{
	"white", "orange", "magenta", "light_blue", "yellow", "lime", "pink", "gray",
	"light_gray", "cyan", "purple", "blue", "brown", "green", "red", "black",
}

// IsAir 三种空气都算
func (b BlockType) IsAir() bool {
	return b == BlockAir || b == BlockCaveAir || b == BlockVoidAir
}

// IsLiquid 仅水与岩浆
func (b BlockType) IsLiquid() bool {
	return b == BlockWater || b == BlockLava
}

// IsSolid 非空气、非液体即视为“地面”
func (b BlockType) IsSolid() bool {
	return b != "" && !b.IsAir() && !b.IsLiquid()
}

// Exemptions 豁免方块集合：站在上面不会受伤
type Exemptions map[BlockType]struct{}

// DefaultExemptions 黑曜石、所有颜色的床、末地与下界传送门，再加上配置中的额外方块
func DefaultExemptions(extra ...BlockType) Exemptions {
	ex := Exemptions{
		BlockObsidian:     {},
		BlockEndPortal:    {},
		BlockNetherPortal: {},
	}
	for _, c := range bedColors {
		ex[BlockType("minecraft:"+c+"_bed")] = struct{}{}
	}
	for _, b := range extra {
		if b != "" {
			ex[b] = struct{}{}
		}
	}
	return ex
}

func (e Exemptions) Has(b BlockType) bool {
	_, ok := e[b]
	return ok
}

// Lethal 判断站在该方块上是否触发伤害（不考虑是否为玩家放置）
func (e Exemptions) Lethal(b BlockType) bool {
	return b.IsSolid() && !e.Has(b)
}
