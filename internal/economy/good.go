// Package economy provides the closed set of tradable goods and the quantity
// maps built on them: inventories, building formulas, and live building state.
package economy

import (
	"fmt"
	"strings"
)

// Category groups goods into their sub-enumeration.
type Category uint8

const (
	CategoryNatural          Category = iota // Deposits and wild stocks on the map
	CategoryBuildingMaterial                 // Construction inputs
	CategoryHarvestable                      // Plants and animals that regrow
	CategoryProduction                       // Processed goods
	CategoryWeapon
	CategoryImmaterial // Money, culture and the like
)

var categoryNames = [...]string{"natural", "building_material", "harvestable", "production", "weapon", "immaterial"}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// MarshalText encodes a category by name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name such as "production".
func (c *Category) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range categoryNames {
		if n == name {
			*c = Category(i)
			return nil
		}
	}
	return fmt.Errorf("unknown good category %q", text)
}

// Good identifies one tradable good. The zero value is not a valid good.
// Goods are totally ordered by their numeric value, which follows the
// category order.
type Good uint16

// Natural goods.
const (
	CoalRepo Good = iota + 1
	CopperOreRepo
	FreshWater
	GemStoneRepo
	IronOreRepo
	MarbleRepo
	SaltRepo
	SilverOreRepo
	StoneRepo
	Whale
	WildFish
)

// Building materials.
const (
	Tool Good = iota + 100
	Wood
	Marble
	Brick
	Stone
	Bells
	Engineer
)

// Harvestable goods.
const (
	Cattle Good = iota + 200
	CocoaPlant
	CottonPlant
	Ears
	FlowerPlant
	Game
	Grape
	HempPlant
	HopsPlant
	IndigoPlant
	PeltAnimal
	PotatoPlant
	Sheep
	SilkWorm
	SpicePlant
	SugarCanePlant
	TobaccoPlant
	Tree
	UntamedHorse
)

// Production goods.
const (
	Alcohol Good = iota + 300
	Amber
	Beer
	Bees
	Book
	Bread
	BronzeBar
	Ceramic
	Clay
	Cloth
	Clothes
	Coal
	Cocoa
	CopperBar
	CopperOre
	Cotton
	Finery
	Fish
	Flour
	Flowers
	Food
	GemStone
	GoldBar
	Wheat
	GunPowder
	Hemp
	Honey
	Hops
	Horse
	Indigo
	Ink
	Instrument
	IronBar
	IronOre
	Jewellery
	LampOil
	Leather
	Meat
	Paper
	Pelt
	Perfume
	Pigment
	Porcelain
	Potato
	RawHide
	Rope
	Sails
	Salt
	Silk
	SilverBar
	SilverOre
	Slag
	Spices
	Spirit
	Sugar
	SugarCane
	TinBar
	Tobacco
	TobaccoLeaf
	WhaleTallow
	Wine
	Wool
)

// Weapons.
const (
	Pike Good = iota + 400
	Sword
	Armor
	Musket
	Cannon
	Mortar
	WarHorse
)

// Immaterial goods.
const (
	Culture Good = iota + 500
	Education
	Faith
	Hygiene
	Money
	Prestige
)

var goodNames = map[Good]string{
	CoalRepo: "CoalRepo", CopperOreRepo: "CopperOreRepo", FreshWater: "FreshWater",
	GemStoneRepo: "GemStoneRepo", IronOreRepo: "IronOreRepo", MarbleRepo: "MarbleRepo",
	SaltRepo: "SaltRepo", SilverOreRepo: "SilverOreRepo", StoneRepo: "StoneRepo",
	Whale: "Whale", WildFish: "WildFish",

	Tool: "Tool", Wood: "Wood", Marble: "Marble", Brick: "Brick", Stone: "Stone",
	Bells: "Bells", Engineer: "Engineer",

	Cattle: "Cattle", CocoaPlant: "CocoaPlant", CottonPlant: "CottonPlant", Ears: "Ears",
	FlowerPlant: "FlowerPlant", Game: "Game", Grape: "Grape", HempPlant: "HempPlant",
	HopsPlant: "HopsPlant", IndigoPlant: "IndigoPlant", PeltAnimal: "PeltAnimal",
	PotatoPlant: "PotatoPlant", Sheep: "Sheep", SilkWorm: "SilkWorm", SpicePlant: "SpicePlant",
	SugarCanePlant: "SugarCanePlant", TobaccoPlant: "TobaccoPlant", Tree: "Tree",
	UntamedHorse: "UntamedHorse",

	Alcohol: "Alcohol", Amber: "Amber", Beer: "Beer", Bees: "Bees", Book: "Book",
	Bread: "Bread", BronzeBar: "BronzeBar", Ceramic: "Ceramic", Clay: "Clay", Cloth: "Cloth",
	Clothes: "Clothes", Coal: "Coal", Cocoa: "Cocoa", CopperBar: "CopperBar",
	CopperOre: "CopperOre", Cotton: "Cotton", Finery: "Finery", Fish: "Fish", Flour: "Flour",
	Flowers: "Flowers", Food: "Food", GemStone: "GemStone", GoldBar: "GoldBar", Wheat: "Wheat",
	GunPowder: "GunPowder", Hemp: "Hemp", Honey: "Honey", Hops: "Hops", Horse: "Horse",
	Indigo: "Indigo", Ink: "Ink", Instrument: "Instrument", IronBar: "IronBar",
	IronOre: "IronOre", Jewellery: "Jewellery", LampOil: "LampOil", Leather: "Leather",
	Meat: "Meat", Paper: "Paper", Pelt: "Pelt", Perfume: "Perfume", Pigment: "Pigment",
	Porcelain: "Porcelain", Potato: "Potato", RawHide: "RawHide", Rope: "Rope", Sails: "Sails",
	Salt: "Salt", Silk: "Silk", SilverBar: "SilverBar", SilverOre: "SilverOre", Slag: "Slag",
	Spices: "Spices", Spirit: "Spirit", Sugar: "Sugar", SugarCane: "SugarCane",
	TinBar: "TinBar", Tobacco: "Tobacco", TobaccoLeaf: "TobaccoLeaf",
	WhaleTallow: "WhaleTallow", Wine: "Wine", Wool: "Wool",

	Pike: "Pike", Sword: "Sword", Armor: "Armor", Musket: "Musket", Cannon: "Cannon",
	Mortar: "Mortar", WarHorse: "WarHorse",

	Culture: "Culture", Education: "Education", Faith: "Faith", Hygiene: "Hygiene",
	Money: "Money", Prestige: "Prestige",
}

var (
	goodsByName = make(map[string]Good, len(goodNames))
	allGoods    []Good
)

func init() {
	for g, name := range goodNames {
		goodsByName[strings.ToLower(name)] = g
	}
	ranges := [...][2]Good{
		{CoalRepo, WildFish}, {Tool, Engineer}, {Cattle, UntamedHorse},
		{Alcohol, Wool}, {Pike, WarHorse}, {Culture, Prestige},
	}
	for _, r := range ranges {
		for g := r[0]; g <= r[1]; g++ {
			allGoods = append(allGoods, g)
		}
	}
}

// Valid reports whether g is a member of the enumeration.
func (g Good) Valid() bool {
	_, ok := goodNames[g]
	return ok
}

// Category returns the sub-enumeration g belongs to.
func (g Good) Category() Category {
	return Category(g / 100)
}

func (g Good) String() string {
	if name, ok := goodNames[g]; ok {
		return name
	}
	return fmt.Sprintf("Good(%d)", uint16(g))
}

// MarshalText encodes a good by name, so goods can be map keys in JSON and YAML.
func (g Good) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("invalid good %d", uint16(g))
	}
	return []byte(g.String()), nil
}

// UnmarshalText decodes a good name, case-insensitively.
func (g *Good) UnmarshalText(text []byte) error {
	parsed, err := ParseGood(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// ParseGood looks up a good by name, case-insensitively.
func ParseGood(name string) (Good, error) {
	g, ok := goodsByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown good %q", name)
	}
	return g, nil
}

// AllGoods returns every good in ascending order.
func AllGoods() []Good {
	return append([]Good(nil), allGoods...)
}

// GoodsIn returns the goods of one category in ascending order.
func GoodsIn(c Category) []Good {
	var out []Good
	for _, g := range allGoods {
		if g.Category() == c {
			out = append(out, g)
		}
	}
	return out
}
