// Package tile defines building types and the per-building production state
// machine driven every tick and tock.
package tile

import (
	"errors"
	"fmt"
	"slices"

	"github.com/talgya/mini-city/internal/economy"
	"github.com/talgya/mini-city/internal/world"
)

// Name identifies a building type.
type Name string

const (
	Warehouse  Name = "warehouse"
	Pioneer    Name = "pioneer"
	Farm       Name = "farm"
	Woodcutter Name = "woodcutter"
	Quarry     Name = "quarry"
	Mill       Name = "mill"
	Bakery     Name = "bakery"
)

// Tile is the static definition of a building type. Tiles are shared by every
// instance and never modified after the catalog is loaded.
type Tile struct {
	Name     Name                              `yaml:"name" json:"name"`
	Consumes economy.Consumes                  `yaml:"consumes" json:"consumes,omitempty"`
	Produces economy.Produces                  `yaml:"produces" json:"produces,omitempty"`
	Costs    economy.Costs                     `yaml:"costs" json:"costs,omitempty"`
	Yields   economy.Inventory[economy.Amount] `yaml:"yields" json:"yields,omitempty"` // Harvested every tock, up to the Consumes ceiling
	Grant    economy.Inventory[economy.Amount] `yaml:"grant" json:"grant,omitempty"`   // Credited when the building founds a territory

	// Storage buildings make up the territory pool and offer all their stock
	// to neighbors.
	Storage          bool `yaml:"storage" json:"storage"`
	FoundsTerritory  bool `yaml:"founds_territory" json:"founds_territory"`
	ExtendsTerritory bool `yaml:"extends_territory" json:"extends_territory"`

	Influence int             `yaml:"influence" json:"influence"` // Circle radius
	Terrains  []world.Terrain `yaml:"terrains" json:"terrains"`   // Where it may be placed

	// Storage buildings usually stock whole categories; these expand into
	// Consumes when the catalog is loaded.
	StoreCategories []economy.Category `yaml:"store_categories" json:"-"`
	StoreLimit      economy.Amount     `yaml:"store_limit" json:"-"`
}

// InfluenceAt returns the coordinates a building at c reaches for neighbor
// consumption and reveals from the fog of war.
func (t *Tile) InfluenceAt(c world.HexCoord) world.Range {
	return world.Circle(c, t.Influence)
}

// Allowed reports whether the building may stand at c.
func (t *Tile) Allowed(c world.HexCoord, terrain world.TerrainView) bool {
	return slices.Contains(t.Terrains, terrain.TerrainAt(c))
}

// HasState reports whether instances of t carry stock.
func (t *Tile) HasState() bool {
	return len(t.Consumes) > 0 || len(t.Produces) > 0
}

// expand folds StoreCategories into Consumes.
func (t *Tile) expand() {
	if len(t.StoreCategories) == 0 {
		return
	}
	if t.Consumes == nil {
		t.Consumes = make(economy.Consumes)
	}
	for _, c := range t.StoreCategories {
		for _, g := range economy.GoodsIn(c) {
			if _, ok := t.Consumes[g]; !ok {
				t.Consumes[g] = t.StoreLimit
			}
		}
	}
}

// Validate checks that production on t always terminates and that every good
// it touches has a slot in its state.
func (t *Tile) Validate() error {
	var errs []error
	if t.Name == "" {
		errs = append(errs, errors.New("missing name"))
	}
	if len(t.Terrains) == 0 {
		errs = append(errs, errors.New("no allowed terrains"))
	}
	if t.Influence < 0 {
		errs = append(errs, fmt.Errorf("negative influence %d", t.Influence))
	}
	if t.FoundsTerritory && !t.Storage {
		errs = append(errs, errors.New("only storage buildings can found territories"))
	}
	for _, out := range t.Produces.Outputs() {
		recipe := t.Produces[out]
		if len(recipe) == 0 {
			errs = append(errs, fmt.Errorf("recipe for %s has no inputs", out))
		}
		for _, in := range recipe.Inventory().Goods() {
			if _, ok := t.Consumes[in]; !ok {
				errs = append(errs, fmt.Errorf("recipe for %s uses %s which is not consumed", out, in))
			}
			if recipe[in] == 0 {
				errs = append(errs, fmt.Errorf("recipe for %s needs zero %s", out, in))
			}
		}
	}
	if g, cyclic := t.Produces.Cycle(); cyclic {
		errs = append(errs, fmt.Errorf("recipe cycle through %s", g))
	}
	for _, g := range t.Yields.Goods() {
		if _, ok := t.Consumes[g]; !ok {
			errs = append(errs, fmt.Errorf("yield %s is not consumed", g))
		}
	}
	state := economy.NewState(t.Consumes, t.Produces)
	for _, g := range t.Grant.Goods() {
		if !state.Has(g) {
			errs = append(errs, fmt.Errorf("grant %s has no slot in state", g))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("tile %q: %w", t.Name, err)
	}
	return nil
}
