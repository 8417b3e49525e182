package economy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestGoodCategories(t *testing.T) {
	assert.Equal(t, CategoryNatural, WildFish.Category())
	assert.Equal(t, CategoryBuildingMaterial, Wood.Category())
	assert.Equal(t, CategoryHarvestable, Tree.Category())
	assert.Equal(t, CategoryProduction, Bread.Category())
	assert.Equal(t, CategoryWeapon, Cannon.Category())
	assert.Equal(t, CategoryImmaterial, Money.Category())

	all := AllGoods()
	assert.Len(t, all, 11+7+19+62+7+6)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1], all[i])
	}
	assert.Len(t, GoodsIn(CategoryWeapon), 7)
}

func TestParseGood(t *testing.T) {
	g, err := ParseGood("  money ")
	require.NoError(t, err)
	assert.Equal(t, Money, g)

	_, err = ParseGood("unobtainium")
	assert.Error(t, err)
	assert.False(t, Good(0).Valid())
}

func TestGoodsAsMapKeys(t *testing.T) {
	in := Inventory[Amount]{Money: 10, Bread: 2}
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Money":10,"Bread":2}`, string(raw))

	var out Consumes
	require.NoError(t, yaml.Unmarshal([]byte("wheat: 5\nFlour: 3\n"), &out))
	assert.Equal(t, Consumes{Wheat: 5, Flour: 3}, out)
}

func TestInventoryCompare(t *testing.T) {
	cases := []struct {
		name string
		a, b Inventory[Amount]
		want int
		ok   bool
	}{
		{"equal", Inventory[Amount]{Money: 1}, Inventory[Amount]{Money: 1}, 0, true},
		{"less", Inventory[Amount]{Money: 1}, Inventory[Amount]{Money: 2}, -1, true},
		{"greater", Inventory[Amount]{Money: 3}, Inventory[Amount]{Money: 2}, 1, true},
		{"mixed", Inventory[Amount]{Money: 3, Wood: 1}, Inventory[Amount]{Money: 2, Wood: 2}, 0, false},
		{"subset equal is less", Inventory[Amount]{Money: 2}, Inventory[Amount]{Money: 2, Wood: 0}, -1, true},
		{"superset equal is greater", Inventory[Amount]{Money: 2, Wood: 0}, Inventory[Amount]{Money: 2}, 1, true},
		{"subset with more is incomparable", Inventory[Amount]{Money: 5}, Inventory[Amount]{Money: 2, Wood: 9}, 0, false},
		{"superset with less is incomparable", Inventory[Amount]{Money: 2, Wood: 9}, Inventory[Amount]{Money: 5}, 0, false},
		{"disjoint", Inventory[Amount]{Money: 1}, Inventory[Amount]{Wood: 1}, 0, false},
		{"empty", Inventory[Amount]{}, Inventory[Amount]{}, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.a.Compare(tc.b)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestInventoryArithmeticSaturates(t *testing.T) {
	inv := Inventory[uint8]{Money: 250}
	inv.Add(Inventory[uint8]{Money: 10, Wood: 1})
	assert.Equal(t, Inventory[uint8]{Money: 255, Wood: 1}, inv)

	inv.Sub(Inventory[uint8]{Wood: 5, Stone: 1})
	assert.Equal(t, Inventory[uint8]{Money: 255, Wood: 0, Stone: 0}, inv)
	assert.Equal(t, uint64(255), inv.Total())
	assert.Equal(t, "{Wood: 0, Stone: 0, Money: 255}", inv.String())
}

func TestNewStateKeySet(t *testing.T) {
	assert.Nil(t, NewState(nil, nil))

	s := NewState(Consumes{Wheat: 10}, Produces{Bread: {Wheat: 2}})
	assert.Equal(t, State{Wheat: 0, Bread: 0}, s)

	assert.True(t, s.Credit(Wheat, 3))
	assert.False(t, s.Credit(Money, 3))
	assert.False(t, s.Has(Money))

	assert.False(t, s.Debit(Wheat, 4))
	assert.Equal(t, Amount(3), s.Stock(Wheat))
	assert.True(t, s.Debit(Wheat, 3))
	assert.Equal(t, Amount(0), s.Stock(Wheat))
	assert.Len(t, s, 2)
}

func TestStateAffords(t *testing.T) {
	s := State{Money: 100, Wood: 5}
	assert.True(t, s.Affords(Costs{Money: 100}))
	assert.True(t, s.Affords(Costs{Money: 50, Wood: 5}))
	assert.False(t, s.Affords(Costs{Money: 101}))
	assert.False(t, s.Affords(Costs{Money: 10, Stone: 1}))
	assert.True(t, s.Affords(Costs{}))
}

func TestSum(t *testing.T) {
	total := Sum(State{Money: 1000}, State{Money: 0, Wood: 3}, nil)
	assert.Equal(t, State{Money: 1000, Wood: 3}, total)
}

func TestProducesGraph(t *testing.T) {
	p := Produces{
		Bread: {Flour: 1},
		Flour: {Wheat: 2},
	}
	assert.Equal(t, []Good{Bread, Flour}, p.Outputs())
	assert.Equal(t, []Good{Flour, Wheat}, p.Inputs())
	assert.True(t, p.IsInput(Flour))
	assert.False(t, p.IsInput(Bread))
	_, cyclic := p.Cycle()
	assert.False(t, cyclic)

	p[Wheat] = Consumes{Bread: 1}
	_, cyclic = p.Cycle()
	assert.True(t, cyclic)
}
