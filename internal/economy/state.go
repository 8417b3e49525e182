package economy

// State is the live stock of one building instance. Its goods are fixed when
// it is created; Credit and Debit never add or remove goods.
type State Inventory[Amount]

// NewState creates an empty stock holding exactly the goods of consumes and
// the outputs of produces. It returns nil when the building stores nothing.
func NewState(consumes Consumes, produces Produces) State {
	if len(consumes) == 0 && len(produces) == 0 {
		return nil
	}
	s := make(State, len(consumes)+len(produces))
	for g := range consumes {
		s[g] = 0
	}
	for g := range produces {
		s[g] = 0
	}
	return s
}

// Inventory returns s as a plain inventory.
func (s State) Inventory() Inventory[Amount] { return Inventory[Amount](s) }

// Clone returns a copy of s.
func (s State) Clone() State { return State(s.Inventory().Clone()) }

// Has reports whether g is part of the stock's fixed goods.
func (s State) Has(g Good) bool {
	_, ok := s[g]
	return ok
}

// Stock returns the amount of g held.
func (s State) Stock(g Good) Amount { return s[g] }

// Credit adds n units of g. It returns false, changing nothing, when g is not
// one of the stock's goods. Amounts saturate.
func (s State) Credit(g Good, n Amount) bool {
	v, ok := s[g]
	if !ok {
		return false
	}
	s[g] = saturatingAdd(v, n)
	return true
}

// Debit removes n units of g. It returns false, changing nothing, when g is
// not one of the stock's goods or fewer than n units are held.
func (s State) Debit(g Good, n Amount) bool {
	v, ok := s[g]
	if !ok || v < n {
		return false
	}
	s[g] = v - n
	return true
}

// Affords reports whether the stock is at least costs under the inventory
// partial order.
func (s State) Affords(costs Costs) bool {
	c, ok := costs.Inventory().Compare(s.Inventory())
	return ok && c <= 0
}

// Sum adds every state into one aggregate. The aggregate holds the union of
// the goods.
func Sum(states ...State) State {
	total := make(State)
	for _, st := range states {
		total.Inventory().Add(st.Inventory())
	}
	return total
}
