package reinforcement

import (
	"fmt"

	. "taxi/grid_world"
)

// ValueTable maps states to values. It is a dense slice keyed by a StateIndex; a table is
// never written once the solver has handed it off, so tables may be shared freely.
type ValueTable struct {
	index  *StateIndex
	values []float64
}

// NewValueTable returns a zeroed table over the indexed states.
func NewValueTable(index *StateIndex) *ValueTable {
	return &ValueTable{
		index:  index,
		values: make([]float64, index.Len()),
	}
}

// NewValueTableFunc builds a table by evaluating @fn for every indexed state.
func NewValueTableFunc(index *StateIndex, fn func(State) float64) *ValueTable {
	vt := NewValueTable(index)
	for i, s := range index.States() {
		vt.values[i] = fn(s)
	}
	return vt
}

// NewValueTableFrom wraps @values, which must be aligned with the index.
func NewValueTableFrom(index *StateIndex, values []float64) (*ValueTable, error) {
	if len(values) != index.Len() {
		return nil, fmt.Errorf("value count %d does not match state count %d", len(values), index.Len())
	}
	return &ValueTable{index: index, values: values}, nil
}

// Value returns the value of @s, or false if @s is not in the table.
func (vt *ValueTable) Value(s State) (float64, bool) {
	i, ok := vt.index.Index(s)
	if !ok {
		return 0, false
	}
	return vt.values[i], true
}

// At returns the value of the i'th indexed state.
func (vt *ValueTable) At(i int) float64 {
	return vt.values[i]
}

func (vt *ValueTable) Len() int {
	return len(vt.values)
}

func (vt *ValueTable) Index() *StateIndex {
	return vt.index
}

// Values returns a copy of the values in index order.
func (vt *ValueTable) Values() []float64 {
	out := make([]float64, len(vt.values))
	copy(out, vt.values)
	return out
}
