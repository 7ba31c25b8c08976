package checkpoint

import (
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/born-ml/ckptconv/internal/tensor"
)

// StateDict is an insertion-ordered mapping from parameter names to values.
//
// Values are *tensor.RawTensor, nested *StateDict mappings, or opaque
// metadata (numbers, strings, lists) that conversion passes through untouched.
// Setting an existing key replaces its value but keeps its original position.
type StateDict struct {
	m *orderedmap.OrderedMap[string, any]
}

// NewStateDict creates an empty StateDict.
func NewStateDict() *StateDict {
	return &StateDict{m: orderedmap.New[string, any]()}
}

// Set stores value under key.
func (d *StateDict) Set(key string, value any) {
	d.m.Set(key, value)
}

// Get returns the value stored under key.
func (d *StateDict) Get(key string) (any, bool) {
	return d.m.Get(key)
}

// Has reports whether key is present.
func (d *StateDict) Has(key string) bool {
	_, ok := d.m.Get(key)
	return ok
}

// Len returns the number of entries.
func (d *StateDict) Len() int {
	return d.m.Len()
}

// Keys returns the keys in insertion order.
func (d *StateDict) Keys() []string {
	keys := make([]string, 0, d.m.Len())
	for pair := d.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// All iterates over entries in insertion order.
func (d *StateDict) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for pair := d.m.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Tensor returns the tensor stored under key, if the value is a tensor.
func (d *StateDict) Tensor(key string) (*tensor.RawTensor, bool) {
	v, ok := d.m.Get(key)
	if !ok {
		return nil, false
	}
	t, ok := v.(*tensor.RawTensor)
	return t, ok
}

// Unwrap returns the mapping nested under StateDictKey when root has one,
// otherwise root itself. Sibling keys of the wrapped form (optimizer state,
// epoch counters) are not part of the result.
func Unwrap(root *StateDict) *StateDict {
	if v, ok := root.Get(StateDictKey); ok {
		if inner, ok := v.(*StateDict); ok {
			return inner
		}
	}
	return root
}
