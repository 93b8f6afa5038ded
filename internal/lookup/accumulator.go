package lookup

import (
	"fmt"
	"strings"
)

// Accumulator collects the records of one invocation. Unkeyed records are kept
// in arrival order. Keyed records are kept in first-seen key order, and a record
// whose key was already seen is merged into the earlier one. The key field and
// the first-seen dn are kept as they are.
type Accumulator struct {
	key     string
	records []any
	index   map[string]int
}

// NewAccumulator creates an Accumulator. An empty key disables merging.
func NewAccumulator(key string) *Accumulator {
	return &Accumulator{
		key:   key,
		index: make(map[string]int),
	}
}

// Add appends or merges a record.
func (a *Accumulator) Add(key any, record any) {
	if a.key == "" {
		a.records = append(a.records, record)
		return
	}

	id := keyIdentity(key)
	pos, seen := a.index[id]
	if !seen {
		a.index[id] = len(a.records)
		a.records = append(a.records, record)
		return
	}

	existing, ok := a.records[pos].(map[string]any)
	incoming, isMap := record.(map[string]any)
	if !ok || !isMap {
		a.records = append(a.records, record)
		return
	}

	for _, name := range sortedKeys(incoming) {
		if strings.EqualFold(name, a.key) {
			continue
		}
		value := incoming[name]
		current, exists := existing[name]
		switch {
		case !exists:
			existing[name] = value
		case name == KeyDN:
		default:
			existing[name] = concat(current, value)
		}
	}
}

// Records returns the accumulated records.
func (a *Accumulator) Records() []any {
	if a.records == nil {
		return []any{}
	}
	return a.records
}

// Len returns the number of records.
func (a *Accumulator) Len() int {
	return len(a.records)
}

// keyIdentity maps a key value to a comparable identity. Keys of different
// types never collide.
func keyIdentity(key any) string {
	switch k := key.(type) {
	case string:
		return "s:" + k
	case []byte:
		return "b:" + string(k)
	case nil:
		return "n:"
	default:
		return fmt.Sprintf("%T:%v", k, k)
	}
}
