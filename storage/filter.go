package storage

import (
	"github.com/poiesic/recall/core"
)

// Where is an equality filter over record metadata. A record matches when
// every key is present with an equal value. An empty Where matches every record.
type Where map[string]any

// Match reports whether md satisfies the filter.
// Integer and float values are compared after widening, so Where{"hours_back": 24}
// matches a stored int64(24).
func (w Where) Match(md core.Metadata) bool {
	for k, want := range w {
		got, ok := md[k]
		if !ok {
			return false
		}
		if !scalarEqual(want, got) {
			return false
		}
	}
	return true
}

func scalarEqual(a, b any) bool {
	na, err := core.NormalizeValue(a)
	if err != nil {
		return false
	}
	nb, err := core.NormalizeValue(b)
	if err != nil {
		return false
	}
	return na == nb
}
