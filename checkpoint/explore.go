// MODUL: checkpoint/explore
// ZWECK: Rekursive Struktur-Beschreibung fuer Diagnose (inspect --save-structure)
// INPUT: Value, maximale Tiefe
// OUTPUT: *Node-Baum mit erhaltener Schluessel-Reihenfolge (JSON-serialisierbar)
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: github.com/wk8/go-ordered-map/v2

package checkpoint

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Node beschreibt einen Knoten im Struktur-Baum.
type Node struct {
	Type      string                                `json:"type"`
	Shape     []int                                 `json:"shape,omitempty"`
	DType     string                                `json:"dtype,omitempty"`
	SizeMB    float64                               `json:"size_mb,omitempty"`
	Keys      []string                              `json:"keys,omitempty"`
	TotalKeys int                                   `json:"total_keys,omitempty"`
	Length    int                                   `json:"length,omitempty"`
	Sample    string                                `json:"sample,omitempty"`
	Value     string                                `json:"value,omitempty"`
	Children  *orderedmap.OrderedMap[string, *Node] `json:"structure,omitempty"`
	Truncated bool                                  `json:"max_depth_reached,omitempty"`
}

// Explore beschreibt v bis zur Tiefe maxDepth.
func Explore(v Value, depth int) *Node {
	return explore(v, depth, 0)
}

func explore(v Value, maxDepth, depth int) *Node {
	n := &Node{Type: KindOf(v)}

	switch x := v.(type) {
	case Tensor:
		n.Type = "Tensor"
		n.Shape = x.Shape
		n.DType = x.DType
		n.SizeMB = float64(x.Bytes()) / (1024 * 1024)
	case *Mapping:
		keys := x.Keys()
		n.TotalKeys = len(keys)
		n.Keys = keys[:min(10, len(keys))]
		if depth+1 >= maxDepth {
			n.Truncated = len(keys) > 0
			return n
		}
		n.Children = orderedmap.New[string, *Node]()
		x.Each(func(k string, c Value) bool {
			n.Children.Set(k, explore(c, maxDepth, depth+1))
			return true
		})
	case *Object:
		if x.IsModule() {
			n.Value = fmt.Sprintf("module with %d tensors", len(Tensors(x)))
		}
		if state, ok := x.State.(*Mapping); ok && depth+1 < maxDepth {
			n.Keys = state.Keys()[:min(10, state.Len())]
			n.TotalKeys = state.Len()
		}
	case Sequence:
		n.Length = len(x)
		n.Sample = sample(x)
	case Scalar:
		n.Value = truncate(fmt.Sprint(x.V), 100)
	case Opaque:
		n.Value = x.GoType
	}
	return n
}

func sample(seq Sequence) string {
	items := make([]string, 0, 3)
	for _, v := range seq[:min(3, len(seq))] {
		if s, ok := v.(Scalar); ok {
			items = append(items, fmt.Sprint(s.V))
		} else {
			items = append(items, KindOf(v))
		}
	}
	out := fmt.Sprint(items)
	if len(seq) > 10 {
		out += fmt.Sprintf("... (%d items)", len(seq))
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
