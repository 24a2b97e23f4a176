// MODUL: checkpoint/value
// ZWECK: Geschlossene Menge von Wert-Varianten fuer geladene Checkpoints
// INPUT: Entpickelte Python-Objekte (siehe load.go)
// OUTPUT: Value-Baum (Mapping, Tensor, Sequence, Scalar, Object, None, Opaque)
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: github.com/wk8/go-ordered-map/v2
// HINWEISE: Werte sind nach dem Laden unveraenderlich, Mapping erhaelt die Schluessel-Reihenfolge

package checkpoint

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Value ist ein Knoten im Checkpoint-Baum.
type Value interface {
	kind() string
}

// ============================================================================
// Mapping
// ============================================================================

// Mapping ist ein Python dict/OrderedDict mit String-Schluesseln.
// Nicht-String-Schluessel (z.B. {0: "crop"}) werden beim Laden in Strings umgewandelt.
type Mapping struct {
	entries *orderedmap.OrderedMap[string, Value]
}

// NewMapping erstellt ein leeres Mapping.
func NewMapping() *Mapping {
	return &Mapping{entries: orderedmap.New[string, Value]()}
}

// MappingOf baut ein Mapping aus abwechselnden Schluessel/Wert-Paaren.
func MappingOf(kv ...any) *Mapping {
	m := NewMapping()
	for i := 0; i+1 < len(kv); i += 2 {
		k, _ := kv[i].(string)
		v, _ := kv[i+1].(Value)
		if v == nil {
			v = None{}
		}
		m.Set(k, v)
	}
	return m
}

// Set fuegt einen Eintrag hinzu. Nur waehrend des Aufbaus verwenden.
func (m *Mapping) Set(key string, v Value) {
	m.entries.Set(key, v)
}

// Get liefert den Wert zu key.
func (m *Mapping) Get(key string) (Value, bool) {
	if m == nil {
		return nil, false
	}
	return m.entries.Get(key)
}

// Len gibt die Anzahl der Eintraege zurueck.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return m.entries.Len()
}

// Keys gibt alle Schluessel in Einfuege-Reihenfolge zurueck.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, m.entries.Len())
	for pair := m.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Each ruft fn fuer jeden Eintrag auf, bis fn false liefert.
func (m *Mapping) Each(fn func(key string, v Value) bool) {
	if m == nil {
		return
	}
	for pair := m.entries.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

func (*Mapping) kind() string { return "Dict" }

// ============================================================================
// Tensor
// ============================================================================

// Tensor beschreibt einen torch.Tensor. Daten sind nur fuer Float-Storages vorhanden.
type Tensor struct {
	Shape []int
	DType string
	data  []float32
}

// NewTensor erstellt einen Tensor mit optionalen Float-Daten.
func NewTensor(dtype string, shape []int, data []float32) Tensor {
	return Tensor{Shape: shape, DType: dtype, data: data}
}

// Numel gibt die Anzahl der Elemente zurueck.
func (t Tensor) Numel() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= int64(d)
	}
	return n
}

// Bytes gibt die Groesse der Elemente in Bytes zurueck.
func (t Tensor) Bytes() int64 {
	return t.Numel() * int64(elementSize(t.DType))
}

// Float32s gibt die Tensor-Daten zurueck, falls verfuegbar.
func (t Tensor) Float32s() []float32 {
	return t.data
}

func (Tensor) kind() string { return "Tensor" }

func elementSize(dtype string) int {
	switch dtype {
	case "float64", "int64":
		return 8
	case "float32", "int32":
		return 4
	case "float16", "bfloat16", "int16":
		return 2
	default:
		return 1
	}
}

// ============================================================================
// Sequence, Scalar, None, Opaque
// ============================================================================

// Sequence ist eine Python list oder tuple.
type Sequence []Value

func (Sequence) kind() string { return "list" }

// Scalar haelt int64, float64, string oder bool.
type Scalar struct {
	V any
}

func (s Scalar) kind() string {
	switch s.V.(type) {
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case bool:
		return "bool"
	}
	return "scalar"
}

// None ist Python None.
type None struct{}

func (None) kind() string { return "NoneType" }

// Opaque ist ein nicht erkannter Wert; GoType dient nur der Diagnose.
type Opaque struct {
	GoType string
}

func (Opaque) kind() string { return "opaque" }

// ============================================================================
// Object
// ============================================================================

// Object ist eine gepickelte Klasseninstanz (z.B. ein nn.Module).
type Object struct {
	Class string
	Args  []Value
	State Value
}

func (o *Object) kind() string { return o.Class }

// Attr liefert ein Attribut aus dem __dict__-State des Objekts.
func (o *Object) Attr(name string) (Value, bool) {
	m, ok := o.State.(*Mapping)
	if !ok {
		return nil, false
	}
	return m.Get(name)
}

// IsModule meldet, ob das Objekt wie ein torch.nn.Module aussieht.
func (o *Object) IsModule() bool {
	if _, ok := o.Attr("_parameters"); ok {
		return true
	}
	_, ok := o.Attr("_modules")
	return ok
}

// StateDict extrahiert die Gewichte eines Moduls als flaches Mapping
// ("model.0.conv.weight" -> Tensor). Liefert nil fuer Nicht-Module.
func (o *Object) StateDict() *Mapping {
	if !o.IsModule() {
		return nil
	}
	out := NewMapping()
	collectModule(out, "", o, 0)
	return out
}

func collectModule(out *Mapping, prefix string, o *Object, depth int) {
	if depth > maxDepth {
		return
	}
	for _, field := range []string{"_parameters", "_buffers"} {
		v, _ := o.Attr(field)
		params, ok := v.(*Mapping)
		if !ok {
			continue
		}
		params.Each(func(name string, p Value) bool {
			if t, ok := p.(Tensor); ok {
				out.Set(prefix+name, t)
			}
			return true
		})
	}

	v, _ := o.Attr("_modules")
	children, ok := v.(*Mapping)
	if !ok {
		return
	}
	children.Each(func(name string, c Value) bool {
		if child, ok := c.(*Object); ok {
			collectModule(out, prefix+name+".", child, depth+1)
		}
		return true
	})
}

// ============================================================================
// Hilfsfunktionen
// ============================================================================

// maxDepth begrenzt die Rekursion (gepickelte Graphen koennen Zyklen enthalten)
const maxDepth = 64

// KindOf gibt den Python-nahen Typnamen eines Werts zurueck.
func KindOf(v Value) string {
	if v == nil {
		return "NoneType"
	}
	return v.kind()
}

// IsNone meldet, ob v fehlt oder Python None ist.
func IsNone(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(None)
	return ok
}

// AsString liefert den String eines Scalar.
func AsString(v Value) (string, bool) {
	s, ok := v.(Scalar)
	if !ok {
		return "", false
	}
	str, ok := s.V.(string)
	return str, ok
}

// AsInt liefert den int64 eines Scalar.
func AsInt(v Value) (int64, bool) {
	s, ok := v.(Scalar)
	if !ok {
		return 0, false
	}
	switch n := s.V.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// AsFloat liefert den float64 eines Scalar.
func AsFloat(v Value) (float64, bool) {
	s, ok := v.(Scalar)
	if !ok {
		return 0, false
	}
	switch n := s.V.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// NamedTensor ist ein Tensor mit seinem Pfad im Checkpoint.
type NamedTensor struct {
	Name   string
	Tensor Tensor
}

// Tensors sammelt alle Tensoren unterhalb von v in Baum-Reihenfolge.
// Module werden ueber StateDict aufgeloest.
func Tensors(v Value) []NamedTensor {
	var out []NamedTensor
	walkTensors(&out, "", v, 0)
	return out
}

func walkTensors(out *[]NamedTensor, prefix string, v Value, depth int) {
	if depth > maxDepth {
		return
	}
	switch x := v.(type) {
	case Tensor:
		*out = append(*out, NamedTensor{Name: strings.TrimSuffix(prefix, "."), Tensor: x})
	case *Mapping:
		x.Each(func(k string, c Value) bool {
			walkTensors(out, prefix+k+".", c, depth+1)
			return true
		})
	case *Object:
		if sd := x.StateDict(); sd != nil {
			walkTensors(out, prefix, sd, depth+1)
		}
	}
}
