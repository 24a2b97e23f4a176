// MODUL: checkpoint/probe
// ZWECK: Struktur-Analyse eines Checkpoints ohne feste Schluessel-Annahmen
// INPUT: *Checkpoint
// OUTPUT: Structure (Shape-Klassifikation, Modell-Schluessel, Tensor-Statistik)
// NEBENEFFEKTE: Keine (nur lesend)
// ABHAENGIGKEITEN: Keine externen
// HINWEISE: Probe liefert nie einen Fehler, unbekannte Strukturen ergeben ShapeUnknown

package checkpoint

// Shape klassifiziert die Top-Level-Struktur eines Checkpoints.
type Shape int

const (
	// ShapeUnknown: kein Mapping oder kein modelltragendes Feld
	ShapeUnknown Shape = iota
	// ShapeModelObject: modelltragendes Feld enthaelt ein Modul-Objekt
	ShapeModelObject
	// ShapeStateMapping: modelltragendes Feld enthaelt ein Tensor-Mapping
	ShapeStateMapping
	// ShapeAveraged: nur gemittelte Gewichte (ema) vorhanden
	ShapeAveraged
	// ShapeTensorMapping: Root ist selbst ein flaches Tensor-Mapping
	ShapeTensorMapping
)

func (s Shape) String() string {
	switch s {
	case ShapeModelObject:
		return "model-object"
	case ShapeStateMapping:
		return "state-mapping"
	case ShapeAveraged:
		return "averaged"
	case ShapeTensorMapping:
		return "tensor-mapping"
	}
	return "unknown"
}

// ModelKeys sind die modelltragenden Felder in Prioritaets-Reihenfolge.
var ModelKeys = []string{"model", "ema", "state_dict"}

// ClassKeys sind Felder, die Klassennamen enthalten koennen.
var ClassKeys = []string{"names", "class_names", "classes"}

// Structure ist die Zusammenfassung eines Probe-Laufs.
type Structure struct {
	Shape       Shape
	RootKind    string
	Keys        []string
	ModelKey    string
	ModelKind   string
	TensorCount int
	ParamCount  int64
	TensorBytes int64
	ClassKey    string
	HasEpoch    bool
	Suggestion  string
}

// ModelField sucht das erste modelltragende Feld. None-Werte zaehlen als fehlend.
func ModelField(root Value) (string, Value, bool) {
	m, ok := root.(*Mapping)
	if !ok {
		return "", nil, false
	}
	for _, key := range ModelKeys {
		if v, ok := m.Get(key); ok && !IsNone(v) {
			return key, v, true
		}
	}
	return "", nil, false
}

// Probe analysiert die Struktur eines Checkpoints.
func Probe(ck *Checkpoint) Structure {
	var root Value = None{}
	if ck != nil && ck.Root != nil {
		root = ck.Root
	}
	return ProbeValue(root)
}

// ProbeValue analysiert einen beliebigen Value als Checkpoint-Root.
func ProbeValue(root Value) Structure {
	s := Structure{RootKind: KindOf(root)}

	m, ok := root.(*Mapping)
	if !ok {
		s.Suggestion = suggestion(s)
		return s
	}
	s.Keys = m.Keys()

	for _, key := range ClassKeys {
		if v, ok := m.Get(key); ok && !IsNone(v) {
			s.ClassKey = key
			break
		}
	}
	if v, ok := m.Get("epoch"); ok && !IsNone(v) {
		s.HasEpoch = true
	}

	weights := root
	if key, v, ok := ModelField(root); ok {
		s.ModelKey = key
		s.ModelKind = KindOf(v)
		weights = v
		switch {
		case !isMapping(v) && !isModuleObject(v):
			// weder Gewichte noch Modul, z.B. ein String
		case key == "ema":
			s.Shape = ShapeAveraged
		case isMapping(v):
			s.Shape = ShapeStateMapping
		default:
			s.Shape = ShapeModelObject
		}
	} else if isTensorMapping(m) {
		s.Shape = ShapeTensorMapping
	}

	if s.Shape != ShapeUnknown {
		for _, nt := range Tensors(weights) {
			s.TensorCount++
			s.ParamCount += nt.Tensor.Numel()
			s.TensorBytes += nt.Tensor.Bytes()
		}
	}

	s.Suggestion = suggestion(s)
	return s
}

func isMapping(v Value) bool {
	_, ok := v.(*Mapping)
	return ok
}

func isModuleObject(v Value) bool {
	o, ok := v.(*Object)
	return ok && o.IsModule()
}

// isTensorMapping: mehr als die Haelfte der Eintraege sind Tensoren
func isTensorMapping(m *Mapping) bool {
	tensors := 0
	m.Each(func(_ string, v Value) bool {
		if _, ok := v.(Tensor); ok {
			tensors++
		}
		return true
	})
	return tensors > 0 && tensors*2 > m.Len()
}

func suggestion(s Structure) string {
	switch {
	case s.RootKind != "Dict":
		return "Unexpected checkpoint format (" + s.RootKind + ") - manual conversion required"
	case s.ModelKey != "" && s.Shape == ShapeUnknown:
		return "Field '" + s.ModelKey + "' holds " + s.ModelKind + ", neither a module nor a state dict - manual conversion required"
	case s.ModelKey == "model":
		return "Standard YOLOv7 format - should work with the standard exporter"
	case s.ModelKey == "ema":
		return "EMA model detected - exporting from the 'ema' key instead of 'model'"
	case s.ModelKey == "state_dict":
		return "State dict format - may need manual model reconstruction"
	case s.Shape == ShapeTensorMapping:
		return "Raw tensor mapping without model wrapper - manual model reconstruction required"
	}
	return "Non-standard format - manual conversion required, consider the upstream YOLOv7 export script"
}
