// MODUL: classify
// ZWECK: Bestimmt Modell-Familie, Variante, Eingabegroesse und Klassen eines Checkpoints
// INPUT: Dateipfad, optional Checkpoint-Root (checkpoint.Value)
// OUTPUT: ModelInfo
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: checkpoint
// HINWEISE: Deterministisch, Regeltabelle wird in fester Reihenfolge geprueft (first match wins)

package classify

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/laserweed/modelconv/checkpoint"
)

// Family ist eine unterstuetzte Modell-Familie.
type Family string

const (
	FamilyYOLOv5  Family = "yolov5"
	FamilyYOLOv7  Family = "yolov7"
	FamilyYOLOv8  Family = "yolov8"
	FamilyUnknown Family = "unknown"
)

// Standard-Werte
const (
	DefaultInputSize = 640
	LargeInputSize   = 1280
	VariantBase      = "base"
)

// DefaultClasses ist der Platzhalter fuer Checkpoints ohne Klassennamen.
var DefaultClasses = []string{"crop", "weed"}

// TrainingMetadata enthaelt optionale Trainings-Informationen.
type TrainingMetadata struct {
	Epoch       *int64   `json:"epoch,omitempty"`
	BestFitness *float64 `json:"bestFitness,omitempty"`
}

// Empty meldet, ob keine Trainings-Information vorhanden ist.
func (t *TrainingMetadata) Empty() bool {
	return t == nil || (t.Epoch == nil && t.BestFitness == nil)
}

// ModelInfo beschreibt ein klassifiziertes Modell.
type ModelInfo struct {
	Family    Family
	Variant   string
	InputSize [2]int
	Classes   []string
	Training  *TrainingMetadata
}

// Type gibt den Typ-String fuer Batch-Ergebnisse zurueck (yolov7-tiny, yolov7, yolov5s).
func (m ModelInfo) Type() string {
	switch m.Family {
	case FamilyYOLOv7:
		if m.Variant == "" || m.Variant == VariantBase {
			return "yolov7"
		}
		return "yolov7-" + m.Variant
	case FamilyYOLOv5:
		return "yolov5" + m.Variant
	case FamilyYOLOv8:
		return "yolov8"
	}
	return "unknown"
}

// ModelType gibt den Tag fuer den Metadaten-Deskriptor zurueck (yolov7-base, yolov5s, yolo).
func (m ModelInfo) ModelType() string {
	switch m.Family {
	case FamilyYOLOv7:
		v := m.Variant
		if v == "" {
			v = VariantBase
		}
		return "yolov7-" + v
	case FamilyYOLOv5:
		return "yolov5" + m.Variant
	case FamilyYOLOv8:
		return "yolov8"
	}
	return "yolo"
}

// String fuer Log-Ausgaben
func (m ModelInfo) String() string {
	return fmt.Sprintf("%s (%dx%d, %d classes)", m.Type(), m.InputSize[0], m.InputSize[1], len(m.Classes))
}

// Classify klassifiziert ein Modell anhand von Dateiname und optionalem Checkpoint-Inhalt.
func Classify(path string, root checkpoint.Value) ModelInfo {
	info := FromName(path)
	if classes := ClassNames(root); len(classes) > 0 {
		info.Classes = classes
	}
	info.Training = Training(root)
	return info
}

// FromName wendet die Regeltabelle auf den Dateinamen an.
// Substring-Tests laufen auf dem kleingeschriebenen Dateinamen ohne Endung.
func FromName(path string) ModelInfo {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))

	info := ModelInfo{
		Family:    FamilyUnknown,
		InputSize: [2]int{DefaultInputSize, DefaultInputSize},
		Classes:   append([]string(nil), DefaultClasses...),
	}

	switch {
	case strings.Contains(stem, "yolov7") || ext == ".ckpt":
		info.Family = FamilyYOLOv7
		info.Variant = VariantBase
		switch {
		case strings.Contains(stem, "tiny"):
			info.Variant = "tiny"
		case strings.Contains(stem, "x"):
			info.Variant = "x"
		case strings.Contains(stem, "e6"):
			info.Variant = "e6"
			if strings.Contains(stem, "1280") {
				info.InputSize = [2]int{LargeInputSize, LargeInputSize}
			}
		}
	case strings.Contains(stem, "yolov5"):
		info.Family = FamilyYOLOv5
		rest := strings.Replace(stem, "yolov5", "", 1)
		for _, v := range []string{"s", "m", "l"} {
			if strings.Contains(rest, v) {
				info.Variant = v
				break
			}
		}
	case strings.Contains(stem, "yolov8"):
		info.Family = FamilyYOLOv8
	}

	return info
}

// ClassNames sucht Klassennamen im Checkpoint: zuerst Top-Level (names, class_names,
// classes), dann ein names-Attribut des Modell-Objekts bzw. verschachtelter Mappings.
func ClassNames(root checkpoint.Value) []string {
	m, ok := root.(*checkpoint.Mapping)
	if !ok {
		return nil
	}

	for _, key := range checkpoint.ClassKeys {
		if v, ok := m.Get(key); ok {
			if names := namesFrom(v); len(names) > 0 {
				return names
			}
		}
	}

	var found []string
	m.Each(func(_ string, v checkpoint.Value) bool {
		var nested checkpoint.Value
		switch x := v.(type) {
		case *checkpoint.Object:
			nested, _ = x.Attr("names")
		case *checkpoint.Mapping:
			nested, _ = x.Get("names")
		}
		if nested != nil {
			found = namesFrom(nested)
		}
		return len(found) == 0
	})
	return found
}

// namesFrom liest Klassennamen aus einer Sequenz (Reihenfolge) oder einem Mapping
// (Werte in Iterations-Reihenfolge). Nicht-String-Eintraege machen das Feld ungueltig.
func namesFrom(v checkpoint.Value) []string {
	var values []checkpoint.Value
	switch x := v.(type) {
	case checkpoint.Sequence:
		values = x
	case *checkpoint.Mapping:
		x.Each(func(_ string, item checkpoint.Value) bool {
			values = append(values, item)
			return true
		})
	default:
		return nil
	}

	names := make([]string, 0, len(values))
	for _, item := range values {
		s, ok := checkpoint.AsString(item)
		if !ok {
			return nil
		}
		names = append(names, s)
	}
	return names
}

// Training liest epoch und best_fitness vom Checkpoint-Root.
func Training(root checkpoint.Value) *TrainingMetadata {
	m, ok := root.(*checkpoint.Mapping)
	if !ok {
		return nil
	}

	t := &TrainingMetadata{}
	if v, ok := m.Get("epoch"); ok {
		if n, ok := checkpoint.AsInt(v); ok {
			t.Epoch = &n
		}
	}
	if v, ok := m.Get("best_fitness"); ok {
		if f, ok := bestFitness(v); ok {
			t.BestFitness = &f
		}
	}
	if t.Empty() {
		return nil
	}
	return t
}

// bestFitness akzeptiert Skalare und einelementige Sequenzen (numpy-Arrays der Form [1]).
func bestFitness(v checkpoint.Value) (float64, bool) {
	if f, ok := checkpoint.AsFloat(v); ok {
		return f, true
	}
	if seq, ok := v.(checkpoint.Sequence); ok && len(seq) == 1 {
		return checkpoint.AsFloat(seq[0])
	}
	return 0, false
}
