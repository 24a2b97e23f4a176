// MODUL: metadata
// ZWECK: Erzeugt den Metadaten-Deskriptor (classes.json) und den Platzhalter-Graphen
// INPUT: classify.ModelInfo, Profiles (Familien-Profile)
// OUTPUT: Descriptor, classes.json / model.json im Ausgabeverzeichnis
// NEBENEFFEKTE: Schreibt Dateien ins Ausgabeverzeichnis
// ABHAENGIGKEITEN: classify, encoding/json, profile.go (yaml.v3)
// HINWEISE: Bei internem Fehler wird ein minimaler Deskriptor geschrieben, nie gar keiner

package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/laserweed/modelconv/classify"
)

// Dateinamen im Ausgabeverzeichnis
const (
	ClassesFile = "classes.json"
	GraphFile   = "model.json"
)

// Minimal-Werte fuer den Notfall-Deskriptor
const (
	MinimalModelType    = "yolo"
	MinimalThreshold    = 0.5
	MinimalIoUThreshold = 0.45
)

// PerformanceBalanced ist der Default fuer unbekannte Varianten.
const PerformanceBalanced = "balanced"

// ErrInvalidDescriptor wird intern fuer unbrauchbare Deskriptoren verwendet.
var ErrInvalidDescriptor = errors.New("ungueltiger deskriptor")

// Descriptor ist der Inhalt von classes.json.
type Descriptor struct {
	Classes      []string                   `json:"classes"`
	ModelType    string                     `json:"modelType"`
	InputSize    [2]int                     `json:"inputSize"`
	Threshold    float64                    `json:"threshold"`
	IoUThreshold float64                    `json:"iouThreshold"`
	Description  string                     `json:"description,omitempty"`
	OptimizedFor string                     `json:"optimizedFor,omitempty"`
	Performance  string                     `json:"performance,omitempty"`
	Anchors      [][]int                    `json:"anchors,omitempty"`
	Strides      []int                      `json:"strides,omitempty"`
	Training     *classify.TrainingMetadata `json:"training,omitempty"`
	Placeholder  bool                       `json:"placeholder,omitempty"`
}

// Minimal gibt den Notfall-Deskriptor zurueck.
func Minimal() Descriptor {
	return Descriptor{
		Classes:      slices.Clone(classify.DefaultClasses),
		ModelType:    MinimalModelType,
		InputSize:    [2]int{classify.DefaultInputSize, classify.DefaultInputSize},
		Threshold:    MinimalThreshold,
		IoUThreshold: MinimalIoUThreshold,
	}
}

// Synthesize baut den Deskriptor aus ModelInfo und dem passenden Familien-Profil.
func Synthesize(info classify.ModelInfo, profiles Profiles) Descriptor {
	p := profiles.For(info.Family)

	variant := info.Variant
	if variant == "" {
		variant = classify.VariantBase
	}

	d := Descriptor{
		Classes:      slices.Clone(info.Classes),
		ModelType:    info.ModelType(),
		InputSize:    info.InputSize,
		Threshold:    clamp(p.Threshold, MinimalThreshold),
		IoUThreshold: clamp(p.IoUThreshold, MinimalIoUThreshold),
		OptimizedFor: p.OptimizedFor,
		Performance:  PerformanceBalanced,
		Anchors:      cloneAnchors(p.Anchors),
		Strides:      slices.Clone(p.Strides),
	}
	if len(d.Classes) == 0 {
		d.Classes = slices.Clone(classify.DefaultClasses)
	}
	if d.InputSize[0] <= 0 || d.InputSize[1] <= 0 {
		d.InputSize = [2]int{classify.DefaultInputSize, classify.DefaultInputSize}
	}
	if perf, ok := p.Performance[variant]; ok {
		d.Performance = perf
	}
	if p.Description != "" {
		d.Description = strings.NewReplacer("{variant}", variant, "{type}", info.Type()).Replace(p.Description)
	}
	if !info.Training.Empty() {
		d.Training = info.Training
	}
	return d
}

// clamp begrenzt Schwellwerte auf [0,1], NaN faellt auf den Default zurueck.
func clamp(v, def float64) float64 {
	switch {
	case math.IsNaN(v):
		return def
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func cloneAnchors(a [][]int) [][]int {
	if a == nil {
		return nil
	}
	out := make([][]int, len(a))
	for i, row := range a {
		out[i] = slices.Clone(row)
	}
	return out
}

// check prueft die Invarianten des Deskriptors.
func (d Descriptor) check() error {
	if len(d.Classes) == 0 {
		return fmt.Errorf("%w: keine klassen", ErrInvalidDescriptor)
	}
	if slices.Contains(d.Classes, "") {
		return fmt.Errorf("%w: leerer klassenname", ErrInvalidDescriptor)
	}
	if d.Threshold < 0 || d.Threshold > 1 || d.IoUThreshold < 0 || d.IoUThreshold > 1 {
		return fmt.Errorf("%w: schwellwert ausserhalb [0,1]", ErrInvalidDescriptor)
	}
	return nil
}

// Write schreibt classes.json. Ist der Deskriptor unbrauchbar, wird der minimale
// Deskriptor geschrieben und fellBack=true gemeldet. err nur bei I/O-Fehlern.
func Write(dir string, d Descriptor) (fellBack bool, err error) {
	data, err := encode(d)
	if err != nil {
		slog.Warn("could not generate metadata, writing minimal descriptor", "error", err)
		fellBack = true
		if data, err = encode(Minimal()); err != nil {
			return fellBack, err
		}
	}

	if err := writeFile(filepath.Join(dir, ClassesFile), data); err != nil {
		return fellBack, err
	}
	if fellBack {
		slog.Info("generated minimal classes.json, please update with your class names", "dir", dir)
	} else {
		slog.Info("generated classes.json", "classes", len(d.Classes), "type", d.ModelType)
	}
	return fellBack, nil
}

func encode(d Descriptor) ([]byte, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(d, "", "  ")
}

// Read liest classes.json aus einem Ausgabeverzeichnis.
func Read(dir string) (Descriptor, error) {
	var d Descriptor
	data, err := os.ReadFile(filepath.Join(dir, ClassesFile))
	if err != nil {
		return d, err
	}
	err = json.Unmarshal(data, &d)
	return d, err
}

// PlaceholderGraph ist der model.json Inhalt, wenn keine Konvertierung gelang.
type PlaceholderGraph struct {
	Format          string            `json:"format"`
	GeneratedBy     string            `json:"generatedBy"`
	ConvertedBy     string            `json:"convertedBy"`
	ModelTopology   map[string]string `json:"modelTopology"`
	WeightsManifest []any             `json:"weightsManifest"`
}

// WritePlaceholderGraph schreibt den Platzhalter-Graphen fuer die Web-Oberflaeche.
func WritePlaceholderGraph(dir string) error {
	g := PlaceholderGraph{
		Format:          "graph-model",
		GeneratedBy:     "LaserWeed Converter (Fallback)",
		ConvertedBy:     "Manual Configuration",
		ModelTopology:   map[string]string{"note": "Model conversion failed - using simple detection"},
		WeightsManifest: []any{},
	}
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, GraphFile), data); err != nil {
		return err
	}
	slog.Warn("created placeholder model.json, web interface will fall back to simple detection", "dir", dir)
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
