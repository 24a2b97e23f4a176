// standard.go - Strategien 1 bis 3
//
// standard-export: Modell-Feld finden, Interim-Manifest schreiben, ONNX-Export
// ueber den externen Exporter, dann tfjs-Konvertierung.
// direct-export: nicht anwendbar (kein Loader fuer das Checkpoint-Format).
// manual-reconstruction: nicht anwendbar (Architektur-Rekonstruktion nicht implementiert).

package strategy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/laserweed/modelconv/checkpoint"
	"github.com/laserweed/modelconv/export"
	"github.com/laserweed/modelconv/metadata"
)

// Strategie-Namen
const (
	NameStandardExport       = "standard-export"
	NameDirectExport         = "direct-export"
	NameManualReconstruction = "manual-reconstruction"
	NameFallbackMetadata     = "fallback-metadata"
)

// TempPattern ist das Muster fuer Interim-Verzeichnisse im Ausgabeverzeichnis.
const TempPattern = ".modelconv-*"

// Manifest beschreibt fuer den Exporter, wo im Checkpoint das Modell liegt.
type Manifest struct {
	Source    string   `json:"source"`
	Key       string   `json:"key"`
	Form      string   `json:"form"` // module | state_dict
	Epoch     int64    `json:"epoch"`
	Names     []string `json:"names"`
	ImageSize int      `json:"imgsz"`
}

// Manifest-Formen
const (
	FormModule    = "module"
	FormStateDict = "state_dict"
)

// StandardExport exportiert das Modell-Feld ueber den externen Exporter.
func StandardExport() Strategy {
	return Strategy{Name: NameStandardExport, Run: standardExport}
}

func standardExport(ctx context.Context, in Input) Result {
	if in.Checkpoint == nil {
		return Failure("kein checkpoint geladen")
	}
	if in.Exporter == nil {
		return Failure("kein exporter konfiguriert")
	}

	key, value, ok := checkpoint.ModelField(in.Checkpoint.Root)
	if !ok {
		return Failure("keine modelldaten in den standard-schluesseln %v", checkpoint.ModelKeys)
	}

	if err := os.MkdirAll(in.OutputDir, 0o755); err != nil {
		return Failure("ausgabeverzeichnis: %v", err)
	}
	tmp, err := os.MkdirTemp(in.OutputDir, TempPattern)
	if err != nil {
		return Failure("temp-verzeichnis: %v", err)
	}
	defer os.RemoveAll(tmp)

	manifest := Manifest{
		Source:    in.Checkpoint.Path,
		Key:       key,
		Form:      formOf(key, value),
		Names:     in.Info.Classes,
		ImageSize: in.Info.InputSize[0],
	}
	if in.Info.Training != nil && in.Info.Training.Epoch != nil {
		manifest.Epoch = *in.Info.Training.Epoch
	}
	manifestPath := filepath.Join(tmp, "manifest.json")
	if err := writeManifest(manifestPath, manifest); err != nil {
		return Failure("manifest: %v", err)
	}

	onnx, err := in.Exporter.ExportInterchange(ctx, export.InterchangeRequest{
		Weights:   in.Checkpoint.Path,
		Manifest:  manifestPath,
		Output:    filepath.Join(tmp, "model.onnx"),
		ImageSize: manifest.ImageSize,
	})
	if err != nil {
		return Failure("%v", err)
	}

	graph, err := in.Exporter.ConvertGraph(ctx, export.GraphRequest{
		Input:     onnx,
		OutputDir: in.OutputDir,
		Quantize:  in.Quantize,
	})
	if err != nil {
		return Failure("%v", err)
	}

	if _, err := metadata.Write(in.OutputDir, metadata.Synthesize(in.Info, in.Profiles)); err != nil {
		return Failure("metadaten: %v", err)
	}
	return Success(graph)
}

func formOf(key string, v checkpoint.Value) string {
	if o, ok := v.(*checkpoint.Object); ok && o.IsModule() {
		return FormModule
	}
	if key == "state_dict" {
		return FormStateDict
	}
	if _, ok := v.(*checkpoint.Mapping); ok {
		return FormStateDict
	}
	return FormModule
}

func writeManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DirectExport ist fuer Trainings-Checkpoints nicht anwendbar.
func DirectExport() Strategy {
	return Strategy{
		Name: NameDirectExport,
		Run: func(context.Context, Input) Result {
			return NotApplicable("direktes laden des checkpoint-formats nicht unterstuetzt")
		},
	}
}

// ManualReconstruction ist nicht implementiert.
func ManualReconstruction() Strategy {
	return Strategy{
		Name: NameManualReconstruction,
		Run: func(context.Context, Input) Result {
			return NotApplicable("manuelle architektur-rekonstruktion nicht implementiert")
		},
	}
}
