//go:build onnx && cgo

// MODUL: export/interchange_onnx
// ZWECK: Prueft die Eingabe-Schnittstelle eines exportierten ONNX-Modells
// INPUT: ONNX-Pfad, erwartete Bildgroesse
// OUTPUT: Fehler bei fehlendem/unerwartetem Eingang
// NEBENEFFEKTE: Initialisiert die ONNX Runtime einmalig
// ABHAENGIGKEITEN: github.com/yalue/onnxruntime_go
// HINWEISE: Nur mit -tags onnx und CGO, Ergebnis wird nur geloggt

package export

import (
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/laserweed/modelconv/envconfig"
)

var (
	runtimeInitOnce sync.Once
	runtimeInitErr  error
)

func initRuntime() error {
	runtimeInitOnce.Do(func() {
		if lib := envconfig.OrtLibrary(); lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		runtimeInitErr = ort.InitializeEnvironment()
	})
	return runtimeInitErr
}

func inspectInterchange(path string, imgsz int) error {
	if err := initRuntime(); err != nil {
		return fmt.Errorf("onnxruntime init: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("onnx modell ohne eingang")
	}

	dims := inputs[0].Dimensions
	slog.Debug("onnx interface", "input", inputs[0].Name, "shape", dims, "outputs", len(outputs))
	if len(dims) == 4 && dims[2] > 0 && dims[2] != int64(imgsz) {
		return fmt.Errorf("eingang %v passt nicht zu imgsz %d", dims, imgsz)
	}
	return nil
}
