// MODUL: export
// ZWECK: Adapter fuer die externen Black-Box-Werkzeuge (ONNX-Export, tfjs-Konvertierung)
// INPUT: InterchangeRequest (Checkpoint/Manifest -> ONNX), GraphRequest (ONNX -> tfjs_graph_model)
// OUTPUT: Pfad der erzeugten Datei oder *Error
// NEBENEFFEKTE: Startet Python und tensorflowjs_converter, schreibt ins Ausgabeverzeichnis
// ABHAENGIGKEITEN: Runner (os/exec), envconfig, golang.org/x/mod/semver (version.go)
// HINWEISE: Erfolg = Zieldatei existiert. Keine semantische Pruefung des Graphen.
//
// Aufruf-Vertrag des Export-Scripts:
//
//	python <script> --weights <checkpoint> [--manifest <json>] --output <onnx> --imgsz <n>
//
// Aufruf des Graph-Konverters:
//
//	tensorflowjs_converter --input_format=onnx --output_format=tfjs_graph_model [quant] <onnx> <dir>

package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/laserweed/modelconv/envconfig"
)

// GraphFile ist der Name des Graph-Deskriptors im Ausgabeverzeichnis.
const GraphFile = "model.json"

// Python-Kommandos in Suchreihenfolge
const (
	PythonCommand         = "python3"
	FallbackPythonCommand = "python"
)

// Fehler-Typen
var (
	ErrPythonNotFound = errors.New("python nicht gefunden")
	ErrScriptNotFound = errors.New("export-script nicht gefunden")
	ErrOutputMissing  = errors.New("erwartete ausgabedatei fehlt")
	ErrInvalidRequest = errors.New("ungueltige anfrage")
)

// Error beschreibt einen fehlgeschlagenen Aufruf eines externen Werkzeugs.
type Error struct {
	Op     string // export, convert
	Tool   string
	Err    error
	Stderr string
}

// Error implementiert das error Interface
func (e *Error) Error() string {
	msg := "export " + e.Op + " (" + filepath.Base(e.Tool) + "): " + e.Err.Error()
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

// Unwrap ermoeglicht errors.Is/As
func (e *Error) Unwrap() error {
	return e.Err
}

// InterchangeRequest beschreibt einen Export nach ONNX.
type InterchangeRequest struct {
	Weights   string // Quell-Checkpoint
	Manifest  string // optionales Interim-Manifest (leer = Weights direkt laden)
	Output    string // Ziel-Datei (.onnx)
	ImageSize int
}

// GraphRequest beschreibt eine Konvertierung ONNX -> tfjs_graph_model.
type GraphRequest struct {
	Input     string
	OutputDir string
	Quantize  bool
}

// Adapter kapselt beide externen Werkzeuge.
type Adapter struct {
	Python    string
	Script    string
	Converter string
	Runner    Runner

	versionOnce sync.Once
	version     string
}

// New erstellt einen Adapter mit Werten aus der Umgebung.
func New() *Adapter {
	return &Adapter{
		Python:    envconfig.Python(),
		Script:    envconfig.ExportScript(),
		Converter: envconfig.TFJSConverter(),
		Runner:    ExecRunner{},
	}
}

// ExportInterchange exportiert einen Checkpoint ueber das Python-Script nach ONNX.
func (a *Adapter) ExportInterchange(ctx context.Context, req InterchangeRequest) (string, error) {
	if req.Weights == "" || req.Output == "" {
		return "", &Error{Op: "export", Tool: a.Script, Err: fmt.Errorf("%w: weights und output erforderlich", ErrInvalidRequest)}
	}
	if req.ImageSize <= 0 {
		req.ImageSize = 640
	}

	python, err := a.findPython()
	if err != nil {
		return "", &Error{Op: "export", Tool: PythonCommand, Err: err}
	}
	if _, err := os.Stat(a.Script); err != nil {
		return "", &Error{Op: "export", Tool: a.Script, Err: fmt.Errorf("%w: %s", ErrScriptNotFound, a.Script)}
	}

	if err := removeStale(req.Output); err != nil {
		return "", &Error{Op: "export", Tool: a.Script, Err: err}
	}

	args := []string{a.Script, "--weights", req.Weights}
	if req.Manifest != "" {
		args = append(args, "--manifest", req.Manifest)
	}
	args = append(args, "--output", req.Output, "--imgsz", strconv.Itoa(req.ImageSize))

	out, runErr := a.runner().Run(ctx, python, args...)
	if err := expectFile(req.Output); err != nil {
		return "", a.failure("export", python, err, runErr, out)
	}
	if runErr != nil {
		slog.Warn("exporter reported an error but produced output", "error", runErr, "output", req.Output)
	}

	if err := inspectInterchange(req.Output, req.ImageSize); err != nil {
		slog.Warn("onnx interface check", "path", req.Output, "error", err)
	}
	return req.Output, nil
}

// ConvertGraph konvertiert ONNX nach tfjs_graph_model, optional mit fp16-Quantisierung.
func (a *Adapter) ConvertGraph(ctx context.Context, req GraphRequest) (string, error) {
	if req.Input == "" || req.OutputDir == "" {
		return "", &Error{Op: "convert", Tool: a.Converter, Err: fmt.Errorf("%w: input und output erforderlich", ErrInvalidRequest)}
	}

	args := []string{"--input_format=onnx", "--output_format=tfjs_graph_model"}
	if req.Quantize {
		args = append(args, a.QuantizeFlag(ctx))
		slog.Info("using FP16 quantization for smaller model size")
	}
	args = append(args, req.Input, req.OutputDir)

	// ein alter Deskriptor (z.B. Platzhalter) darf nicht als Ergebnis zaehlen
	graph := filepath.Join(req.OutputDir, GraphFile)
	if err := removeStale(graph); err != nil {
		return "", &Error{Op: "convert", Tool: a.Converter, Err: err}
	}

	out, runErr := a.runner().Run(ctx, a.Converter, args...)
	if err := expectFile(graph); err != nil {
		return "", a.failure("convert", a.Converter, err, runErr, out)
	}
	if runErr != nil {
		slog.Warn("converter reported an error but produced output", "error", runErr, "output", graph)
	}
	return graph, nil
}

func (a *Adapter) runner() Runner {
	if a.Runner == nil {
		return ExecRunner{}
	}
	return a.Runner
}

func (a *Adapter) findPython() (string, error) {
	if a.Python != "" {
		return a.Python, nil
	}
	for _, cmd := range []string{PythonCommand, FallbackPythonCommand} {
		if p, err := exec.LookPath(cmd); err == nil {
			a.Python = p
			return p, nil
		}
	}
	return "", ErrPythonNotFound
}

func (a *Adapter) failure(op, tool string, missing, runErr error, out Output) error {
	err := missing
	if runErr != nil {
		err = fmt.Errorf("%w (%v)", missing, runErr)
	}
	return &Error{Op: op, Tool: tool, Err: err, Stderr: out.Tail(5)}
}

// removeStale entfernt eine Zieldatei aus einem frueheren Lauf.
func removeStale(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("alte ausgabe entfernen: %w", err)
	}
	return nil
}

func expectFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrOutputMissing, path)
	}
	return nil
}
