// convert_types.go - Basis-Typen fuer die Einzel-Konvertierung
// Haupttypen: Status, Outcome, Options, UnsupportedFormatError, LoadError
package convert

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/laserweed/modelconv/checkpoint"
	"github.com/laserweed/modelconv/metadata"
	"github.com/laserweed/modelconv/strategy"
)

// Status ist der Endzustand einer Konvertierung.
type Status string

const (
	StatusSuccess          Status = "success"
	StatusValidationFailed Status = "validation_failed"
	StatusConversionFailed Status = "conversion_failed"
	StatusError            Status = "error"
)

// ManualExportHint wird bei nicht ladbaren Checkpoints ausgegeben.
const ManualExportHint = "python yolov7/export.py --weights %s --grid --end2end --simplify"

// SupportedExtensions sind alle Endungen, die Convert annimmt.
var SupportedExtensions = []string{".ckpt", ".pth", ".pt", ".onnx"}

// ErrInputNotFound - Eingabedatei existiert nicht
var ErrInputNotFound = errors.New("eingabedatei nicht gefunden")

// Outcome ist das Ergebnis einer Konvertierung (ein Eintrag im Ergebnis-Log).
type Outcome struct {
	Model          string             `json:"model"`
	Type           string             `json:"type"`
	Status         Status             `json:"status"`
	OutputDir      string             `json:"output_dir,omitempty"`
	SizeBytes      int64              `json:"size_bytes,omitempty"`
	SizeMB         float64            `json:"size_mb,omitempty"`
	ConversionTime float64            `json:"conversion_time,omitempty"` // Sekunden
	Family         string             `json:"family,omitempty"`
	Variant        string             `json:"variant,omitempty"`
	Quantized      bool               `json:"quantized"`
	Degraded       bool               `json:"degraded,omitempty"`
	Strategy       string             `json:"strategy,omitempty"`
	Attempts       []strategy.Attempt `json:"attempts,omitempty"`
	Error          string             `json:"error,omitempty"`
	Timestamp      time.Time          `json:"timestamp"`

	Elapsed time.Duration `json:"-"`
}

// Succeeded meldet Status success (auch degradiert).
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

func (o *Outcome) setElapsed(d time.Duration) {
	o.Elapsed = d
	o.ConversionTime = math.Round(d.Seconds()*100) / 100
}

// Options steuern eine Konvertierung.
type Options struct {
	Quantize bool
	Validate bool

	// Exporter fuer externe Werkzeuge, nil = export.New()
	Exporter strategy.Exporter
	// Profiles fuer den Metadaten-Deskriptor, nil = eingebaute Profile
	Profiles metadata.Profiles
	// Chain fuer Trainings-Checkpoints, nil = strategy.Default()
	Chain strategy.Chain
	// Load ersetzt checkpoint.Load (Tests)
	Load func(path string) (*checkpoint.Checkpoint, error)
}

// UnsupportedFormatError - Dateiendung wird nicht unterstuetzt
type UnsupportedFormatError struct {
	Path       string
	Ext        string
	Suggestion string // naechstliegende unterstuetzte Endung oder leer
}

func (e *UnsupportedFormatError) Error() string {
	msg := fmt.Sprintf("nicht unterstuetztes format %q (%s)", e.Ext, filepath.Base(e.Path))
	if e.Suggestion != "" {
		msg += fmt.Sprintf(", meinten Sie %q?", e.Suggestion)
	}
	return msg
}

func (e *UnsupportedFormatError) Unwrap() error {
	return checkpoint.ErrUnsupportedFormat
}

// newUnsupportedFormatError sucht die aehnlichste unterstuetzte Endung (Distanz <= 2).
func newUnsupportedFormatError(path string) *UnsupportedFormatError {
	ext := strings.ToLower(filepath.Ext(path))
	e := &UnsupportedFormatError{Path: path, Ext: ext}
	if ext == "" {
		return e
	}

	best := 3
	for _, candidate := range SupportedExtensions {
		if d := levenshtein.ComputeDistance(ext, candidate); d < best {
			best = d
			e.Suggestion = candidate
		}
	}
	return e
}

// LoadError - Checkpoint konnte nicht gelesen werden
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("checkpoint %s nicht ladbar: %v\nmanueller export: "+ManualExportHint, filepath.Base(e.Path), e.Err, e.Path)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ConversionError - alle Wege der Konvertierung sind fehlgeschlagen
type ConversionError struct {
	Path   string
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("konvertierung %s fehlgeschlagen: %s", filepath.Base(e.Path), e.Reason)
}
