// MODUL: batch
// ZWECK: Konvertiert alle gefundenen Modelle nacheinander und protokolliert jedes Ergebnis
// INPUT: Options (Modell-Verzeichnis, Quantisierung, Exporter, History)
// OUTPUT: []convert.Outcome, conversion_results.json, optional models_index.json
// NEBENEFFEKTE: Schreibt Ausgabeverzeichnisse, Ergebnis-Log, History-Eintraege
// ABHAENGIGKEITEN: convert, github.com/google/uuid
// HINWEISE: Ein Fehler (auch Panic) in einem Modell bricht den Lauf nie ab

package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/laserweed/modelconv/convert"
	"github.com/laserweed/modelconv/format"
	"github.com/laserweed/modelconv/metadata"
	"github.com/laserweed/modelconv/strategy"
)

// Recorder speichert Ergebnisse dauerhaft (history.Store).
type Recorder interface {
	Record(runID string, o convert.Outcome) error
}

// ConvertFunc konvertiert einen Kandidaten. Default ist convert.Converter.
type ConvertFunc func(ctx context.Context, c Candidate) (convert.Outcome, error)

// Options steuern einen Batch-Lauf.
type Options struct {
	ModelsDir string
	Quantize  bool
	Exporter  strategy.Exporter
	Profiles  metadata.Profiles
	History   Recorder
	Convert   ConvertFunc

	// PlainSummary schreibt die Zusammenfassung ohne Tabellen (kein Terminal, MODELCONV_NOCOLOR)
	PlainSummary bool
}

// Orchestrator fuehrt einen Batch-Lauf aus.
type Orchestrator struct {
	RunID   string
	Results []convert.Outcome
	Elapsed time.Duration

	opts Options
}

// New erstellt einen Orchestrator mit frischer Lauf-ID.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{RunID: uuid.NewString(), opts: opts}
	if o.opts.Convert == nil {
		o.opts.Convert = o.convert
	}
	return o
}

// Run scannt das Modell-Verzeichnis und konvertiert alle Kandidaten sequentiell.
func (o *Orchestrator) Run(ctx context.Context) ([]convert.Outcome, error) {
	candidates, err := Scan(o.opts.ModelsDir)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		slog.Info("no models found for conversion", "dir", o.opts.ModelsDir, "extensions", ".ckpt, .pt, .onnx")
		return nil, nil
	}

	slog.Info("found models to convert", "count", len(candidates), "quantize", o.opts.Quantize, "run_id", o.RunID)
	for _, c := range candidates {
		slog.Info("queued", "model", filepath.Base(c.Path), "type", c.Type)
	}

	start := time.Now()
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			slog.Warn("batch cancelled", "remaining", len(candidates)-i)
			break
		}
		slog.Info("converting", "step", fmt.Sprintf("%d/%d", i+1, len(candidates)), "model", filepath.Base(c.Path), "type", c.Type)

		outcome := o.runOne(ctx, c)
		o.Results = append(o.Results, outcome)
		o.record(outcome)
	}
	o.Elapsed = time.Since(start)
	slog.Info("batch finished", "models", len(o.Results), "elapsed", format.HumanDuration(o.Elapsed))
	return o.Results, nil
}

// runOne isoliert einen Kandidaten, Panics werden zu Status error.
func (o *Orchestrator) runOne(ctx context.Context, c Candidate) (out convert.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("conversion panic", "model", c.Path, "stack", string(debug.Stack()))
			out = convert.Outcome{
				Model:     filepath.Base(c.Path),
				Type:      c.Type,
				Status:    convert.StatusError,
				OutputDir: c.OutputDir,
				Quantized: o.opts.Quantize,
				Error:     fmt.Sprintf("panic: %v", r),
				Timestamp: time.Now().UTC(),
			}
		}
	}()

	out, _ = o.opts.Convert(ctx, c)
	if out.Model == "" {
		out.Model = filepath.Base(c.Path)
	}
	if out.Type == "" {
		out.Type = c.Type
	}
	if out.Status == "" {
		out.Status = convert.StatusError
	}
	return out
}

func (o *Orchestrator) convert(ctx context.Context, c Candidate) (convert.Outcome, error) {
	return convert.New(c.Path, c.OutputDir, convert.Options{
		Quantize: o.opts.Quantize,
		Validate: true,
		Exporter: o.opts.Exporter,
		Profiles: o.opts.Profiles,
	}).Convert(ctx)
}

func (o *Orchestrator) record(out convert.Outcome) {
	if o.opts.History == nil {
		return
	}
	if err := o.opts.History.Record(o.RunID, out); err != nil {
		slog.Warn("could not record history", "model", out.Model, "error", err)
	}
}

// Succeeded gibt die erfolgreichen Ergebnisse zurueck.
func (o *Orchestrator) Succeeded() []convert.Outcome {
	var ok []convert.Outcome
	for _, r := range o.Results {
		if r.Succeeded() {
			ok = append(ok, r)
		}
	}
	return ok
}
