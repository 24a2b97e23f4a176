// convert_model.go - Einzel-Konvertierung: Dispatch nach Dateiendung
// Hauptfunktionen: New, Converter.Convert, DirSize
//
//	.ckpt/.pth -> laden, Struktur pruefen, klassifizieren, Strategie-Kette
//	.pt        -> Export ueber den externen Exporter, dann Metadaten
//	.onnx      -> nur tfjs-Konvertierung, dann Metadaten
package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/laserweed/modelconv/checkpoint"
	"github.com/laserweed/modelconv/classify"
	"github.com/laserweed/modelconv/export"
	"github.com/laserweed/modelconv/format"
	"github.com/laserweed/modelconv/metadata"
	"github.com/laserweed/modelconv/strategy"
	"github.com/laserweed/modelconv/validate"
)

// Converter konvertiert genau eine Modelldatei in ein Ausgabeverzeichnis.
type Converter struct {
	Input  string
	Output string
	opts   Options
}

// New erstellt einen Converter und setzt fehlende Optionen auf Defaults.
func New(input, output string, opts Options) *Converter {
	if opts.Exporter == nil {
		opts.Exporter = export.New()
	}
	if opts.Chain == nil {
		opts.Chain = strategy.Default()
	}
	if opts.Load == nil {
		opts.Load = checkpoint.Load
	}
	return &Converter{Input: input, Output: output, opts: opts}
}

// Convert fuehrt die Konvertierung aus. Das Outcome ist immer gefuellt,
// err ist nil genau dann, wenn Status success ist.
func (c *Converter) Convert(ctx context.Context) (Outcome, error) {
	start := time.Now()
	info := classify.FromName(c.Input)
	out := Outcome{
		Model:     filepath.Base(c.Input),
		Type:      info.Type(),
		OutputDir: c.Output,
		Quantized: c.opts.Quantize,
		Timestamp: start.UTC(),
	}

	err := c.convert(ctx, &out, info)
	out.setElapsed(time.Since(start))

	if err == nil && c.opts.Validate {
		if verr := validate.Dir(c.Output); verr != nil {
			out.Status = StatusValidationFailed
			err = verr
		}
	}

	switch {
	case err != nil:
		if out.Status == "" || out.Status == StatusSuccess {
			out.Status = StatusError
		}
		out.Error = err.Error()
		slog.Error("conversion failed", "model", out.Model, "status", out.Status, "error", err)
	default:
		out.Status = StatusSuccess
		if size, serr := DirSize(c.Output); serr == nil {
			out.SizeBytes = size
			out.SizeMB = format.MiB(size)
		}
		slog.Info("model converted", "model", out.Model, "output", c.Output,
			"size", format.HumanBytes(out.SizeBytes), "elapsed", format.HumanDuration(out.Elapsed), "degraded", out.Degraded)
	}
	return out, err
}

func (c *Converter) convert(ctx context.Context, out *Outcome, info classify.ModelInfo) error {
	if _, err := os.Stat(c.Input); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrInputNotFound, c.Input)
		}
		return err
	}

	f, ok := checkpoint.FormatOf(c.Input)
	if !ok {
		return newUnsupportedFormatError(c.Input)
	}

	if err := os.MkdirAll(c.Output, 0o755); err != nil {
		return err
	}

	switch f {
	case checkpoint.FormatCheckpoint:
		return c.convertCheckpoint(ctx, out)
	case checkpoint.FormatTorch:
		return c.convertTorch(ctx, out, info)
	default:
		return c.convertONNX(ctx, out, info)
	}
}

// convertCheckpoint laedt einen Trainings-Checkpoint und startet die Strategie-Kette.
func (c *Converter) convertCheckpoint(ctx context.Context, out *Outcome) error {
	slog.Info("converting checkpoint", "path", c.Input)

	ck, err := c.opts.Load(c.Input)
	if err != nil {
		out.Status = StatusConversionFailed
		if _, werr := metadata.Write(c.Output, metadata.Minimal()); werr != nil {
			slog.Warn("could not write minimal metadata", "error", werr)
		}
		slog.Warn("manual ONNX conversion required for this checkpoint", "hint", fmt.Sprintf(ManualExportHint, c.Input))
		return &LoadError{Path: c.Input, Err: err}
	}

	structure := checkpoint.Probe(ck)
	slog.Info("checkpoint loaded", "shape", structure.Shape, "root", structure.RootKind,
		"keys", structure.Keys, "model_key", structure.ModelKey, "tensors", structure.TensorCount)

	info := classify.Classify(c.Input, ck.Root)
	c.annotate(out, info)

	report := c.opts.Chain.Run(ctx, strategy.Input{
		Checkpoint: ck,
		Info:       info,
		OutputDir:  c.Output,
		Quantize:   c.opts.Quantize,
		Exporter:   c.opts.Exporter,
		Profiles:   c.opts.Profiles,
	})
	out.Attempts = report.Attempts
	out.Strategy = report.Strategy

	if !report.Succeeded() {
		out.Status = StatusConversionFailed
		slog.Warn("all conversion strategies failed, creating minimal configuration")
		if _, werr := metadata.Write(c.Output, metadata.Synthesize(info, c.opts.Profiles)); werr != nil {
			slog.Warn("could not write metadata", "error", werr)
		}
		return &ConversionError{Path: c.Input, Reason: report.Result.Reason}
	}
	out.Degraded = report.Result.Degraded
	return nil
}

// convertTorch exportiert ein .pt Modell direkt ueber den externen Exporter.
func (c *Converter) convertTorch(ctx context.Context, out *Outcome, info classify.ModelInfo) error {
	slog.Info("converting pytorch model", "path", c.Input)

	if ck, err := c.opts.Load(c.Input); err == nil {
		info = classify.Classify(c.Input, ck.Root)
	} else {
		slog.Debug("pt archive not readable, using name-based classification", "error", err)
	}
	c.annotate(out, info)

	tmp, err := os.MkdirTemp(c.Output, strategy.TempPattern)
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	onnx, err := c.opts.Exporter.ExportInterchange(ctx, export.InterchangeRequest{
		Weights:   c.Input,
		Output:    filepath.Join(tmp, "model.onnx"),
		ImageSize: info.InputSize[0],
	})
	if err != nil {
		out.Status = StatusConversionFailed
		return err
	}
	return c.finishGraph(ctx, out, onnx, info)
}

// convertONNX konvertiert eine vorhandene ONNX-Datei.
func (c *Converter) convertONNX(ctx context.Context, out *Outcome, info classify.ModelInfo) error {
	slog.Info("converting onnx model", "path", c.Input)
	c.annotate(out, info)
	return c.finishGraph(ctx, out, c.Input, info)
}

func (c *Converter) finishGraph(ctx context.Context, out *Outcome, onnx string, info classify.ModelInfo) error {
	if _, err := c.opts.Exporter.ConvertGraph(ctx, export.GraphRequest{
		Input:     onnx,
		OutputDir: c.Output,
		Quantize:  c.opts.Quantize,
	}); err != nil {
		out.Status = StatusConversionFailed
		return err
	}

	if _, err := metadata.Write(c.Output, metadata.Synthesize(info, c.opts.Profiles)); err != nil {
		return err
	}
	return nil
}

func (c *Converter) annotate(out *Outcome, info classify.ModelInfo) {
	out.Type = info.Type()
	out.Family = string(info.Family)
	out.Variant = info.Variant
	slog.Debug("model classified", "info", info.String())
}

// DirSize summiert die Groesse aller Dateien unter dir.
func DirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
		}
		return nil
	})
	return total, err
}
