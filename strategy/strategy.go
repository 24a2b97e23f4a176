// MODUL: strategy
// ZWECK: Geordnete Kette von Konvertierungs-Strategien mit Fehler-Isolation pro Versuch
// INPUT: Input (Checkpoint, ModelInfo, Ausgabeverzeichnis, Exporter)
// OUTPUT: Report mit allen Versuchen und dem Endergebnis
// NEBENEFFEKTE: Strategien schreiben ins Ausgabeverzeichnis
// ABHAENGIGKEITEN: checkpoint, classify, export, metadata
// HINWEISE: Strikt sequentiell, erster Erfolg beendet die Kette.
//           Panics und Fehler einer Strategie werden zu Failure, die Kette laeuft weiter.

package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/laserweed/modelconv/checkpoint"
	"github.com/laserweed/modelconv/classify"
	"github.com/laserweed/modelconv/export"
	"github.com/laserweed/modelconv/metadata"
)

// Kind unterscheidet die Ergebnis-Varianten einer Strategie.
type Kind int

const (
	KindFailure Kind = iota
	KindSuccess
	KindNotApplicable
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindNotApplicable:
		return "not_applicable"
	default:
		return "failure"
	}
}

// Result ist das Ergebnis eines Strategie-Versuchs.
type Result struct {
	Kind      Kind
	GraphPath string // nur bei Success
	Degraded  bool   // Success ohne echten Graphen (Platzhalter)
	Reason    string // bei Failure/NotApplicable
}

// Success meldet einen erzeugten Graphen.
func Success(graph string) Result { return Result{Kind: KindSuccess, GraphPath: graph} }

// DegradedSuccess meldet einen Platzhalter-Graphen.
func DegradedSuccess(graph string) Result {
	return Result{Kind: KindSuccess, GraphPath: graph, Degraded: true}
}

// Failure meldet einen fehlgeschlagenen Versuch.
func Failure(format string, args ...any) Result {
	return Result{Kind: KindFailure, Reason: fmt.Sprintf(format, args...)}
}

// NotApplicable meldet eine Strategie, die fuer diese Eingabe nicht greift.
func NotApplicable(reason string) Result {
	return Result{Kind: KindNotApplicable, Reason: reason}
}

// Exporter ist der Teil des export.Adapter, den Strategien brauchen.
type Exporter interface {
	ExportInterchange(ctx context.Context, req export.InterchangeRequest) (string, error)
	ConvertGraph(ctx context.Context, req export.GraphRequest) (string, error)
}

// Input ist die unveraenderliche Eingabe aller Strategien eines Laufs.
type Input struct {
	Checkpoint *checkpoint.Checkpoint
	Info       classify.ModelInfo
	OutputDir  string
	Quantize   bool
	Exporter   Exporter
	Profiles   metadata.Profiles
}

// Strategy ist eine benannte Konvertierungs-Strategie.
type Strategy struct {
	Name string
	Run  func(ctx context.Context, in Input) Result
}

// Attempt protokolliert einen Versuch.
type Attempt struct {
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report ist das Ergebnis eines Ketten-Laufs.
type Report struct {
	Attempts []Attempt
	Result   Result
	Strategy string // Name der erfolgreichen Strategie
}

// Succeeded meldet, ob eine Strategie erfolgreich war.
func (r Report) Succeeded() bool {
	return r.Result.Kind == KindSuccess
}

// Chain ist eine geordnete Liste von Strategien.
type Chain []Strategy

// Default gibt die Standard-Kette fuer Trainings-Checkpoints zurueck.
func Default() Chain {
	return Chain{
		StandardExport(),
		DirectExport(),
		ManualReconstruction(),
		FallbackMetadata(),
	}
}

// Names gibt die Strategie-Namen in Reihenfolge zurueck.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name
	}
	return names
}

// Run fuehrt die Strategien der Reihe nach aus, bis eine erfolgreich ist.
func (c Chain) Run(ctx context.Context, in Input) Report {
	var report Report
	var reasons []string

	for i, s := range c {
		if err := ctx.Err(); err != nil {
			reasons = append(reasons, "abgebrochen: "+err.Error())
			break
		}

		slog.Info("trying strategy", "step", fmt.Sprintf("%d/%d", i+1, len(c)), "name", s.Name)
		start := time.Now()
		res := runIsolated(ctx, s, in)
		elapsed := time.Since(start)

		report.Attempts = append(report.Attempts, Attempt{
			Name:     s.Name,
			Kind:     res.Kind.String(),
			Reason:   res.Reason,
			Duration: elapsed,
		})

		switch res.Kind {
		case KindSuccess:
			slog.Info("strategy succeeded", "name", s.Name, "degraded", res.Degraded, "elapsed", elapsed)
			report.Result = res
			report.Strategy = s.Name
			return report
		case KindNotApplicable:
			slog.Debug("strategy not applicable", "name", s.Name, "reason", res.Reason)
		default:
			slog.Warn("strategy failed", "name", s.Name, "reason", res.Reason)
		}
		reasons = append(reasons, s.Name+": "+res.Reason)
	}

	report.Result = Failure("alle strategien fehlgeschlagen (%s)", strings.Join(reasons, "; "))
	return report
}

// runIsolated faengt Panics einer Strategie ab.
func runIsolated(ctx context.Context, s Strategy, in Input) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("strategy panic", "name", s.Name, "stack", string(debug.Stack()))
			res = Failure("panic: %v", r)
		}
	}()
	if s.Run == nil {
		return NotApplicable("keine implementierung")
	}
	return s.Run(ctx, in)
}
