// results.go - Ergebnis-Log und Modell-Index fuer die Web-Oberflaeche
//
// conversion_results.json liegt im Modell-Verzeichnis, der Index standardmaessig
// unter web/models_index.json. Beide Dateien verwenden snake_case Schluessel.
package batch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/laserweed/modelconv/convert"
	"github.com/laserweed/modelconv/metadata"
)

// Dateinamen und Formate
const (
	ResultsFile     = "conversion_results.json"
	TimestampLayout = "2006-01-02 15:04:05"
)

// Performance-Tiers im Index
const (
	TierFast     = "fast"
	TierAccurate = "accurate"
	TierPremium  = "premium"
	TierBalanced = "balanced"
)

// Results ist der Inhalt von conversion_results.json.
type Results struct {
	RunID     string            `json:"run_id"`
	Timestamp string            `json:"timestamp"`
	Quantized bool              `json:"quantized"`
	Results   []convert.Outcome `json:"results"`
}

// IndexEntry beschreibt ein Modell im Web-Index.
type IndexEntry struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	Path            string  `json:"path"`
	ConfigPath      string  `json:"config_path"`
	SizeMB          float64 `json:"size_mb"`
	Quantized       bool    `json:"quantized"`
	PerformanceTier string  `json:"performance_tier"`
}

// Index ist der Inhalt von models_index.json.
type Index struct {
	Models      []IndexEntry `json:"models"`
	LastUpdated string       `json:"last_updated"`
	TotalModels int          `json:"total_models"`
}

// PerformanceTier leitet den Tier aus der Variante ab.
func PerformanceTier(variant string) string {
	switch {
	case strings.Contains(variant, "tiny"):
		return TierFast
	case variant == "x" || variant == "l":
		return TierAccurate
	case variant == "e6":
		return TierPremium
	}
	return TierBalanced
}

// SaveResults schreibt das Ergebnis-Log ins Modell-Verzeichnis.
func (o *Orchestrator) SaveResults() (string, error) {
	path := filepath.Join(o.opts.ModelsDir, ResultsFile)
	results := o.Results
	if results == nil {
		results = []convert.Outcome{}
	}

	err := writeJSON(path, Results{
		RunID:     o.RunID,
		Timestamp: time.Now().Format(TimestampLayout),
		Quantized: o.opts.Quantize,
		Results:   results,
	})
	if err != nil {
		return "", err
	}
	slog.Info("results saved", "path", path)
	return path, nil
}

// BuildIndex erzeugt den Index aus den erfolgreichen Ergebnissen.
func BuildIndex(results []convert.Outcome) Index {
	idx := Index{Models: []IndexEntry{}, LastUpdated: time.Now().Format(TimestampLayout)}
	for _, r := range results {
		if !r.Succeeded() {
			continue
		}
		dir := filepath.Base(r.OutputDir)
		idx.Models = append(idx.Models, IndexEntry{
			ID:              strings.TrimSuffix(r.Model, filepath.Ext(r.Model)),
			Name:            r.Model,
			Type:            r.Type,
			Path:            "models/" + dir + "/" + metadata.GraphFile,
			ConfigPath:      "models/" + dir + "/" + metadata.ClassesFile,
			SizeMB:          r.SizeMB,
			Quantized:       r.Quantized,
			PerformanceTier: PerformanceTier(r.Variant),
		})
	}
	idx.TotalModels = len(idx.Models)
	return idx
}

// GenerateIndex schreibt den Web-Index. Ohne erfolgreiche Modelle wird nichts geschrieben.
func (o *Orchestrator) GenerateIndex(path string) (Index, error) {
	idx := BuildIndex(o.Results)
	if idx.TotalModels == 0 {
		slog.Info("no successful conversions, index not written")
		return idx, nil
	}
	if err := writeJSON(path, idx); err != nil {
		return idx, err
	}
	slog.Info("model index generated", "path", path, "models", idx.TotalModels)
	return idx, nil
}

// ReadResults liest ein Ergebnis-Log.
func ReadResults(path string) (Results, error) {
	var r Results
	return r, readJSON(path, &r)
}

// ReadIndex liest einen Web-Index.
func ReadIndex(path string) (Index, error) {
	var idx Index
	return idx, readJSON(path, &idx)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}
