// MODUL: batch/scan
// ZWECK: Findet konvertierbare Modelldateien rekursiv unter dem Modell-Verzeichnis
// INPUT: Modell-Verzeichnis
// OUTPUT: []Candidate in Reihenfolge .ckpt, .pt, .onnx (je Endung lexikalisch)
// NEBENEFFEKTE: Keine (nur Lesen)
// ABHAENGIGKEITEN: checkpoint.Extensions, classify
// HINWEISE: Bereits konvertierte Dateien (<parent>/<stem>/model.json existiert) werden
//           uebersprungen, versteckte Verzeichnisse ebenfalls

package batch

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/laserweed/modelconv/checkpoint"
	"github.com/laserweed/modelconv/classify"
	"github.com/laserweed/modelconv/metadata"
)

// Candidate ist eine zu konvertierende Modelldatei.
type Candidate struct {
	Path      string
	Type      string
	OutputDir string
}

// OutputDirFor gibt das Ausgabeverzeichnis einer Modelldatei zurueck (<parent>/<stem>).
func OutputDirFor(path string) string {
	base := filepath.Base(path)
	return filepath.Join(filepath.Dir(path), strings.TrimSuffix(base, filepath.Ext(base)))
}

// Scan durchsucht modelsDir rekursiv nach Modelldateien.
func Scan(modelsDir string) ([]Candidate, error) {
	fi, err := os.Stat(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("modell-verzeichnis %s: %w", modelsDir, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("modell-verzeichnis %s ist kein verzeichnis", modelsDir)
	}

	var candidates []Candidate
	for _, ext := range checkpoint.Extensions {
		err := filepath.WalkDir(modelsDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != modelsDir && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.ToLower(filepath.Ext(path)) != ext {
				return nil
			}

			out := OutputDirFor(path)
			if _, err := os.Stat(filepath.Join(out, metadata.GraphFile)); err == nil {
				slog.Info("skipping, already converted", "model", d.Name())
				return nil
			}

			candidates = append(candidates, Candidate{
				Path:      path,
				Type:      classify.FromName(path).Type(),
				OutputDir: out,
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return candidates, nil
}
