// Package validate prueft ein Ausgabeverzeichnis rein strukturell.
//
// Gueltig ist ein Verzeichnis, wenn model.json und classes.json existieren,
// beide als JSON parsen und classes.json ein "classes"-Array enthaelt.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/laserweed/modelconv/metadata"
)

// ErrInvalid ist das Ziel fuer errors.Is auf Validierungsfehler.
var ErrInvalid = errors.New("validierung fehlgeschlagen")

// Error sammelt alle gefundenen Probleme eines Verzeichnisses.
type Error struct {
	Dir      string
	Problems []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("validierung %s: %s", e.Dir, strings.Join(e.Problems, "; "))
}

func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

// Dir validiert ein Ausgabeverzeichnis. nil bedeutet gueltig.
func Dir(dir string) error {
	var problems []string

	if _, err := readJSON(filepath.Join(dir, metadata.GraphFile)); err != nil {
		problems = append(problems, err.Error())
	}

	cfg, err := readJSON(filepath.Join(dir, metadata.ClassesFile))
	switch {
	case err != nil:
		problems = append(problems, err.Error())
	default:
		obj, ok := cfg.(map[string]any)
		if !ok {
			problems = append(problems, metadata.ClassesFile+" ist kein objekt")
			break
		}
		classes, ok := obj["classes"]
		if !ok {
			problems = append(problems, metadata.ClassesFile+" ohne 'classes' feld")
		} else if _, isList := classes.([]any); !isList {
			problems = append(problems, metadata.ClassesFile+": 'classes' ist keine liste")
		}
	}

	if len(problems) > 0 {
		slog.Warn("model validation failed", "dir", dir, "problems", problems)
		return &Error{Dir: dir, Problems: problems}
	}
	slog.Info("model validation passed", "dir", dir)
	return nil
}

func readJSON(path string) (any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s nicht gefunden", filepath.Base(path))
	} else if err != nil {
		return nil, err
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%s: ungueltiges json: %v", filepath.Base(path), err)
	}
	return v, nil
}
