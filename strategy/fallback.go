package strategy

import (
	"context"
	"path/filepath"

	"github.com/laserweed/modelconv/classify"
	"github.com/laserweed/modelconv/metadata"
)

// FallbackMetadata schreibt Metadaten und einen Platzhalter-Graphen ohne Konvertierung.
// Das Ergebnis ist immer als Degraded markiert.
func FallbackMetadata() Strategy {
	return Strategy{Name: NameFallbackMetadata, Run: fallbackMetadata}
}

func fallbackMetadata(_ context.Context, in Input) Result {
	info := in.Info
	if in.Checkpoint != nil {
		if t := classify.Training(in.Checkpoint.Root); !t.Empty() {
			info.Training = t
		}
		if names := classify.ClassNames(in.Checkpoint.Root); len(names) > 0 {
			info.Classes = names
		}
	}

	d := metadata.Synthesize(info, in.Profiles)
	d.Placeholder = true
	if _, err := metadata.Write(in.OutputDir, d); err != nil {
		return Failure("metadaten: %v", err)
	}
	if err := metadata.WritePlaceholderGraph(in.OutputDir); err != nil {
		return Failure("platzhalter: %v", err)
	}
	return DegradedSuccess(filepath.Join(in.OutputDir, metadata.GraphFile))
}
