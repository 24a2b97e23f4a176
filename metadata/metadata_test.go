package metadata

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/laserweed/modelconv/classify"
)

func int64p(v int64) *int64       { return &v }
func float64p(v float64) *float64 { return &v }

func TestSynthesizeYOLOv7(t *testing.T) {
	info := classify.FromName("yolov7-tiny.ckpt")
	info.Classes = []string{"crop", "weed", "soil"}
	info.Training = &classify.TrainingMetadata{Epoch: int64p(42), BestFitness: float64p(0.81)}

	got := Synthesize(info, DefaultProfiles())
	want := Descriptor{
		Classes:      []string{"crop", "weed", "soil"},
		ModelType:    "yolov7-tiny",
		InputSize:    [2]int{640, 640},
		Threshold:    0.35,
		IoUThreshold: 0.65,
		Description:  "YOLOv7 tiny model for crop/weed detection",
		OptimizedFor: "agricultural_detection",
		Performance:  "fast_inference",
		Training:     info.Training,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Deskriptor unterscheidet sich (-want +got):\n%s", diff)
	}
}

func TestSynthesizePerformance(t *testing.T) {
	cases := map[string]string{
		"yolov7.ckpt":         "balanced",
		"yolov7x.ckpt":        "high_accuracy",
		"yolov7-e6-1280.ckpt": "highest_accuracy",
		"yolov5s.pt":          "balanced",
	}
	for name, want := range cases {
		if got := Synthesize(classify.FromName(name), nil).Performance; got != want {
			t.Errorf("%s: erwartet %s, bekommen %s", name, want, got)
		}
	}
}

func TestSynthesizeGeneric(t *testing.T) {
	d := Synthesize(classify.FromName("yolov5m.onnx"), DefaultProfiles())

	if d.ModelType != "yolov5m" {
		t.Errorf("erwartet yolov5m, bekommen %s", d.ModelType)
	}
	if d.Threshold != 0.5 || d.IoUThreshold != 0.45 {
		t.Errorf("erwartet 0.5/0.45, bekommen %v/%v", d.Threshold, d.IoUThreshold)
	}
	if diff := cmp.Diff(DefaultAnchors, d.Anchors); diff != "" {
		t.Errorf("Anchors (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(DefaultStrides, d.Strides); diff != "" {
		t.Errorf("Strides (-want +got):\n%s", diff)
	}
	if d.Training != nil {
		t.Error("erwartet keine Trainings-Daten")
	}
}

func TestSynthesizeDoesNotShareProfileSlices(t *testing.T) {
	profiles := DefaultProfiles()
	d := Synthesize(classify.FromName("yolov8n.pt"), profiles)
	d.Anchors[0][0] = 999
	d.Strides[0] = 999

	if profiles.For(classify.FamilyYOLOv8).Anchors[0][0] != 10 || DefaultStrides[0] != 8 {
		t.Error("Deskriptor teilt Slices mit dem Profil")
	}
}

func TestSynthesizeClampsThresholds(t *testing.T) {
	profiles := Profiles{classify.FamilyYOLOv7: {Threshold: 1.7, IoUThreshold: math.NaN()}}
	d := Synthesize(classify.FromName("yolov7.ckpt"), profiles)

	if d.Threshold != 1 {
		t.Errorf("erwartet 1, bekommen %v", d.Threshold)
	}
	if d.IoUThreshold != MinimalIoUThreshold {
		t.Errorf("erwartet %v, bekommen %v", MinimalIoUThreshold, d.IoUThreshold)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	info := classify.FromName("yolov7-tiny.ckpt")
	want := Synthesize(info, DefaultProfiles())

	fellBack, err := Write(dir, want)
	if err != nil {
		t.Fatal(err)
	}
	if fellBack {
		t.Error("unerwarteter Fallback")
	}

	got, err := Read(dir)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Round-Trip (-want +got):\n%s", diff)
	}
	if len(got.Classes) == 0 || got.Threshold < 0 || got.Threshold > 1 || got.IoUThreshold < 0 || got.IoUThreshold > 1 {
		t.Errorf("Invarianten verletzt: %+v", got)
	}
}

func TestWriteFallsBackToMinimal(t *testing.T) {
	cases := []struct {
		name string
		d    Descriptor
	}{
		{"keine Klassen", Descriptor{ModelType: "yolov7-base", Threshold: 0.3, IoUThreshold: 0.6}},
		{"leerer Name", Descriptor{Classes: []string{"crop", ""}, ModelType: "x"}},
		{"NaN", Descriptor{Classes: []string{"crop"}, Threshold: math.NaN()}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			fellBack, err := Write(dir, tt.d)
			if err != nil {
				t.Fatal(err)
			}
			if !fellBack {
				t.Error("erwartet Fallback")
			}
			got, err := Read(dir)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(Minimal(), got); diff != "" {
				t.Errorf("Minimal-Deskriptor (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteIOError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Write(filepath.Join(file, "out"), Minimal()); err == nil {
		t.Error("erwartet Fehler bei Datei statt Verzeichnis")
	}
}

func TestPlaceholderFlag(t *testing.T) {
	dir := t.TempDir()
	d := Synthesize(classify.FromName("model.ckpt"), nil)
	d.Placeholder = true
	if _, err := Write(dir, d); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, ClassesFile))
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if m["placeholder"] != true {
		t.Errorf("erwartet placeholder=true, bekommen %v", m["placeholder"])
	}
	if _, ok := m["anchors"]; ok {
		t.Error("yolov7 Deskriptor sollte keine Anchors haben")
	}
}

func TestWritePlaceholderGraph(t *testing.T) {
	dir := t.TempDir()
	if err := WritePlaceholderGraph(dir); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, GraphFile))
	if err != nil {
		t.Fatal(err)
	}
	var g map[string]any
	if err := json.Unmarshal(raw, &g); err != nil {
		t.Fatal(err)
	}
	if g["format"] != "graph-model" {
		t.Errorf("erwartet graph-model, bekommen %v", g["format"])
	}
	if g["generatedBy"] != "LaserWeed Converter (Fallback)" {
		t.Errorf("unerwartetes generatedBy %v", g["generatedBy"])
	}
	if wm, ok := g["weightsManifest"].([]any); !ok || len(wm) != 0 {
		t.Errorf("erwartet leeres weightsManifest, bekommen %v", g["weightsManifest"])
	}
}

func TestLoadProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	yamlData := `
yolov7:
  threshold: 0.3
  performance:
    tiny: realtime
yolov8:
  iou_threshold: 2.5
  optimized_for: general_detection
`
	if err := os.WriteFile(path, []byte(yamlData), 0o644); err != nil {
		t.Fatal(err)
	}

	profiles, err := LoadProfiles(path)
	if err != nil {
		t.Fatal(err)
	}

	v7 := profiles.For(classify.FamilyYOLOv7)
	if v7.Threshold != 0.3 {
		t.Errorf("erwartet 0.3, bekommen %v", v7.Threshold)
	}
	if v7.IoUThreshold != 0.65 {
		t.Errorf("nicht gesetztes Feld ueberschrieben: %v", v7.IoUThreshold)
	}
	if v7.Performance["tiny"] != "realtime" || v7.Performance["x"] != "high_accuracy" {
		t.Errorf("Performance nicht gemerged: %v", v7.Performance)
	}
	if agriculturalProfile().Performance["tiny"] != "fast_inference" {
		t.Error("eingebautes Profil veraendert")
	}

	v8 := profiles.For(classify.FamilyYOLOv8)
	if v8.IoUThreshold != 1 {
		t.Errorf("erwartet geklemmt auf 1, bekommen %v", v8.IoUThreshold)
	}
	if v8.OptimizedFor != "general_detection" || len(v8.Anchors) != 3 {
		t.Errorf("unerwartetes Profil %+v", v8)
	}
}

func TestLoadProfilesErrors(t *testing.T) {
	if _, err := LoadProfiles(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("erwartet Fehler fuer fehlende Datei")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("yolov7: [unclosed"), 0o644)
	if _, err := LoadProfiles(bad); err == nil {
		t.Error("erwartet Parse-Fehler")
	}

	p, err := LoadProfiles("")
	if err != nil || len(p) != 4 {
		t.Errorf("leerer Pfad: %v, %d Profile", err, len(p))
	}
}
