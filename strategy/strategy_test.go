package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/laserweed/modelconv/checkpoint"
	"github.com/laserweed/modelconv/classify"
	"github.com/laserweed/modelconv/export"
	"github.com/laserweed/modelconv/metadata"
	"github.com/laserweed/modelconv/validate"
)

// fakeExporter schreibt die erwarteten Dateien oder liefert Fehler.
type fakeExporter struct {
	exportErr  error
	convertErr error
	manifest   Manifest
	requests   []export.GraphRequest
}

func (f *fakeExporter) ExportInterchange(_ context.Context, req export.InterchangeRequest) (string, error) {
	data, err := os.ReadFile(req.Manifest)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(data, &f.manifest); err != nil {
		return "", err
	}
	if f.exportErr != nil {
		return "", f.exportErr
	}
	return req.Output, os.WriteFile(req.Output, []byte("onnx"), 0o644)
}

func (f *fakeExporter) ConvertGraph(_ context.Context, req export.GraphRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.convertErr != nil {
		return "", f.convertErr
	}
	graph := filepath.Join(req.OutputDir, export.GraphFile)
	return graph, os.WriteFile(graph, []byte(`{"format":"graph-model","weightsManifest":[{}]}`), 0o644)
}

func epochCheckpoint(path string, root checkpoint.Value) *checkpoint.Checkpoint {
	return &checkpoint.Checkpoint{Path: path, Format: checkpoint.FormatCheckpoint, Root: root}
}

func stateMapping() *checkpoint.Mapping {
	return checkpoint.MappingOf(
		"model", checkpoint.MappingOf("0.weight", checkpoint.NewTensor("float32", []int{2}, []float32{1, 2})),
		"epoch", checkpoint.Scalar{V: int64(12)},
		"names", checkpoint.Sequence{checkpoint.Scalar{V: "crop"}, checkpoint.Scalar{V: "weed"}},
	)
}

func newInput(t *testing.T, root checkpoint.Value, exp Exporter) Input {
	t.Helper()
	path := "models/yolov7-tiny.ckpt"
	info := classify.Classify(path, root)
	return Input{
		Checkpoint: epochCheckpoint(path, root),
		Info:       info,
		OutputDir:  filepath.Join(t.TempDir(), "out"),
		Quantize:   true,
		Exporter:   exp,
		Profiles:   metadata.DefaultProfiles(),
	}
}

func attemptNames(r Report) []string {
	var names []string
	for _, a := range r.Attempts {
		names = append(names, a.Name+"="+a.Kind)
	}
	return names
}

func TestChainStandardExportSucceeds(t *testing.T) {
	exp := &fakeExporter{}
	in := newInput(t, stateMapping(), exp)

	report := Default().Run(context.Background(), in)

	if !report.Succeeded() || report.Result.Degraded {
		t.Fatalf("erwartet echten Erfolg, bekommen %+v", report.Result)
	}
	if report.Strategy != NameStandardExport {
		t.Errorf("erwartet %s, bekommen %s", NameStandardExport, report.Strategy)
	}
	if diff := cmp.Diff([]string{"standard-export=success"}, attemptNames(report)); diff != "" {
		t.Errorf("Versuche (-want +got):\n%s", diff)
	}

	wantManifest := Manifest{
		Source:    "models/yolov7-tiny.ckpt",
		Key:       "model",
		Form:      FormStateDict,
		Epoch:     12,
		Names:     []string{"crop", "weed"},
		ImageSize: 640,
	}
	if diff := cmp.Diff(wantManifest, exp.manifest); diff != "" {
		t.Errorf("Manifest (-want +got):\n%s", diff)
	}
	if len(exp.requests) != 1 || !exp.requests[0].Quantize {
		t.Errorf("erwartet quantisierte Konvertierung, bekommen %+v", exp.requests)
	}

	if err := validate.Dir(in.OutputDir); err != nil {
		t.Errorf("Ausgabe ungueltig: %v", err)
	}
	d, err := metadata.Read(in.OutputDir)
	if err != nil {
		t.Fatal(err)
	}
	if d.Placeholder || d.ModelType != "yolov7-tiny" {
		t.Errorf("unerwarteter Deskriptor %+v", d)
	}
	assertNoTempDirs(t, in.OutputDir)
}

func TestChainFallsBackWhenExportFails(t *testing.T) {
	exp := &fakeExporter{exportErr: errors.New("ultralytics not installed")}
	in := newInput(t, stateMapping(), exp)

	report := Default().Run(context.Background(), in)

	if !report.Succeeded() || !report.Result.Degraded {
		t.Fatalf("erwartet degradierten Erfolg, bekommen %+v", report.Result)
	}
	want := []string{
		"standard-export=failure",
		"direct-export=not_applicable",
		"manual-reconstruction=not_applicable",
		"fallback-metadata=success",
	}
	if diff := cmp.Diff(want, attemptNames(report)); diff != "" {
		t.Errorf("Versuche (-want +got):\n%s", diff)
	}
	if !strings.Contains(report.Attempts[0].Reason, "ultralytics not installed") {
		t.Errorf("Grund fehlt: %q", report.Attempts[0].Reason)
	}

	if err := validate.Dir(in.OutputDir); err != nil {
		t.Errorf("Platzhalter-Ausgabe ungueltig: %v", err)
	}
	d, err := metadata.Read(in.OutputDir)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Placeholder {
		t.Error("erwartet placeholder=true")
	}
	if d.Training == nil || d.Training.Epoch == nil || *d.Training.Epoch != 12 {
		t.Errorf("erwartet Epoch 12, bekommen %+v", d.Training)
	}
	assertNoTempDirs(t, in.OutputDir)
}

func TestChainNoModelKey(t *testing.T) {
	root := checkpoint.MappingOf(
		"optimizer", checkpoint.None{},
		"model", checkpoint.None{},
		"class_names", checkpoint.Sequence{checkpoint.Scalar{V: "a"}, checkpoint.Scalar{V: "b"}, checkpoint.Scalar{V: "c"}},
	)
	exp := &fakeExporter{}
	in := newInput(t, root, exp)

	report := Default().Run(context.Background(), in)

	if !report.Result.Degraded || report.Strategy != NameFallbackMetadata {
		t.Fatalf("erwartet Fallback, bekommen %+v", report)
	}
	if !strings.Contains(report.Attempts[0].Reason, "keine modelldaten") {
		t.Errorf("unerwarteter Grund %q", report.Attempts[0].Reason)
	}
	if len(exp.requests) != 0 {
		t.Error("Exporter sollte nicht aufgerufen werden")
	}

	d, err := metadata.Read(in.OutputDir)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, d.Classes); diff != "" {
		t.Errorf("Klassen (-want +got):\n%s", diff)
	}
}

func TestChainIsolatesPanics(t *testing.T) {
	var ran []string
	chain := Chain{
		{Name: "boom", Run: func(context.Context, Input) Result { panic("index out of range") }},
		{Name: "nil"},
		{Name: "ok", Run: func(context.Context, Input) Result {
			ran = append(ran, "ok")
			return Success("graph")
		}},
		{Name: "never", Run: func(context.Context, Input) Result {
			ran = append(ran, "never")
			return Success("other")
		}},
	}

	report := chain.Run(context.Background(), Input{})

	if report.Strategy != "ok" || report.Result.GraphPath != "graph" {
		t.Errorf("erwartet ok/graph, bekommen %+v", report)
	}
	if diff := cmp.Diff([]string{"ok"}, ran); diff != "" {
		t.Errorf("Ausfuehrung (-want +got):\n%s", diff)
	}
	if !strings.Contains(report.Attempts[0].Reason, "panic: index out of range") {
		t.Errorf("Panic nicht protokolliert: %+v", report.Attempts[0])
	}
}

func TestChainExhausted(t *testing.T) {
	chain := Chain{
		{Name: "a", Run: func(context.Context, Input) Result { return Failure("kaputt") }},
		{Name: "b", Run: func(context.Context, Input) Result { return NotApplicable("passt nicht") }},
	}

	report := chain.Run(context.Background(), Input{})

	if report.Succeeded() {
		t.Fatal("erwartet Fehlschlag")
	}
	for _, want := range []string{"a: kaputt", "b: passt nicht"} {
		if !strings.Contains(report.Result.Reason, want) {
			t.Errorf("erwartet %q in %q", want, report.Result.Reason)
		}
	}
}

func TestChainCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := Default().Run(ctx, Input{})
	if report.Succeeded() || len(report.Attempts) != 0 {
		t.Errorf("erwartet Abbruch ohne Versuche, bekommen %+v", report)
	}
}

func TestDefaultOrder(t *testing.T) {
	want := []string{NameStandardExport, NameDirectExport, NameManualReconstruction, NameFallbackMetadata}
	if diff := cmp.Diff(want, Default().Names()); diff != "" {
		t.Errorf("Reihenfolge (-want +got):\n%s", diff)
	}
}

func TestFormOf(t *testing.T) {
	module := &checkpoint.Object{
		Class: "models.yolo.Model",
		State: checkpoint.MappingOf("_modules", checkpoint.NewMapping()),
	}
	cases := []struct {
		key  string
		v    checkpoint.Value
		want string
	}{
		{"model", module, FormModule},
		{"ema", module, FormModule},
		{"state_dict", checkpoint.NewMapping(), FormStateDict},
		{"model", checkpoint.NewMapping(), FormStateDict},
		{"model", checkpoint.Opaque{GoType: "x"}, FormModule},
	}
	for _, tt := range cases {
		if got := formOf(tt.key, tt.v); got != tt.want {
			t.Errorf("formOf(%s, %T) = %s, erwartet %s", tt.key, tt.v, got, tt.want)
		}
	}
}

func assertNoTempDirs(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, TempPattern))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) > 0 {
		t.Errorf("Temp-Verzeichnisse nicht entfernt: %v", matches)
	}
}

// converterFailsRunner laesst den ONNX-Export gelingen und den tfjs-Konverter scheitern.
type converterFailsRunner struct{}

func (converterFailsRunner) Run(_ context.Context, name string, args ...string) (export.Output, error) {
	for i, a := range args {
		if a == "--output" && i+1 < len(args) {
			return export.Output{}, os.WriteFile(args[i+1], []byte("onnx"), 0o644)
		}
	}
	return export.Output{Stderr: "converter crashed\n"}, errors.New("exit status 1")
}

func TestChainRerunOverPlaceholderStaysDegraded(t *testing.T) {
	script := filepath.Join(t.TempDir(), "export_onnx.py")
	if err := os.WriteFile(script, []byte("# helper"), 0o644); err != nil {
		t.Fatal(err)
	}
	adapter := &export.Adapter{Python: "python3", Script: script, Converter: "tensorflowjs_converter", Runner: converterFailsRunner{}}
	in := newInput(t, stateMapping(), adapter)

	// erster Lauf hinterlaesst einen Platzhalter
	if err := os.MkdirAll(in.OutputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := metadata.WritePlaceholderGraph(in.OutputDir); err != nil {
		t.Fatal(err)
	}

	report := Default().Run(context.Background(), in)

	if report.Strategy != NameFallbackMetadata || !report.Result.Degraded {
		t.Fatalf("erwartet degradierten Fallback, bekommen %s %+v", report.Strategy, report.Result)
	}
	if report.Attempts[0].Kind != KindFailure.String() {
		t.Errorf("standard-export sollte scheitern: %+v", report.Attempts[0])
	}
}
