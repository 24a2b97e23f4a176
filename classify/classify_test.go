package classify

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/laserweed/modelconv/checkpoint"
)

func TestFromName(t *testing.T) {
	cases := []struct {
		path      string
		family    Family
		variant   string
		size      int
		typ       string
		modelType string
	}{
		{"models/yolov7-tiny.ckpt", FamilyYOLOv7, "tiny", 640, "yolov7-tiny", "yolov7-tiny"},
		{"yolov7x.pt", FamilyYOLOv7, "x", 640, "yolov7-x", "yolov7-x"},
		{"YOLOv7-E6-1280.ckpt", FamilyYOLOv7, "e6", 1280, "yolov7-e6", "yolov7-e6"},
		{"yolov7-e6.ckpt", FamilyYOLOv7, "e6", 640, "yolov7-e6", "yolov7-e6"},
		{"yolov7.onnx", FamilyYOLOv7, "base", 640, "yolov7", "yolov7-base"},
		{"unknown_model.ckpt", FamilyYOLOv7, "base", 640, "yolov7", "yolov7-base"},
		{"tiny-x-model.ckpt", FamilyYOLOv7, "tiny", 640, "yolov7-tiny", "yolov7-tiny"},
		{"yolov5s.pt", FamilyYOLOv5, "s", 640, "yolov5s", "yolov5s"},
		{"yolov5m.onnx", FamilyYOLOv5, "m", 640, "yolov5m", "yolov5m"},
		{"yolov5l.pt", FamilyYOLOv5, "l", 640, "yolov5l", "yolov5l"},
		{"yolov5.pt", FamilyYOLOv5, "", 640, "yolov5", "yolov5"},
		{"yolov8n.pt", FamilyYOLOv8, "", 640, "yolov8", "yolov8"},
		{"best.pt", FamilyUnknown, "", 640, "unknown", "yolo"},
		{"detector.onnx", FamilyUnknown, "", 640, "unknown", "yolo"},
	}

	for _, tt := range cases {
		t.Run(tt.path, func(t *testing.T) {
			info := FromName(tt.path)
			if info.Family != tt.family || info.Variant != tt.variant {
				t.Errorf("Family/Variant = %s/%q, erwartet %s/%q", info.Family, info.Variant, tt.family, tt.variant)
			}
			if info.InputSize != [2]int{tt.size, tt.size} {
				t.Errorf("InputSize = %v, erwartet %d", info.InputSize, tt.size)
			}
			if got := info.Type(); got != tt.typ {
				t.Errorf("Type() = %q, erwartet %q", got, tt.typ)
			}
			if got := info.ModelType(); got != tt.modelType {
				t.Errorf("ModelType() = %q, erwartet %q", got, tt.modelType)
			}
			if diff := cmp.Diff(DefaultClasses, info.Classes); diff != "" {
				t.Errorf("Classes (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromNameDeterministic(t *testing.T) {
	for _, p := range []string{"yolov7-tiny.ckpt", "yolov5m.pt", "weird.onnx"} {
		if diff := cmp.Diff(FromName(p), FromName(p)); diff != "" {
			t.Errorf("%s nicht deterministisch:\n%s", p, diff)
		}
	}
}

func TestFromNameDoesNotShareDefaults(t *testing.T) {
	a := FromName("a.ckpt")
	a.Classes[0] = "changed"
	if DefaultClasses[0] != "crop" {
		t.Fatal("DefaultClasses wurde ueber ModelInfo veraendert")
	}
}

func TestClassNames(t *testing.T) {
	str := func(s string) checkpoint.Value { return checkpoint.Scalar{V: s} }

	cases := []struct {
		name string
		root checkpoint.Value
		want []string
	}{
		{
			name: "names als Mapping",
			root: checkpoint.MappingOf("names", checkpoint.MappingOf("0", str("crop"), "1", str("weed"))),
			want: []string{"crop", "weed"},
		},
		{
			name: "names als Sequenz",
			root: checkpoint.MappingOf("names", checkpoint.Sequence{str("weed"), str("crop"), str("soil")}),
			want: []string{"weed", "crop", "soil"},
		},
		{
			name: "class_names Fallback",
			root: checkpoint.MappingOf("names", checkpoint.Sequence{}, "class_names", checkpoint.Sequence{str("a")}),
			want: []string{"a"},
		},
		{
			name: "names am Modell-Objekt",
			root: checkpoint.MappingOf("model", &checkpoint.Object{
				Class: "models.yolo.Model",
				State: checkpoint.MappingOf("names", checkpoint.Sequence{str("thistle")}),
			}),
			want: []string{"thistle"},
		},
		{
			name: "Nicht-String Eintraege",
			root: checkpoint.MappingOf("names", checkpoint.Sequence{checkpoint.Scalar{V: int64(1)}}),
			want: nil,
		},
		{
			name: "kein Mapping",
			root: checkpoint.None{},
			want: nil,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ClassNames(tt.root)); diff != "" {
				t.Errorf("ClassNames (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClassifyScenario(t *testing.T) {
	root := checkpoint.MappingOf(
		"model", &checkpoint.Object{Class: "models.yolo.Model", State: checkpoint.None{}},
		"names", checkpoint.MappingOf("0", checkpoint.Scalar{V: "crop"}, "1", checkpoint.Scalar{V: "weed"}),
		"epoch", checkpoint.Scalar{V: int64(299)},
		"best_fitness", checkpoint.Sequence{checkpoint.Scalar{V: 0.71}},
	)

	info := Classify("yolov7-tiny.ckpt", root)
	if info.Family != FamilyYOLOv7 || info.Variant != "tiny" || info.InputSize != [2]int{640, 640} {
		t.Errorf("info = %+v", info)
	}
	if diff := cmp.Diff([]string{"crop", "weed"}, info.Classes); diff != "" {
		t.Errorf("Classes (-want +got):\n%s", diff)
	}
	if info.ModelType() != "yolov7-tiny" {
		t.Errorf("ModelType = %q", info.ModelType())
	}
	if info.Training == nil || *info.Training.Epoch != 299 || *info.Training.BestFitness != 0.71 {
		t.Errorf("Training = %+v", info.Training)
	}
}

func TestClassifyWithoutNamesKeepsDefaults(t *testing.T) {
	info := Classify("unknown_model.ckpt", checkpoint.MappingOf("optimizer", checkpoint.None{}))
	if diff := cmp.Diff(DefaultClasses, info.Classes); diff != "" {
		t.Errorf("Classes (-want +got):\n%s", diff)
	}
	if info.Training != nil {
		t.Errorf("Training = %+v, erwartet nil", info.Training)
	}
}
