// profile.go - Familien-Profile fuer den Metadaten-Deskriptor
//
// Eingebaut:
// - yolov7: landwirtschaftliche Erkennung (0.35 / 0.65)
// - yolov5, yolov8, unknown: generische YOLO-Werte mit Default-Anchors
//
// Eine YAML-Datei (MODELCONV_PROFILES) kann einzelne Felder ueberschreiben:
//
//	yolov7:
//	  threshold: 0.3
//	  performance:
//	    tiny: realtime
package metadata

import (
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/laserweed/modelconv/classify"
)

// Profile enthaelt die familienspezifischen Deskriptor-Werte.
type Profile struct {
	Threshold    float64           `yaml:"threshold"`
	IoUThreshold float64           `yaml:"iou_threshold"`
	Description  string            `yaml:"description"` // {variant}, {type} werden ersetzt
	OptimizedFor string            `yaml:"optimized_for"`
	Performance  map[string]string `yaml:"performance"` // Variante -> Performance-Tag
	Anchors      [][]int           `yaml:"anchors"`
	Strides      []int             `yaml:"strides"`
}

// Profiles ordnet Familien ihren Profilen zu.
type Profiles map[classify.Family]Profile

// Default-Anchors und Strides fuer YOLO-Heads
var (
	DefaultAnchors = [][]int{
		{10, 13, 16, 30, 33, 23},
		{30, 61, 62, 45, 59, 119},
		{116, 90, 156, 198, 373, 326},
	}
	DefaultStrides = []int{8, 16, 32}
)

func agriculturalProfile() Profile {
	return Profile{
		Threshold:    0.35,
		IoUThreshold: 0.65,
		Description:  "YOLOv7 {variant} model for crop/weed detection",
		OptimizedFor: "agricultural_detection",
		Performance: map[string]string{
			"tiny": "fast_inference",
			"x":    "high_accuracy",
			"e6":   "highest_accuracy",
		},
	}
}

func genericProfile() Profile {
	return Profile{
		Threshold:    MinimalThreshold,
		IoUThreshold: MinimalIoUThreshold,
		Anchors:      cloneAnchors(DefaultAnchors),
		Strides:      append([]int(nil), DefaultStrides...),
	}
}

// DefaultProfiles gibt die eingebauten Profile zurueck.
func DefaultProfiles() Profiles {
	return Profiles{
		classify.FamilyYOLOv7:  agriculturalProfile(),
		classify.FamilyYOLOv5:  genericProfile(),
		classify.FamilyYOLOv8:  genericProfile(),
		classify.FamilyUnknown: genericProfile(),
	}
}

// For gibt das Profil einer Familie zurueck, unbekannte Familien bekommen das generische.
func (p Profiles) For(f classify.Family) Profile {
	if prof, ok := p[f]; ok {
		return prof
	}
	if prof, ok := DefaultProfiles()[f]; ok {
		return prof
	}
	return genericProfile()
}

// LoadProfiles liest eine YAML-Datei und legt sie ueber die eingebauten Profile.
// Nicht gesetzte Felder behalten ihren eingebauten Wert.
func LoadProfiles(path string) (Profiles, error) {
	profiles := DefaultProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile lesen: %w", err)
	}

	var nodes map[string]yaml.Node
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("profile parsen: %w", err)
	}

	for name, node := range nodes {
		f := classify.Family(name)
		p := profiles.For(f)
		p.Performance = maps.Clone(p.Performance)
		if err := node.Decode(&p); err != nil {
			return nil, fmt.Errorf("profil %s: %w", name, err)
		}
		p.Threshold = clamp(p.Threshold, MinimalThreshold)
		p.IoUThreshold = clamp(p.IoUThreshold, MinimalIoUThreshold)
		profiles[f] = p
	}
	return profiles, nil
}
