// config_utils.go - Utility-Funktionen und Export fuer Konfiguration
//
// Dieses Modul enthaelt:
// - BoolWithDefault/Bool: Boolean-Getter mit Default-Wert
// - String/StringWithDefault: String-Getter
// - EnvVar: Struktur fuer Environment-Variablen-Info
// - AsMap: Gibt alle Konfigurationen als Map zurueck
// - Values: Gibt alle Konfigurationswerte als String-Map zurueck
package envconfig

import (
	"fmt"
	"strconv"
)

// =============================================================================
// Getter
// =============================================================================

// BoolWithDefault gibt eine Funktion zurueck, die einen Bool mit Default-Wert liest
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool gibt eine Funktion zurueck, die einen Bool liest (Default: false)
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return StringWithDefault(s, "")
}

// StringWithDefault liest k, leere Werte ergeben def
func StringWithDefault(k, def string) func() string {
	return func() string {
		if s := Var(k); s != "" {
			return s
		}
		return def
	}
}

// =============================================================================
// Export-Strukturen und -Funktionen
// =============================================================================

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"MODELCONV_DEBUG":          {"MODELCONV_DEBUG", LogLevel(), "Show additional debug information (e.g. MODELCONV_DEBUG=1)"},
		"MODELCONV_HOST":           {"MODELCONV_HOST", Host(), "Listen address of the model index server (default 127.0.0.1:8765)"},
		"MODELCONV_ORIGINS":        {"MODELCONV_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
		"MODELCONV_MODELS":         {"MODELCONV_MODELS", Models(), "Directory scanned by batch conversion (default custom-models)"},
		"MODELCONV_INDEX":          {"MODELCONV_INDEX", IndexPath(), "Model index file for the web interface"},
		"MODELCONV_PYTHON":         {"MODELCONV_PYTHON", Python(), "Python interpreter used for the ONNX export"},
		"MODELCONV_EXPORT_SCRIPT":  {"MODELCONV_EXPORT_SCRIPT", ExportScript(), "Checkpoint to ONNX export helper script"},
		"MODELCONV_TFJS_CONVERTER": {"MODELCONV_TFJS_CONVERTER", TFJSConverter(), "tensorflowjs_converter binary"},
		"MODELCONV_HISTORY":        {"MODELCONV_HISTORY", History(), "SQLite file recording conversion history"},
		"MODELCONV_PROFILES":       {"MODELCONV_PROFILES", Profiles(), "YAML file overriding detection profiles per model family"},
		"MODELCONV_ORT_LIBRARY":    {"MODELCONV_ORT_LIBRARY", OrtLibrary(), "onnxruntime shared library for ONNX interface checks"},
		"MODELCONV_NOCOLOR":        {"MODELCONV_NOCOLOR", NoColor(), "Print plain text instead of tables"},
	}
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
