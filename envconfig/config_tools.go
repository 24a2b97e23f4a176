// config_tools.go - Externe Werkzeuge und optionale Features
//
// Dieses Modul enthaelt:
// - Python-Interpreter und Export-Script fuer den ONNX-Export
// - tensorflowjs_converter Binary
// - Optionale Pfade (History-DB, Profil-Datei, ONNX Runtime Library)
package envconfig

// =============================================================================
// Externe Werkzeuge
// =============================================================================

// Python gibt den Python-Interpreter fuer den Export zurueck
// Konfigurierbar via MODELCONV_PYTHON
// Leer = automatische Suche (python3, python)
var Python = String("MODELCONV_PYTHON")

// ExportScript gibt den Pfad des ONNX-Export-Helfers zurueck
// Konfigurierbar via MODELCONV_EXPORT_SCRIPT
// Default: scripts/export_onnx.py
var ExportScript = StringWithDefault("MODELCONV_EXPORT_SCRIPT", "scripts/export_onnx.py")

// TFJSConverter gibt das tensorflowjs_converter Binary zurueck
// Konfigurierbar via MODELCONV_TFJS_CONVERTER
var TFJSConverter = StringWithDefault("MODELCONV_TFJS_CONVERTER", "tensorflowjs_converter")

// =============================================================================
// Optionale Features
// =============================================================================

var (
	// History ist der Pfad der SQLite-History (leer = deaktiviert)
	History = String("MODELCONV_HISTORY")

	// Profiles ist eine YAML-Datei mit Familien-Profilen (leer = eingebaut)
	Profiles = String("MODELCONV_PROFILES")

	// OrtLibrary ist der Pfad zur onnxruntime Shared Library (nur Build-Tag onnx)
	OrtLibrary = String("MODELCONV_ORT_LIBRARY")

	// NoColor deaktiviert Tabellen-Ausgabe auch auf Terminals
	NoColor = Bool("MODELCONV_NOCOLOR")
)
