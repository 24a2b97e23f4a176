// version.go - Erkennung der tensorflowjs_converter Version
//
// Ab tensorflowjs 2.0 heisst die fp16-Option --quantize_float16,
// aeltere Versionen kennen nur --quantization_bytes=2.
package export

import (
	"context"
	"log/slog"
	"regexp"

	"golang.org/x/mod/semver"
)

// Quantisierungs-Flags
const (
	QuantizeFloat16Flag = "--quantize_float16"
	LegacyQuantizeFlag  = "--quantization_bytes=2"
)

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)

// ConverterVersion fragt die Version des Konverters einmalig ab ("" = unbekannt).
func (a *Adapter) ConverterVersion(ctx context.Context) string {
	a.versionOnce.Do(func() {
		out, err := a.runner().Run(ctx, a.Converter, "--version")
		if err != nil {
			slog.Debug("converter version unknown", "error", err)
			return
		}
		a.version = parseVersion(out.Stdout + out.Stderr)
		slog.Debug("converter version", "version", a.version)
	})
	return a.version
}

// QuantizeFlag waehlt die fp16-Option passend zur Konverter-Version.
func (a *Adapter) QuantizeFlag(ctx context.Context) string {
	v := a.ConverterVersion(ctx)
	if v != "" && semver.Compare(v, "v2.0.0") < 0 {
		return LegacyQuantizeFlag
	}
	return QuantizeFloat16Flag
}

// parseVersion liefert die erste x.y.z Version als semver-String ("v4.17.0").
func parseVersion(s string) string {
	m := versionPattern.FindString(s)
	if m == "" {
		return ""
	}
	v := "v" + m
	if !semver.IsValid(v) {
		return ""
	}
	return v
}
