// config.go - Haupt-Konfigurationsfunktionen fuer modelconv
//
// Dieses Modul enthaelt:
// - Host: Adresse des Index-Servers (MODELCONV_HOST)
// - AllowedOrigins: Erlaubte CORS-Origins (MODELCONV_ORIGINS)
// - Models: Modell-Verzeichnis fuer Batch-Laeufe (MODELCONV_MODELS)
// - IndexPath: Ziel des Modell-Index fuer das Web-Frontend (MODELCONV_INDEX)
// - LogLevel: Log-Level (MODELCONV_DEBUG)
//
// Weitere Konfigurationen sind ausgelagert:
// - config_tools.go: Externe Werkzeuge (Python, Export-Script, tfjs-Converter)
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
)

// Host gibt host:port des Index-Servers zurueck
// Konfigurierbar via MODELCONV_HOST
// Default: 127.0.0.1:8765
func Host() string {
	defaultPort := "8765"

	s := strings.TrimSpace(Var("MODELCONV_HOST"))
	s = strings.TrimPrefix(strings.TrimPrefix(s, "http://"), "https://")
	s, _, _ = strings.Cut(s, "/")

	host, port, err := net.SplitHostPort(s)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(s, "[]")); ip != nil {
			host = ip.String()
		} else if s != "" {
			host = s
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return net.JoinHostPort(host, port)
}

// AllowedOrigins gibt erlaubte Origins zurueck
// Konfigurierbar via MODELCONV_ORIGINS (komma-separiert)
// Enthaelt Standard-Origins fuer localhost
func AllowedOrigins() (origins []string) {
	if s := Var("MODELCONV_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	return append(origins, "file://*")
}

// Models gibt das Modell-Verzeichnis fuer Batch-Laeufe zurueck
// Konfigurierbar via MODELCONV_MODELS
// Default: custom-models (relativ zum Arbeitsverzeichnis)
var Models = StringWithDefault("MODELCONV_MODELS", "custom-models")

// IndexPath gibt den Pfad des Modell-Index fuer das Web-Frontend zurueck
// Konfigurierbar via MODELCONV_INDEX
// Default: web/models_index.json
var IndexPath = StringWithDefault("MODELCONV_INDEX", "web/models_index.json")

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via MODELCONV_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("MODELCONV_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
