// MODUL: routes
// ZWECK: HTTP-Router fuer Modell-Index, Ergebnis-Log, Validierung und History
// INPUT: Modell-Verzeichnis, Index-Pfad, optionale History
// OUTPUT: http.Handler (gin)
// NEBENEFFEKTE: Keine (nur lesende Endpunkte)
// ABHAENGIGKEITEN: gin-gonic/gin, gin-contrib/cors, batch, validate, history
// HINWEISE: /models liefert die konvertierten Verzeichnisse statisch aus

package server

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"slices"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/laserweed/modelconv/envconfig"
	"github.com/laserweed/modelconv/history"
	"github.com/laserweed/modelconv/version"
)

// ginMode waehlt den gin-Modus passend zum Log-Level:
// Debug-Ausgaben von gin nur mit MODELCONV_DEBUG, sonst ReleaseMode.
func ginMode(level slog.Level) string {
	if level <= slog.LevelDebug {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

// HistoryReader liest gespeicherte Konvertierungen (history.Store).
type HistoryReader interface {
	Recent(limit int) ([]history.Entry, error)
}

// Server stellt die konvertierten Modelle fuer die Web-Oberflaeche bereit.
type Server struct {
	addr net.Addr

	ModelsDir string
	IndexPath string
	History   HistoryReader
}

// lokale Namensraeume, die auch bei Loopback-Bindung erreichbar sein duerfen
var localSuffixes = []string{".localhost", ".local", ".internal"}

// loopbackOnly meldet, ob der Server ausschliesslich auf Loopback lauscht.
// Nur dann wird der Host-Header geprueft (DNS-Rebinding).
func loopbackOnly(addr net.Addr) bool {
	if addr == nil {
		return false
	}
	ap, err := netip.ParseAddrPort(addr.String())
	return err != nil || ap.Addr().IsLoopback()
}

// localRequest prueft den Host-Header einer Anfrage
func localRequest(hostport string) bool {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	if ip, err := netip.ParseAddr(strings.Trim(host, "[]")); err == nil {
		return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified()
	}

	switch host {
	case "", "localhost":
		return true
	}
	if name, err := os.Hostname(); err == nil && strings.EqualFold(host, name) {
		return true
	}
	return slices.ContainsFunc(localSuffixes, func(suffix string) bool {
		return strings.HasSuffix(host, suffix)
	})
}

// hostGuard weist fremde Host-Header ab, solange der Server nur auf Loopback lauscht
func hostGuard(addr net.Addr) gin.HandlerFunc {
	guarded := loopbackOnly(addr)
	return func(c *gin.Context) {
		switch {
		case !guarded:
			c.Next()
		case !localRequest(c.Request.Host):
			c.AbortWithStatus(http.StatusForbidden)
		case c.Request.Method == http.MethodOptions:
			c.AbortWithStatus(http.StatusNoContent)
		default:
			c.Next()
		}
	}
}

// GenerateRoutes erstellt und konfiguriert den HTTP-Router
func (s *Server) GenerateRoutes() http.Handler {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"User-Agent",
		"Accept",
		"X-Requested-With",
	}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.Default()
	r.HandleMethodNotAllowed = true
	r.Use(
		cors.New(corsConfig),
		hostGuard(s.addr),
	)

	// General
	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "modelconv is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "modelconv is running") })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })

	// Modelle
	r.GET("/api/models", s.IndexHandler)
	r.GET("/api/models/:id/validate", s.ValidateHandler)
	r.GET("/api/results", s.ResultsHandler)
	r.GET("/api/history", s.HistoryHandler)

	r.Static("/models", s.ModelsDir)

	return r
}
