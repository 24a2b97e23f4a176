// routes_serve.go - Server-Start und Lifecycle-Management
// Enthaelt: Serve() - Hauptfunktion zum Starten des HTTP-Servers

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/laserweed/modelconv/envconfig"
	"github.com/laserweed/modelconv/history"
	"github.com/laserweed/modelconv/logutil"
	"github.com/laserweed/modelconv/version"
)

// Serve startet den HTTP-Server auf ln und blockiert bis SIGINT/SIGTERM.
func Serve(ln net.Listener) error {
	level := envconfig.LogLevel()
	slog.SetDefault(logutil.NewLogger(os.Stderr, level))
	gin.SetMode(ginMode(level))
	slog.Info("server config", "env", envconfig.Values())

	s := &Server{
		addr:      ln.Addr(),
		ModelsDir: envconfig.Models(),
		IndexPath: envconfig.IndexPath(),
	}

	if path := envconfig.History(); path != "" {
		store, err := history.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()
		s.History = store
	}

	ctx, done := context.WithCancel(context.Background())
	defer done()

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version), "models", s.ModelsDir)
	srvr := &http.Server{Handler: s.GenerateRoutes()}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		srvr.Close()
		done()
	}()

	err := srvr.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-ctx.Done()
	return nil
}
