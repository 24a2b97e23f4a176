// cmd_serve.go - Index-Server und Version
// Hauptfunktionen: RunServer, versionHandler, newServeCmd
package cmd

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/laserweed/modelconv/envconfig"
	"github.com/laserweed/modelconv/server"
	"github.com/laserweed/modelconv/version"
)

// RunServer - Startet den Modell-Index-Server
func RunServer(_ *cobra.Command, _ []string) error {
	ln, err := net.Listen("tcp", envconfig.Host())
	if err != nil {
		return err
	}

	err = server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// versionHandler - Zeigt die Version an
func versionHandler(cmd *cobra.Command, _ []string) {
	fmt.Fprintf(cmd.OutOrStdout(), "modelconv version is %s\n", version.Version)
}

// newServeCmd - Erstellt den serve Command
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Serve converted models and the model index",
		Args:    cobra.ExactArgs(0),
		RunE:    RunServer,
	}
}
