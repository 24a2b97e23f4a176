// cmd_utils.go - Gemeinsame Hilfsfunktionen
// Hauptfunktionen: loadProfiles, openHistory, plainOutput, newTable
package cmd

import (
	"errors"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	"github.com/laserweed/modelconv/envconfig"
	"github.com/laserweed/modelconv/history"
	"github.com/laserweed/modelconv/metadata"
)

// loadProfiles - Laedt die Familien-Profile (eingebaut oder aus MODELCONV_PROFILES)
func loadProfiles() (metadata.Profiles, error) {
	return metadata.LoadProfiles(envconfig.Profiles())
}

// openHistory - Oeffnet die History, wenn MODELCONV_HISTORY gesetzt ist.
// Ohne Konfiguration wird nil zurueckgegeben.
func openHistory() (*history.Store, error) {
	store, err := history.Open(envconfig.History())
	if errors.Is(err, history.ErrDisabled) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// plainOutput - Keine Tabellen, wenn stdout kein Terminal ist oder MODELCONV_NOCOLOR gesetzt ist
func plainOutput() bool {
	return envconfig.NoColor() || !term.IsTerminal(int(os.Stdout.Fd()))
}

// newTable - Tabelle im Stil der uebrigen Ausgaben
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	if len(header) > 0 {
		table.SetHeader(header)
	}
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetAutoWrapText(false)
	return table
}
