// cmd_env.go - Ausgabe der Konfiguration
package cmd

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/laserweed/modelconv/envconfig"
)

// EnvHandler - Listet alle Umgebungsvariablen mit aktuellem Wert
func EnvHandler(cmd *cobra.Command, _ []string) error {
	vars := envconfig.AsMap()
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	slices.Sort(names)

	values := envconfig.Values()
	table := newTable(cmd.OutOrStdout(), "NAME", "VALUE", "DESCRIPTION")
	for _, name := range names {
		table.Append([]string{name, values[name], vars[name].Description})
	}
	table.Render()
	return nil
}
