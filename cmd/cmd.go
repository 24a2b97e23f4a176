// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime"

	"github.com/containerd/console"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/laserweed/modelconv/envconfig"
	"github.com/laserweed/modelconv/logutil"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-26s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	if runtime.GOOS == "windows" && term.IsTerminal(int(os.Stdout.Fd())) {
		console.ConsoleFromFile(os.Stdin) //nolint:errcheck
	}

	rootCmd := &cobra.Command{
		Use:           "modelconv",
		Short:         "Convert YOLO checkpoints to TensorFlow.js graph models",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				versionHandler(cmd, args)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	// Commands erstellen
	convertCmd := newConvertCmd()
	batchCmd := newBatchCmd()
	inspectCmd := newInspectCmd()
	serveCmd := newServeCmd()
	envCmd := newEnvCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	tools := []envconfig.EnvVar{
		envVars["MODELCONV_DEBUG"],
		envVars["MODELCONV_PYTHON"],
		envVars["MODELCONV_EXPORT_SCRIPT"],
		envVars["MODELCONV_TFJS_CONVERTER"],
		envVars["MODELCONV_PROFILES"],
		envVars["MODELCONV_ORT_LIBRARY"],
	}

	for _, cmd := range []*cobra.Command{convertCmd, batchCmd, inspectCmd, serveCmd} {
		switch cmd {
		case convertCmd:
			appendEnvDocs(cmd, tools)
		case batchCmd:
			appendEnvDocs(cmd, append(tools,
				envVars["MODELCONV_MODELS"],
				envVars["MODELCONV_INDEX"],
				envVars["MODELCONV_HISTORY"],
				envVars["MODELCONV_NOCOLOR"],
			))
		case serveCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["MODELCONV_DEBUG"],
				envVars["MODELCONV_HOST"],
				envVars["MODELCONV_ORIGINS"],
				envVars["MODELCONV_MODELS"],
				envVars["MODELCONV_INDEX"],
				envVars["MODELCONV_HISTORY"],
			})
		default:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["MODELCONV_DEBUG"], envVars["MODELCONV_NOCOLOR"]})
		}
	}

	rootCmd.AddCommand(
		convertCmd,
		batchCmd,
		inspectCmd,
		serveCmd,
		envCmd,
	)

	return rootCmd
}
