// cmd_convert.go - Einzel-Konvertierung und Batch-Lauf
// Hauptfunktionen: ConvertHandler, BatchHandler
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/laserweed/modelconv/batch"
	"github.com/laserweed/modelconv/convert"
	"github.com/laserweed/modelconv/format"
)

// ConvertHandler - Konvertiert eine Modelldatei, Exit-Code != 0 bei Fehlschlag
func ConvertHandler(cmd *cobra.Command, _ []string) error {
	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	quantize, _ := cmd.Flags().GetBool("quantize")
	validate, _ := cmd.Flags().GetBool("validate")

	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("input file not found: %s", input)
	}

	profiles, err := loadProfiles()
	if err != nil {
		return err
	}

	store, err := openHistory()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	out, convErr := convert.New(input, output, convert.Options{
		Quantize: quantize,
		Validate: validate,
		Profiles: profiles,
	}).Convert(cmd.Context())

	if store != nil {
		if err := store.Record(uuid.NewString(), out); err != nil {
			slog.Warn("could not record history", "error", err)
		}
	}

	w := cmd.OutOrStdout()
	if convErr != nil {
		fmt.Fprintf(w, "\nModel conversion failed (%s)\n", out.Status)
		return convErr
	}

	fmt.Fprintln(w, "\nModel converted successfully!")
	fmt.Fprintf(w, "Output directory: %s\n", output)
	fmt.Fprintf(w, "Size: %s, time: %s\n", format.HumanBytes(out.SizeBytes), format.HumanDuration(out.Elapsed))
	if out.Degraded {
		fmt.Fprintln(w, "Warning: placeholder model.json written, the web interface will fall back to simple detection")
	}

	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintln(w, "1. Copy the model folder to your web/models/ directory")
	fmt.Fprintln(w, "2. Update the model selector in the web interface")
	fmt.Fprintln(w, "3. Test the model with your camera feed")
	return nil
}

// BatchHandler - Konvertiert alle Modelle im Modell-Verzeichnis
func BatchHandler(cmd *cobra.Command, _ []string) error {
	modelsDir, _ := cmd.Flags().GetString("models-dir")
	quantize, _ := cmd.Flags().GetBool("quantize")
	generateIndex, _ := cmd.Flags().GetBool("generate-index")
	indexPath, _ := cmd.Flags().GetString("index")

	profiles, err := loadProfiles()
	if err != nil {
		return err
	}

	opts := batch.Options{
		ModelsDir:    modelsDir,
		Quantize:     quantize,
		Profiles:     profiles,
		PlainSummary: plainOutput(),
	}

	store, err := openHistory()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		opts.History = store
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "LaserWeed Batch Model Converter")

	o := batch.New(opts)
	results, err := o.Run(cmd.Context())
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintf(w, "No models found for conversion.\nPlace .ckpt, .pt, or .onnx files in: %s\n", modelsDir)
		return nil
	}

	o.PrintSummary(w)

	path, err := o.SaveResults()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nResults saved to: %s\n", path)

	if generateIndex {
		idx, err := o.GenerateIndex(indexPath)
		if err != nil {
			return err
		}
		if idx.TotalModels > 0 {
			fmt.Fprintf(w, "Model index generated: %s\n", indexPath)
		}
	}
	return nil
}
