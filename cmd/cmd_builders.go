// cmd_builders.go - Command-Builder Funktionen
// Hauptfunktionen: newConvertCmd, newBatchCmd, newInspectCmd, newEnvCmd
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/laserweed/modelconv/envconfig"
)

// newConvertCmd - Erstellt den convert Command
func newConvertCmd() *cobra.Command {
	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a single model (.ckpt, .pt, .onnx) to TensorFlow.js",
		Example: `  modelconv convert -i model.pt -o custom-models/my-model
  modelconv convert -i yolov7-tiny.ckpt -o custom-models/yolov7-tiny -q -v`,
		Args: cobra.NoArgs,
		RunE: ConvertHandler,
	}

	convertCmd.Flags().StringP("input", "i", "", "Input model path (.ckpt, .pt or .onnx)")
	convertCmd.Flags().StringP("output", "o", "", "Output directory path")
	convertCmd.Flags().BoolP("quantize", "q", false, "Apply FP16 quantization")
	convertCmd.Flags().BoolP("validate", "v", false, "Validate converted model")
	convertCmd.MarkFlagRequired("input")  //nolint:errcheck
	convertCmd.MarkFlagRequired("output") //nolint:errcheck

	return convertCmd
}

// newBatchCmd - Erstellt den batch Command
func newBatchCmd() *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Convert all models found in the models directory",
		Args:  cobra.NoArgs,
		RunE:  BatchHandler,
	}

	batchCmd.Flags().StringP("models-dir", "d", envconfig.Models(), "Directory containing model files")
	batchCmd.Flags().BoolP("quantize", "q", false, "Apply FP16 quantization for smaller models")
	batchCmd.Flags().BoolP("generate-index", "i", false, "Generate model index for web interface")
	batchCmd.Flags().String("index", envconfig.IndexPath(), "Path of the generated model index")

	return batchCmd
}

// newInspectCmd - Erstellt den inspect Command
func newInspectCmd() *cobra.Command {
	inspectCmd := &cobra.Command{
		Use:   "inspect CHECKPOINT",
		Short: "Inspect checkpoint structure",
		Args:  cobra.ExactArgs(1),
		RunE:  InspectHandler,
	}

	inspectCmd.Flags().StringP("save-structure", "s", "", "Save structure analysis to JSON file")
	inspectCmd.Flags().Bool("stats", false, "Show tensor statistics and FP16 quantization risk")
	inspectCmd.Flags().Int("depth", 3, "Maximum depth of the structure analysis")

	return inspectCmd
}

// newEnvCmd - Erstellt den env Command
func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show configuration from environment variables",
		Args:  cobra.NoArgs,
		RunE:  EnvHandler,
	}
}
