// cmd_inspect.go - Checkpoint-Diagnose
// Hauptfunktionen: InspectHandler, printStructure, printStats, saveStructure
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/laserweed/modelconv/checkpoint"
	"github.com/laserweed/modelconv/classify"
	"github.com/laserweed/modelconv/format"
)

// minSavedDepth ist die Mindesttiefe fuer --save-structure
const minSavedDepth = 5

// statsTopN begrenzt die Tensor-Tabelle von --stats
const statsTopN = 10

// InspectHandler - Analysiert die Struktur eines Checkpoints
func InspectHandler(cmd *cobra.Command, args []string) error {
	path := args[0]
	savePath, _ := cmd.Flags().GetString("save-structure")
	showStats, _ := cmd.Flags().GetBool("stats")
	depth, _ := cmd.Flags().GetInt("depth")

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("checkpoint file not found: %s", path)
	}

	ck, err := checkpoint.Load(path)
	if err != nil {
		return fmt.Errorf("error loading checkpoint: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Inspecting checkpoint: %s\n", path)
	fmt.Fprintf(w, "File size: %s\n\n", format.HumanBytes(ck.Size))

	st := checkpoint.Probe(ck)
	if ck.Format == checkpoint.FormatONNX {
		st.Suggestion = "ONNX model - convert it directly, no checkpoint structure to inspect"
	}
	printStructure(w, ck, st, depth)

	info := classify.Classify(path, ck.Root)
	fmt.Fprintf(w, "\nDetected model: %s\n", info)
	if len(info.Classes) > 0 {
		fmt.Fprintf(w, "Classes: %v\n", info.Classes)
	}
	if t := info.Training; !t.Empty() {
		if t.Epoch != nil {
			fmt.Fprintf(w, "Epoch: %d\n", *t.Epoch)
		}
		if t.BestFitness != nil {
			fmt.Fprintf(w, "Best fitness: %.4f\n", *t.BestFitness)
		}
	}

	fmt.Fprintf(w, "\nRecommendation: %s\n", st.Suggestion)

	if showStats {
		printStats(w, ck.Root)
	}

	if savePath != "" {
		if err := saveStructure(savePath, ck.Root, max(depth, minSavedDepth)); err != nil {
			return err
		}
		fmt.Fprintf(w, "\nStructure analysis saved to: %s\n", savePath)
	}
	return nil
}

// printStructure - Top-Level-Schluessel und Modell-Feld
func printStructure(w io.Writer, ck *checkpoint.Checkpoint, st checkpoint.Structure, depth int) {
	fmt.Fprintf(w, "Root type: %s (%s)\n", st.RootKind, st.Shape)

	root := checkpoint.Explore(ck.Root, depth)
	if root.Children != nil && root.Children.Len() > 0 {
		table := newTable(w, "KEY", "TYPE", "DETAILS")
		for pair := root.Children.Oldest(); pair != nil; pair = pair.Next() {
			table.Append([]string{pair.Key, pair.Value.Type, nodeDetails(pair.Value)})
		}
		table.Render()
	}

	if st.ModelKey != "" {
		fmt.Fprintf(w, "\nModel key: '%s' (%s)\n", st.ModelKey, st.ModelKind)
	} else {
		fmt.Fprintln(w, "\nNo model key found")
	}
	if st.TensorCount > 0 {
		fmt.Fprintf(w, "Tensors: %d, parameters: %d, %s\n", st.TensorCount, st.ParamCount, format.HumanBytes(st.TensorBytes))
	}
}

func nodeDetails(n *checkpoint.Node) string {
	switch {
	case len(n.Shape) > 0:
		return fmt.Sprintf("%v %s", n.Shape, n.DType)
	case n.TotalKeys > 0:
		return strconv.Itoa(n.TotalKeys) + " keys"
	case n.Length > 0:
		return strconv.Itoa(n.Length) + " items"
	case n.Value != "":
		return n.Value
	}
	return ""
}

// printStats - fp16-Risiko und groesste Tensoren
func printStats(w io.Writer, root checkpoint.Value) {
	report, all := checkpoint.Quantization(root)

	fmt.Fprintf(w, "\nTensor statistics (%d tensors, %d with data):\n", report.Tensors, report.WithData)
	if report.Tensors == 0 {
		return
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Numel > all[j].Numel })
	if len(all) > statsTopN {
		all = all[:statsTopN]
	}

	table := newTable(w, "NAME", "SHAPE", "MEAN", "STD", "MIN", "MAX", "FP16 OVERFLOW")
	for _, st := range all {
		row := []string{st.Name, fmt.Sprintf("%v", st.Shape), "-", "-", "-", "-", "-"}
		if st.HasData {
			row[2] = strconv.FormatFloat(st.Mean, 'g', 4, 64)
			row[3] = strconv.FormatFloat(st.Std, 'g', 4, 64)
			row[4] = strconv.FormatFloat(st.Min, 'g', 4, 64)
			row[5] = strconv.FormatFloat(st.Max, 'g', 4, 64)
			row[6] = strconv.FormatInt(st.Overflow, 10)
		}
		table.Append(row)
	}
	table.Render()

	fmt.Fprintf(w, "\nFP16 quantization: ")
	if report.Safe() {
		fmt.Fprintf(w, "safe, estimated savings %s\n", format.HumanBytes(report.EstimatedSavings()))
	} else {
		fmt.Fprintf(w, "%d values overflow to Inf, quantization not recommended\n", report.Overflow)
	}
	if report.Underflow > 0 {
		fmt.Fprintf(w, "%d of %d values lose precision (underflow)\n", report.Underflow, report.Values)
	}
}

// saveStructure - Schreibt die Struktur-Analyse als JSON
func saveStructure(path string, root checkpoint.Value, depth int) error {
	data, err := json.MarshalIndent(checkpoint.Explore(root, depth), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
