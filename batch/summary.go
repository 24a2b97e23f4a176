package batch

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"

	"github.com/laserweed/modelconv/format"
)

const maxErrorWidth = 60

// PrintSummary schreibt die Zusammenfassung eines Laufs nach w.
func (o *Orchestrator) PrintSummary(w io.Writer) {
	succeeded := o.Succeeded()
	failed := len(o.Results) - len(succeeded)

	fmt.Fprintln(w, "Conversion Summary:")
	fmt.Fprintf(w, "   Total models: %d\n", len(o.Results))
	fmt.Fprintf(w, "   Successful:   %d\n", len(succeeded))
	fmt.Fprintf(w, "   Failed:       %d\n", failed)
	fmt.Fprintf(w, "   Total time:   %s\n", format.HumanDuration(o.Elapsed))

	if len(succeeded) > 0 {
		var totalMB, totalTime float64
		var data [][]string
		for _, r := range succeeded {
			totalMB += r.SizeMB
			totalTime += r.ConversionTime
			note := r.Strategy
			if r.Degraded {
				note = strings.TrimSpace(note + " (placeholder)")
			}
			data = append(data, []string{r.Model, r.Type, fmt.Sprintf("%.1f MB", r.SizeMB), fmt.Sprintf("%.1fs", r.ConversionTime), note})
		}

		fmt.Fprintln(w, "\nSuccessfully converted models:")
		o.renderTable(w, []string{"MODEL", "TYPE", "SIZE", "TIME", "NOTE"}, data)

		precision := "FP32"
		if o.opts.Quantize {
			precision = "FP16"
		}
		fmt.Fprintln(w, "\nPerformance:")
		fmt.Fprintf(w, "   Total size:              %.1f MB\n", totalMB)
		fmt.Fprintf(w, "   Average conversion time: %.1fs\n", totalTime/float64(len(succeeded)))
		fmt.Fprintf(w, "   Quantization:            %s\n", precision)
	}

	if failed > 0 {
		var data [][]string
		for _, r := range o.Results {
			if r.Succeeded() {
				continue
			}
			msg := r.Error
			if msg == "" {
				msg = "Unknown error"
			}
			msg = strings.ReplaceAll(msg, "\n", " ")
			data = append(data, []string{r.Model, string(r.Status), runewidth.Truncate(msg, maxErrorWidth, "...")})
		}
		fmt.Fprintln(w, "\nFailed conversions:")
		o.renderTable(w, []string{"MODEL", "STATUS", "ERROR"}, data)
	}
}

func (o *Orchestrator) renderTable(w io.Writer, header []string, data [][]string) {
	if o.opts.PlainSummary {
		for _, row := range data {
			fmt.Fprintf(w, "   - %s\n", strings.Join(row, " | "))
		}
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}
