// MODUL: checkpoint/stats
// ZWECK: Gewichts-Statistik und fp16-Quantisierungsrisiko pro Tensor
// INPUT: Tensoren mit Float-Daten
// OUTPUT: TensorStats, QuantizationReport
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: gonum.org/v1/gonum (stat, floats), github.com/x448/float16
// HINWEISE: Tensoren ohne Daten (Integer-Storages) werden nur gezaehlt

package checkpoint

import (
	"github.com/x448/float16"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TensorStats beschreibt die Werteverteilung eines Tensors.
type TensorStats struct {
	Name      string
	Shape     []int
	DType     string
	Numel     int64
	HasData   bool
	Mean      float64
	Std       float64
	Min       float64
	Max       float64
	Overflow  int64 // Werte, die in fp16 zu Inf werden
	Underflow int64 // Werte ungleich 0, die in fp16 zu 0 oder subnormal werden
}

// Stats berechnet die Statistik eines Tensors.
func Stats(name string, t Tensor) TensorStats {
	st := TensorStats{Name: name, Shape: t.Shape, DType: t.DType, Numel: t.Numel()}

	data := t.Float32s()
	if len(data) == 0 {
		return st
	}
	st.HasData = true

	xs := make([]float64, len(data))
	for i, v := range data {
		xs[i] = float64(v)
		switch float16.PrecisionFromfloat32(v) {
		case float16.PrecisionOverflow:
			st.Overflow++
		case float16.PrecisionUnderflow:
			st.Underflow++
		}
	}

	st.Mean, st.Std = stat.MeanStdDev(xs, nil)
	st.Min = floats.Min(xs)
	st.Max = floats.Max(xs)
	return st
}

// QuantizationReport fasst das fp16-Risiko ueber alle Tensoren zusammen.
type QuantizationReport struct {
	Tensors    int
	WithData   int
	Values     int64
	Overflow   int64
	Underflow  int64
	Float32Raw int64 // Bytes der float32-Tensoren
}

// Safe meldet, ob eine fp16-Quantisierung keine Werte auf Inf abbildet.
func (r QuantizationReport) Safe() bool {
	return r.Overflow == 0
}

// EstimatedSavings schaetzt die Ersparnis einer fp16-Quantisierung in Bytes.
func (r QuantizationReport) EstimatedSavings() int64 {
	return r.Float32Raw / 2
}

// Quantization analysiert alle Tensoren unterhalb von v.
func Quantization(v Value) (QuantizationReport, []TensorStats) {
	var report QuantizationReport
	var all []TensorStats
	for _, nt := range Tensors(v) {
		st := Stats(nt.Name, nt.Tensor)
		all = append(all, st)

		report.Tensors++
		if nt.Tensor.DType == "float32" {
			report.Float32Raw += nt.Tensor.Bytes()
		}
		if st.HasData {
			report.WithData++
			report.Values += int64(len(nt.Tensor.Float32s()))
			report.Overflow += st.Overflow
			report.Underflow += st.Underflow
		}
	}
	return report, all
}
