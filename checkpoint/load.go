// MODUL: checkpoint/load
// ZWECK: Laedt Checkpoint-Dateien (.ckpt, .pt, .pth) ueber gopickle in einen Value-Baum
// INPUT: Dateipfad
// OUTPUT: *Checkpoint (Pfad, Format, Root-Value)
// NEBENEFFEKTE: Liest die Datei komplett in den Speicher
// ABHAENGIGKEITEN: github.com/nlpodyssey/gopickle (pickle, pytorch, types)
// HINWEISE: Unbekannte Python-Klassen werden als Object abgebildet statt den Ladevorgang abzubrechen

package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
)

// Format ist das Serialisierungsformat einer Eingabedatei.
type Format string

const (
	FormatCheckpoint Format = "checkpoint" // .ckpt, .pth: Trainings-Checkpoint
	FormatTorch      Format = "torch"      // .pt: exportierbares Modell-Archiv
	FormatONNX       Format = "onnx"
)

// Fehler-Definitionen
var (
	ErrUnsupportedFormat = errors.New("nicht unterstuetztes format")
	ErrNotFound          = errors.New("checkpoint nicht gefunden")
)

// Extensions listet die unterstuetzten Dateiendungen in Scan-Reihenfolge.
var Extensions = []string{".ckpt", ".pt", ".onnx"}

// Checkpoint ist ein geladener, unveraenderlicher Checkpoint.
type Checkpoint struct {
	Path   string
	Format Format
	Root   Value
	Size   int64
}

// FormatOf bestimmt das Format anhand der Dateiendung.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ckpt", ".pth":
		return FormatCheckpoint, true
	case ".pt":
		return FormatTorch, true
	case ".onnx":
		return FormatONNX, true
	}
	return "", false
}

// Load laedt eine Checkpoint-Datei. ONNX-Dateien werden nicht entpickelt (Root = None).
func Load(path string) (ck *Checkpoint, err error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}

	ck = &Checkpoint{Path: path, Format: format, Root: None{}, Size: fi.Size()}
	if format == FormatONNX {
		return ck, nil
	}

	// gopickle kann bei kaputten Archiven paniken
	defer func() {
		if r := recover(); r != nil {
			ck, err = nil, fmt.Errorf("checkpoint laden %s: %v", filepath.Base(path), r)
		}
	}()

	raw, err := pytorch.LoadWithUnpickler(path, func(r io.Reader) pickle.Unpickler {
		u := pickle.NewUnpickler(r)
		u.FindClass = resolveClass
		return u
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint laden %s: %w", filepath.Base(path), err)
	}

	ck.Root = FromPickle(raw)
	return ck, nil
}

// ============================================================================
// Klassen-Aufloesung
// ============================================================================

// resolveClass wird fuer alle Klassen aufgerufen, die weder pickle noch
// gopickle/pytorch selbst kennen (models.yolo.Model, numpy Skalare, ...).
func resolveClass(module, name string) (interface{}, error) {
	if module == "torch._utils" && name == "_rebuild_parameter" {
		return rebuildParameter{}, nil
	}
	return &pyClass{module: module, name: name}, nil
}

type rebuildParameter struct{}

// Call entpackt torch.nn.Parameter zum eigentlichen Tensor
func (rebuildParameter) Call(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, errors.New("_rebuild_parameter ohne argumente")
	}
	return args[0], nil
}

type pyClass struct {
	module, name string
}

func (c *pyClass) Call(args ...interface{}) (interface{}, error) {
	return &pyObject{class: c, args: args}, nil
}

func (c *pyClass) PyNew(args ...interface{}) (interface{}, error) {
	return &pyObject{class: c, args: args}, nil
}

// pyObject ist eine Instanz einer unbekannten Klasse. BUILD landet in PySetState,
// SETITEMS (dict-Unterklassen) in Set.
type pyObject struct {
	class *pyClass
	args  []interface{}
	state interface{}
	items []interface{}
}

var (
	_ types.PyStateSettable = (*pyObject)(nil)
	_ types.DictSetter      = (*pyObject)(nil)
)

// PySetState uebernimmt den __setstate__-State. Ein (dict, slots)-Tupel wird
// zu einem dict zusammengefuehrt.
func (o *pyObject) PySetState(state interface{}) error {
	if t, ok := state.(*types.Tuple); ok && t.Len() == 2 {
		merged := types.NewDict()
		for _, part := range []interface{}{t.Get(0), t.Get(1)} {
			if d, ok := part.(*types.Dict); ok {
				for _, e := range *d {
					merged.Set(e.Key, e.Value)
				}
			}
		}
		state = merged
	}
	o.state = state
	return nil
}

func (o *pyObject) Set(key, value interface{}) {
	o.items = append(o.items, key, value)
}

// ============================================================================
// Umwandlung gopickle -> Value
// ============================================================================

// FromPickle wandelt einen von gopickle gelieferten Wert in einen Value um.
func FromPickle(v interface{}) Value {
	return fromPickle(v, 0)
}

func fromPickle(v interface{}, depth int) Value {
	if depth > maxDepth {
		return Opaque{GoType: "max-depth"}
	}

	switch x := v.(type) {
	case nil:
		return None{}
	case bool:
		return Scalar{V: x}
	case int:
		return Scalar{V: int64(x)}
	case int64:
		return Scalar{V: x}
	case *big.Int:
		if x.IsInt64() {
			return Scalar{V: x.Int64()}
		}
		return Scalar{V: x.String()}
	case float64:
		return Scalar{V: x}
	case float32:
		return Scalar{V: float64(x)}
	case string:
		return Scalar{V: x}
	case *pytorch.Tensor:
		return tensorFromTorch(x)
	case *types.Dict:
		m := NewMapping()
		for _, k := range x.Keys() {
			m.Set(keyString(k), fromPickle(x.MustGet(k), depth+1))
		}
		return m
	case *types.OrderedDict:
		m := NewMapping()
		for e := x.List.Front(); e != nil; e = e.Next() {
			entry, ok := e.Value.(*types.OrderedDictEntry)
			if !ok {
				continue
			}
			m.Set(keyString(entry.Key), fromPickle(entry.Value, depth+1))
		}
		return m
	case *types.List:
		seq := make(Sequence, 0, len(*x))
		for _, item := range *x {
			seq = append(seq, fromPickle(item, depth+1))
		}
		return seq
	case *types.Tuple:
		seq := make(Sequence, 0, len(*x))
		for _, item := range *x {
			seq = append(seq, fromPickle(item, depth+1))
		}
		return seq
	case *pyObject:
		return objectFromPickle(x, depth)
	case *pyClass:
		return Scalar{V: x.module + "." + x.name}
	}

	return Opaque{GoType: fmt.Sprintf("%T", v)}
}

func objectFromPickle(o *pyObject, depth int) Value {
	obj := &Object{Class: o.class.module + "." + o.class.name}
	for _, a := range o.args {
		obj.Args = append(obj.Args, fromPickle(a, depth+1))
	}

	switch {
	case o.state != nil:
		obj.State = fromPickle(o.state, depth+1)
	case len(o.items) > 0:
		m := NewMapping()
		for i := 0; i+1 < len(o.items); i += 2 {
			m.Set(keyString(o.items[i]), fromPickle(o.items[i+1], depth+1))
		}
		obj.State = m
	default:
		obj.State = None{}
	}

	// Unterklassen von dict (z.B. OrderedDict-Varianten) wie Mappings behandeln
	if m, ok := obj.State.(*Mapping); ok && len(o.items) > 0 && o.state == nil {
		return m
	}
	return obj
}

func tensorFromTorch(t *pytorch.Tensor) Tensor {
	out := Tensor{Shape: append([]int(nil), t.Size...)}
	n := int(out.Numel())

	switch s := t.Source.(type) {
	case *pytorch.FloatStorage:
		out.DType = "float32"
		out.data = window(s.Data, t.StorageOffset, n)
	case *pytorch.HalfStorage:
		out.DType = "float16"
		out.data = window(s.Data, t.StorageOffset, n)
	case *pytorch.BFloat16Storage:
		out.DType = "bfloat16"
		out.data = window(s.Data, t.StorageOffset, n)
	case *pytorch.DoubleStorage:
		out.DType = "float64"
	case *pytorch.LongStorage:
		out.DType = "int64"
	case *pytorch.IntStorage:
		out.DType = "int32"
	case *pytorch.ShortStorage:
		out.DType = "int16"
	case *pytorch.CharStorage:
		out.DType = "int8"
	case *pytorch.ByteStorage:
		out.DType = "uint8"
	case *pytorch.BoolStorage:
		out.DType = "bool"
	default:
		out.DType = "unknown"
	}
	return out
}

// window schneidet die Elemente eines zusammenhaengenden Tensors aus dem Storage.
func window(data []float32, offset, n int) []float32 {
	if offset < 0 || n < 0 || offset+n > len(data) {
		return nil
	}
	return data[offset : offset+n]
}

func keyString(k interface{}) string {
	switch x := k.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case *big.Int:
		return x.String()
	}
	return fmt.Sprint(k)
}
