package checkpoint

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats(t *testing.T) {
	st := Stats("w", NewTensor("float32", []int{4}, []float32{1, 2, 3, 100000}))
	require.True(t, st.HasData)
	assert.InDelta(t, 25001.5, st.Mean, 1e-9)
	assert.Equal(t, 1.0, st.Min)
	assert.Equal(t, 100000.0, st.Max)
	assert.Equal(t, int64(1), st.Overflow, "100000 liegt ueber fp16-Maximum 65504")
	assert.Zero(t, st.Underflow)
}

func TestStatsWithoutData(t *testing.T) {
	st := Stats("idx", NewTensor("int64", []int{3, 2}, nil))
	assert.False(t, st.HasData)
	assert.Equal(t, int64(6), st.Numel)
	assert.True(t, math.Abs(st.Mean) == 0)
}

func TestQuantization(t *testing.T) {
	root := MappingOf("state_dict", MappingOf(
		"a", NewTensor("float32", []int{2}, []float32{1e-9, 0.5}),
		"b", NewTensor("float32", []int{2}, []float32{7e4, -7e4}),
		"c", NewTensor("int64", []int{8}, nil),
	))

	report, all := Quantization(root)
	require.Len(t, all, 3)
	assert.Equal(t, 3, report.Tensors)
	assert.Equal(t, 2, report.WithData)
	assert.Equal(t, int64(4), report.Values)
	assert.Equal(t, int64(2), report.Overflow)
	assert.Equal(t, int64(1), report.Underflow)
	assert.False(t, report.Safe())
	assert.Equal(t, int64(8), report.EstimatedSavings())
}

func TestExploreKeepsOrder(t *testing.T) {
	root := MappingOf(
		"model", module(),
		"epoch", Scalar{V: int64(5)},
		"names", Sequence{Scalar{V: "crop"}, Scalar{V: "weed"}},
		"w", NewTensor("float32", []int{1024, 256}, nil),
	)

	node := Explore(root, 3)
	require.NotNil(t, node.Children)
	assert.Equal(t, 4, node.TotalKeys)

	data, err := json.Marshal(node)
	require.NoError(t, err)

	var decoded struct {
		Type      string                     `json:"type"`
		Structure map[string]json.RawMessage `json:"structure"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Dict", decoded.Type)
	assert.Len(t, decoded.Structure, 4)

	w, _ := node.Children.Get("w")
	assert.Equal(t, "Tensor", w.Type)
	assert.InDelta(t, 1.0, w.SizeMB, 1e-9)

	names, _ := node.Children.Get("names")
	assert.Equal(t, 2, names.Length)
	assert.Equal(t, "[crop weed]", names.Sample)
}

func TestExploreDepthLimit(t *testing.T) {
	root := MappingOf("a", MappingOf("b", MappingOf("c", Scalar{V: int64(1)})))
	node := Explore(root, 2)

	a, ok := node.Children.Get("a")
	require.True(t, ok)
	assert.True(t, a.Truncated)
	assert.Nil(t, a.Children)
}
