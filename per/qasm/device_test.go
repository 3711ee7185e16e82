package qasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(t *testing.T) *Device {
	t.Helper()
	dev, err := NewDevice("line3", [][2]int{{0, 1}, {1, 2}})
	require.NoError(t, err)
	return dev
}

func TestNewDevice_Validation(t *testing.T) {
	_, err := NewDevice("loop", [][2]int{{1, 1}})
	assert.Error(t, err)
	_, err = NewDevice("neg", [][2]int{{-1, 0}})
	assert.Error(t, err)

	dev := line(t)
	assert.Equal(t, 3, dev.NumQubits())
	assert.True(t, dev.Coupled(1, 0))
	assert.False(t, dev.Coupled(0, 2))
}

func TestSubMap(t *testing.T) {
	dev := line(t)

	edges, err := dev.SubMap([]int{2, 0, 1})

	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 2}, {1, 2}}, edges)

	_, err = dev.SubMap([]int{0, 5})
	assert.Error(t, err)
	_, err = dev.SubMap([]int{1, 1})
	assert.Error(t, err)
}

func TestTranspile_CancelsAdjacentInverses(t *testing.T) {
	c := New(2).
		Append("id", 0).
		Append("x", 0).Append("x", 0).
		Append("cx", 0, 1).Append("cx", 0, 1).
		Append("h", 1)
	c.Barrier()
	c.Append("h", 1).Append("h", 1).Append("s", 0)

	out, err := line(t).Transpile(c, []int{0, 1})

	require.NoError(t, err)
	assert.Equal(t, "[h(1) barrier(0,1) s(0)]", out.(*Circuit).String())
	assert.Equal(t, []int{0, 1}, out.(*Circuit).Layout())
}

func TestTranspile_BarrierBlocksCancellation(t *testing.T) {
	c := New(1).Append("x", 0)
	c.Barrier()
	c.Append("x", 0)

	out, err := line(t).Transpile(c, []int{1})

	require.NoError(t, err)
	assert.Equal(t, "[x(0) barrier(0) x(0)]", out.(*Circuit).String())
}

func TestTranspile_InterleavedGatesDoNotCancel(t *testing.T) {
	c := New(2).Append("cx", 0, 1).Append("h", 1).Append("cx", 0, 1)

	out, err := line(t).Transpile(c, []int{0, 1})

	require.NoError(t, err)
	assert.Len(t, out.(*Circuit).Gates(), 3)
}

func TestTranspile_Errors(t *testing.T) {
	dev := line(t)
	c := New(2).Append("cx", 0, 1)

	_, err := dev.Transpile(c, []int{0, 2})
	assert.Error(t, err, "uncoupled qubits")
	_, err = dev.Transpile(c, []int{0})
	assert.Error(t, err, "short qubit map")
	_, err = dev.Transpile(c, []int{0, 7})
	assert.Error(t, err, "unknown qubit")
}
