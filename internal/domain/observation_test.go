package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariable_ValueAndColumn(t *testing.T) {
	lat := Variable{Name: VarSpecularLat, Shape: []int{3, 2}, Data: []float64{
		10, 11,
		20, 21,
		30, 31,
	}}

	v, err := lat.Value(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 21.0, v)

	col, err := lat.Column(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, col)

	_, err = lat.Value(3, 1)
	require.Error(t, err)
	_, err = lat.Value(0, 3)
	require.Error(t, err)
}

func TestVariable_OneDimensionalIgnoresChannel(t *testing.T) {
	ts := Variable{Name: VarTimestamp, Shape: []int{2}, Data: []float64{5.5, 6.5}}

	col, err := ts.Column(4)
	require.NoError(t, err)
	assert.Equal(t, []float64{5.5, 6.5}, col)
}

func TestVariable_ChannelCube(t *testing.T) {
	// [obs=2][ch=2][delay=2][doppler=2]
	brcs := Variable{Name: VarBRCS, Shape: []int{2, 2, 2, 2}, Data: []float64{
		1, 2, 3, 4, // obs 0 ch 1
		5, 6, 7, 8, // obs 0 ch 2
		9, 10, 11, 12, // obs 1 ch 1
		13, 14, 15, 16, // obs 1 ch 2
	}}

	c, err := brcs.ChannelCube(2, []int{1, 0})
	require.NoError(t, err)
	assert.Equal(t, 2, c.N)
	assert.Equal(t, []float64{13, 14, 15, 16, 5, 6, 7, 8}, c.Data)

	_, err = brcs.ChannelCube(3, []int{0})
	require.Error(t, err)

	_, err = Variable{Name: "x", Shape: []int{2}, Data: []float64{1, 2}}.ChannelCube(1, []int{0})
	require.Error(t, err)
}

func TestObservationBatch_Validate(t *testing.T) {
	ok := ObservationBatch{Variables: map[string]Variable{
		VarSpecularLat: {Name: VarSpecularLat, Shape: []int{2, 4}, Data: make([]float64, 8)},
		VarTimestamp:   {Name: VarTimestamp, Shape: []int{2}, Data: make([]float64, 2)},
	}}
	require.NoError(t, ok.Validate())
	assert.Equal(t, 2, ok.Len())

	mismatch := ObservationBatch{Variables: map[string]Variable{
		VarSpecularLat: {Name: VarSpecularLat, Shape: []int{2, 4}, Data: make([]float64, 8)},
		VarTimestamp:   {Name: VarTimestamp, Shape: []int{3}, Data: make([]float64, 3)},
	}}
	require.Error(t, mismatch.Validate())

	badShape := ObservationBatch{Variables: map[string]Variable{
		VarTimestamp: {Name: VarTimestamp, Shape: []int{3}, Data: make([]float64, 2)},
	}}
	require.Error(t, badShape.Validate())

	assert.Equal(t, 0, ObservationBatch{}.Len())
}
