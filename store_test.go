package csrgo

import (
	"errors"
	"testing"

	"github.com/hupe1980/csrgo/metainfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_NewIsEmpty(t *testing.T) {
	s := New()
	assert.Equal(t, []uint64{0}, s.RowPtr())
	assert.Empty(t, s.RowData())
	assert.Equal(t, 0, s.NumRows())
	assert.Equal(t, NoComplexIndex, s.ComplexIndex())
	assert.Equal(t, metainfo.Info{}, *s.Info())
	require.NoError(t, s.Validate())
}

func TestStore_Clear(t *testing.T) {
	s := sampleStore(t)
	require.NoError(t, s.SetComplexFeatures(1, []complex64{1, 2, 3}))
	require.True(t, s.Next())

	s.Clear()
	assert.Equal(t, []uint64{0}, s.RowPtr())
	assert.Empty(t, s.RowData())
	assert.Equal(t, metainfo.Info{}, *s.Info())
	assert.Equal(t, NoComplexIndex, s.ComplexIndex())
	assert.Empty(t, s.ComplexFeatures())
	assert.True(t, s.Next(), "clear rewinds the iterator")
}

func TestStore_Row(t *testing.T) {
	s := sampleStore(t)
	assert.Equal(t, Inst{{1, 1}, {3, 1}}, s.Row(0))
	assert.Equal(t, Inst{{0, 5}}, s.Row(2))
	assert.Equal(t, 4, s.NumEntries())
}

func TestStore_SetComplexFeatures(t *testing.T) {
	s := sampleStore(t)

	err := s.SetComplexFeatures(1, []complex64{1})
	var cv *ContractViolation
	require.True(t, errors.As(err, &cv))
	assert.ErrorIs(t, err, ErrComplexLength)

	err = s.SetComplexFeatures(NoComplexIndex, []complex64{1, 2, 3})
	require.True(t, errors.As(err, &cv))

	values := []complex64{1, 2, 3}
	require.NoError(t, s.SetComplexFeatures(4, values))
	values[0] = 9
	assert.Equal(t, complex64(1), s.ComplexFeatures()[0], "values are copied")
}

func TestValidateCSR(t *testing.T) {
	tests := []struct {
		name    string
		rowPtr  []uint64
		entries int
		ok      bool
	}{
		{"empty store", []uint64{0}, 0, true},
		{"valid", []uint64{0, 2, 2, 5}, 5, true},
		{"no offsets", nil, 0, false},
		{"non-zero origin", []uint64{1, 2}, 2, false},
		{"decreasing", []uint64{0, 3, 2}, 2, false},
		{"tail mismatch", []uint64{0, 1}, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCSR(tt.rowPtr, tt.entries)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInconsistentCSR)
		})
	}
}

func TestStore_Equal(t *testing.T) {
	a, b := sampleStore(t), sampleStore(t)
	assert.True(t, a.Equal(b))

	b.Info().Labels[0] = 5
	assert.False(t, a.Equal(b))
}

func TestErrors_Messages(t *testing.T) {
	fe := NewFormatError("magic", ErrMagicMismatch)
	assert.Equal(t, "invalid dataset format: magic: magic number mismatch", fe.Error())
	assert.ErrorIs(t, fe, ErrMagicMismatch)

	cv := newContractViolation("save", ErrComplexLength)
	assert.Contains(t, cv.Error(), "contract violation in save")
	assert.ErrorIs(t, cv, ErrComplexLength)
}
