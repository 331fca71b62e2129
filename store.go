package csrgo

import (
	"fmt"
	"slices"

	"github.com/hupe1980/csrgo/metainfo"
)

// NoComplexIndex marks a store without a complex feature channel.
const NoComplexIndex int32 = -1

// Store is an in-memory CSR dataset.
//
// rowPtr has one more element than there are rows; row i owns
// rowData[rowPtr[i]:rowPtr[i+1]].
type Store struct {
	rowPtr  []uint64
	rowData []Entry
	info    metainfo.Info

	cindex int32
	cmplx  []complex64

	atFirst bool
	batch   Batch

	opts options
}

// New creates an empty store.
func New(optFns ...Option) *Store {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	s := &Store{opts: opts}
	s.Clear()
	return s
}

// Clear resets the store to zero rows, zeroes the metadata and detaches the
// complex feature channel. Outstanding batches become invalid.
func (s *Store) Clear() {
	s.rowData = s.rowData[:0]
	if cap(s.rowPtr) == 0 {
		s.rowPtr = make([]uint64, 1, 64)
	}
	s.rowPtr = s.rowPtr[:1]
	s.rowPtr[0] = 0
	s.info.Clear()
	s.cindex = NoComplexIndex
	s.cmplx = nil
	s.atFirst = true
	s.batch = Batch{}
}

// NumRows returns the number of rows held in the CSR arrays.
func (s *Store) NumRows() int { return len(s.rowPtr) - 1 }

// NumEntries returns the number of stored entries.
func (s *Store) NumEntries() int { return len(s.rowData) }

// RowPtr returns the row offsets. The slice is owned by the store.
func (s *Store) RowPtr() []uint64 { return s.rowPtr }

// RowData returns the flat entry array. The slice is owned by the store.
func (s *Store) RowData() []Entry { return s.rowData }

// Row returns the entries of row i.
func (s *Store) Row(i int) Inst {
	return Inst(s.rowData[s.rowPtr[i]:s.rowPtr[i+1]])
}

// Info returns the store's metadata. Callers may update labels and weights
// in place before saving.
func (s *Store) Info() *metainfo.Info { return &s.info }

// ComplexIndex returns the complex feature marker, or NoComplexIndex.
func (s *Store) ComplexIndex() int32 { return s.cindex }

// ComplexFeatures returns the per-row complex values. The slice is owned by the store.
func (s *Store) ComplexFeatures() []complex64 { return s.cmplx }

// SetComplexFeatures attaches a complex feature channel with one value per row.
// Passing NoComplexIndex with no values detaches the channel.
func (s *Store) SetComplexFeatures(index int32, values []complex64) error {
	if index == NoComplexIndex {
		if len(values) != 0 {
			return newContractViolation("set complex features",
				fmt.Errorf("%d values given without a complex index", len(values)))
		}
		s.cindex = NoComplexIndex
		s.cmplx = nil
		return nil
	}
	if len(values) != s.NumRows() {
		return newContractViolation("set complex features",
			fmt.Errorf("%w: %d values for %d rows", ErrComplexLength, len(values), s.NumRows()))
	}
	s.cindex = index
	s.cmplx = slices.Clone(values)
	return nil
}

// Validate checks the CSR invariants: rowPtr starts at zero, never decreases
// and ends at len(rowData).
func (s *Store) Validate() error {
	return validateCSR(s.rowPtr, len(s.rowData))
}

func validateCSR(rowPtr []uint64, numEntries int) error {
	if len(rowPtr) == 0 {
		return fmt.Errorf("%w: empty row offsets", ErrInconsistentCSR)
	}
	if rowPtr[0] != 0 {
		return fmt.Errorf("%w: first row offset is %d", ErrInconsistentCSR, rowPtr[0])
	}
	for i := 1; i < len(rowPtr); i++ {
		if rowPtr[i] < rowPtr[i-1] {
			return fmt.Errorf("%w: row offset %d decreases (%d < %d)", ErrInconsistentCSR, i, rowPtr[i], rowPtr[i-1])
		}
	}
	if last := rowPtr[len(rowPtr)-1]; last != uint64(numEntries) {
		return fmt.Errorf("%w: last row offset %d, have %d entries", ErrInconsistentCSR, last, numEntries)
	}
	return nil
}

// Equal reports whether two stores hold the same rows, metadata and complex channel.
func (s *Store) Equal(o *Store) bool {
	return s.cindex == o.cindex &&
		slices.Equal(s.rowPtr, o.rowPtr) &&
		slices.Equal(s.rowData, o.rowData) &&
		slices.Equal(s.cmplx, o.cmplx) &&
		s.info.Equal(&o.info)
}
