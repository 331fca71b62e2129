package csrgo

// Batch is a read-only view over a contiguous run of rows.
//
// A batch borrows its slices from the dataset that produced it. It must not
// be modified and is invalid once that dataset is cleared, re-ingested or
// loaded.
type Batch struct {
	// BaseRowID is the global id of the first row in the batch.
	BaseRowID uint64
	// Size is the number of rows in the batch.
	Size int
	// HasComplex reports whether a complex value is attached to every row.
	HasComplex bool

	rowPtr  []uint64
	rowData []Entry
	cmplx   []complex64
}

// NewBatch builds a batch over rowPtr and rowData. rowPtr holds Size+1
// offsets into rowData; cmplx is either empty or holds one value per row.
func NewBatch(baseRowID uint64, rowPtr []uint64, rowData []Entry, cmplx []complex64) Batch {
	size := 0
	if len(rowPtr) > 0 {
		size = len(rowPtr) - 1
	}
	return Batch{
		BaseRowID:  baseRowID,
		Size:       size,
		HasComplex: len(cmplx) > 0,
		rowPtr:     rowPtr,
		rowData:    rowData,
		cmplx:      cmplx,
	}
}

// Row returns the entries of the i-th row of the batch.
func (b Batch) Row(i int) Inst {
	return Inst(b.rowData[b.rowPtr[i]:b.rowPtr[i+1]])
}

// Complex returns the complex value of the i-th row of the batch.
// It panics if the batch has no complex channel.
func (b Batch) Complex(i int) complex64 {
	return b.cmplx[i]
}

// RowPtr returns the borrowed row offsets.
func (b Batch) RowPtr() []uint64 { return b.rowPtr }

// Data returns the borrowed entry array.
func (b Batch) Data() []Entry { return b.rowData }

// RowIterator iterates over the batches of a dataset.
type RowIterator interface {
	// BeforeFirst rewinds the iterator to the first batch.
	BeforeFirst()
	// Next advances to the next batch and reports whether one exists.
	Next() bool
	// Value returns the current batch. It is only meaningful after Next returned true.
	Value() Batch
	// Err returns the error that stopped iteration, if any.
	Err() error
}

var _ RowIterator = (*Store)(nil)

// RowIterator returns the store itself: a store always yields exactly one
// batch spanning every row.
func (s *Store) RowIterator() RowIterator { return s }

// BeforeFirst implements RowIterator.
func (s *Store) BeforeFirst() {
	s.atFirst = true
}

// Next implements RowIterator. It returns true once per BeforeFirst.
func (s *Store) Next() bool {
	if !s.atFirst {
		return false
	}
	s.atFirst = false
	s.batch = NewBatch(0, s.rowPtr, s.rowData, s.cmplx)
	return true
}

// Value implements RowIterator.
func (s *Store) Value() Batch { return s.batch }

// Err implements RowIterator. A store never fails mid-iteration.
func (s *Store) Err() error { return nil }
