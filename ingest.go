package csrgo

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/hupe1980/csrgo/metainfo"
	"github.com/hupe1980/csrgo/parser"
)

// Dataset is a source that CopyFromDataset can mirror.
type Dataset interface {
	// Info returns the dataset metadata.
	Info() *metainfo.Info
	// RowIterator returns a rewindable iterator over row batches.
	RowIterator() RowIterator
	// ComplexIndex returns the complex feature marker, or NoComplexIndex.
	ComplexIndex() int32
	// ComplexFeatures returns the per-row complex values.
	ComplexFeatures() []complex64
}

var _ Dataset = (*Store)(nil)

var errSelfCopy = errors.New("cannot copy a store into itself")

// FromDataset creates a store holding a copy of ds.
func FromDataset(ds Dataset, optFns ...Option) (*Store, error) {
	s := New(optFns...)
	if err := s.CopyFromDataset(ds); err != nil {
		return nil, err
	}
	return s, nil
}

// FromParser creates a store from every block p yields.
func FromParser(p parser.Parser, optFns ...Option) (*Store, error) {
	s := New(optFns...)
	if err := s.CopyFromParser(p); err != nil {
		return nil, err
	}
	return s, nil
}

// CopyFromDataset replaces the store content with the rows of ds.
//
// Metadata and the complex feature channel are copied as-is, not recomputed
// from the rows. On error the store is left empty.
func (s *Store) CopyFromDataset(ds Dataset) (err error) {
	if other, ok := ds.(*Store); ok && other == s {
		return newContractViolation("copy from dataset", errSelfCopy)
	}

	start := time.Now()
	defer func() {
		s.finishIngest("dataset", start, err)
	}()

	s.Clear()
	s.info = ds.Info().Clone()
	s.cindex = ds.ComplexIndex()
	s.cmplx = slices.Clone(ds.ComplexFeatures())

	iter := ds.RowIterator()
	iter.BeforeFirst()
	for iter.Next() {
		batch := iter.Value()
		for i := 0; i < batch.Size; i++ {
			inst := batch.Row(i)
			s.rowData = append(s.rowData, inst...)
			s.rowPtr = append(s.rowPtr, s.rowPtr[len(s.rowPtr)-1]+uint64(len(inst)))
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("copy from dataset: %w", err)
	}
	return nil
}

// CopyFromParser replaces the store content with the blocks yielded by p.
//
// Row counts, the column count and the non-zero count are derived from the
// blocks. Labels are appended as they arrive; weights and query groups stay
// aligned with row ids even when only some blocks carry them.
// On error the store is left empty.
func (s *Store) CopyFromParser(p parser.Parser) (err error) {
	start := time.Now()
	defer func() {
		s.finishIngest("parser", start, err)
	}()

	s.Clear()

	groups := groupTracker{}
	for blockNo := 0; p.Next(); blockNo++ {
		block := p.Value()
		if err := checkBlock(block); err != nil {
			return newContractViolation("copy from parser", fmt.Errorf("block %d: %w", blockNo, err))
		}
		if err := s.appendBlock(block, &groups); err != nil {
			return newContractViolation("copy from parser", fmt.Errorf("block %d: %w", blockNo, err))
		}
	}
	if err := p.Err(); err != nil {
		return fmt.Errorf("copy from parser: %w", err)
	}

	if err := groups.finish(&s.info); err != nil {
		return newContractViolation("copy from parser", err)
	}
	s.info.NumNonzero = uint64(len(s.rowData))
	return nil
}

func (s *Store) appendBlock(block *parser.RowBlock, groups *groupTracker) error {
	base := s.info.NumRow
	if block.Label != nil {
		s.info.Labels = append(s.info.Labels, block.Label...)
	}

	// Weights default to 1 for rows that carry none, so the column stays
	// aligned with row ids once any block has produced a weight.
	switch {
	case block.Weight != nil:
		s.info.Weights = padWeights(s.info.Weights, base)
		s.info.Weights = append(s.info.Weights, block.Weight...)
	case len(s.info.Weights) > 0:
		s.info.Weights = padWeights(s.info.Weights, base+uint64(block.Size))
	}

	if err := groups.add(&s.info, base, block.QID); err != nil {
		return err
	}

	s.info.NumRow += uint64(block.Size)

	begin, end := block.Offset[0], block.Offset[block.Size]
	for i := begin; i < end; i++ {
		index := block.Index[i]
		value := float32(1)
		if block.Value != nil {
			value = block.Value[i]
		}
		s.rowData = append(s.rowData, Entry{Index: index, Value: value})
		s.info.NumCol = max(s.info.NumCol, uint64(index)+1)
	}

	// Block offsets are local; rebase each row onto the running global offset.
	top := s.rowPtr[len(s.rowPtr)-1]
	for r := 0; r < block.Size; r++ {
		s.rowPtr = append(s.rowPtr, top+block.Offset[r+1]-begin)
	}
	return nil
}

func padWeights(w []float32, n uint64) []float32 {
	for uint64(len(w)) < n {
		w = append(w, 1)
	}
	return w
}

func checkBlock(b *parser.RowBlock) error {
	if b == nil {
		return fmt.Errorf("%w: nil block", ErrMalformedBlock)
	}
	if b.Index == nil {
		return ErrMissingIndex
	}
	if b.Size < 0 || len(b.Offset) != b.Size+1 {
		return fmt.Errorf("%w: %d offsets for %d rows", ErrMalformedBlock, len(b.Offset), b.Size)
	}
	for i := 1; i < len(b.Offset); i++ {
		if b.Offset[i] < b.Offset[i-1] {
			return fmt.Errorf("%w: offset %d decreases", ErrMalformedBlock, i)
		}
	}
	end := b.Offset[b.Size]
	if end > uint64(len(b.Index)) {
		return fmt.Errorf("%w: offsets reach %d, index has %d", ErrMalformedBlock, end, len(b.Index))
	}
	if b.Value != nil && end > uint64(len(b.Value)) {
		return fmt.Errorf("%w: offsets reach %d, value has %d", ErrMalformedBlock, end, len(b.Value))
	}
	for _, col := range []struct {
		name string
		n    int
	}{{"label", len(b.Label)}, {"weight", len(b.Weight)}, {"qid", len(b.QID)}} {
		if col.n != 0 && col.n != b.Size {
			return fmt.Errorf("%w: %d %s values for %d rows", ErrMalformedBlock, col.n, col.name, b.Size)
		}
	}
	return nil
}

// groupTracker turns per-row query ids into group boundaries: a new group
// starts whenever the query id changes between consecutive rows. Rows from
// blocks without query ids continue the current group.
type groupTracker struct {
	seen bool
	last uint64
}

var errTooManyGroupRows = errors.New("row count exceeds the uint32 group pointer range")

// maxGroupRow is the largest row id a group boundary can hold.
var maxGroupRow uint64 = math.MaxUint32

func (g *groupTracker) boundary(row uint64) (uint32, error) {
	if row > maxGroupRow {
		return 0, fmt.Errorf("%w: row %d", errTooManyGroupRows, row)
	}
	return uint32(row), nil
}

// add records the query ids of the rows starting at row id base.
func (g *groupTracker) add(info *metainfo.Info, base uint64, qids []uint64) error {
	if len(qids) == 0 {
		return nil
	}
	for i, qid := range qids {
		if g.seen && qid == g.last {
			continue
		}
		row := base + uint64(i)
		if !g.seen && row > 0 {
			// Rows before the first query id form one leading group.
			info.GroupPtr = append(info.GroupPtr, 0)
		}
		b, err := g.boundary(row)
		if err != nil {
			return err
		}
		info.GroupPtr = append(info.GroupPtr, b)
		g.seen = true
		g.last = qid
	}
	return nil
}

func (g *groupTracker) finish(info *metainfo.Info) error {
	if !g.seen {
		return nil
	}
	end, err := g.boundary(info.NumRow)
	if err != nil {
		return err
	}
	if end > info.GroupPtr[len(info.GroupPtr)-1] {
		info.GroupPtr = append(info.GroupPtr, end)
	}
	return nil
}

func (s *Store) finishIngest(source string, start time.Time, err error) {
	elapsed := time.Since(start)
	logger := s.opts.logger.WithSource(source)
	if err != nil {
		rows := s.NumRows()
		s.Clear()
		logger.LogIngest(&s.info, rows, elapsed, err)
		s.opts.metricsCollector.RecordIngest(0, 0, elapsed, err)
		return
	}
	logger.LogIngest(&s.info, s.NumRows(), elapsed, nil)
	s.opts.metricsCollector.RecordIngest(s.NumRows(), len(s.rowData), elapsed, nil)
}
