package csrgo

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/csrgo/metainfo"
	"github.com/hupe1980/csrgo/persistence"
)

// Magic identifies the dataset binary format. It is written as the first
// four bytes of every stream; bump it if the layout ever changes.
const Magic uint32 = 0xffffab01

// Save writes the store in the binary format.
//
// When a complex channel is attached it must hold exactly one value per row
// and the metadata row count must match the CSR rows; otherwise Save returns
// a *ContractViolation before writing anything.
func (s *Store) Save(w io.Writer) (err error) {
	start := time.Now()
	bw := persistence.NewWriter(w)
	defer func() {
		elapsed := time.Since(start)
		s.opts.logger.LogSave(bw.BytesWritten(), elapsed, err)
		s.opts.metricsCollector.RecordSave(bw.BytesWritten(), elapsed, err)
	}()

	if s.cindex != NoComplexIndex {
		if s.info.NumRow != uint64(len(s.cmplx)) || s.info.NumRow != uint64(s.NumRows()) {
			return newContractViolation("save", fmt.Errorf("%w: %d values, num_row %d, %d csr rows",
				ErrComplexLength, len(s.cmplx), s.info.NumRow, s.NumRows()))
		}
	}

	if err := bw.WriteUint32(Magic); err != nil {
		return fmt.Errorf("save magic: %w", err)
	}
	if err := bw.WriteInt32(s.cindex); err != nil {
		return fmt.Errorf("save complex index: %w", err)
	}
	if err := s.info.SaveBinary(bw); err != nil {
		return fmt.Errorf("save metainfo: %w", err)
	}
	if err := bw.WriteUint64Slice(s.rowPtr); err != nil {
		return fmt.Errorf("save row offsets: %w", err)
	}
	if err := bw.WritePairs(len(s.rowData), func(i int) (uint32, float32) {
		return s.rowData[i].Index, s.rowData[i].Value
	}); err != nil {
		return fmt.Errorf("save row data: %w", err)
	}

	if s.cindex == NoComplexIndex {
		return nil
	}

	re := make([]float32, len(s.cmplx))
	im := make([]float32, len(s.cmplx))
	for i, c := range s.cmplx {
		re[i], im[i] = real(c), imag(c)
	}
	if err := bw.WriteFloat32Raw(re); err != nil {
		return fmt.Errorf("save complex real parts: %w", err)
	}
	if err := bw.WriteFloat32Raw(im); err != nil {
		return fmt.Errorf("save complex imaginary parts: %w", err)
	}
	return nil
}

// Load replaces the store with a dataset decoded from r.
//
// Malformed input yields a *FormatError. The store is only modified when the
// whole stream decodes; outstanding batches are invalidated on success.
func (s *Store) Load(r io.Reader) (err error) {
	start := time.Now()
	br := persistence.NewReader(r)
	defer func() {
		elapsed := time.Since(start)
		s.opts.logger.LogLoad(br.BytesRead(), s.NumRows(), elapsed, err)
		s.opts.metricsCollector.RecordLoad(br.BytesRead(), elapsed, err)
	}()

	magic, err := br.ReadUint32()
	if err != nil {
		return decodeError("magic", err)
	}
	if magic != Magic {
		return NewFormatError("magic", fmt.Errorf("%w: got 0x%08x, want 0x%08x", ErrMagicMismatch, magic, Magic))
	}

	cindex, err := br.ReadInt32()
	if err != nil {
		return decodeError("complex index", err)
	}

	var info metainfo.Info
	if err := info.LoadBinary(br); err != nil {
		return decodeError("metainfo", err)
	}

	rowPtr, err := br.ReadUint64Slice()
	if err != nil {
		return decodeError("row offsets", err)
	}

	var rowData []Entry
	if _, err := br.ReadPairs(func(k uint32, v float32) {
		rowData = append(rowData, Entry{Index: k, Value: v})
	}); err != nil {
		return decodeError("row data", err)
	}

	if err := validateCSR(rowPtr, len(rowData)); err != nil {
		return NewFormatError("row offsets", err)
	}

	var cmplx []complex64
	if cindex != NoComplexIndex {
		// The complex arrays carry no length; they are sized by num_row, which
		// must agree with the decoded rows.
		if info.NumRow != uint64(len(rowPtr)-1) {
			return NewFormatError("complex features", fmt.Errorf("%w: num_row %d, %d csr rows",
				ErrComplexLength, info.NumRow, len(rowPtr)-1))
		}
		re, err := br.ReadFloat32Raw(int(info.NumRow))
		if err != nil {
			return decodeError("complex real parts", err)
		}
		im, err := br.ReadFloat32Raw(int(info.NumRow))
		if err != nil {
			return decodeError("complex imaginary parts", err)
		}
		cmplx = make([]complex64, len(re))
		for i := range re {
			cmplx[i] = complex(re[i], im[i])
		}
	}

	s.Clear()
	s.rowPtr = rowPtr
	s.rowData = rowData
	s.info = info
	s.cindex = cindex
	s.cmplx = cmplx
	return nil
}

func decodeError(section string, err error) error {
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		return NewFormatError(section, fmt.Errorf("%w: %w", ErrTruncated, err))
	case errors.Is(err, persistence.ErrSequenceTooLong), errors.Is(err, metainfo.ErrUnsupportedVersion):
		return NewFormatError(section, err)
	default:
		return fmt.Errorf("load %s: %w", section, err)
	}
}

// SaveFile atomically writes the store to path.
func (s *Store) SaveFile(path string) error {
	return persistence.SaveToFile(path, s.Save)
}

// LoadFile replaces the store with the dataset stored at path.
func (s *Store) LoadFile(path string) error {
	return persistence.LoadFromFile(path, s.Load)
}

// Open creates a store from the dataset stored at path.
func Open(path string, optFns ...Option) (*Store, error) {
	s := New(optFns...)
	if err := s.LoadFile(path); err != nil {
		return nil, err
	}
	return s, nil
}
