package csrgo

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/csrgo/codec"
)

// ColumnSet returns the set of column indices that hold at least one entry.
func (s *Store) ColumnSet() *roaring.Bitmap {
	rb := roaring.New()
	if len(s.rowData) == 0 {
		return rb
	}
	buf := make([]uint32, 0, min(len(s.rowData), 4096))
	for _, e := range s.rowData {
		buf = append(buf, e.Index)
		if len(buf) == cap(buf) {
			rb.AddMany(buf)
			buf = buf[:0]
		}
	}
	rb.AddMany(buf)
	rb.RunOptimize()
	return rb
}

// Summary describes the shape of a store.
type Summary struct {
	Rows            uint64  `json:"rows"`
	Cols            uint64  `json:"cols"`
	NonZero         uint64  `json:"nonzero"`
	DistinctColumns uint64  `json:"distinct_columns"`
	Density         float64 `json:"density"`
	HasLabels       bool    `json:"has_labels"`
	HasWeights      bool    `json:"has_weights"`
	TotalWeight     float64 `json:"total_weight"`
	Groups          int     `json:"groups"`
	ComplexIndex    int32   `json:"complex_index"`
	HasComplex      bool    `json:"has_complex"`
}

// Summary computes the store's summary from its metadata and entries.
func (s *Store) Summary() Summary {
	sum := Summary{
		Rows:            uint64(s.NumRows()),
		Cols:            s.info.NumCol,
		NonZero:         uint64(len(s.rowData)),
		DistinctColumns: s.ColumnSet().GetCardinality(),
		HasLabels:       len(s.info.Labels) > 0,
		HasWeights:      len(s.info.Weights) > 0,
		ComplexIndex:    s.cindex,
		HasComplex:      len(s.cmplx) > 0,
	}
	// Rows without attached weights count as 1.
	for i := range s.NumRows() {
		sum.TotalWeight += float64(s.info.Weight(i))
	}
	if n := len(s.info.GroupPtr); n > 1 {
		sum.Groups = n - 1
	}
	if cells := float64(sum.Rows) * float64(sum.Cols); cells > 0 {
		sum.Density = float64(sum.NonZero) / cells
	}
	return sum
}

// Marshal encodes the summary with c, or codec.Default when c is nil.
func (sum Summary) Marshal(c codec.Codec) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}
	return c.Marshal(sum)
}
