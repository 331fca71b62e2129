// Package metainfo holds row-level dataset metadata: shape counters and the
// optional label, weight, margin and grouping sequences.
package metainfo

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/csrgo/persistence"
)

// Version is the binary encoding version written by SaveBinary.
const Version int32 = 1

// ErrUnsupportedVersion is returned when LoadBinary sees an unknown version.
var ErrUnsupportedVersion = errors.New("unsupported metainfo version")

// Info describes a dataset. Sequences are either empty or hold one value per
// row; GroupPtr holds group boundaries and has one more element than groups.
type Info struct {
	NumRow     uint64
	NumCol     uint64
	NumNonzero uint64

	Labels     []float32
	RootIndex  []uint32
	GroupPtr   []uint32
	Weights    []float32
	BaseMargin []float32
}

// Clear resets the info to its zero state.
func (m *Info) Clear() {
	*m = Info{}
}

// Clone returns a deep copy.
func (m *Info) Clone() Info {
	return Info{
		NumRow:     m.NumRow,
		NumCol:     m.NumCol,
		NumNonzero: m.NumNonzero,
		Labels:     slices.Clone(m.Labels),
		RootIndex:  slices.Clone(m.RootIndex),
		GroupPtr:   slices.Clone(m.GroupPtr),
		Weights:    slices.Clone(m.Weights),
		BaseMargin: slices.Clone(m.BaseMargin),
	}
}

// Equal reports whether both infos hold the same counters and sequences.
// Nil and empty sequences compare equal.
func (m *Info) Equal(o *Info) bool {
	return m.NumRow == o.NumRow &&
		m.NumCol == o.NumCol &&
		m.NumNonzero == o.NumNonzero &&
		slices.Equal(m.Labels, o.Labels) &&
		slices.Equal(m.RootIndex, o.RootIndex) &&
		slices.Equal(m.GroupPtr, o.GroupPtr) &&
		slices.Equal(m.Weights, o.Weights) &&
		slices.Equal(m.BaseMargin, o.BaseMargin)
}

// Weight returns the weight of row i, or 1 when no weights are attached.
func (m *Info) Weight(i int) float32 {
	if i < len(m.Weights) {
		return m.Weights[i]
	}
	return 1
}

// SaveBinary writes the info in its versioned binary form.
func (m *Info) SaveBinary(w *persistence.Writer) error {
	if err := w.WriteInt32(Version); err != nil {
		return err
	}
	for _, v := range []uint64{m.NumRow, m.NumCol, m.NumNonzero} {
		if err := w.WriteUint64(v); err != nil {
			return err
		}
	}
	if err := w.WriteFloat32Slice(m.Labels); err != nil {
		return err
	}
	if err := w.WriteUint32Slice(m.RootIndex); err != nil {
		return err
	}
	if err := w.WriteUint32Slice(m.GroupPtr); err != nil {
		return err
	}
	if err := w.WriteFloat32Slice(m.Weights); err != nil {
		return err
	}
	return w.WriteFloat32Slice(m.BaseMargin)
}

// LoadBinary replaces the info with the content read from r.
// On error the receiver is left unchanged.
func (m *Info) LoadBinary(r *persistence.Reader) error {
	version, err := r.ReadInt32()
	if err != nil {
		return fmt.Errorf("metainfo version: %w", err)
	}
	if version != Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	var out Info
	for _, dst := range []*uint64{&out.NumRow, &out.NumCol, &out.NumNonzero} {
		if *dst, err = r.ReadUint64(); err != nil {
			return fmt.Errorf("metainfo counters: %w", err)
		}
	}
	if out.Labels, err = r.ReadFloat32Slice(); err != nil {
		return fmt.Errorf("metainfo labels: %w", err)
	}
	if out.RootIndex, err = r.ReadUint32Slice(); err != nil {
		return fmt.Errorf("metainfo root index: %w", err)
	}
	if out.GroupPtr, err = r.ReadUint32Slice(); err != nil {
		return fmt.Errorf("metainfo group ptr: %w", err)
	}
	if out.Weights, err = r.ReadFloat32Slice(); err != nil {
		return fmt.Errorf("metainfo weights: %w", err)
	}
	if out.BaseMargin, err = r.ReadFloat32Slice(); err != nil {
		return fmt.Errorf("metainfo base margin: %w", err)
	}

	*m = out
	return nil
}
