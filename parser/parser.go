// Package parser defines the row block stream consumed by dataset ingestion
// and ships two producers: an in-memory SliceParser and a LibSVM text parser.
package parser

// RowBlock is a chunk of rows in block-local CSR form.
//
// Offset has Size+1 elements and indexes into Index and Value. Offsets are
// local to the block but need not start at zero. Value, Label, Weight and QID
// are optional; a nil Value means every entry has value 1.
type RowBlock struct {
	Size   int
	Offset []uint64
	Index  []uint32
	Value  []float32
	Label  []float32
	Weight []float32
	QID    []uint64
}

// NumEntries returns the number of entries covered by the block's offsets.
func (b *RowBlock) NumEntries() int {
	if len(b.Offset) == 0 {
		return 0
	}
	return int(b.Offset[len(b.Offset)-1] - b.Offset[0])
}

// Parser yields row blocks in order.
//
// Next advances to the next block and reports whether one is available.
// Value returns the current block, which stays valid until the following
// call to Next. Err reports the error, if any, that stopped iteration.
type Parser interface {
	Next() bool
	Value() *RowBlock
	Err() error
}

// SliceParser replays a fixed list of blocks.
type SliceParser struct {
	blocks []*RowBlock
	pos    int
}

var _ Parser = (*SliceParser)(nil)

// NewSliceParser creates a parser over blocks.
func NewSliceParser(blocks ...*RowBlock) *SliceParser {
	return &SliceParser{blocks: blocks}
}

// Next implements Parser.
func (p *SliceParser) Next() bool {
	if p.pos >= len(p.blocks) {
		return false
	}
	p.pos++
	return true
}

// Value implements Parser.
func (p *SliceParser) Value() *RowBlock {
	if p.pos == 0 {
		return nil
	}
	return p.blocks[p.pos-1]
}

// Err implements Parser.
func (p *SliceParser) Err() error { return nil }

// Reset rewinds the parser to the first block.
func (p *SliceParser) Reset() { p.pos = 0 }
