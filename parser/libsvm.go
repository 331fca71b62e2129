package parser

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultBlockRows is the number of rows per block used by LibSVMParser.
const DefaultBlockRows = 256

// SyntaxError reports a malformed LibSVM line.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("libsvm: line %d: %s", e.Line, e.Msg)
}

// LibSVMParser reads the LibSVM text format:
//
//	label[:weight] [qid:N] index[:value] index[:value] ...
//
// Text after '#' is a comment and blank lines are skipped. A feature without
// an explicit value has value 1. Each block holds up to BlockRows rows.
type LibSVMParser struct {
	sc        *bufio.Scanner
	blockRows int
	line      int
	block     RowBlock
	hasWeight bool
	hasQID    bool
	err       error
	done      bool
}

var _ Parser = (*LibSVMParser)(nil)

// LibSVMOptions configures a LibSVMParser.
type LibSVMOptions struct {
	// BlockRows is the maximum number of rows per block.
	// Default: DefaultBlockRows.
	BlockRows int
	// MaxLineBytes bounds the length of a single line.
	// Default: 1MB.
	MaxLineBytes int
}

// NewLibSVMParser creates a parser reading from r.
func NewLibSVMParser(r io.Reader, optFns ...func(o *LibSVMOptions)) *LibSVMParser {
	opts := LibSVMOptions{
		BlockRows:    DefaultBlockRows,
		MaxLineBytes: 1 << 20,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BlockRows <= 0 {
		opts.BlockRows = DefaultBlockRows
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), max(opts.MaxLineBytes, 64*1024))

	return &LibSVMParser{
		sc:        sc,
		blockRows: opts.BlockRows,
	}
}

// Next implements Parser.
func (p *LibSVMParser) Next() bool {
	if p.done {
		return false
	}
	p.resetBlock()

	for p.block.Size < p.blockRows && p.sc.Scan() {
		p.line++
		if err := p.parseLine(p.sc.Text()); err != nil {
			p.err = err
			p.done = true
			return false
		}
	}
	if err := p.sc.Err(); err != nil {
		p.err = err
		p.done = true
		return false
	}
	if p.block.Size == 0 {
		p.done = true
		return false
	}
	p.finishBlock()
	return true
}

// Value implements Parser.
func (p *LibSVMParser) Value() *RowBlock { return &p.block }

// Err implements Parser.
func (p *LibSVMParser) Err() error { return p.err }

func (p *LibSVMParser) resetBlock() {
	p.block = RowBlock{
		Offset: []uint64{0},
		Index:  []uint32{},
		Value:  []float32{},
	}
	p.hasWeight = false
	p.hasQID = false
}

// finishBlock drops optional columns that no row in the block carried.
func (p *LibSVMParser) finishBlock() {
	if !p.hasWeight {
		p.block.Weight = nil
	}
	if !p.hasQID {
		p.block.QID = nil
	}
}

func (p *LibSVMParser) parseLine(line string) error {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	label, weight, hasWeight, err := parseLabel(fields[0])
	if err != nil {
		return &SyntaxError{Line: p.line, Msg: err.Error()}
	}
	fields = fields[1:]

	var qid uint64
	hasQID := false
	if len(fields) > 0 && strings.HasPrefix(fields[0], "qid:") {
		qid, err = strconv.ParseUint(fields[0][4:], 10, 64)
		if err != nil {
			return &SyntaxError{Line: p.line, Msg: fmt.Sprintf("invalid qid %q", fields[0])}
		}
		hasQID = true
		fields = fields[1:]
	}

	for _, f := range fields {
		idxStr, valStr, hasVal := strings.Cut(f, ":")
		idx, err := strconv.ParseUint(idxStr, 10, 32)
		if err != nil {
			return &SyntaxError{Line: p.line, Msg: fmt.Sprintf("invalid feature index %q", idxStr)}
		}
		val := float32(1)
		if hasVal {
			v, err := strconv.ParseFloat(valStr, 32)
			if err != nil {
				return &SyntaxError{Line: p.line, Msg: fmt.Sprintf("invalid feature value %q", valStr)}
			}
			val = float32(v)
		}
		p.block.Index = append(p.block.Index, uint32(idx))
		p.block.Value = append(p.block.Value, val)
	}

	p.block.Label = append(p.block.Label, label)
	p.block.Weight = append(p.block.Weight, weight)
	p.block.QID = append(p.block.QID, qid)
	p.hasWeight = p.hasWeight || hasWeight
	p.hasQID = p.hasQID || hasQID
	p.block.Offset = append(p.block.Offset, uint64(len(p.block.Index)))
	p.block.Size++
	return nil
}

func parseLabel(s string) (label, weight float32, hasWeight bool, err error) {
	labelStr, weightStr, hasWeight := strings.Cut(s, ":")
	l, err := strconv.ParseFloat(labelStr, 32)
	if err != nil {
		return 0, 0, false, fmt.Errorf("invalid label %q", labelStr)
	}
	weight = 1
	if hasWeight {
		w, err := strconv.ParseFloat(weightStr, 32)
		if err != nil {
			return 0, 0, false, fmt.Errorf("invalid weight %q", weightStr)
		}
		weight = float32(w)
	}
	return float32(l), weight, hasWeight, nil
}
