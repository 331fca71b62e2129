package csrgo

// Entry is one non-zero cell: a column index and its value.
type Entry struct {
	Index uint32
	Value float32
}

// Inst is the entries of a single row, in ingestion order.
type Inst []Entry
