// Package csrgo builds sparse tabular datasets in compressed sparse row (CSR)
// form and serializes them to a compact binary format.
//
// A Store owns the row offsets, the flat entry array, the row metadata and an
// optional per-row complex feature. It is filled once by one of two ingestion
// paths and then read as a single batch covering every row:
//
//	p := parser.NewLibSVMParser(f)
//	store, err := csrgo.FromParser(p)
//	if err != nil { ... }
//
//	store.BeforeFirst()
//	for store.Next() {
//	    batch := store.Value()
//	    for i := 0; i < batch.Size; i++ {
//	        for _, e := range batch.Row(i) { ... }
//	    }
//	}
//
// # Binary Format
//
// Save and Load use a little-endian layout:
//
//	magic        uint32   0xffffab01
//	cindex       int32    -1 when no complex feature is attached
//	metainfo     versioned metadata block (see package metainfo)
//	row_ptr      uint64 count, then count uint64 offsets
//	row_data     uint64 count, then count (uint32 index, float32 value) pairs
//	complex      only when cindex != -1: num_row float32 real parts,
//	             then num_row float32 imaginary parts
//
// Load never returns a partially decoded store: on error the receiver keeps
// its previous content.
//
// # Concurrency
//
// A Store is not safe for concurrent use. Batches borrow the store's slices
// and become invalid once the store is cleared, re-ingested or loaded.
package csrgo
