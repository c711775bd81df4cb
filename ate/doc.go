// Package ate implements the on-media codec for allocation table
// entries: the fixed 12-byte records that describe where each stored
// value lives inside a sector. Entries carry a CRC32 over their id,
// offset and length fields so that a write interrupted by power loss
// is indistinguishable from an unwritten slot and gets skipped during
// scans instead of being surfaced as corruption.
//
// Two id values are reserved for sector bookkeeping: CloseID finalizes
// a sector, CycleID tags a sector with its ring generation. Everything
// else up to MaxID is available to clients.
//
// Basic usage:
//
//	buf := ate.Encode(nil, ate.Entry{ID: 7, Off: 0, Len: 5})
//
//	e, err := ate.Decode(buf)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("id=%d len=%d\n", e.ID, e.Len)
//
// The package also defines Addr, the packed sector:offset form used
// throughout the engine to address table slots and data bytes.
package ate
