// Package scan walks the allocation table of a single sector, yielding
// decoded entries lazily in either append order (Oldest) or reverse
// append order (Newest). Torn slots left by interrupted writes are
// skipped silently; the first structurally empty slot bounds the
// written region and ends an Oldest pass.
//
// Mount uses an Oldest pass to rediscover the table write frontier,
// the read path uses Newest passes to find the most recent entry for
// an id, and garbage collection uses Oldest passes to enumerate every
// id a sector still holds.
//
//	s := scan.New(cfg, sector, scan.Newest)
//	for s.Scan() {
//	    e := s.Entry()
//	    // ...
//	}
//	if err := s.Err(); err != nil {
//	    return err
//	}
package scan
