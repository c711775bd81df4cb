// Package nvs implements a log-structured key/value store for raw
// flash and flash-like media (EEPROM, image files, RAM simulators).
// Records are identified by a small integer id, may be rewritten
// arbitrarily often, and survive power loss at any instant: a write
// that did not complete is indistinguishable from one that never
// happened.
//
// The storage region is a ring of fixed-size sectors. Within the
// active sector, record data grows up from the sector start while
// fixed-size allocation table entries grow down from the sector end;
// the gap between the two frontiers is the free space. When a sector
// fills, the engine closes it, activates the next (always-free)
// sector, migrates the still-live entries out of the oldest sector and
// erases it. Rotation spreads erases evenly across the ring, which is
// what levels wear on real flash.
//
// Basic usage:
//
//	dev := mem.New(4*1024, device.Parameters{WriteBlockSize: 4, EraseValue: 0xFF})
//	fs, err := nvs.New(dev, dev.Params(), 1024, 4, nvs.WithLookupCache(64))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if _, err := fs.Write(1, []byte("hello")); err != nil {
//	    log.Fatal(err)
//	}
//
//	buf := make([]byte, 32)
//	n, err := fs.Read(1, buf)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(string(buf[:n]))
//
// Old versions of an id remain readable through ReadHist until ring
// rotation reclaims their sector; history is unbounded but lossy.
// Deleting an id appends a tombstone through the same write path.
//
// All public operations serialize on one exclusive lock; the engine
// spawns no goroutines and performs no retries.
package nvs
