package nvs

import (
	"errors"
	"fmt"

	"github.com/sectorfs/nvs/ate"
	"github.com/sectorfs/nvs/scan"
)

// sectorState is the decoded marker pair of one sector at mount time.
type sectorState struct {
	// cycleValid is set when the cycle slot holds a well-formed cycle
	// marker; cycle is then its ring generation.
	cycleValid bool
	cycle      uint16

	// closed is set when the close slot is non-empty at all. A torn
	// close marker still closes the sector; the table boundary then
	// comes from scanning instead of the marker's Off field.
	closed bool
}

// newerCycle compares ring generations with serial arithmetic so the
// counter survives wraparound.
func newerCycle(a, b uint16) bool {
	return int16(a-b) > 0
}

func (fs *FS) readSectorState(sector uint16) (sectorState, error) {
	var st sectorState
	cfg := fs.scanCfg()

	e, empty, err := scan.ReadSlot(cfg, sector, ate.CycleSlotOff(fs.sectorSize))
	if err != nil && !errors.Is(err, ate.ErrChecksum) {
		return st, err
	}
	if err == nil && !empty && e.ID == ate.CycleID {
		st.cycleValid = true
		st.cycle = e.Off
	}

	_, empty, err = scan.ReadSlot(cfg, sector, ate.CloseSlotOff(fs.sectorSize))
	if err != nil && !errors.Is(err, ate.ErrChecksum) {
		return st, err
	}
	if err != nil || !empty {
		st.closed = true
	}
	return st, nil
}

// mount determines the active sector and both write frontiers,
// repairing whatever a crash left behind. Callers hold fs.mu.
func (fs *FS) mount() error {
	states := make([]sectorState, fs.sectorCount)
	for s := uint16(0); s < fs.sectorCount; s++ {
		st, err := fs.readSectorState(s)
		if err != nil {
			return err
		}
		states[s] = st
	}

	// The active sector carries a valid cycle marker and no close
	// marker. After a crash two sectors can look active; the cycle
	// counter breaks the tie and the loser is reclaimed later like any
	// closed sector.
	active := -1
	for s := range states {
		if !states[s].cycleValid || states[s].closed {
			continue
		}
		if active < 0 || newerCycle(states[s].cycle, states[active].cycle) {
			active = s
		}
	}

	switch {
	case active >= 0:
		fs.cycle = states[active].cycle
		if err := fs.recoverFrontiers(uint16(active)); err != nil {
			return err
		}

	default:
		// No active sector: either the region was never initialized,
		// or power was lost between closing one sector and activating
		// the next.
		newest := -1
		for s := range states {
			if !states[s].closed || !states[s].cycleValid {
				continue
			}
			if newest < 0 || newerCycle(states[s].cycle, states[newest].cycle) {
				newest = s
			}
		}
		if newest < 0 {
			// A closed sector without a readable cycle marker cannot
			// be ordered in the ring; anything else is content-free,
			// because activation precedes every data write.
			for s := range states {
				if states[s].closed {
					return fmt.Errorf("%w: closed sector %d has no cycle marker", ErrCorrupt, s)
				}
			}
			return fs.format()
		}
		next := fs.nextSector(uint16(newest))
		if states[next].closed {
			return fmt.Errorf("%w: no free sector follows sector %d", ErrCorrupt, newest)
		}
		if err := fs.eraseIfDirty(next); err != nil {
			return err
		}
		if err := fs.activate(next, states[newest].cycle+1); err != nil {
			return err
		}
	}

	// The sector following the active one must be free. Content there
	// means a compaction was interrupted: replay the migration (copies
	// that already landed are no longer the newest occurrence, so the
	// replay drops them) and finish the erase.
	next := fs.nextSector(fs.ateWra.Sector())
	erased, err := fs.sectorErased(next)
	if err != nil {
		return err
	}
	if !erased {
		if err := fs.migrate(next); err != nil {
			return err
		}
		if err := fs.dev.Erase(fs.sectorBase(next), int64(fs.sectorSize)); err != nil {
			return fmt.Errorf("nvs: erase sector %d: %w", next, err)
		}
	}

	// Roll immediately when the recovered sector has no room for even
	// a single table entry, so the first write cannot get stuck.
	if !fs.canFit(0) {
		if err := fs.gc(); err != nil {
			return err
		}
	}

	if fs.cache != nil {
		fs.cache.Invalidate()
	}
	fs.ready = true
	return nil
}

// recoverFrontiers rebuilds ate_wra and data_wra of the active sector:
// the table frontier is the first empty slot, the data frontier the
// highest end offset among valid entries.
func (fs *FS) recoverFrontiers(active uint16) error {
	s := scan.New(fs.scanCfg(), active, scan.Oldest)
	dataEnd := 0
	for s.Scan() {
		e := s.Entry()
		if end := int(e.Off) + fs.alignUp(int(e.Len)); end > dataEnd {
			dataEnd = end
		}
	}
	if err := s.Err(); err != nil {
		return err
	}

	fs.dataWra = ate.NewAddr(active, uint16(dataEnd))
	if bound := s.Bound(); bound >= 0 {
		fs.ateWra = ate.NewAddr(active, uint16(bound))
	} else {
		// Table exhausted: leave no gap so the roll below kicks in.
		fs.ateWra = ate.NewAddr(active, uint16(dataEnd))
	}
	return nil
}

// activate turns an erased sector into the write target by stamping
// its cycle marker, then points both frontiers at it.
func (fs *FS) activate(sector uint16, cycle uint16) error {
	rec := ate.Encode(make([]byte, 0, ate.Size), ate.Entry{ID: ate.CycleID, Off: cycle})
	off := fs.sectorBase(sector) + int64(ate.CycleSlotOff(fs.sectorSize))
	if err := fs.dev.WriteAt(off, rec); err != nil {
		return fmt.Errorf("nvs: write cycle marker: %w", err)
	}
	fs.cycle = cycle
	fs.ateWra = ate.NewAddr(sector, ate.TopSlotOff(fs.sectorSize))
	fs.dataWra = ate.NewAddr(sector, 0)
	return nil
}

// format initializes a virgin region: every sector fully erased and
// sector 0 activated with cycle zero.
func (fs *FS) format() error {
	for s := uint16(0); s < fs.sectorCount; s++ {
		if err := fs.eraseIfDirty(s); err != nil {
			return err
		}
	}
	return fs.activate(0, 0)
}

func (fs *FS) eraseIfDirty(sector uint16) error {
	erased, err := fs.sectorErased(sector)
	if err != nil {
		return err
	}
	if erased {
		return nil
	}
	if err := fs.dev.Erase(fs.sectorBase(sector), int64(fs.sectorSize)); err != nil {
		return fmt.Errorf("nvs: erase sector %d: %w", sector, err)
	}
	return nil
}

// sectorErased reports whether every byte of the sector reads as the
// erase value.
func (fs *FS) sectorErased(sector uint16) (bool, error) {
	var buf [256]byte
	base := fs.sectorBase(sector)
	for off := 0; off < int(fs.sectorSize); off += len(buf) {
		n := len(buf)
		if rem := int(fs.sectorSize) - off; rem < n {
			n = rem
		}
		if err := fs.dev.ReadAt(base+int64(off), buf[:n]); err != nil {
			return false, fmt.Errorf("nvs: read sector %d: %w", sector, err)
		}
		if !ate.Empty(buf[:n], fs.params.EraseValue) {
			return false, nil
		}
	}
	return true, nil
}
