package nvs

import (
	"errors"
	"fmt"

	"github.com/sectorfs/nvs/ate"
	"github.com/sectorfs/nvs/scan"
)

// gc advances the ring by one sector: it closes the active sector,
// activates the free one that follows, migrates the still-live entries
// out of the next sector in line and erases it. One call reclaims
// exactly one sector; the write path repeats it while the pending
// write still does not fit. Callers hold fs.mu.
func (fs *FS) gc() error {
	old := fs.ateWra.Sector()

	// Close the active sector. Off records the table frontier so later
	// scans can find the boundary without probing for it.
	rec := ate.Encode(make([]byte, 0, ate.Size), ate.Entry{ID: ate.CloseID, Off: fs.ateWra.Off()})
	closeOff := fs.sectorBase(old) + int64(ate.CloseSlotOff(fs.sectorSize))
	if err := fs.dev.WriteAt(closeOff, rec); err != nil {
		return fmt.Errorf("nvs: write close marker: %w", err)
	}

	// The sector after the active one is the ring's permanent safety
	// margin and must still be free.
	next := fs.nextSector(old)
	st, err := fs.readSectorState(next)
	if err != nil {
		return err
	}
	if st.cycleValid || st.closed {
		return fmt.Errorf("%w: sector %d is not free", ErrCorrupt, next)
	}
	if err := fs.activate(next, fs.cycle+1); err != nil {
		return err
	}

	victim := fs.nextSector(next)
	if err := fs.migrate(victim); err != nil {
		return err
	}
	if err := fs.dev.Erase(fs.sectorBase(victim), int64(fs.sectorSize)); err != nil {
		return fmt.Errorf("nvs: erase sector %d: %w", victim, err)
	}
	return nil
}

// migrate copies every entry of victim that is still the globally
// newest value for its id into the active sector. Superseded history,
// tombstoned ids and entries whose newest occurrence lives elsewhere
// are dropped. The victim is always the oldest sector in the ring, so
// dropping a tombstone cannot resurrect older data.
func (fs *FS) migrate(victim uint16) error {
	done := make(map[uint16]struct{})

	s := scan.New(fs.scanCfg(), victim, scan.Oldest)
	for s.Scan() {
		e := s.Entry()
		if e.ID > ate.MaxID {
			continue
		}
		if _, ok := done[e.ID]; ok {
			continue
		}
		done[e.ID] = struct{}{}

		latest, addr, err := fs.resolve(e.ID, 0)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if addr.Sector() != victim || latest.Tombstone() {
			continue
		}

		data := make([]byte, latest.Len)
		if err := fs.dev.ReadAt(fs.sectorBase(victim)+int64(latest.Off), data); err != nil {
			return fmt.Errorf("nvs: read entry %d: %w", e.ID, err)
		}
		if err := fs.append(e.ID, data); err != nil {
			return err
		}
	}
	return s.Err()
}
