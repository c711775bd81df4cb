package nvs

import (
	"errors"

	"github.com/google/btree"

	"github.com/sectorfs/nvs/ate"
	"github.com/sectorfs/nvs/scan"
)

// forEachLatest visits the newest entry of every id present anywhere
// in the ring, exactly once per id, tombstones included: an
// uncollected tombstone still occupies table space. It replays the
// garbage collector's liveness computation without writing anything,
// so it costs a resolve per distinct id. Callers hold fs.mu.
func (fs *FS) forEachLatest(fn func(e ate.Entry) error) error {
	seen := make(map[uint16]struct{})

	for sector := uint16(0); sector < fs.sectorCount; sector++ {
		s := scan.New(fs.scanCfg(), sector, scan.Oldest)
		for s.Scan() {
			e := s.Entry()
			if e.ID > ate.MaxID {
				continue
			}
			if _, ok := seen[e.ID]; ok {
				continue
			}
			seen[e.ID] = struct{}{}

			latest, _, err := fs.resolve(e.ID, 0)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := fn(latest); err != nil {
				return err
			}
		}
		if err := s.Err(); err != nil {
			return err
		}
	}
	return nil
}

// FreeSpace computes how many bytes can still be written: the ring
// capacity with one sector reserved for compaction, minus the table
// and data cost of every live id. The walk touches every entry in
// every sector and is not meant for a hot path.
func (fs *FS) FreeSpace() (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.ensureReady(); err != nil {
		return 0, err
	}

	total := int(fs.sectorCount-1) * (int(fs.sectorSize) - 2*ate.Size)
	used := 0
	err := fs.forEachLatest(func(e ate.Entry) error {
		if e.Tombstone() {
			// A tombstone holds no data but its table slot is only
			// reclaimed by compaction.
			used += ate.Size
			return nil
		}
		used += ate.Size + fs.alignUp(int(e.Len))
		return nil
	})
	if err != nil {
		return 0, err
	}
	if used > total {
		return 0, nil
	}
	return total - used, nil
}

// IDs returns the ids that currently hold a live value, in ascending
// order. Like FreeSpace it walks the whole ring.
func (fs *FS) IDs() ([]uint16, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.ensureReady(); err != nil {
		return nil, err
	}

	tree := btree.NewG[uint16](2, func(a, b uint16) bool { return a < b })
	err := fs.forEachLatest(func(e ate.Entry) error {
		if !e.Tombstone() {
			tree.ReplaceOrInsert(e.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]uint16, 0, tree.Len())
	tree.Ascend(func(id uint16) bool {
		ids = append(ids, id)
		return true
	})
	return ids, nil
}
