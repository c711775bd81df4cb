package nvs

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/sectorfs/nvs/ate"
)

// Write stores data under id, overwriting any previous value. It
// returns the number of bytes written: len(data) on success, or 0 when
// the identical bytes are already stored and nothing had to be written.
// A nil or empty data appends a tombstone, logically deleting the id.
func (fs *FS) Write(id uint16, data []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.ensureReady(); err != nil {
		return 0, err
	}
	if id > ate.MaxID {
		return 0, fmt.Errorf("%w: id %#04x is reserved", ErrInvalidArg, id)
	}
	if len(data) > fs.MaxWriteSize() {
		return 0, fmt.Errorf("%w: %d bytes exceeds the maximum record size %d",
			ErrInvalidArg, len(data), fs.MaxWriteSize())
	}

	cur, addr, err := fs.resolve(id, 0)
	switch {
	case errors.Is(err, ErrNotFound):
		if len(data) == 0 {
			// Deleting an absent id changes nothing.
			return 0, nil
		}
	case err != nil:
		return 0, err
	case len(data) == 0:
		if cur.Tombstone() {
			return 0, nil
		}
	case !cur.Tombstone() && int(cur.Len) == len(data):
		same, err := fs.storedEqual(addr.Sector(), cur, data)
		if err != nil {
			return 0, err
		}
		if same {
			// Identical rewrite: documented success without touching
			// the media.
			return 0, nil
		}
	}

	for rotations := 0; !fs.canFit(len(data)); rotations++ {
		if rotations >= int(fs.sectorCount) {
			return 0, fmt.Errorf("%w: %d bytes do not fit after compacting the ring",
				ErrNoSpace, len(data))
		}
		if err := fs.gc(); err != nil {
			return 0, err
		}
	}

	if err := fs.append(id, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// storedEqual compares the stored value behind e with data.
func (fs *FS) storedEqual(sector uint16, e ate.Entry, data []byte) (bool, error) {
	stored := make([]byte, e.Len)
	if err := fs.dev.ReadAt(fs.sectorBase(sector)+int64(e.Off), stored); err != nil {
		return false, fmt.Errorf("nvs: read entry %d: %w", e.ID, err)
	}
	return bytes.Equal(stored, data), nil
}

// append writes data at the data frontier and its table entry at the
// table frontier, then advances both. Callers hold fs.mu and have
// checked canFit.
func (fs *FS) append(id uint16, data []byte) error {
	if !fs.canFit(len(data)) {
		return fmt.Errorf("%w: write frontiers would cross in sector %d",
			ErrCorrupt, fs.ateWra.Sector())
	}

	sector := fs.ateWra.Sector()
	dataOff := fs.dataWra.Off()
	aligned := fs.alignUp(len(data))

	if len(data) > 0 {
		buf := data
		if aligned > len(data) {
			buf = make([]byte, aligned)
			copy(buf, data)
			for i := len(data); i < aligned; i++ {
				buf[i] = fs.params.EraseValue
			}
		}
		if err := fs.dev.WriteAt(fs.sectorBase(sector)+int64(dataOff), buf); err != nil {
			return fmt.Errorf("nvs: write data for id %d: %w", id, err)
		}
	}

	slotOff := fs.ateWra.Off()
	rec := ate.Encode(make([]byte, 0, ate.Size), ate.Entry{ID: id, Off: dataOff, Len: uint16(len(data))})
	if err := fs.dev.WriteAt(fs.sectorBase(sector)+int64(slotOff), rec); err != nil {
		return fmt.Errorf("nvs: write entry for id %d: %w", id, err)
	}

	fs.dataWra = ate.NewAddr(sector, dataOff+uint16(aligned))
	fs.ateWra = ate.NewAddr(sector, slotOff-ate.Size)
	if fs.cache != nil {
		fs.cache.Put(id, uint32(ate.NewAddr(sector, slotOff)))
	}
	return nil
}
