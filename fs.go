package nvs

import (
	"fmt"
	"sync"

	"github.com/sectorfs/nvs/ate"
	"github.com/sectorfs/nvs/cache"
	"github.com/sectorfs/nvs/device"
	"github.com/sectorfs/nvs/scan"
)

// FS is a filesystem instance over one storage region. A single FS
// guards its region with one exclusive lock held for the duration of
// every public operation; it spawns no background work.
type FS struct {
	mu     sync.Mutex
	dev    device.Device
	params device.Parameters

	offset      int64
	sectorSize  uint16
	sectorCount uint16

	// ateWra addresses the next free table slot, moving down within
	// the active sector; dataWra the next free data byte, moving up.
	// The gap between them is the sector's remaining free space.
	ateWra  ate.Addr
	dataWra ate.Addr

	// cycle is the ring generation of the active sector.
	cycle uint16

	ready bool
	cache *cache.Cache
}

// New binds a filesystem to a device region. The region starts at the
// configured offset and spans sectorCount sectors of sectorSize bytes.
// The instance is not mounted yet; the first operation mounts it.
func New(dev device.Device, params device.Parameters, sectorSize, sectorCount uint16, opts ...Option) (*FS, error) {
	if dev == nil {
		return nil, ErrNotReady
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if ate.Size%params.WriteBlockSize != 0 {
		return nil, fmt.Errorf("%w: write block size %d does not divide entry size %d",
			ErrInvalidArg, params.WriteBlockSize, ate.Size)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if sectorCount < 2 {
		return nil, fmt.Errorf("%w: need at least 2 sectors, got %d", ErrInvalidArg, sectorCount)
	}
	if sectorSize < 4*ate.Size {
		return nil, fmt.Errorf("%w: sector size %d below minimum %d", ErrInvalidArg, sectorSize, 4*ate.Size)
	}
	if params.PageSize > 0 && int(sectorSize)%params.PageSize != 0 {
		return nil, fmt.Errorf("%w: sector size %d not a multiple of page size %d",
			ErrInvalidArg, sectorSize, params.PageSize)
	}
	if int(sectorSize)%params.WriteBlockSize != 0 {
		return nil, fmt.Errorf("%w: sector size %d not a multiple of write block size %d",
			ErrInvalidArg, sectorSize, params.WriteBlockSize)
	}
	if o.offset < 0 {
		return nil, fmt.Errorf("%w: negative region offset %d", ErrInvalidArg, o.offset)
	}

	fs := &FS{
		dev:         dev,
		params:      params,
		offset:      o.offset,
		sectorSize:  sectorSize,
		sectorCount: sectorCount,
	}
	if o.cacheSize > 0 {
		fs.cache = cache.New(o.cacheSize)
	}
	return fs, nil
}

// MaxWriteSize returns the largest record length a single write can
// hold: the sector minus its own table entry, the two reserved marker
// slots, and one spare slot that keeps the table frontier from
// crossing the data frontier.
func (fs *FS) MaxWriteSize() int {
	return int(fs.sectorSize) - 4*ate.Size
}

func (fs *FS) scanCfg() scan.Config {
	return scan.Config{
		Device:     fs.dev,
		Offset:     fs.offset,
		SectorSize: fs.sectorSize,
		EraseValue: fs.params.EraseValue,
	}
}

func (fs *FS) sectorBase(sector uint16) int64 {
	return fs.offset + int64(sector)*int64(fs.sectorSize)
}

func (fs *FS) nextSector(s uint16) uint16 {
	return (s + 1) % fs.sectorCount
}

// alignUp rounds n up to the device write block size.
func (fs *FS) alignUp(n int) int {
	bs := fs.params.WriteBlockSize
	return (n + bs - 1) / bs * bs
}

// canFit reports whether the active sector's free gap holds n data
// bytes plus their table entry without the write frontiers crossing.
func (fs *FS) canFit(n int) bool {
	return int(fs.dataWra.Off())+fs.alignUp(n)+ate.Size <= int(fs.ateWra.Off())
}

// ensureReady mounts the filesystem on first use. Callers hold fs.mu.
func (fs *FS) ensureReady() error {
	if fs.ready {
		return nil
	}
	return fs.mount()
}

// Mount brings the filesystem to a consistent state, recovering from
// any crash left on the media. It is idempotent; every public
// operation performs it implicitly on first use.
func (fs *FS) Mount() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.ensureReady()
}

// Clear erases the whole region and resets the instance to its
// never-initialized state. The next operation formats and mounts.
func (fs *FS) Clear() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for s := uint16(0); s < fs.sectorCount; s++ {
		if err := fs.dev.Erase(fs.sectorBase(s), int64(fs.sectorSize)); err != nil {
			return fmt.Errorf("nvs: clear sector %d: %w", s, err)
		}
	}
	fs.ready = false
	if fs.cache != nil {
		fs.cache.Invalidate()
	}
	return nil
}

// Delete tags id as logically absent by appending a tombstone. It
// shares the write path, so it may trigger compaction; deleting an id
// that is already absent writes nothing.
func (fs *FS) Delete(id uint16) error {
	_, err := fs.Write(id, nil)
	return err
}
