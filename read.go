package nvs

import (
	"errors"
	"fmt"

	"github.com/sectorfs/nvs/ate"
	"github.com/sectorfs/nvs/scan"
)

// Read copies the latest value stored under id into buf. It returns
// the stored length, which may exceed len(buf); in that case buf holds
// a truncated prefix and the caller can detect it by comparing the
// returned count with the buffer size it supplied.
func (fs *FS) Read(id uint16, buf []byte) (int, error) {
	return fs.ReadHist(id, buf, 0)
}

// ReadHist reads the cnt-th most recent version of id, 0 being the
// latest. History is lossy: a version disappears for good once its
// sector is reclaimed, and a deleted version reports ErrNotFound while
// still occupying its place in the count.
func (fs *FS) ReadHist(id uint16, buf []byte, cnt uint16) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.ensureReady(); err != nil {
		return 0, err
	}
	if id > ate.MaxID {
		return 0, fmt.Errorf("%w: id %#04x is reserved", ErrInvalidArg, id)
	}

	e, addr, err := fs.resolve(id, cnt)
	if err != nil {
		return 0, err
	}
	if e.Tombstone() {
		return 0, fmt.Errorf("%w: id %d is deleted", ErrNotFound, id)
	}

	n := int(e.Len)
	if n > len(buf) {
		n = len(buf)
	}
	if n > 0 {
		if err := fs.dev.ReadAt(fs.sectorBase(addr.Sector())+int64(e.Off), buf[:n]); err != nil {
			return 0, fmt.Errorf("nvs: read entry %d: %w", id, err)
		}
	}
	return int(e.Len), nil
}

// resolve locates the cnt-th most recent table entry for id, walking
// sectors from the active one backward through the ring and each
// sector newest-first. Tombstones count like any other version so cnt
// stays monotonic with true write order. Callers hold fs.mu.
func (fs *FS) resolve(id uint16, cnt uint16) (ate.Entry, ate.Addr, error) {
	cfg := fs.scanCfg()
	active := fs.ateWra.Sector()

	// The cache short-cuts the latest-version lookup only. A hit is
	// never trusted as-is: the addressed slot must still decode to the
	// same id, otherwise the sector was reclaimed underneath the cache
	// and the scan below takes over.
	if cnt == 0 && fs.cache != nil {
		if raw, ok := fs.cache.Get(id); ok {
			addr := ate.Addr(raw)
			e, empty, err := scan.ReadSlot(cfg, addr.Sector(), addr.Off())
			switch {
			case err == nil && !empty && e.ID == id:
				return e, addr, nil
			case err != nil && !errors.Is(err, ate.ErrChecksum):
				return ate.Entry{}, 0, err
			}
		}
	}

	matches := uint16(0)
	for i := uint16(0); i < fs.sectorCount; i++ {
		sector := (active + fs.sectorCount - i) % fs.sectorCount

		var s *scan.Scanner
		if sector == active {
			s = scan.NewAt(cfg, sector, int(fs.ateWra.Off()))
		} else {
			s = scan.New(cfg, sector, scan.Newest)
		}
		for s.Scan() {
			e := s.Entry()
			if e.ID != id {
				continue
			}
			if matches == cnt {
				if cnt == 0 && fs.cache != nil {
					fs.cache.Put(id, uint32(s.Addr()))
				}
				return e, s.Addr(), nil
			}
			matches++
		}
		if err := s.Err(); err != nil {
			return ate.Entry{}, 0, err
		}
	}
	return ate.Entry{}, 0, fmt.Errorf("%w: id %d depth %d", ErrNotFound, id, cnt)
}
