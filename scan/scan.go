package scan

import (
	"errors"
	"fmt"

	"github.com/sectorfs/nvs/ate"
	"github.com/sectorfs/nvs/device"
)

// Direction selects the iteration order over a sector's table.
type Direction int

const (
	// Oldest walks from the top of the table toward the sector start,
	// in the order entries were appended, and stops at the first
	// structurally empty slot: that slot bounds the written history.
	Oldest Direction = iota

	// Newest walks the written region in reverse append order, most
	// recent entry first.
	Newest
)

// Config carries what the scanner needs to address one sector: the
// device, the region offset, the sector geometry and the erase value
// used to recognize unwritten slots.
type Config struct {
	Device     device.Device
	Offset     int64
	SectorSize uint16
	EraseValue byte
}

func (c Config) sectorBase(sector uint16) int64 {
	return c.Offset + int64(sector)*int64(c.SectorSize)
}

// ReadSlot decodes the table slot at the given in-sector offset. The
// second return reports whether the slot is structurally empty; a
// decode error on a non-empty slot means the slot is torn.
func ReadSlot(cfg Config, sector uint16, off uint16) (ate.Entry, bool, error) {
	var buf [ate.Size]byte
	if err := cfg.Device.ReadAt(cfg.sectorBase(sector)+int64(off), buf[:]); err != nil {
		return ate.Entry{}, false, fmt.Errorf("scan: read slot %d:%d: %w", sector, off, err)
	}
	if ate.Empty(buf[:], cfg.EraseValue) {
		return ate.Entry{}, true, nil
	}
	e, err := ate.Decode(buf[:])
	return e, false, err
}

// Scanner iterates the client entries of one sector, skipping torn
// slots. It is restartable via Reset and reports device errors through
// Err, in the manner of bufio.Scanner.
type Scanner struct {
	cfg    Config
	sector uint16
	dir    Direction

	// nextFree is the in-sector offset of the first empty slot, or -1
	// when the table region ran out without one. It is discovered by
	// the Oldest pass, or supplied up front for Newest scans.
	nextFree  int
	haveBound bool

	cur  int
	ent  ate.Entry
	addr ate.Addr
	err  error
	done bool
}

// New returns a scanner over the client entries of sector.
func New(cfg Config, sector uint16, dir Direction) *Scanner {
	s := &Scanner{cfg: cfg, sector: sector, dir: dir, nextFree: -1}
	s.Reset()
	return s
}

// NewAt returns a newest-first scanner that trusts nextFree as the
// offset of the sector's first unwritten slot, skipping the boundary
// discovery pass. The engine uses this for the active sector, where
// the next free slot is already known.
func NewAt(cfg Config, sector uint16, nextFree int) *Scanner {
	s := &Scanner{cfg: cfg, sector: sector, dir: Newest, nextFree: nextFree, haveBound: true}
	s.Reset()
	return s
}

// Reset rewinds the scanner to the start of its sequence.
func (s *Scanner) Reset() {
	s.err = nil
	s.done = false
	switch s.dir {
	case Oldest:
		s.cur = int(ate.TopSlotOff(s.cfg.SectorSize))
		s.haveBound = false
		s.nextFree = -1
	case Newest:
		if s.haveBound {
			s.cur = s.lowestWritten()
		} else {
			s.cur = -1
		}
	}
}

// lowestWritten converts the next-free offset into the offset of the
// most recently written slot.
func (s *Scanner) lowestWritten() int {
	top := int(ate.TopSlotOff(s.cfg.SectorSize))
	if s.nextFree < 0 {
		// Table exhausted: the lowest slot that still fits is the
		// bottom of the slot grid.
		return top % ate.Size
	}
	low := s.nextFree + ate.Size
	if low > top+ate.Size {
		low = top + ate.Size // empty sector, nothing to yield
	}
	return low
}

// findBound runs the boundary discovery pass for newest-first scans of
// sectors whose write frontier is unknown (closed sectors).
func (s *Scanner) findBound() error {
	pre := New(s.cfg, s.sector, Oldest)
	for pre.Scan() {
	}
	if err := pre.Err(); err != nil {
		return err
	}
	s.nextFree = pre.Bound()
	s.haveBound = true
	s.cur = s.lowestWritten()
	return nil
}

// Scan advances to the next valid entry. It returns false at the end
// of the sequence or on device error; Err distinguishes the two.
func (s *Scanner) Scan() bool {
	if s.done || s.err != nil {
		return false
	}
	if s.dir == Newest && !s.haveBound {
		if err := s.findBound(); err != nil {
			s.err = err
			return false
		}
	}

	top := int(ate.TopSlotOff(s.cfg.SectorSize))
	for {
		if s.dir == Oldest && s.cur < 0 {
			s.done = true
			return false
		}
		if s.dir == Newest && s.cur > top {
			s.done = true
			return false
		}

		off := uint16(s.cur)
		e, empty, err := ReadSlot(s.cfg, s.sector, off)
		switch {
		case errors.Is(err, ate.ErrChecksum):
			// Torn slot: skip it, the log format tolerates holes.
			s.advance()
		case err != nil:
			s.err = err
			return false
		case empty:
			if s.dir == Oldest {
				s.nextFree = s.cur
				s.haveBound = true
				s.done = true
				return false
			}
			// Holes above the frontier only appear next to torn
			// slots; treat them like torn slots and keep going.
			s.advance()
		default:
			s.ent = e
			s.addr = ate.NewAddr(s.sector, off)
			s.advance()
			return true
		}
	}
}

func (s *Scanner) advance() {
	if s.dir == Oldest {
		s.cur -= ate.Size
	} else {
		s.cur += ate.Size
	}
}

// Entry returns the entry produced by the last successful Scan.
func (s *Scanner) Entry() ate.Entry { return s.ent }

// Addr returns the table address of the entry produced by the last
// successful Scan.
func (s *Scanner) Addr() ate.Addr { return s.addr }

// Bound returns the in-sector offset of the first empty slot, or -1
// when the table region holds no empty slot. It is meaningful after an
// Oldest scan has finished, and is how mount reconstructs the table
// write frontier.
func (s *Scanner) Bound() int { return s.nextFree }

// Err returns the first device error encountered, if any.
func (s *Scanner) Err() error { return s.err }
