package ate

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// Size is the encoded size of an allocation table entry in bytes.
// It must stay a multiple of every supported device write block size.
const Size = 12

// Reserved ids. Client records must use ids below CycleID.
const (
	// CloseID marks the close entry finalizing a sector. Its Off field
	// records the lowest written table slot in the sector.
	CloseID uint16 = 0xFFFF

	// CycleID marks the cycle entry written when a sector becomes the
	// write target. Its Off field carries the ring cycle counter.
	CycleID uint16 = 0xFFFE

	// MaxID is the largest id a client record may use.
	MaxID uint16 = 0xFFFD
)

// reserved is the fixed filler between the entry fields and the CRC.
const reserved uint16 = 0xFFFF

var ErrChecksum = errors.New("ate: checksum mismatch")

// Entry is one allocation table entry. Off and Len describe a byte
// range in the data region of the sector the entry was written to.
// A Len of zero for a client id is a tombstone.
type Entry struct {
	ID  uint16
	Off uint16
	Len uint16
}

// Tombstone reports whether the entry marks a logical delete.
func (e Entry) Tombstone() bool {
	return e.Len == 0 && e.ID <= MaxID
}

// Encode appends the fixed 12-byte layout of e to dst and returns the
// extended slice.
func Encode(dst []byte, e Entry) []byte {
	var b [Size]byte
	binary.LittleEndian.PutUint16(b[0:2], e.ID)
	binary.LittleEndian.PutUint16(b[2:4], e.Off)
	binary.LittleEndian.PutUint16(b[4:6], e.Len)
	binary.LittleEndian.PutUint16(b[6:8], reserved)
	binary.LittleEndian.PutUint32(b[8:12], crc32.ChecksumIEEE(b[0:8]))
	return append(dst, b[:]...)
}

// Decode parses one entry from b. It returns ErrChecksum when the
// stored CRC does not cover the first eight bytes, which is how both a
// torn write and an unwritten slot present themselves.
func Decode(b []byte) (Entry, error) {
	if len(b) < Size {
		return Entry{}, ErrChecksum
	}
	if crc32.ChecksumIEEE(b[0:8]) != binary.LittleEndian.Uint32(b[8:12]) {
		return Entry{}, ErrChecksum
	}
	return Entry{
		ID:  binary.LittleEndian.Uint16(b[0:2]),
		Off: binary.LittleEndian.Uint16(b[2:4]),
		Len: binary.LittleEndian.Uint16(b[4:6]),
	}, nil
}

// Empty reports whether b is an unwritten slot: every byte still reads
// as the device erase value. Empty slots bound the written region of a
// sector's table; torn slots (non-empty, bad CRC) do not.
func Empty(b []byte, eraseValue byte) bool {
	for _, c := range b {
		if c != eraseValue {
			return false
		}
	}
	return true
}

// Fixed slot positions inside a sector of the given size. The last
// two slots are reserved for the cycle and close markers; client
// entries fill the table from TopSlotOff downward.
func CycleSlotOff(sectorSize uint16) uint16 { return sectorSize - Size }
func CloseSlotOff(sectorSize uint16) uint16 { return sectorSize - 2*Size }
func TopSlotOff(sectorSize uint16) uint16   { return sectorSize - 3*Size }

// Addr packs a table or data address as sector:offset. The high
// sixteen bits hold the sector index, the low sixteen the byte offset
// within the sector.
type Addr uint32

// NewAddr builds an address from a sector index and in-sector offset.
func NewAddr(sector, off uint16) Addr {
	return Addr(uint32(sector)<<16 | uint32(off))
}

// Sector returns the sector index of a.
func (a Addr) Sector() uint16 { return uint16(a >> 16) }

// Off returns the byte offset of a within its sector.
func (a Addr) Off() uint16 { return uint16(a) }
