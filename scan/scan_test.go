package scan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sectorfs/nvs/ate"
	"github.com/sectorfs/nvs/device"
	"github.com/sectorfs/nvs/device/mem"
	"github.com/sectorfs/nvs/scan"
)

const sectorSize = 256

func newSector(t *testing.T) (*mem.Device, scan.Config) {
	t.Helper()
	params := device.Parameters{WriteBlockSize: 1, EraseValue: 0xFF}
	dev := mem.New(2*sectorSize, params)
	cfg := scan.Config{
		Device:     dev,
		SectorSize: sectorSize,
		EraseValue: params.EraseValue,
	}
	return dev, cfg
}

// writeSlots appends entries to the table of sector 0, newest entry in
// the lowest slot, and returns the offset of the first free slot.
func writeSlots(t *testing.T, dev *mem.Device, entries []ate.Entry) int {
	t.Helper()
	off := int(ate.TopSlotOff(sectorSize))
	for _, e := range entries {
		require.NoError(t, dev.WriteAt(int64(off), ate.Encode(nil, e)))
		off -= ate.Size
	}
	return off
}

func collect(t *testing.T, s *scan.Scanner) []ate.Entry {
	t.Helper()
	var got []ate.Entry
	for s.Scan() {
		got = append(got, s.Entry())
	}
	require.NoError(t, s.Err())
	return got
}

func TestOldestYieldsAppendOrder(t *testing.T) {
	dev, cfg := newSector(t)
	entries := []ate.Entry{
		{ID: 1, Off: 0, Len: 4},
		{ID: 2, Off: 4, Len: 8},
		{ID: 1, Off: 12, Len: 4},
	}
	free := writeSlots(t, dev, entries)

	s := scan.New(cfg, 0, scan.Oldest)
	assert.Equal(t, entries, collect(t, s))
	assert.Equal(t, free, s.Bound())
}

func TestNewestYieldsReverseOrder(t *testing.T) {
	dev, cfg := newSector(t)
	entries := []ate.Entry{
		{ID: 1, Off: 0, Len: 4},
		{ID: 2, Off: 4, Len: 8},
		{ID: 1, Off: 12, Len: 4},
	}
	writeSlots(t, dev, entries)

	got := collect(t, scan.New(cfg, 0, scan.Newest))
	require.Len(t, got, 3)
	assert.Equal(t, entries[2], got[0])
	assert.Equal(t, entries[1], got[1])
	assert.Equal(t, entries[0], got[2])
}

func TestNewAtSkipsDiscovery(t *testing.T) {
	dev, cfg := newSector(t)
	entries := []ate.Entry{
		{ID: 5, Off: 0, Len: 2},
		{ID: 6, Off: 4, Len: 2},
	}
	free := writeSlots(t, dev, entries)

	got := collect(t, scan.NewAt(cfg, 0, free))
	require.Len(t, got, 2)
	assert.Equal(t, entries[1], got[0])
	assert.Equal(t, entries[0], got[1])
}

func TestEmptySector(t *testing.T) {
	_, cfg := newSector(t)

	s := scan.New(cfg, 0, scan.Oldest)
	assert.Empty(t, collect(t, s))
	assert.Equal(t, int(ate.TopSlotOff(sectorSize)), s.Bound())

	assert.Empty(t, collect(t, scan.New(cfg, 0, scan.Newest)))
}

func TestTornSlotSkipped(t *testing.T) {
	dev, cfg := newSector(t)
	entries := []ate.Entry{
		{ID: 1, Off: 0, Len: 4},
		{ID: 2, Off: 4, Len: 8},
		{ID: 3, Off: 12, Len: 4},
	}
	writeSlots(t, dev, entries)

	// Corrupt the middle slot so it is non-empty with a bad CRC.
	mid := int(ate.TopSlotOff(sectorSize)) - ate.Size
	require.NoError(t, dev.WriteAt(int64(mid+8), []byte{0xDE, 0xAD, 0xBE, 0xEF}))

	oldest := collect(t, scan.New(cfg, 0, scan.Oldest))
	require.Len(t, oldest, 2)
	assert.Equal(t, entries[0], oldest[0])
	assert.Equal(t, entries[2], oldest[1])

	newest := collect(t, scan.New(cfg, 0, scan.Newest))
	require.Len(t, newest, 2)
	assert.Equal(t, entries[2], newest[0])
	assert.Equal(t, entries[0], newest[1])
}

func TestScanSecondSector(t *testing.T) {
	dev, cfg := newSector(t)
	e := ate.Entry{ID: 9, Off: 0, Len: 3}
	off := int64(sectorSize) + int64(ate.TopSlotOff(sectorSize))
	require.NoError(t, dev.WriteAt(off, ate.Encode(nil, e)))

	got := collect(t, scan.New(cfg, 1, scan.Newest))
	require.Len(t, got, 1)
	assert.Equal(t, e, got[0])
	assert.Equal(t, ate.NewAddr(1, ate.TopSlotOff(sectorSize)), scanAddrOf(t, cfg, 1))

	// Sector 0 stays untouched.
	assert.Empty(t, collect(t, scan.New(cfg, 0, scan.Newest)))
}

func scanAddrOf(t *testing.T, cfg scan.Config, sector uint16) ate.Addr {
	t.Helper()
	s := scan.New(cfg, sector, scan.Newest)
	require.True(t, s.Scan())
	return s.Addr()
}

func TestReset(t *testing.T) {
	dev, cfg := newSector(t)
	writeSlots(t, dev, []ate.Entry{{ID: 1, Off: 0, Len: 4}})

	s := scan.New(cfg, 0, scan.Oldest)
	first := collect(t, s)

	s.Reset()
	assert.Equal(t, first, collect(t, s))
}

func TestReadSlot(t *testing.T) {
	dev, cfg := newSector(t)
	e := ate.Entry{ID: 4, Off: 16, Len: 7}
	top := ate.TopSlotOff(sectorSize)
	require.NoError(t, dev.WriteAt(int64(top), ate.Encode(nil, e)))

	got, empty, err := scan.ReadSlot(cfg, 0, top)
	require.NoError(t, err)
	assert.False(t, empty)
	assert.Equal(t, e, got)

	_, empty, err = scan.ReadSlot(cfg, 0, top-ate.Size)
	require.NoError(t, err)
	assert.True(t, empty)
}
