package nvs_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sectorfs/nvs"
	"github.com/sectorfs/nvs/ate"
	"github.com/sectorfs/nvs/device/mem"
)

func TestMountFormatsEmptyRegion(t *testing.T) {
	fs, _ := newTestFS(t)

	free, err := fs.FreeSpace()
	require.NoError(t, err)
	assert.Equal(t, (testSectorCount-1)*(testSectorSize-2*ate.Size), free)
}

func TestMountIdempotent(t *testing.T) {
	fs, _ := newTestFS(t)

	_, err := fs.Write(1, []byte("stable"))
	require.NoError(t, err)

	require.NoError(t, fs.Mount())
	assert.Equal(t, []byte("stable"), readValue(t, fs, 1))
}

func TestRemountPreservesData(t *testing.T) {
	fs, dev := newTestFS(t)

	for id := uint16(1); id <= 5; id++ {
		_, err := fs.Write(id, bytes.Repeat([]byte{byte(id)}, int(id)))
		require.NoError(t, err)
	}
	require.NoError(t, fs.Delete(3))

	// A new instance over the same image sees the same state.
	fs2, err := nvs.New(dev, dev.Params(), testSectorSize, testSectorCount)
	require.NoError(t, err)
	require.NoError(t, fs2.Mount())

	for _, id := range []uint16{1, 2, 4, 5} {
		assert.Equal(t, bytes.Repeat([]byte{byte(id)}, int(id)), readValue(t, fs2, id))
	}
	_, err = fs2.Read(3, make([]byte, 8))
	assert.ErrorIs(t, err, nvs.ErrNotFound)

	// And can keep writing where the first one left off.
	_, err = fs2.Write(6, []byte("more"))
	require.NoError(t, err)
	assert.Equal(t, []byte("more"), readValue(t, fs2, 6))
}

func TestMountFormatsMarkerlessGarbage(t *testing.T) {
	dev := mem.New(testSectorSize*testSectorCount, testParams())

	// Leftover bytes from some other use of the flash, but no sector
	// carries a cycle or close marker. Nothing is recoverable, so the
	// region is formatted.
	require.NoError(t, dev.WriteAt(testSectorSize+16, []byte("stale junk")))

	fs, err := nvs.New(dev, dev.Params(), testSectorSize, testSectorCount)
	require.NoError(t, err)
	require.NoError(t, fs.Mount())

	_, err = fs.Write(1, []byte("post-format"))
	require.NoError(t, err)
	assert.Equal(t, []byte("post-format"), readValue(t, fs, 1))
}

func TestMountRejectsClosedSectorWithoutCycleMarker(t *testing.T) {
	dev := mem.New(testSectorSize*testSectorCount, testParams())

	// A close marker with no cycle marker anywhere cannot be ordered
	// in the ring.
	rec := ate.Encode(nil, ate.Entry{ID: ate.CloseID, Off: ate.TopSlotOff(testSectorSize)})
	require.NoError(t, dev.WriteAt(int64(ate.CloseSlotOff(testSectorSize)), rec))

	fs, err := nvs.New(dev, dev.Params(), testSectorSize, testSectorCount)
	require.NoError(t, err)
	assert.ErrorIs(t, fs.Mount(), nvs.ErrCorrupt)
}

func TestMountAfterTornEntryWrite(t *testing.T) {
	fs, dev := newTestFS(t)

	_, err := fs.Write(1, []byte("committed"))
	require.NoError(t, err)

	// The next write loses power with its data flushed but its table
	// entry only half programmed.
	payload := []byte("never lands")
	dev.CutPowerAfter(len(payload) + 5)
	_, err = fs.Write(2, payload)
	assert.ErrorIs(t, err, mem.ErrPowerLoss)

	dev.PowerOn()
	fs2, err := nvs.New(dev, dev.Params(), testSectorSize, testSectorCount)
	require.NoError(t, err)
	require.NoError(t, fs2.Mount())

	assert.Equal(t, []byte("committed"), readValue(t, fs2, 1))
	_, err = fs2.Read(2, make([]byte, 16))
	assert.ErrorIs(t, err, nvs.ErrNotFound)

	// The torn slot is dead space; the id is writable again.
	_, err = fs2.Write(2, payload)
	require.NoError(t, err)
	assert.Equal(t, payload, readValue(t, fs2, 2))
}

// step is one operation of the power-cut workload. A nil value is a
// delete.
type step struct {
	id    uint16
	value []byte
}

func powerCutWorkload() []step {
	filler := func(fill byte) []byte { return bytes.Repeat([]byte{fill}, 150) }
	return []step{
		{1, []byte("alpha")},
		{2, []byte("beta-beta")},
		{1, []byte("gamma!")},
		{1, nil},
		{3, filler(0xA1)},
		{2, []byte("delta")},
		{3, filler(0xB2)},
		{1, []byte("epsilon")},
	}
}

// TestPowerCutRecovery sweeps a power cut across every byte position
// of a workload that spans plain writes, a delete and several
// compactions. Whatever the cut position, a remount must come up clean
// and every id must read exactly the value of its last completed
// write.
func TestPowerCutRecovery(t *testing.T) {
	for budget := 1; budget <= 1200; budget++ {
		dev := mem.New(testSectorSize*testSectorCount, testParams())
		fs, err := nvs.New(dev, dev.Params(), testSectorSize, testSectorCount)
		require.NoError(t, err)
		require.NoError(t, fs.Mount())

		dev.CutPowerAfter(budget)

		committed := make(map[uint16][]byte)
		for _, st := range powerCutWorkload() {
			_, err := fs.Write(st.id, st.value)
			if err != nil {
				require.ErrorIs(t, err, mem.ErrPowerLoss, "budget %d", budget)
				break
			}
			committed[st.id] = st.value
		}

		dev.PowerOn()
		fs2, err := nvs.New(dev, dev.Params(), testSectorSize, testSectorCount)
		require.NoError(t, err)
		require.NoError(t, fs2.Mount(), "budget %d", budget)

		for id := uint16(1); id <= 3; id++ {
			want, ok := committed[id]
			buf := make([]byte, 256)
			n, err := fs2.Read(id, buf)
			if !ok || want == nil {
				assert.ErrorIs(t, err, nvs.ErrNotFound, "budget %d id %d", budget, id)
				continue
			}
			require.NoError(t, err, "budget %d id %d", budget, id)
			assert.Equal(t, want, buf[:n], "budget %d id %d", budget, id)
		}

		// The recovered instance accepts new writes.
		_, err = fs2.Write(9, []byte("alive"))
		require.NoError(t, err, "budget %d", budget)
	}
}

// TestPowerCutDuringMount cuts power while mount-time recovery itself
// is replaying an interrupted compaction, then mounts again.
func TestPowerCutDuringMount(t *testing.T) {
	for recoveryBudget := 1; recoveryBudget <= 500; recoveryBudget += 3 {
		dev := mem.New(testSectorSize*testSectorCount, testParams())
		fs, err := nvs.New(dev, dev.Params(), testSectorSize, testSectorCount)
		require.NoError(t, err)
		require.NoError(t, fs.Mount())

		// Run the workload into a mid-compaction power cut.
		dev.CutPowerAfter(700)
		committed := make(map[uint16][]byte)
		for _, st := range powerCutWorkload() {
			if _, err := fs.Write(st.id, st.value); err != nil {
				break
			}
			committed[st.id] = st.value
		}

		// First recovery attempt dies too.
		dev.PowerOn()
		dev.CutPowerAfter(recoveryBudget)
		fs2, err := nvs.New(dev, dev.Params(), testSectorSize, testSectorCount)
		require.NoError(t, err)
		_ = fs2.Mount()

		// Second one must succeed and serve the committed state.
		dev.PowerOn()
		fs3, err := nvs.New(dev, dev.Params(), testSectorSize, testSectorCount)
		require.NoError(t, err)
		require.NoError(t, fs3.Mount(), "recovery budget %d", recoveryBudget)

		for id := uint16(1); id <= 3; id++ {
			want, ok := committed[id]
			buf := make([]byte, 256)
			n, err := fs3.Read(id, buf)
			if !ok || want == nil {
				assert.ErrorIs(t, err, nvs.ErrNotFound, "recovery budget %d id %d", recoveryBudget, id)
				continue
			}
			require.NoError(t, err, "recovery budget %d id %d", recoveryBudget, id)
			assert.Equal(t, want, buf[:n], "recovery budget %d id %d", recoveryBudget, id)
		}
	}
}
