// Package mem implements an in-memory flash simulator. It honors the
// erase-before-write model closely enough for engine tests and can
// inject a power cut at an arbitrary byte position, leaving a torn
// write behind exactly the way interrupted hardware would.
package mem

import (
	"errors"
	"fmt"

	"github.com/sectorfs/nvs/device"
)

// ErrPowerLoss is returned once the injected write budget is spent.
// Bytes programmed before the cut remain in the image.
var ErrPowerLoss = errors.New("mem: simulated power loss")

var ErrOutOfRange = errors.New("mem: access out of range")

// Device is a RAM-backed flash image.
//
// Device is not safe for concurrent use; the engine serializes all
// access behind its own lock.
type Device struct {
	params device.Parameters
	buf    []byte

	// budget counts bytes that may still be programmed or erased
	// before the simulated power cut; -1 means unlimited.
	budget int
	down   bool
}

// New returns a fully erased image of the given size.
func New(size int, params device.Parameters) *Device {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = params.EraseValue
	}
	return &Device{params: params, buf: buf, budget: -1}
}

// Params returns the simulated medium parameters.
func (d *Device) Params() device.Parameters { return d.params }

// Bytes exposes the raw image for test assertions.
func (d *Device) Bytes() []byte { return d.buf }

// CutPowerAfter arranges for the device to fail after programming or
// erasing n more bytes. The failing operation applies its first n
// bytes and returns ErrPowerLoss; every later operation fails until
// PowerOn is called.
func (d *Device) CutPowerAfter(n int) {
	d.budget = n
	d.down = false
}

// PowerOn clears a previous power cut, as if the board rebooted.
func (d *Device) PowerOn() {
	d.budget = -1
	d.down = false
}

func (d *Device) check(off, size int64) error {
	if off < 0 || size < 0 || off+size > int64(len(d.buf)) {
		return fmt.Errorf("%w: off=%d size=%d image=%d", ErrOutOfRange, off, size, len(d.buf))
	}
	return nil
}

// spend returns how many of n bytes may be applied, tripping the
// power-loss state when the budget runs out.
func (d *Device) spend(n int) (int, error) {
	if d.down {
		return 0, ErrPowerLoss
	}
	if d.budget < 0 {
		return n, nil
	}
	if n <= d.budget {
		d.budget -= n
		return n, nil
	}
	allowed := d.budget
	d.budget = 0
	d.down = true
	return allowed, ErrPowerLoss
}

func (d *Device) ReadAt(off int64, p []byte) error {
	if err := d.check(off, int64(len(p))); err != nil {
		return err
	}
	copy(p, d.buf[off:])
	return nil
}

func (d *Device) WriteAt(off int64, p []byte) error {
	if err := d.check(off, int64(len(p))); err != nil {
		return err
	}
	if len(p)%d.params.WriteBlockSize != 0 {
		return fmt.Errorf("mem: write of %d bytes breaks block size %d", len(p), d.params.WriteBlockSize)
	}
	n, err := d.spend(len(p))
	copy(d.buf[off:], p[:n])
	return err
}

func (d *Device) Erase(off int64, size int64) error {
	if err := d.check(off, size); err != nil {
		return err
	}
	n, err := d.spend(int(size))
	for i := int64(0); i < int64(n); i++ {
		d.buf[off+i] = d.params.EraseValue
	}
	return err
}
