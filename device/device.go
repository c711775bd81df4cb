// Package device defines the boundary between the storage engine and
// the physical medium. The engine talks to anything that can read,
// program and erase byte ranges; the host environment supplies the
// implementation together with the medium's immutable Parameters.
//
// Implementations in device/mem and device/file cover host-side use:
// a RAM simulator with fault injection for tests, and an image file
// for tooling.
package device

import (
	"errors"
	"fmt"
)

// Device is the raw storage collaborator. All offsets are absolute
// within the device. Calls are synchronous and blocking; the engine
// performs no retries and models no timeouts.
//
// WriteAt programs previously erased cells. Implementations are not
// required to detect reprogramming without an intervening Erase.
type Device interface {
	ReadAt(off int64, p []byte) error
	WriteAt(off int64, p []byte) error
	Erase(off int64, size int64) error
}

// Parameters describe the medium. They are fixed for the life of a
// device.
type Parameters struct {
	// WriteBlockSize is the minimum program granularity in bytes.
	WriteBlockSize int

	// EraseValue is the byte every cell reads as after an erase,
	// typically 0xFF on NOR flash.
	EraseValue byte

	// PageSize is the flash page boundary; sector sizes must be a
	// multiple of it. A value of 0 means no page constraint (EEPROM
	// style media with single byte granularity).
	PageSize int
}

var ErrInvalidParameters = errors.New("device: invalid parameters")

// Validate checks that the parameters are usable by the engine.
func (p Parameters) Validate() error {
	if p.WriteBlockSize <= 0 {
		return fmt.Errorf("%w: write block size %d", ErrInvalidParameters, p.WriteBlockSize)
	}
	if p.PageSize < 0 {
		return fmt.Errorf("%w: page size %d", ErrInvalidParameters, p.PageSize)
	}
	if p.PageSize > 0 && p.PageSize%p.WriteBlockSize != 0 {
		return fmt.Errorf("%w: page size %d not a multiple of write block size %d",
			ErrInvalidParameters, p.PageSize, p.WriteBlockSize)
	}
	return nil
}
