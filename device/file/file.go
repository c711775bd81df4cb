// Package file implements a device backed by a plain image file, for
// host-side tooling and durable tests. The image holds the raw flash
// contents byte for byte; erases rewrite the range with the erase
// value.
//
// An open image is protected by an exclusive flock(2), so only one
// process can drive an engine instance against it at a time. Fresh
// images are created atomically: a crash during Create never leaves a
// half-initialized file behind.
package file

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"

	"github.com/sectorfs/nvs/device"
)

var (
	ErrLocked     = errors.New("file: image locked by another process")
	ErrOutOfRange = errors.New("file: access out of range")
)

// Device is an image-file backed flash device.
type Device struct {
	f      *os.File
	params device.Parameters
	size   int64
}

// Create writes a fully erased image of the given size to path. The
// image is staged in a temporary file and renamed into place.
func Create(path string, size int, params device.Parameters) error {
	if err := params.Validate(); err != nil {
		return err
	}
	img := bytes.Repeat([]byte{params.EraseValue}, size)
	if err := atomic.WriteFile(path, bytes.NewReader(img)); err != nil {
		return fmt.Errorf("file: create image: %w", err)
	}
	return nil
}

// Open opens an existing image and takes an exclusive advisory lock on
// it. It returns ErrLocked when another process already holds the
// image.
func Open(path string, params device.Parameters) (*Device, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("file: open image: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("file: lock image: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("file: stat image: %w", err)
	}
	return &Device{f: f, params: params, size: fi.Size()}, nil
}

// Params returns the medium parameters the image was opened with.
func (d *Device) Params() device.Parameters { return d.params }

// Size returns the image size in bytes.
func (d *Device) Size() int64 { return d.size }

// Close releases the lock and closes the image.
func (d *Device) Close() error {
	if err := unix.Flock(int(d.f.Fd()), unix.LOCK_UN); err != nil {
		d.f.Close()
		return fmt.Errorf("file: unlock image: %w", err)
	}
	return d.f.Close()
}

func (d *Device) check(off, size int64) error {
	if off < 0 || size < 0 || off+size > d.size {
		return fmt.Errorf("%w: off=%d size=%d image=%d", ErrOutOfRange, off, size, d.size)
	}
	return nil
}

func (d *Device) ReadAt(off int64, p []byte) error {
	if err := d.check(off, int64(len(p))); err != nil {
		return err
	}
	if _, err := d.f.ReadAt(p, off); err != nil {
		return fmt.Errorf("file: read image: %w", err)
	}
	return nil
}

func (d *Device) WriteAt(off int64, p []byte) error {
	if err := d.check(off, int64(len(p))); err != nil {
		return err
	}
	if _, err := d.f.WriteAt(p, off); err != nil {
		return fmt.Errorf("file: write image: %w", err)
	}
	// Device writes are synchronous; the engine relies on append order
	// surviving a crash.
	if err := d.f.Sync(); err != nil {
		return fmt.Errorf("file: sync image: %w", err)
	}
	return nil
}

func (d *Device) Erase(off int64, size int64) error {
	if err := d.check(off, size); err != nil {
		return err
	}
	blank := bytes.Repeat([]byte{d.params.EraseValue}, int(size))
	if _, err := d.f.WriteAt(blank, off); err != nil {
		return fmt.Errorf("file: erase image: %w", err)
	}
	if err := d.f.Sync(); err != nil {
		return fmt.Errorf("file: sync image: %w", err)
	}
	return nil
}
