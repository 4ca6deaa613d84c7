package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Device is a small byte-addressable non-volatile memory.
type Device interface {
	io.ReaderAt
	io.WriterAt
	// Size returns the capacity in bytes.
	Size() int64
}

// erased is the value of a never-written cell.
const erased = 0xFF

// MemDevice is an in-memory device. It starts erased and records how
// many bytes have been written, for wear accounting in tests.
type MemDevice struct {
	buf []byte

	// Writes counts WriteAt calls.
	Writes int
	// BytesWritten counts bytes passed to WriteAt.
	BytesWritten int
	// WriteError, if set, is returned by WriteAt without writing.
	WriteError error
}

// NewMemDevice creates an erased device of the given size.
func NewMemDevice(size int) *MemDevice {
	return &MemDevice{buf: bytes.Repeat([]byte{erased}, size)}
}

// ReadAt implements io.ReaderAt.
func (m *MemDevice) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt.
func (m *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	if m.WriteError != nil {
		return 0, m.WriteError
	}
	if off < 0 || off+int64(len(p)) > int64(len(m.buf)) {
		return 0, fmt.Errorf("write %d bytes at %d: %w", len(p), off, ErrShortDevice)
	}
	m.Writes++
	m.BytesWritten += len(p)
	return copy(m.buf[off:], p), nil
}

// Size returns the capacity in bytes.
func (m *MemDevice) Size() int64 {
	return int64(len(m.buf))
}

// Bytes returns the raw contents.
func (m *MemDevice) Bytes() []byte {
	return m.buf
}

// FileDevice is a device backed by a file. This covers both a plain image
// file and the sysfs node of an I2C EEPROM bound to the at24 driver
// (e.g. /sys/bus/i2c/devices/1-0050/eeprom).
type FileDevice struct {
	f    *os.File
	size int64
}

// OpenFile opens the device at path. A regular file shorter than size is
// created or extended with erased cells.
func OpenFile(path string, size int64) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat storage: %w", err)
	}

	have := st.Size()
	if have < size {
		if !st.Mode().IsRegular() {
			f.Close()
			return nil, fmt.Errorf("storage %s has %d bytes, need %d: %w", path, have, size, ErrShortDevice)
		}
		pad := bytes.Repeat([]byte{erased}, int(size-have))
		if _, err := f.WriteAt(pad, have); err != nil {
			f.Close()
			return nil, fmt.Errorf("extend storage: %w", err)
		}
		have = size
	}

	return &FileDevice{f: f, size: have}, nil
}

// ReadAt implements io.ReaderAt.
func (d *FileDevice) ReadAt(p []byte, off int64) (int, error) {
	return d.f.ReadAt(p, off)
}

// WriteAt implements io.WriterAt. Each write is synced before returning.
func (d *FileDevice) WriteAt(p []byte, off int64) (int, error) {
	n, err := d.f.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	if err := d.f.Sync(); err != nil {
		return n, fmt.Errorf("sync storage: %w", err)
	}
	return n, nil
}

// Size returns the capacity in bytes.
func (d *FileDevice) Size() int64 {
	return d.size
}

// Close releases the file.
func (d *FileDevice) Close() error {
	return d.f.Close()
}
