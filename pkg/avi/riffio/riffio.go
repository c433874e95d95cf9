// Package riffio provides little-endian primitives for RIFF streams.
package riffio

import (
	"fmt"
	"io"
)

// FourCC is a four-character code.
type FourCC [4]byte

// CC converts a string to a FourCC. Inputs longer than
// four bytes are truncated, shorter ones are zero padded.
func CC(s string) FourCC {
	var cc FourCC
	copy(cc[:], s)
	return cc
}

// String implements fmt.Stringer.
func (cc FourCC) String() string {
	return string(cc[:])
}

// Writer is the little-endian writer implementation.
type Writer struct {
	out io.Writer

	// TryError holds the first error occurred in TryXXX() methods.
	TryError error
}

// NewWriter returns a new Writer using the specified io.Writer as the output.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	return w.out.Write(p)
}

// WriteUint16 writes 16 bits.
func (w *Writer) WriteUint16(r uint16) error {
	_, err := w.Write([]byte{
		byte(r),
		byte(r >> 8),
	})
	return err
}

// WriteUint32 writes 32 bits.
func (w *Writer) WriteUint32(r uint32) error {
	_, err := w.Write([]byte{
		byte(r),
		byte(r >> 8),
		byte(r >> 16),
		byte(r >> 24),
	})
	return err
}

// WriteUint64 writes 64 bits.
func (w *Writer) WriteUint64(r uint64) error {
	_, err := w.Write([]byte{
		byte(r),
		byte(r >> 8),
		byte(r >> 16),
		byte(r >> 24),
		byte(r >> 32),
		byte(r >> 40),
		byte(r >> 48),
		byte(r >> 56),
	})
	return err
}

// WriteFourCC writes a four-character code.
func (w *Writer) WriteFourCC(cc FourCC) error {
	_, err := w.Write(cc[:])
	return err
}

// TryWrite tries to write len(p) bytes.
func (w *Writer) TryWrite(p []byte) {
	if w.TryError == nil {
		_, w.TryError = w.Write(p)
	}
}

// TryWriteUint16 tries to write 16 bits.
func (w *Writer) TryWriteUint16(r uint16) {
	if w.TryError == nil {
		w.TryError = w.WriteUint16(r)
	}
}

// TryWriteUint32 tries to write 32 bits.
func (w *Writer) TryWriteUint32(r uint32) {
	if w.TryError == nil {
		w.TryError = w.WriteUint32(r)
	}
}

// TryWriteUint64 tries to write 64 bits.
func (w *Writer) TryWriteUint64(r uint64) {
	if w.TryError == nil {
		w.TryError = w.WriteUint64(r)
	}
}

// TryWriteFourCC tries to write a four-character code.
func (w *Writer) TryWriteFourCC(cc FourCC) {
	if w.TryError == nil {
		w.TryError = w.WriteFourCC(cc)
	}
}

// TryWriteZero tries to write n zero bytes.
func (w *Writer) TryWriteZero(n int) {
	if w.TryError == nil {
		_, w.TryError = w.Write(make([]byte, n))
	}
}

// Reader is the little-endian reader implementation.
type Reader struct {
	in io.Reader

	// TryError holds the first error occurred in TryXXX() methods.
	TryError error
}

// NewReader returns a new Reader using the specified io.Reader as the input.
func NewReader(in io.Reader) *Reader {
	return &Reader{in: in}
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	return r.in.Read(p)
}

// ReadFull reads exactly len(p) bytes.
func (r *Reader) ReadFull(p []byte) error {
	if _, err := io.ReadFull(r.in, p); err != nil {
		return fmt.Errorf("read %d bytes: %w", len(p), err)
	}
	return nil
}

// ReadUint16 reads 16 bits.
func (r *Reader) ReadUint16() (uint16, error) {
	var b [2]byte
	if err := r.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

// ReadInt16 reads 16 bits as a signed value.
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads 32 bits.
func (r *Reader) ReadUint32() (uint32, error) {
	var b [4]byte
	if err := r.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 |
		uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// ReadUint64 reads 64 bits.
func (r *Reader) ReadUint64() (uint64, error) {
	var b [8]byte
	if err := r.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return uint64(b[0]) | uint64(b[1])<<8 |
		uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 |
		uint64(b[6])<<48 | uint64(b[7])<<56, nil
}

// ReadFourCC reads a four-character code.
func (r *Reader) ReadFourCC() (FourCC, error) {
	var cc FourCC
	err := r.ReadFull(cc[:])
	return cc, err
}

// Skip discards n bytes.
func (r *Reader) Skip(n int64) error {
	if _, err := io.CopyN(io.Discard, r.in, n); err != nil {
		return fmt.Errorf("skip %d bytes: %w", n, err)
	}
	return nil
}

// TryReadUint16 tries to read 16 bits.
func (r *Reader) TryReadUint16() uint16 {
	if r.TryError != nil {
		return 0
	}
	v, err := r.ReadUint16()
	r.TryError = err
	return v
}

// TryReadInt16 tries to read 16 bits as a signed value.
func (r *Reader) TryReadInt16() int16 {
	return int16(r.TryReadUint16())
}

// TryReadUint32 tries to read 32 bits.
func (r *Reader) TryReadUint32() uint32 {
	if r.TryError != nil {
		return 0
	}
	v, err := r.ReadUint32()
	r.TryError = err
	return v
}

// TryReadUint64 tries to read 64 bits.
func (r *Reader) TryReadUint64() uint64 {
	if r.TryError != nil {
		return 0
	}
	v, err := r.ReadUint64()
	r.TryError = err
	return v
}

// TryReadFourCC tries to read a four-character code.
func (r *Reader) TryReadFourCC() FourCC {
	if r.TryError != nil {
		return FourCC{}
	}
	cc, err := r.ReadFourCC()
	r.TryError = err
	return cc
}
