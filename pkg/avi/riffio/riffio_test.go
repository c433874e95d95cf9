package riffio

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf)

	w.TryWriteFourCC(CC("RIFF"))
	w.TryWriteUint32(0x11223344)
	w.TryWriteUint16(0x5566)
	w.TryWriteUint64(0x1)
	w.TryWrite([]byte{0xaa})
	w.TryWriteZero(3)
	require.NoError(t, w.TryError)

	expected := []byte{
		'R', 'I', 'F', 'F',
		0x44, 0x33, 0x22, 0x11,
		0x66, 0x55,
		1, 0, 0, 0, 0, 0, 0, 0,
		0xaa,
		0, 0, 0,
	}
	require.Equal(t, expected, buf.Bytes())
}

type failWriter struct{ calls int }

var errWriteFailed = errors.New("write failed")

func (w *failWriter) Write(p []byte) (int, error) {
	w.calls++
	return 0, errWriteFailed
}

func TestWriterSticky(t *testing.T) {
	fw := &failWriter{}
	w := NewWriter(fw)

	w.TryWriteUint32(1)
	w.TryWriteUint32(2)
	w.TryWriteFourCC(CC("LIST"))

	require.ErrorIs(t, w.TryError, errWriteFailed)
	require.Equal(t, 1, fw.calls)
}

func TestReader(t *testing.T) {
	data := []byte{
		'A', 'V', 'I', ' ',
		0x44, 0x33, 0x22, 0x11,
		0x66, 0x55,
		0xff, 0xff,
		9, 9, // skipped.
		2, 0, 0, 0, 0, 0, 0, 0,
	}
	r := NewReader(bytes.NewReader(data))

	cc, err := r.ReadFourCC()
	require.NoError(t, err)
	require.Equal(t, CC("AVI "), cc)

	v32, err := r.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(0x11223344), v32)

	v16, err := r.ReadUint16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x5566), v16)

	i16, err := r.ReadInt16()
	require.NoError(t, err)
	require.Equal(t, int16(-1), i16)

	require.NoError(t, r.Skip(2))

	v64, err := r.ReadUint64()
	require.NoError(t, err)
	require.Equal(t, uint64(2), v64)

	_, err = r.ReadUint32()
	require.ErrorIs(t, err, io.EOF)
}

func TestReaderSticky(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 0, 0, 0}))

	require.Equal(t, uint32(1), r.TryReadUint32())
	r.TryReadUint32()
	r.TryReadUint16()
	require.Error(t, r.TryError)
}

func TestCC(t *testing.T) {
	require.Equal(t, FourCC{'m', 'o', 'v', 'i'}, CC("movi"))
	require.Equal(t, "movi", CC("movi").String())
}
