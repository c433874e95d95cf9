package writerseeker

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterSeeker(t *testing.T) {
	ws := &WriterSeeker{}

	n, err := ws.Write([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, 11, n)

	// Overwrite in the middle.
	pos, err := ws.Seek(6, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, int64(6), pos)

	_, err = ws.Write([]byte("earth"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello earth"), ws.Bytes())

	// Append from the end.
	pos, err = ws.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, int64(11), pos)

	_, err = ws.Write([]byte("!"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello earth!"), ws.Bytes())
}

func TestWriterSeekerSparse(t *testing.T) {
	ws := &WriterSeeker{}

	_, err := ws.Seek(4, io.SeekStart)
	require.NoError(t, err)

	// Writing past the end fills the gap with zeros.
	_, err = ws.Write([]byte{0xff})
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0, 0xff}, ws.Bytes())
}

func TestWriterSeekerNegative(t *testing.T) {
	ws := &WriterSeeker{}
	_, err := ws.Seek(-1, io.SeekStart)
	require.ErrorIs(t, err, ErrNegativeResultPos)
}
