package avi

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"avikit/pkg/avi/riffio"
	"avikit/pkg/avi/writerseeker"
	"avikit/pkg/log"
)

func testOptions() Options {
	return Options{
		Width:  640,
		Height: 480,
		FourCC: "I420",
		FPS:    30,
	}
}

// chunkBytes is the on-disk footprint of a data chunk.
func chunkBytes(payload int) int64 {
	return chunkHeaderSize + int64(payload) + int64(wordPad(payload))
}

func TestMuxerFixedScenario(t *testing.T) {
	ws := &writerseeker.WriterSeeker{}
	m, err := NewMuxer(ws, testOptions(), nil)
	require.NoError(t, err)

	frame := bytes.Repeat([]byte{0xab}, 3072)
	for i := 0; i < 90; i++ {
		require.NoError(t, m.AddFrame(frame, i%10 == 0))
	}
	require.NoError(t, m.Close())

	out := ws.Bytes()
	require.Equal(t, []byte("RIFF"), out[:4])
	require.Equal(t, []byte("AVI "), out[8:12])

	report, err := NewReader(ws.BytesReader(), nil).Probe()
	require.NoError(t, err)

	require.Equal(t, uint32(len(out)-8), report.RIFFSize)
	require.True(t, report.MainFound)
	require.Equal(t, uint32(33333), report.Main.MicroSecPerFrame)
	require.Equal(t, uint32(640*480*3*31), report.Main.MaxBytesPerSec)
	require.Equal(t, uint32(FlagHasIndex), report.Main.Flags)
	require.Equal(t, uint32(90), report.Main.TotalFrames)
	require.Equal(t, uint32(1), report.Main.Streams)
	require.Equal(t, uint32(640*480*12/8), report.Main.SuggestedBufferSize)
	require.Equal(t, uint32(640), report.Main.Width)
	require.Equal(t, uint32(480), report.Main.Height)

	require.Len(t, report.Streams, 1)
	vids := report.Streams[0]
	require.Equal(t, riffio.CC("vids"), vids.Type)
	require.Equal(t, riffio.CC("I420"), vids.Handler)
	require.Equal(t, uint32(33333), vids.Scale)
	require.Equal(t, uint32(1000000), vids.Rate)
	require.Equal(t, uint32(90), vids.Length)

	require.Equal(t, 90, report.VideoChunks)
	require.Equal(t, 0, report.AudioChunks)
	require.Equal(t, uint32(4+90*(chunkHeaderSize+3072)), report.MoviSize)
}

func TestMuxerWithAudio(t *testing.T) {
	opts := testOptions()
	opts.Audio = &AudioSpec{
		Channels:      2,
		BitsPerSample: 16,
		SamplesPerSec: 44100,
	}

	ws := &writerseeker.WriterSeeker{}
	m, err := NewMuxer(ws, opts, nil)
	require.NoError(t, err)

	var moviPayload int64
	block := bytes.Repeat([]byte{1}, 1470)
	for i := 0; i < 10; i++ {
		require.NoError(t, m.AddFrame([]byte{2, 2, 2}, i == 0))
		require.NoError(t, m.AddAudio(block))
		moviPayload += chunkBytes(3) + chunkBytes(1470)
	}
	require.NoError(t, m.Close())

	report, err := NewReader(ws.BytesReader(), nil).Probe()
	require.NoError(t, err)

	require.Equal(t, uint32(2), report.Main.Streams)
	require.Len(t, report.Streams, 2)

	auds := report.Streams[1]
	require.Equal(t, riffio.CC("auds"), auds.Type)
	require.Equal(t, riffio.FourCC{1, 0, 0, 0}, auds.Handler)
	require.Equal(t, uint32(1), auds.Scale)
	require.Equal(t, uint32(44100), auds.Rate)
	require.Equal(t, uint32(0xFFFFFFFF), auds.Quality)
	require.Equal(t, uint32(4), auds.SampleSize)
	// Audio length counts padded bytes, 1470 rounds up to 1472.
	require.Equal(t, uint32(10*1472), auds.Length)

	require.Equal(t, 10, report.VideoChunks)
	require.Equal(t, 10, report.AudioChunks)
	require.Equal(t, uint32(4+moviPayload), report.MoviSize)
}

func TestMuxerWordAlignment(t *testing.T) {
	ws := &writerseeker.WriterSeeker{}
	m, err := NewMuxer(ws, testOptions(), nil)
	require.NoError(t, err)

	payload := make([]byte, 4095)
	var moviPayload int64
	for n := 1; n <= 4095; n++ {
		require.NoError(t, m.AddFrame(payload[:n], true))
		moviPayload += chunkBytes(n)
	}
	require.NoError(t, m.Close())

	report, err := NewReader(ws.BytesReader(), nil).Probe()
	require.NoError(t, err)
	require.Equal(t, uint32(4+moviPayload), report.MoviSize)
	require.Equal(t, 4095, report.VideoChunks)
	require.Equal(t, uint32(len(ws.Bytes())-8), report.RIFFSize)
}

func TestMuxerPageRollover(t *testing.T) {
	ws := &writerseeker.WriterSeeker{}
	m, err := NewMuxer(ws, testOptions(), nil)
	require.NoError(t, err)

	// Shrink the page range so rollover happens without gigabytes
	// of payload. 1008-byte chunks roll over after five.
	m.video.limit = 4096

	frame := make([]byte, 1000)
	for i := 0; i < 12; i++ {
		require.NoError(t, m.AddFrame(frame, i%5 == 0))
	}
	require.NoError(t, m.Close())

	require.Len(t, m.video.pages, 3)
	require.Equal(t, uint32(5), m.video.pages[0].duration)
	require.Equal(t, uint32(5), m.video.pages[1].duration)
	require.Equal(t, uint32(2), m.video.pages[2].duration)

	// No record lost or duplicated across page boundaries.
	var total uint32
	for _, p := range m.video.pages {
		total += p.duration
	}
	require.Equal(t, uint32(12), total)

	report, err := NewReader(ws.BytesReader(), nil).Probe()
	require.NoError(t, err)
	require.Equal(t, uint32(12), report.Main.TotalFrames)
	require.Equal(t, 12, report.VideoChunks)
	require.Equal(t, uint32(len(ws.Bytes())-8), report.RIFFSize)
}

func TestMuxerLegacyIndex(t *testing.T) {
	opts := testOptions()
	opts.LegacyIndex = true
	opts.Audio = &AudioSpec{
		Channels:      1,
		BitsPerSample: 16,
		SamplesPerSec: 8000,
	}

	ws := &writerseeker.WriterSeeker{}
	m, err := NewMuxer(ws, opts, nil)
	require.NoError(t, err)

	require.NoError(t, m.AddFrame(make([]byte, 100), true))
	require.NoError(t, m.AddAudio(make([]byte, 256)))
	require.NoError(t, m.AddFrame(make([]byte, 100), false))
	require.NoError(t, m.AddAudio(make([]byte, 256)))
	require.NoError(t, m.AddFrame(make([]byte, 99), false))
	require.NoError(t, m.Close())

	// Every index entry must resolve to a matching chunk on disk.
	warnings := &bytes.Buffer{}
	logger := log.NewLogger(warnings, log.LevelWarning)
	report, err := NewReader(ws.BytesReader(), logger).Probe()
	require.NoError(t, err)
	require.Empty(t, warnings.String())

	require.Equal(t, 5, report.IndexEntries)
	require.Equal(t, 3, report.VideoChunks)
	require.Equal(t, 2, report.AudioChunks)
	require.Equal(t, uint32(3), report.Main.TotalFrames)
}

func TestMuxerSetCodec(t *testing.T) {
	// Retagging the codec before close must produce the same bytes
	// as opening with the final codec directly.
	frames := [][]byte{
		bytes.Repeat([]byte{1}, 128),
		bytes.Repeat([]byte{2}, 77),
	}

	mux := func(fourcc, newFourCC string) []byte {
		ws := &writerseeker.WriterSeeker{}
		opts := testOptions()
		opts.FourCC = fourcc
		m, err := NewMuxer(ws, opts, nil)
		require.NoError(t, err)
		if newFourCC != "" {
			require.NoError(t, m.SetCodec(newFourCC))
		}
		for i, f := range frames {
			require.NoError(t, m.AddFrame(f, i == 0))
		}
		require.NoError(t, m.Close())
		return ws.Bytes()
	}

	require.Equal(t, mux("I420", ""), mux("X264", "I420"))
}

func TestMuxerSetFramerate(t *testing.T) {
	ws := &writerseeker.WriterSeeker{}
	m, err := NewMuxer(ws, testOptions(), nil)
	require.NoError(t, err)

	require.ErrorIs(t, m.SetFramerate(0), ErrInvalidFramerate)
	require.ErrorIs(t, m.SetFramerate(-25), ErrInvalidFramerate)
	require.NoError(t, m.SetFramerate(60))

	require.NoError(t, m.AddFrame([]byte{1}, true))
	require.NoError(t, m.Close())

	report, err := NewReader(ws.BytesReader(), nil).Probe()
	require.NoError(t, err)
	require.Equal(t, uint32(16667), report.Main.MicroSecPerFrame)
	require.Equal(t, uint32(16667), report.Streams[0].Scale)
}

func TestMuxerSetSize(t *testing.T) {
	ws := &writerseeker.WriterSeeker{}
	m, err := NewMuxer(ws, testOptions(), nil)
	require.NoError(t, err)

	require.NoError(t, m.SetSize(320, 240))
	require.NoError(t, m.AddFrame([]byte{1}, true))
	require.NoError(t, m.Close())

	report, err := NewReader(ws.BytesReader(), nil).Probe()
	require.NoError(t, err)
	require.Equal(t, uint32(320), report.Main.Width)
	require.Equal(t, uint32(240), report.Main.Height)
	require.Equal(t, int16(320), report.Streams[0].Frame.Right)
	require.Equal(t, int16(240), report.Streams[0].Frame.Bottom)
}

func TestMuxerErrors(t *testing.T) {
	t.Run("invalidFramerate", func(t *testing.T) {
		opts := testOptions()
		opts.FPS = 0
		_, err := NewMuxer(&writerseeker.WriterSeeker{}, opts, nil)
		require.ErrorIs(t, err, ErrInvalidFramerate)
	})
	t.Run("invalidFramerateNoFile", func(t *testing.T) {
		opts := testOptions()
		opts.FPS = -1
		path := filepath.Join(t.TempDir(), "out.avi")
		_, err := CreateFile(path, opts, nil)
		require.ErrorIs(t, err, ErrInvalidFramerate)

		_, err = os.Stat(path)
		require.True(t, os.IsNotExist(err))
	})
	t.Run("emptyPayload", func(t *testing.T) {
		m, err := NewMuxer(&writerseeker.WriterSeeker{}, testOptions(), nil)
		require.NoError(t, err)
		require.ErrorIs(t, m.AddFrame(nil, true), ErrEmptyPayload)
	})
	t.Run("noAudioStream", func(t *testing.T) {
		m, err := NewMuxer(&writerseeker.WriterSeeker{}, testOptions(), nil)
		require.NoError(t, err)
		require.ErrorIs(t, m.AddAudio([]byte{1}), ErrNoAudioStream)
	})
	t.Run("closed", func(t *testing.T) {
		m, err := NewMuxer(&writerseeker.WriterSeeker{}, testOptions(), nil)
		require.NoError(t, err)
		require.NoError(t, m.AddFrame([]byte{1}, true))
		require.NoError(t, m.Close())

		require.ErrorIs(t, m.AddFrame([]byte{1}, true), ErrSessionClosed)
		require.ErrorIs(t, m.AddAudio([]byte{1}), ErrSessionClosed)
		require.ErrorIs(t, m.SetFramerate(30), ErrSessionClosed)
		require.ErrorIs(t, m.SetCodec("I420"), ErrSessionClosed)
		require.ErrorIs(t, m.SetSize(1, 1), ErrSessionClosed)
		require.ErrorIs(t, m.Close(), ErrSessionClosed)
	})
}

func TestCreateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.avi")
	m, err := CreateFile(path, testOptions(), nil)
	require.NoError(t, err)

	require.NoError(t, m.AddFrame(bytes.Repeat([]byte{7}, 64), true))
	require.NoError(t, m.Close())

	r, err := OpenFile(path, nil)
	require.NoError(t, err)
	defer r.Close()

	report, err := r.Probe()
	require.NoError(t, err)
	require.Equal(t, uint32(1), report.Main.TotalFrames)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, uint32(fi.Size()-8), report.RIFFSize)
}
