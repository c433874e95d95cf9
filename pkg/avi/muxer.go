package avi

import (
	"errors"
	"fmt"
	"io"
	"os"

	"avikit/pkg/avi/riffio"
	"avikit/pkg/log"
)

// Session errors.
var (
	ErrInvalidFramerate = errors.New("framerate must be positive")
	ErrEmptyPayload     = errors.New("empty payload")
	ErrSessionClosed    = errors.New("session is closed")
	ErrNoAudioStream    = errors.New("session has no audio stream")
	ErrUnpatched        = errors.New("unpatched placeholder")
)

// Options configure a mux session.
type Options struct {
	Width  uint32
	Height uint32
	FourCC string // Codec four-character code, e.g. "I420".
	FPS    float64
	Audio  *AudioSpec // nil disables the audio stream.

	// LegacyIndex selects a single idx1 chunk at close over
	// per-stream OpenDML index pages.
	LegacyIndex bool
}

// placeholder is a size field written before its value is known and
// patched during Close.
type placeholder struct {
	name    string
	offset  int64
	patched bool
}

// Muxer is a write session on a single AVI output stream.
// Not safe for concurrent use.
type Muxer struct {
	out    io.WriteSeeker
	closer io.Closer // Owned file handle, if any.
	w      *riffio.Writer
	logger log.ILogger

	opts         Options
	fourcc       riffio.FourCC
	bitsPerPixel uint32

	mainHeader  MainHeader
	videoHeader StreamHeader
	videoFormat VideoFormat
	audioHeader StreamHeader
	audioFormat AudioFormat
	audioOn     bool

	video streamIndex
	audio streamIndex

	placeholders []*placeholder
	riffSize     *placeholder
	moviSize     *placeholder // The movi LIST size marker.
	headerList   *placeholder
	moviStart    int64 // Position after the movi list type tag.

	closed bool
}

// CreateFile creates path and opens a mux session on it. The
// configuration is validated before the file is created, so an
// invalid framerate leaves no file behind.
func CreateFile(path string, opts Options, logger log.ILogger) (*Muxer, error) {
	if opts.FPS <= 0 {
		return nil, ErrInvalidFramerate
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	m, err := NewMuxer(f, opts, logger)
	if err != nil {
		f.Close()
		return nil, err
	}
	m.closer = f
	return m, nil
}

// NewMuxer opens a mux session on out and writes the file prologue:
// the RIFF header, the header list and the movi list opening. The
// three deferred size fields are remembered and patched at Close.
func NewMuxer(out io.WriteSeeker, opts Options, logger log.ILogger) (*Muxer, error) {
	if logger == nil {
		logger = log.NewMockLogger()
	}
	if opts.FPS <= 0 {
		return nil, ErrInvalidFramerate
	}
	if !ValidFourCC(opts.FourCC) {
		logger.Warn().Src("avi").
			Msgf("fourcc does not seem to be valid: %q", opts.FourCC)
	}

	m := &Muxer{
		out:    out,
		w:      riffio.NewWriter(out),
		logger: logger,
		opts:   opts,
		fourcc: riffio.CC(opts.FourCC),
		video:  newStreamIndex(tagVideoChunk, tagVideoIndex),
		audio:  newStreamIndex(tagAudioChunk, tagAudioIndex),
	}

	usec := uint32(1000000.0/opts.FPS + 0.5)
	m.bitsPerPixel = bitsPerPixel(opts.FourCC)

	bits := opts.Width * opts.Height * m.bitsPerPixel
	if bits%8 != 0 {
		logger.Warn().Src("avi").
			Msgf("frame buffer not on a byte boundary: %dx%d:%d",
				opts.Width, opts.Height, m.bitsPerPixel)
	}
	bufSize := bits / 8

	m.mainHeader = MainHeader{
		MicroSecPerFrame:    usec,
		MaxBytesPerSec:      opts.Width * opts.Height * 3 * (uint32(opts.FPS) + 1),
		Flags:               FlagHasIndex,
		Streams:             1,
		SuggestedBufferSize: bufSize,
		Width:               opts.Width,
		Height:              opts.Height,
	}
	m.videoHeader = StreamHeader{
		Type:                tagVids,
		Handler:             m.fourcc,
		Scale:               usec,
		Rate:                1000000,
		SuggestedBufferSize: bufSize,
		Frame: Rect{
			Right:  int16(opts.Width),
			Bottom: int16(opts.Height),
		},
	}
	m.videoFormat = VideoFormat{
		HeaderSize:  VideoFormatSize,
		Width:       opts.Width,
		Height:      opts.Height,
		Planes:      1,
		BitCount:    uint16(m.bitsPerPixel),
		Compression: compressionTag(m.fourcc),
		SizeImage:   bufSize,
	}

	if a := opts.Audio; a != nil {
		bytesPerSec := uint32(a.Channels) * uint32(a.BitsPerSample/8) * a.SamplesPerSec
		blockAlign := a.Channels * (a.BitsPerSample / 8)

		m.mainHeader.Streams = 2
		m.audioHeader = StreamHeader{
			Type:                tagAuds,
			Handler:             riffio.FourCC{1, 0, 0, 0}, // PCM.
			Scale:               1,
			Rate:                a.SamplesPerSec,
			SuggestedBufferSize: bytesPerSec,
			Quality:             0xFFFFFFFF, // Driver default.
			SampleSize:          uint32(blockAlign),
		}
		m.audioFormat = AudioFormat{
			FormatTag:      1, // PCM.
			Channels:       a.Channels,
			SamplesPerSec:  a.SamplesPerSec,
			AvgBytesPerSec: bytesPerSec,
			BlockAlign:     blockAlign,
			BitsPerSample:  a.BitsPerSample,
		}
		m.audioOn = true
	}

	if err := m.writePrologue(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Muxer) writePrologue() error {
	if err := m.w.WriteFourCC(tagRIFF); err != nil {
		return fmt.Errorf("write riff tag: %w", err)
	}
	var err error
	if m.riffSize, err = m.reserve("riff size"); err != nil {
		return err
	}
	if err := m.w.WriteFourCC(tagAVI); err != nil {
		return fmt.Errorf("write form type: %w", err)
	}

	// The header list starts at byte 12 and is rewritten in place
	// during Close.
	hdrlPos, err := m.pos()
	if err != nil {
		return err
	}
	m.headerList = &placeholder{name: "header list", offset: hdrlPos}
	m.placeholders = append(m.placeholders, m.headerList)
	if err := m.writeHeaderList(); err != nil {
		return fmt.Errorf("write header list: %w", err)
	}

	if err := m.w.WriteFourCC(tagLIST); err != nil {
		return fmt.Errorf("write movi list tag: %w", err)
	}
	if m.moviSize, err = m.reserve("movi size"); err != nil {
		return err
	}
	if err := m.w.WriteFourCC(tagMovi); err != nil {
		return fmt.Errorf("write movi type: %w", err)
	}
	if m.moviStart, err = m.pos(); err != nil {
		return err
	}
	return nil
}

func (m *Muxer) pos() (int64, error) {
	return m.out.Seek(0, io.SeekCurrent)
}

// reserve writes a zero size field and remembers its position.
func (m *Muxer) reserve(name string) (*placeholder, error) {
	off, err := m.pos()
	if err != nil {
		return nil, err
	}
	if err := m.w.WriteUint32(0); err != nil {
		return nil, fmt.Errorf("reserve %s: %w", name, err)
	}
	p := &placeholder{name: name, offset: off}
	m.placeholders = append(m.placeholders, p)
	return p, nil
}

// patch rewrites a reserved size field and returns to the previous
// position.
func (m *Muxer) patch(p *placeholder, value uint32) error {
	cur, err := m.pos()
	if err != nil {
		return err
	}
	if _, err := m.out.Seek(p.offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek to %s: %w", p.name, err)
	}
	if err := m.w.WriteUint32(value); err != nil {
		return fmt.Errorf("patch %s: %w", p.name, err)
	}
	if _, err := m.out.Seek(cur, io.SeekStart); err != nil {
		return fmt.Errorf("seek back from %s: %w", p.name, err)
	}
	p.patched = true
	return nil
}

// headerListSizes returns the hdrl LIST size and the per-stream strl
// sizes. All three are fixed for the lifetime of the session.
func (m *Muxer) headerListSizes() (hdrl, strlV, strlA uint32) {
	var indexChunk uint32
	if !m.opts.LegacyIndex {
		indexChunk = chunkHeaderSize + superIndexSize
	}
	strlV = 4 +
		(chunkHeaderSize + StreamHeaderSize) +
		(chunkHeaderSize + VideoFormatSize) +
		indexChunk
	strlA = 4 +
		(chunkHeaderSize + StreamHeaderSize) +
		(chunkHeaderSize + AudioFormatSize + uint32(wordPad(AudioFormatSize))) +
		indexChunk
	hdrl = 4 + (chunkHeaderSize + MainHeaderSize) + (chunkHeaderSize + strlV)
	if m.audioOn {
		hdrl += chunkHeaderSize + strlA
	}
	return hdrl, strlV, strlA
}

// writeHeaderList writes the hdrl LIST: the avih chunk and one strl
// list per stream. Called once at open and again at Close to rewrite
// the list in place with the final totals and the populated
// super-indexes, so its marshaled size must never change.
func (m *Muxer) writeHeaderList() error {
	hdrl, strlV, strlA := m.headerListSizes()
	w := m.w

	w.TryWriteFourCC(tagLIST)
	w.TryWriteUint32(hdrl)
	w.TryWriteFourCC(tagHdrl)

	w.TryWriteFourCC(tagAvih)
	w.TryWriteUint32(MainHeaderSize)
	m.mainHeader.Marshal(w)

	w.TryWriteFourCC(tagLIST)
	w.TryWriteUint32(strlV)
	w.TryWriteFourCC(tagStrl)
	w.TryWriteFourCC(tagStrh)
	w.TryWriteUint32(StreamHeaderSize)
	m.videoHeader.Marshal(w)
	w.TryWriteFourCC(tagStrf)
	w.TryWriteUint32(VideoFormatSize)
	m.videoFormat.Marshal(w)
	if !m.opts.LegacyIndex {
		w.TryWriteFourCC(tagIndx)
		w.TryWriteUint32(superIndexSize)
		m.video.marshalSuperIndex(w)
	}

	if m.audioOn {
		w.TryWriteFourCC(tagLIST)
		w.TryWriteUint32(strlA)
		w.TryWriteFourCC(tagStrl)
		w.TryWriteFourCC(tagStrh)
		w.TryWriteUint32(StreamHeaderSize)
		m.audioHeader.Marshal(w)
		w.TryWriteFourCC(tagStrf)
		w.TryWriteUint32(AudioFormatSize)
		m.audioFormat.Marshal(w)
		w.TryWriteZero(wordPad(AudioFormatSize))
		if !m.opts.LegacyIndex {
			w.TryWriteFourCC(tagIndx)
			w.TryWriteUint32(superIndexSize)
			m.audio.marshalSuperIndex(w)
		}
	}
	return w.TryError
}

// writeChunk writes tag, size, payload and word padding.
func (m *Muxer) writeChunk(id riffio.FourCC, payload []byte) error {
	w := m.w
	w.TryWriteFourCC(id)
	w.TryWriteUint32(uint32(len(payload)))
	w.TryWrite(payload)
	w.TryWriteZero(wordPad(len(payload)))
	if w.TryError != nil {
		return fmt.Errorf("write %s chunk: %w", id, w.TryError)
	}
	return nil
}

// AddFrame appends one compressed video frame. keyframe marks the
// chunk as a sync point in the index.
func (m *Muxer) AddFrame(frame []byte, keyframe bool) error {
	if m.closed {
		return ErrSessionClosed
	}
	if len(frame) == 0 {
		return ErrEmptyPayload
	}
	pos, err := m.pos()
	if err != nil {
		return err
	}

	if !m.opts.LegacyIndex && m.video.needsFlush(pos) {
		n, err := m.video.flushPage(m.w, pos)
		if err != nil {
			return err
		}
		pos += n
	}

	m.videoHeader.Length++
	m.video.add(pos, uint32(len(frame)), keyframe)
	return m.writeChunk(tagVideoChunk, frame)
}

// AddAudio appends one raw audio block. Audio chunks are always
// index sync points. The overflow check runs against the audio
// stream's own page base, bounding each stream independently.
func (m *Muxer) AddAudio(buf []byte) error {
	if m.closed {
		return ErrSessionClosed
	}
	if !m.audioOn {
		return ErrNoAudioStream
	}
	if len(buf) == 0 {
		return ErrEmptyPayload
	}
	pos, err := m.pos()
	if err != nil {
		return err
	}

	if !m.opts.LegacyIndex && m.audio.needsFlush(pos) {
		n, err := m.audio.flushPage(m.w, pos)
		if err != nil {
			return err
		}
		pos += n
	}

	m.audio.add(pos, uint32(len(buf)), true)
	if err := m.writeChunk(tagAudioChunk, buf); err != nil {
		return err
	}
	m.audioHeader.Length += uint32(len(buf) + wordPad(len(buf)))
	return nil
}

// SetFramerate resets the framerate. Valid between open and Close.
func (m *Muxer) SetFramerate(fps float64) error {
	if m.closed {
		return ErrSessionClosed
	}
	if fps <= 0 {
		return ErrInvalidFramerate
	}
	usec := uint32(1000000.0/fps + 0.5)
	m.mainHeader.MicroSecPerFrame = usec
	m.videoHeader.Scale = usec
	m.videoHeader.Rate = 1000000
	return nil
}

// SetCodec resets the video codec and re-derives the format block's
// compression tag. Valid between open and Close.
func (m *Muxer) SetCodec(fourcc string) error {
	if m.closed {
		return ErrSessionClosed
	}
	if !ValidFourCC(fourcc) {
		m.logger.Warn().Src("avi").
			Msgf("fourcc does not seem to be valid: %q", fourcc)
	}
	m.fourcc = riffio.CC(fourcc)
	m.videoHeader.Handler = m.fourcc
	m.videoFormat.Compression = compressionTag(m.fourcc)
	return nil
}

// SetSize resets the frame dimensions. Valid between open and Close.
func (m *Muxer) SetSize(width, height uint32) error {
	if m.closed {
		return ErrSessionClosed
	}
	size := width * height * m.bitsPerPixel / 8

	m.mainHeader.MaxBytesPerSec = size
	m.mainHeader.Width = width
	m.mainHeader.Height = height
	m.mainHeader.SuggestedBufferSize = size
	m.videoHeader.SuggestedBufferSize = size
	m.videoHeader.Frame.Right = int16(width)
	m.videoHeader.Frame.Bottom = int16(height)
	m.videoFormat.Width = width
	m.videoFormat.Height = height
	m.videoFormat.SizeImage = size
	return nil
}

// Close finalizes the file: the movi size marker is patched, the
// final index is emitted, the header list is rewritten with the true
// frame count and the RIFF size is patched. Fails if any reserved
// size field was never patched. The session accepts no further
// writes afterwards.
func (m *Muxer) Close() error {
	if m.closed {
		return ErrSessionClosed
	}

	end, err := m.pos()
	if err != nil {
		return err
	}
	if err := m.patch(m.moviSize, uint32(end-m.moviSize.offset-4)); err != nil {
		return err
	}

	// The final index lands after the movi list.
	if m.opts.LegacyIndex {
		err := writeLegacyIndex(m.w, m.moviStart, &m.video, &m.audio)
		if err != nil {
			return err
		}
	} else {
		n, err := m.video.flushPage(m.w, end)
		if err != nil {
			return err
		}
		if m.audioOn {
			if _, err := m.audio.flushPage(m.w, end+n); err != nil {
				return err
			}
		}
	}

	m.mainHeader.TotalFrames = m.videoHeader.Length

	if end, err = m.pos(); err != nil {
		return err
	}
	if _, err := m.out.Seek(m.headerList.offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek to header list: %w", err)
	}
	if err := m.writeHeaderList(); err != nil {
		return fmt.Errorf("rewrite header list: %w", err)
	}
	m.headerList.patched = true
	if _, err := m.out.Seek(end, io.SeekStart); err != nil {
		return fmt.Errorf("seek back from header list: %w", err)
	}

	if err := m.patch(m.riffSize, uint32(end-8)); err != nil {
		return err
	}

	for _, p := range m.placeholders {
		if !p.patched {
			return fmt.Errorf("%w: %s", ErrUnpatched, p.name)
		}
	}

	m.closed = true
	if m.closer != nil {
		if err := m.closer.Close(); err != nil {
			return fmt.Errorf("close file: %w", err)
		}
	}
	return nil
}
