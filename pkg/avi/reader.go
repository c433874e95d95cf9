package avi

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"avikit/pkg/avi/riffio"
	"avikit/pkg/log"
)

// Parse errors.
var (
	ErrNotRIFF        = errors.New("not a RIFF file")
	ErrNotAVI         = errors.New("not an AVI file")
	ErrZeroSizeChunk  = errors.New("zero-size chunk")
	ErrTruncatedChunk = errors.New("chunk smaller than its record")
)

// Report is the structured result of a header walk.
type Report struct {
	RIFFSize  uint32
	Main      MainHeader
	MainFound bool
	Streams   []StreamHeader

	MoviPos  int64 // Offset of the movi list type tag.
	MoviSize uint32

	VideoChunks  int
	AudioChunks  int
	IndexEntries int
}

// Reader walks an AVI stream's chunk tree and reports header
// contents. Purely recursive descent, no backtracking; the first
// failed read aborts the whole parse. Not safe for concurrent use.
type Reader struct {
	in     io.ReadSeeker
	r      *riffio.Reader
	closer io.Closer // Owned file handle, if any.
	logger log.ILogger

	report Report
}

// NewReader creates a reader on in.
func NewReader(in io.ReadSeeker, logger log.ILogger) *Reader {
	if logger == nil {
		logger = log.NewMockLogger()
	}
	return &Reader{
		in:     in,
		r:      riffio.NewReader(in),
		logger: logger,
	}
}

// OpenFile opens path for reading.
// Caller must call Close() when done.
func OpenFile(path string, logger log.ILogger) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	r := NewReader(f, logger)
	r.closer = f
	return r, nil
}

// Close releases the file handle if this reader owns it.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// DumpHeaders walks the whole chunk tree, logging every recognized
// header field. The output is advisory, not part of the data
// contract.
func (r *Reader) DumpHeaders() error {
	_, err := r.Probe()
	return err
}

// Probe walks the whole chunk tree and returns a structured report.
func (r *Reader) Probe() (*Report, error) {
	r.report = Report{}
	if _, err := r.in.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to start: %w", err)
	}

	tag, err := r.r.ReadFourCC()
	if err != nil {
		return nil, fmt.Errorf("read riff tag: %w", err)
	}
	if tag != tagRIFF {
		return nil, fmt.Errorf("%w: %q", ErrNotRIFF, tag)
	}
	r.logf(0, "RIFF begin: %q", tag)

	riffSize, err := r.r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("read riff size: %w", err)
	}
	r.report.RIFFSize = riffSize
	r.logf(0, "file size: %d", riffSize)

	form, err := r.r.ReadFourCC()
	if err != nil {
		return nil, fmt.Errorf("read form type: %w", err)
	}
	if form != tagAVI {
		return nil, fmt.Errorf("%w: %q", ErrNotAVI, form)
	}
	r.logf(0, "file type: %q", form)

	remaining := int64(riffSize) - 4
	for remaining >= chunkHeaderSize {
		tag, err := r.r.ReadFourCC()
		if err != nil {
			return nil, fmt.Errorf("read tag: %w", err)
		}
		remaining -= 4

		var n int64
		if tag == tagLIST {
			n, err = r.readList(1)
		} else {
			n, err = r.readChunk(tag, 1)
		}
		if err != nil {
			return nil, err
		}
		remaining -= n
	}
	return &r.report, nil
}

// readList consumes one LIST including its nested chunks and
// trailing padding. Returns bytes consumed including the list's own
// size field, the caller accounts for the LIST tag itself.
func (r *Reader) readList(level int) (int64, error) {
	listSize, err := r.r.ReadUint32()
	if err != nil {
		return 0, fmt.Errorf("read list size: %w", err)
	}
	listType, err := r.r.ReadFourCC()
	if err != nil {
		return 0, fmt.Errorf("read list type: %w", err)
	}

	if listType == tagMovi {
		pos, err := r.in.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, err
		}
		// Remember the movi tag position for index cross-referencing.
		r.report.MoviPos = pos - 4
		r.report.MoviSize = listSize
	}

	r.logf(level, "list start: %q %d", listType, listSize)

	consumed := int64(4) // List type tag.
	remaining := int64(listSize) - 4
	for remaining >= chunkHeaderSize {
		tag, err := r.r.ReadFourCC()
		if err != nil {
			return 0, fmt.Errorf("read tag: %w", err)
		}
		consumed += 4
		remaining -= 4

		var n int64
		if tag == tagLIST {
			n, err = r.readList(level + 1)
		} else {
			n, err = r.readChunk(tag, level + 1)
		}
		if err != nil {
			return 0, err
		}
		consumed += n
		remaining -= n
	}
	if remaining > 0 {
		// Trailing padding up to the word boundary.
		if err := r.r.Skip(remaining); err != nil {
			return 0, err
		}
		consumed += remaining
	}

	r.logf(level, "list end: %q %d", listType, consumed)
	return consumed + 4, nil
}

// readChunk consumes one chunk including word padding. Known ids are
// decoded field by field, everything else is skipped. Returns bytes
// consumed including the chunk's own size field.
func (r *Reader) readChunk(id riffio.FourCC, level int) (int64, error) {
	chunkSize, err := r.r.ReadUint32()
	if err != nil {
		return 0, fmt.Errorf("read %q size: %w", id, err)
	}
	r.logf(level, "chunk start: %q %d", id, chunkSize)

	if chunkSize == 0 {
		return 0, fmt.Errorf("%w: %q", ErrZeroSizeChunk, id)
	}
	padded := int64(chunkSize) + int64(wordPad(int(chunkSize)))

	var decoded int64
	switch id {
	case tagAvih:
		if decoded, err = r.readMainHeader(level + 1); err != nil {
			return 0, err
		}
	case tagStrh:
		if decoded, err = r.readStreamHeader(level + 1); err != nil {
			return 0, err
		}
	case tagIdx1:
		if decoded, err = r.readLegacyIndex(chunkSize, level+1); err != nil {
			return 0, err
		}
	default:
		if isVideoChunk(id) {
			r.report.VideoChunks++
		} else if isAudioChunk(id) {
			r.report.AudioChunks++
		}
	}
	if decoded > padded {
		return 0, fmt.Errorf("%w: %q is %d bytes, record needs %d",
			ErrTruncatedChunk, id, chunkSize, decoded)
	}

	if err := r.r.Skip(padded - decoded); err != nil {
		return 0, err
	}

	r.logf(level, "chunk end: %q %d", id, padded)
	return 4 + padded, nil
}

// readMainHeader decodes the fixed avih record, logging each field.
func (r *Reader) readMainHeader(level int) (int64, error) {
	var h MainHeader
	if err := h.Unmarshal(r.r); err != nil {
		return 0, fmt.Errorf("read avih: %w", err)
	}
	r.report.Main = h
	r.report.MainFound = true

	r.logf(level, "dwMicroSecPerFrame    : %d", h.MicroSecPerFrame)
	r.logf(level, "dwMaxBytesPerSec      : %d", h.MaxBytesPerSec)
	r.logf(level, "dwPaddingGranularity  : %d", h.PaddingGranularity)
	r.logf(level, "dwFlags               : 0x%X", h.Flags)
	r.logf(level, "dwTotalFrames         : %d", h.TotalFrames)
	r.logf(level, "dwInitialFrames       : %d", h.InitialFrames)
	r.logf(level, "dwStreams             : %d", h.Streams)
	r.logf(level, "dwSuggestedBufferSize : %d", h.SuggestedBufferSize)
	r.logf(level, "dwWidth               : %d", h.Width)
	r.logf(level, "dwHeight              : %d", h.Height)
	return MainHeaderSize, nil
}

// readStreamHeader decodes the fixed strh record, logging each field.
func (r *Reader) readStreamHeader(level int) (int64, error) {
	var h StreamHeader
	if err := h.Unmarshal(r.r); err != nil {
		return 0, fmt.Errorf("read strh: %w", err)
	}
	r.report.Streams = append(r.report.Streams, h)

	r.logf(level, "fccType               : %q", h.Type)
	r.logf(level, "fccHandler            : %q", h.Handler)
	r.logf(level, "dwFlags               : 0x%X", h.Flags)
	r.logf(level, "wPriority             : %d", h.Priority)
	r.logf(level, "wLanguage             : %d", h.Language)
	r.logf(level, "dwInitialFrames       : %d", h.InitialFrames)
	r.logf(level, "dwScale               : %d", h.Scale)
	r.logf(level, "dwRate                : %d", h.Rate)
	r.logf(level, "dwStart               : %d", h.Start)
	r.logf(level, "dwLength              : %d", h.Length)
	r.logf(level, "dwSuggestedBufferSize : %d", h.SuggestedBufferSize)
	r.logf(level, "dwQuality             : %d", h.Quality)
	r.logf(level, "dwSampleSize          : %d", h.SampleSize)
	r.logf(level, "rcFrame               : %d %d %d %d",
		h.Frame.Left, h.Frame.Top, h.Frame.Right, h.Frame.Bottom)
	return StreamHeaderSize, nil
}

// readLegacyIndex consumes 16-byte idx1 entries. Every referenced
// chunk is peeked at to cross-check its id and size against the
// index, without disturbing the main read cursor.
func (r *Reader) readLegacyIndex(chunkSize uint32, level int) (int64, error) {
	var consumed int64
	for consumed+16 <= int64(chunkSize) {
		id := r.r.TryReadFourCC()
		flags := r.r.TryReadUint32()
		offset := r.r.TryReadUint32()
		size := r.r.TryReadUint32()
		if r.r.TryError != nil {
			return 0, fmt.Errorf("read index entry: %w", r.r.TryError)
		}
		consumed += 16
		r.report.IndexEntries++

		r.logf(level, "index: %q 0x%X ofs:%d size:%d", id, flags, offset, size)

		diskID, diskSize, err := peekChunk(r.in, r.report.MoviPos+int64(offset))
		if err != nil {
			return 0, fmt.Errorf("peek indexed chunk: %w", err)
		}
		if diskID != id || diskSize != size {
			r.logger.Warn().Src("avi").
				Msgf("index entry mismatch at %d: %q/%d on disk",
					offset, diskID, diskSize)
		}
	}
	return consumed, nil
}

// peekChunk reads the tag and size at off and restores the previous
// stream position.
func peekChunk(in io.ReadSeeker, off int64) (riffio.FourCC, uint32, error) {
	cur, err := in.Seek(0, io.SeekCurrent)
	if err != nil {
		return riffio.FourCC{}, 0, err
	}
	if _, err := in.Seek(off, io.SeekStart); err != nil {
		return riffio.FourCC{}, 0, fmt.Errorf("seek to chunk: %w", err)
	}

	pr := riffio.NewReader(in)
	id := pr.TryReadFourCC()
	size := pr.TryReadUint32()
	if pr.TryError != nil {
		return riffio.FourCC{}, 0, pr.TryError
	}

	if _, err := in.Seek(cur, io.SeekStart); err != nil {
		return riffio.FourCC{}, 0, fmt.Errorf("seek back: %w", err)
	}
	return id, size, nil
}

func (r *Reader) logf(level int, format string, v ...interface{}) {
	r.logger.Info().Src("avi").
		Msgf(strings.Repeat("   ", level)+format, v...)
}
