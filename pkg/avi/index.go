package avi

import (
	"fmt"

	"avikit/pkg/avi/riffio"
)

// chunkHeaderSize is the tag+size prefix of every chunk.
const chunkHeaderSize = 8

// maxPageOffset bounds a chunk's offset relative to its page base.
// Crossing it forces a standard-index page flush.
const maxPageOffset = 0x7FFFFFFF

// superIndexCapacity is the number of page descriptors reserved in
// each stream's indx chunk. Every page spans up to 2 GiB of data.
const superIndexCapacity = 32

// superIndexSize is the marshaled indx payload size.
const superIndexSize = 24 + 16*superIndexCapacity

// Reserve log space for about 4 hours of chunk offsets per stream.
// 4 hours * 3600 seconds per hour * 60 fps.
const indexLogCapacity = 4 * 3600 * 60

// OpenDML index types.
const (
	indexOfIndexes = 0x0
	indexOfChunks  = 0x1
)

// AVIIF_KEYFRAME in idx1 entries.
const keyframeFlag = 0x10

// indexRecord is created on every append and consumed when its
// stream's index page is flushed.
type indexRecord struct {
	offset   int64 // Absolute offset of the chunk header.
	length   uint32
	keyframe bool
}

// indexPage describes a flushed standard-index chunk.
type indexPage struct {
	offset   int64  // Absolute offset of the ix chunk header.
	size     uint32 // Chunk size including the 8-byte header.
	duration uint32 // Number of data chunks covered.
}

// streamIndex owns one stream's in-memory record log and its paging
// state. Each stream has its own log, so a flush on one stream never
// discards unflushed records of the other.
type streamIndex struct {
	chunkID riffio.FourCC // Data chunk id, "00dc" or "01wb".
	indexID riffio.FourCC // Standard-index chunk id, "ix00" or "ix01".

	records []indexRecord
	base    int64 // Page base offset, 0 until the page's first chunk.
	limit   int64
	pages   []indexPage
}

func newStreamIndex(chunkID, indexID riffio.FourCC) streamIndex {
	return streamIndex{
		chunkID: chunkID,
		indexID: indexID,
		records: make([]indexRecord, 0, indexLogCapacity),
		limit:   maxPageOffset,
	}
}

// needsFlush reports whether a chunk at pos would push the current
// page past the 31-bit relative-offset range.
func (s *streamIndex) needsFlush(pos int64) bool {
	return s.base != 0 && pos-s.base > s.limit
}

// add logs a chunk, starting a new page at the chunk itself if no
// page is open.
func (s *streamIndex) add(pos int64, length uint32, keyframe bool) {
	if s.base == 0 {
		s.base = pos
	}
	s.records = append(s.records, indexRecord{
		offset:   pos,
		length:   length,
		keyframe: keyframe,
	})
}

// ErrSuperIndexFull super index capacity exhausted.
var ErrSuperIndexFull = fmt.Errorf(
	"more than %d index pages", superIndexCapacity)

// flushPage writes the pending records as a standard-index chunk
// starting at pos, records the page descriptor and clears the log.
// A page with no records is a no-op. Returns the bytes written.
func (s *streamIndex) flushPage(w *riffio.Writer, pos int64) (int64, error) {
	if len(s.records) == 0 {
		return 0, nil
	}
	if len(s.pages) >= superIndexCapacity {
		return 0, ErrSuperIndexFull
	}

	payload := 24 + 8*len(s.records)
	w.TryWriteFourCC(s.indexID)
	w.TryWriteUint32(uint32(payload))
	w.TryWriteUint16(2) // Longs per entry.
	w.TryWrite([]byte{0, indexOfChunks})
	w.TryWriteUint32(uint32(len(s.records)))
	w.TryWriteFourCC(s.chunkID)
	w.TryWriteUint64(uint64(s.base))
	w.TryWriteUint32(0) // Reserved.
	for _, rec := range s.records {
		// Offset points at the chunk data, past the tag+size prefix.
		w.TryWriteUint32(uint32(rec.offset-s.base) + chunkHeaderSize)
		size := rec.length
		if !rec.keyframe {
			size |= 1 << 31
		}
		w.TryWriteUint32(size)
	}
	if w.TryError != nil {
		return 0, fmt.Errorf("write %s page: %w", s.indexID, w.TryError)
	}

	s.pages = append(s.pages, indexPage{
		offset:   pos,
		size:     uint32(chunkHeaderSize + payload),
		duration: uint32(len(s.records)),
	})
	s.records = s.records[:0]
	s.base = 0
	return int64(chunkHeaderSize + payload), nil
}

// marshalSuperIndex writes the indx chunk payload. Unused entries
// stay zero so the record keeps a fixed size and can be rewritten in
// place during the close header rewrite.
func (s *streamIndex) marshalSuperIndex(w *riffio.Writer) error {
	w.TryWriteUint16(4) // Longs per entry.
	w.TryWrite([]byte{0, indexOfIndexes})
	w.TryWriteUint32(uint32(len(s.pages)))
	w.TryWriteFourCC(s.chunkID)
	w.TryWriteZero(12) // Reserved.
	for _, p := range s.pages {
		w.TryWriteUint64(uint64(p.offset))
		w.TryWriteUint32(p.size)
		w.TryWriteUint32(p.duration)
	}
	w.TryWriteZero(16 * (superIndexCapacity - len(s.pages)))
	return w.TryError
}

// writeLegacyIndex writes the idx1 chunk from both stream logs in
// file order. Offsets are relative to the movi list start with the
// first chunk at 4, matching the historic convention.
func writeLegacyIndex(w *riffio.Writer, moviStart int64, video, audio *streamIndex) error {
	n := len(video.records) + len(audio.records)
	w.TryWriteFourCC(tagIdx1)
	w.TryWriteUint32(uint32(16 * n))

	writeEntry := func(id riffio.FourCC, rec indexRecord) {
		var flags uint32
		if rec.keyframe {
			flags = keyframeFlag
		}
		w.TryWriteFourCC(id)
		w.TryWriteUint32(flags)
		w.TryWriteUint32(uint32(rec.offset-moviStart) + 4)
		w.TryWriteUint32(rec.length)
	}

	// Merge the two per-stream logs back into file order.
	v, a := video.records, audio.records
	for len(v) > 0 || len(a) > 0 {
		if len(a) == 0 || (len(v) > 0 && v[0].offset < a[0].offset) {
			writeEntry(video.chunkID, v[0])
			v = v[1:]
		} else {
			writeEntry(audio.chunkID, a[0])
			a = a[1:]
		}
	}
	if w.TryError != nil {
		return fmt.Errorf("write idx1: %w", w.TryError)
	}

	video.records = video.records[:0]
	audio.records = audio.records[:0]
	return nil
}
