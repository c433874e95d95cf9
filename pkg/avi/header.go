package avi

import (
	"avikit/pkg/avi/riffio"
)

// Main header flags.
const (
	FlagHasIndex      = 0x10
	FlagIsInterleaved = 0x100
)

// MainHeaderSize is the marshaled size of the avih payload.
const MainHeaderSize = 56

// MainHeader is the avih record. TotalFrames is written as zero
// when the file is opened and only correct after Close.
type MainHeader struct {
	MicroSecPerFrame    uint32
	MaxBytesPerSec      uint32
	PaddingGranularity  uint32
	Flags               uint32
	TotalFrames         uint32
	InitialFrames       uint32
	Streams             uint32
	SuggestedBufferSize uint32
	Width               uint32
	Height              uint32
	Reserved            [4]uint32
}

// Marshal header in the documented byte order.
func (h *MainHeader) Marshal(w *riffio.Writer) error {
	w.TryWriteUint32(h.MicroSecPerFrame)
	w.TryWriteUint32(h.MaxBytesPerSec)
	w.TryWriteUint32(h.PaddingGranularity)
	w.TryWriteUint32(h.Flags)
	w.TryWriteUint32(h.TotalFrames)
	w.TryWriteUint32(h.InitialFrames)
	w.TryWriteUint32(h.Streams)
	w.TryWriteUint32(h.SuggestedBufferSize)
	w.TryWriteUint32(h.Width)
	w.TryWriteUint32(h.Height)
	for _, r := range h.Reserved {
		w.TryWriteUint32(r)
	}
	return w.TryError
}

// Unmarshal header from reader.
func (h *MainHeader) Unmarshal(r *riffio.Reader) error {
	h.MicroSecPerFrame = r.TryReadUint32()
	h.MaxBytesPerSec = r.TryReadUint32()
	h.PaddingGranularity = r.TryReadUint32()
	h.Flags = r.TryReadUint32()
	h.TotalFrames = r.TryReadUint32()
	h.InitialFrames = r.TryReadUint32()
	h.Streams = r.TryReadUint32()
	h.SuggestedBufferSize = r.TryReadUint32()
	h.Width = r.TryReadUint32()
	h.Height = r.TryReadUint32()
	for i := range h.Reserved {
		h.Reserved[i] = r.TryReadUint32()
	}
	return r.TryError
}

// StreamHeaderSize is the marshaled size of the strh payload.
const StreamHeaderSize = 56

// Rect is the strh destination rectangle.
type Rect struct {
	Left   int16
	Top    int16
	Right  int16
	Bottom int16
}

// StreamHeader is the strh record. Length counts frames for video
// streams and padded bytes for audio streams, and is mutated on
// every append.
type StreamHeader struct {
	Type                riffio.FourCC // "vids" or "auds".
	Handler             riffio.FourCC
	Flags               uint32
	Priority            uint16
	Language            uint16
	InitialFrames       uint32
	Scale               uint32
	Rate                uint32
	Start               uint32
	Length              uint32
	SuggestedBufferSize uint32
	Quality             uint32
	SampleSize          uint32
	Frame               Rect
}

// Marshal header in the documented byte order.
func (h *StreamHeader) Marshal(w *riffio.Writer) error {
	w.TryWriteFourCC(h.Type)
	w.TryWriteFourCC(h.Handler)
	w.TryWriteUint32(h.Flags)
	w.TryWriteUint16(h.Priority)
	w.TryWriteUint16(h.Language)
	w.TryWriteUint32(h.InitialFrames)
	w.TryWriteUint32(h.Scale)
	w.TryWriteUint32(h.Rate)
	w.TryWriteUint32(h.Start)
	w.TryWriteUint32(h.Length)
	w.TryWriteUint32(h.SuggestedBufferSize)
	w.TryWriteUint32(h.Quality)
	w.TryWriteUint32(h.SampleSize)
	w.TryWriteUint16(uint16(h.Frame.Left))
	w.TryWriteUint16(uint16(h.Frame.Top))
	w.TryWriteUint16(uint16(h.Frame.Right))
	w.TryWriteUint16(uint16(h.Frame.Bottom))
	return w.TryError
}

// Unmarshal header from reader.
func (h *StreamHeader) Unmarshal(r *riffio.Reader) error {
	h.Type = r.TryReadFourCC()
	h.Handler = r.TryReadFourCC()
	h.Flags = r.TryReadUint32()
	h.Priority = r.TryReadUint16()
	h.Language = r.TryReadUint16()
	h.InitialFrames = r.TryReadUint32()
	h.Scale = r.TryReadUint32()
	h.Rate = r.TryReadUint32()
	h.Start = r.TryReadUint32()
	h.Length = r.TryReadUint32()
	h.SuggestedBufferSize = r.TryReadUint32()
	h.Quality = r.TryReadUint32()
	h.SampleSize = r.TryReadUint32()
	h.Frame.Left = r.TryReadInt16()
	h.Frame.Top = r.TryReadInt16()
	h.Frame.Right = r.TryReadInt16()
	h.Frame.Bottom = r.TryReadInt16()
	return r.TryError
}

// VideoFormatSize is the marshaled size of the video strf payload.
const VideoFormatSize = 40

// VideoFormat is the BITMAPINFOHEADER strf record.
type VideoFormat struct {
	HeaderSize    uint32
	Width         uint32
	Height        uint32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter uint32
	YPelsPerMeter uint32
	ClrUsed       uint32
	ClrImportant  uint32
}

// Marshal format in the documented byte order.
func (f *VideoFormat) Marshal(w *riffio.Writer) error {
	w.TryWriteUint32(f.HeaderSize)
	w.TryWriteUint32(f.Width)
	w.TryWriteUint32(f.Height)
	w.TryWriteUint16(f.Planes)
	w.TryWriteUint16(f.BitCount)
	w.TryWriteUint32(f.Compression)
	w.TryWriteUint32(f.SizeImage)
	w.TryWriteUint32(f.XPelsPerMeter)
	w.TryWriteUint32(f.YPelsPerMeter)
	w.TryWriteUint32(f.ClrUsed)
	w.TryWriteUint32(f.ClrImportant)
	return w.TryError
}

// Unmarshal format from reader.
func (f *VideoFormat) Unmarshal(r *riffio.Reader) error {
	f.HeaderSize = r.TryReadUint32()
	f.Width = r.TryReadUint32()
	f.Height = r.TryReadUint32()
	f.Planes = r.TryReadUint16()
	f.BitCount = r.TryReadUint16()
	f.Compression = r.TryReadUint32()
	f.SizeImage = r.TryReadUint32()
	f.XPelsPerMeter = r.TryReadUint32()
	f.YPelsPerMeter = r.TryReadUint32()
	f.ClrUsed = r.TryReadUint32()
	f.ClrImportant = r.TryReadUint32()
	return r.TryError
}

// AudioFormatSize is the marshaled size of the audio strf payload.
const AudioFormatSize = 18

// AudioFormat is the WAVEFORMATEX strf record.
type AudioFormat struct {
	FormatTag      uint16 // 1 = PCM.
	Channels       uint16
	SamplesPerSec  uint32
	AvgBytesPerSec uint32
	BlockAlign     uint16
	BitsPerSample  uint16
	ExtraSize      uint16
}

// Marshal format in the documented byte order.
func (f *AudioFormat) Marshal(w *riffio.Writer) error {
	w.TryWriteUint16(f.FormatTag)
	w.TryWriteUint16(f.Channels)
	w.TryWriteUint32(f.SamplesPerSec)
	w.TryWriteUint32(f.AvgBytesPerSec)
	w.TryWriteUint16(f.BlockAlign)
	w.TryWriteUint16(f.BitsPerSample)
	w.TryWriteUint16(f.ExtraSize)
	return w.TryError
}

// Unmarshal format from reader.
func (f *AudioFormat) Unmarshal(r *riffio.Reader) error {
	f.FormatTag = r.TryReadUint16()
	f.Channels = r.TryReadUint16()
	f.SamplesPerSec = r.TryReadUint32()
	f.AvgBytesPerSec = r.TryReadUint32()
	f.BlockAlign = r.TryReadUint16()
	f.BitsPerSample = r.TryReadUint16()
	f.ExtraSize = r.TryReadUint16()
	return r.TryError
}

// AudioSpec describes a raw PCM audio track.
type AudioSpec struct {
	Channels      uint16
	BitsPerSample uint16
	SamplesPerSec uint32
}
