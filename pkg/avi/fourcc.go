package avi

import "avikit/pkg/avi/riffio"

// Container tags.
var (
	tagRIFF = riffio.CC("RIFF")
	tagAVI  = riffio.CC("AVI ")
	tagLIST = riffio.CC("LIST")
	tagHdrl = riffio.CC("hdrl")
	tagStrl = riffio.CC("strl")
	tagMovi = riffio.CC("movi")
	tagAvih = riffio.CC("avih")
	tagStrh = riffio.CC("strh")
	tagStrf = riffio.CC("strf")
	tagIndx = riffio.CC("indx")
	tagIdx1 = riffio.CC("idx1")

	tagVids = riffio.CC("vids")
	tagAuds = riffio.CC("auds")

	tagVideoChunk = riffio.CC("00dc")
	tagAudioChunk = riffio.CC("01wb")
	tagVideoIndex = riffio.CC("ix00")
	tagAudioIndex = riffio.CC("ix01")
)

// wordSize is the chunk alignment boundary.
const wordSize = 4

// wordPad returns the number of pad bytes needed
// to align n to the next word boundary.
func wordPad(n int) int {
	return (wordSize - n%wordSize) % wordSize
}

// ValidFourCC reports whether s is a plausible four-character code.
// An implausible code is advisory only, the muxer still accepts it.
func ValidFourCC(s string) bool {
	if len(s) != 4 {
		return false
	}
	for i := 0; i < 4; i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// bitsPerPixel for known codecs. Anything unrecognized
// is assumed to be packed RGB.
func bitsPerPixel(fourcc string) uint32 {
	switch fourcc {
	case "I420": // YUV 4:2:0.
		return 12
	case "X264": // H.264.
		return 12
	case "H265": // H.265.
		return 12
	}
	return 24
}

// compressionTag packs a codec fourcc into the strf compression
// field, first byte least significant.
func compressionTag(cc riffio.FourCC) uint32 {
	return uint32(cc[0]) |
		uint32(cc[1])<<8 |
		uint32(cc[2])<<16 |
		uint32(cc[3])<<24
}

// isVideoChunk reports whether id is a video data chunk ("##dc"/"##db").
func isVideoChunk(id riffio.FourCC) bool {
	return (id[2] == 'd' && id[3] == 'c') || (id[2] == 'd' && id[3] == 'b')
}

// isAudioChunk reports whether id is an audio data chunk ("##wb").
func isAudioChunk(id riffio.FourCC) bool {
	return id[2] == 'w' && id[3] == 'b'
}
