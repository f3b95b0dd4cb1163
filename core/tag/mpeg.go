package tag

import (
	"errors"
	"fmt"
)

// maxSyncSearch bounds how far past the leading tags we look for the first
// audio frame.
const maxSyncSearch = 128 << 10

var ErrNoAudioFrames = errors.New("no MPEG audio frame found")

// Layer III bitrates in kbps, indexed by the 4-bit bitrate field.
var (
	bitratesMPEG1 = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}
	bitratesMPEG2 = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}
)

var sampleRates = map[int][3]int{
	mpeg1:  {44100, 48000, 32000},
	mpeg2:  {22050, 24000, 16000},
	mpeg25: {11025, 12000, 8000},
}

const (
	mpeg25 = 0
	mpeg2  = 2
	mpeg1  = 3
)

type frameHeader struct {
	version    int
	bitrate    int // bps
	sampleRate int
	padding    int
}

// parseFrameHeader decodes a four byte MPEG Layer III frame header.
func parseFrameHeader(b []byte) (frameHeader, bool) {
	if len(b) < 4 || b[0] != 0xFF || b[1]&0xE0 != 0xE0 {
		return frameHeader{}, false
	}
	version := int(b[1]>>3) & 0x3
	layer := int(b[1]>>1) & 0x3
	bitrateIdx := int(b[2]>>4) & 0xF
	sampleRateIdx := int(b[2]>>2) & 0x3

	if version == 1 || layer != 1 || sampleRateIdx == 3 {
		return frameHeader{}, false
	}
	table := bitratesMPEG2
	if version == mpeg1 {
		table = bitratesMPEG1
	}
	kbps := table[bitrateIdx]
	if kbps == 0 {
		// free format and the reserved index
		return frameHeader{}, false
	}

	return frameHeader{
		version:    version,
		bitrate:    kbps * 1000,
		sampleRate: sampleRates[version][sampleRateIdx],
		padding:    int(b[2]>>1) & 0x1,
	}, true
}

// size is the full frame length including the header.
func (h frameHeader) size() int {
	coefficient := 144
	if h.version != mpeg1 {
		coefficient = 72
	}
	return coefficient*h.bitrate/h.sampleRate + h.padding
}

// id3v2Size returns the total length of the ID3v2 tag at the start of b, or 0
// when b does not start with one.
func id3v2Size(b []byte) (int, error) {
	if len(b) < 10 || string(b[:3]) != "ID3" {
		return 0, nil
	}
	if b[3] == 0xFF || b[4] == 0xFF {
		return 0, fmt.Errorf("malformed ID3v2 header: bad version 2.%d.%d", b[3], b[4])
	}
	size := 0
	for _, c := range b[6:10] {
		if c&0x80 != 0 {
			return 0, fmt.Errorf("malformed ID3v2 header: size is not synchsafe")
		}
		size = size<<7 | int(c)
	}
	total := 10 + size
	if b[3] == 4 && b[5]&0x10 != 0 {
		total += 10 // footer
	}
	return total, nil
}

// locateAudio returns the offset where the MPEG payload begins, after every
// leading ID3v2 tag. It fails unless a valid audio frame follows.
func locateAudio(data []byte) (int, error) {
	offset := 0
	for {
		n, err := id3v2Size(data[offset:])
		if err != nil {
			return 0, err
		}
		if n == 0 {
			break
		}
		if offset+n > len(data) {
			return 0, fmt.Errorf("ID3v2 tag of %d bytes exceeds file size %d", n, len(data))
		}
		offset += n
	}

	limit := min(len(data), offset+maxSyncSearch)
	for pos := offset; pos+4 <= limit; pos++ {
		if isFrameAt(data, pos) {
			return offset, nil
		}
	}
	return 0, ErrNoAudioFrames
}

// isFrameAt reports whether a plausible frame starts at pos. When the file is
// long enough the following frame header has to be valid too.
func isFrameAt(data []byte, pos int) bool {
	h, ok := parseFrameHeader(data[pos:])
	if !ok {
		return false
	}
	next := pos + h.size()
	if next+4 > len(data) {
		return next <= len(data)
	}
	_, ok = parseFrameHeader(data[next:])
	return ok
}
