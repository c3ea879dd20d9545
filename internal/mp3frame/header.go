// Package mp3frame parses MPEG audio frame headers and assembles complete
// MP3 frames from an arbitrary byte stream (the encoder subprocess's
// stdout). A frame begins with an 11-bit sync word (0xFFE) followed by
// header fields that determine its exact length.
package mp3frame

import "errors"

// ErrImpossibleHeader is returned by parseHeader when the 4-byte candidate
// does not decode to a valid MPEG audio frame header (reserved bitrate,
// reserved sample rate, wrong sync bits, etc).
var ErrImpossibleHeader = errors.New("mp3frame: impossible header")

// bitrate tables in kbps, indexed [versionClass][layer][index], index 0 and
// 15 are reserved (free-format / invalid) and rejected outright.
// versionClass: 0 = MPEG1, 1 = MPEG2/2.5.
var bitrateTableV1 = [3][16]int{
	// Layer I
	{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, -1},
	// Layer II
	{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, -1},
	// Layer III
	{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, -1},
}

var bitrateTableV2 = [3][16]int{
	// Layer I
	{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, -1},
	// Layer II and III share a table in MPEG2/2.5
	{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, -1},
	{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, -1},
}

// sampleRateTable[versionID][index]; versionID: 0=MPEG2.5, 1=reserved, 2=MPEG2, 3=MPEG1.
var sampleRateTable = [4][3]int{
	{11025, 12000, 8000},  // MPEG2.5
	{0, 0, 0},             // reserved
	{22050, 24000, 16000}, // MPEG2
	{44100, 48000, 32000}, // MPEG1
}

// Header is a decoded MPEG audio frame header.
type Header struct {
	VersionID   int // 0=MPEG2.5, 2=MPEG2, 3=MPEG1 (1 reserved)
	Layer       int // 1, 2, or 3
	Protected   bool
	BitrateKbps int
	SampleRate  int
	Padding     int // 0 or 1
	Channels    int // 1 (mono) or 2 (stereo/joint/dual)
	FrameLength int // total bytes including the 4-byte header
}

// LenAtLeast is the minimum number of bytes needed to parse a header.
const LenAtLeast = 4

// parseHeader decodes the 4-byte MPEG header at b[0:4]. Returns
// ErrImpossibleHeader for any reserved/invalid field so the caller can skip
// one byte and rescan.
func parseHeader(b []byte) (Header, error) {
	if len(b) < LenAtLeast {
		return Header{}, ErrImpossibleHeader
	}
	if b[0] != 0xFF || (b[1]&0xE0) != 0xE0 {
		return Header{}, ErrImpossibleHeader
	}
	versionID := int(b[1]>>3) & 0x03
	layerID := int(b[1]>>1) & 0x03
	protected := (b[1] & 0x01) == 0
	if versionID == 1 || layerID == 0 {
		return Header{}, ErrImpossibleHeader // reserved
	}
	var layer int
	switch layerID {
	case 0x01:
		layer = 3
	case 0x02:
		layer = 2
	case 0x03:
		layer = 1
	}

	bitrateIndex := int(b[2]>>4) & 0x0F
	sampleRateIndex := int(b[2]>>2) & 0x03
	padding := int(b[2]>>1) & 0x01
	channelMode := int(b[3]>>6) & 0x03

	if bitrateIndex == 0 || bitrateIndex == 0x0F {
		return Header{}, ErrImpossibleHeader
	}
	if sampleRateIndex == 0x03 {
		return Header{}, ErrImpossibleHeader
	}

	sampleRate := sampleRateTable[versionID][sampleRateIndex]
	if sampleRate == 0 {
		return Header{}, ErrImpossibleHeader
	}

	var bitrate int
	if versionID == 3 { // MPEG1
		bitrate = bitrateTableV1[layer-1][bitrateIndex]
	} else { // MPEG2 / MPEG2.5
		bitrate = bitrateTableV2[layer-1][bitrateIndex]
	}
	if bitrate <= 0 {
		return Header{}, ErrImpossibleHeader
	}

	channels := 2
	if channelMode == 0x03 {
		channels = 1
	}

	frameLen := frameLength(versionID, layer, bitrate, sampleRate, padding)
	if frameLen < LenAtLeast {
		return Header{}, ErrImpossibleHeader
	}

	return Header{
		VersionID:   versionID,
		Layer:       layer,
		Protected:   protected,
		BitrateKbps: bitrate,
		SampleRate:  sampleRate,
		Padding:     padding,
		Channels:    channels,
		FrameLength: frameLen,
	}, nil
}

// frameLength computes the total frame size in bytes (header included) from
// the standard MPEG formulas:
//
//	Layer I:           FrameLen = (12*BitRate/SampleRate + Padding) * 4
//	Layer II/III MPEG1: FrameLen = 144*BitRate/SampleRate + Padding
//	Layer III MPEG2/2.5: FrameLen = 72*BitRate/SampleRate + Padding
//
// BitRate is in bits/sec (kbps*1000) throughout.
func frameLength(versionID, layer, bitrateKbps, sampleRate, padding int) int {
	bitrate := bitrateKbps * 1000
	switch layer {
	case 1:
		return (12*bitrate/sampleRate + padding) * 4
	case 2:
		return 144*bitrate/sampleRate + padding
	case 3:
		if versionID == 3 {
			return 144*bitrate/sampleRate + padding
		}
		return 72*bitrate/sampleRate + padding
	default:
		return 0
	}
}
