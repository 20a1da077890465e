package audioio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrNotWAV is returned when data does not start with a RIFF/WAVE header.
	ErrNotWAV = errors.New("audioio: not a WAV file")

	// ErrBadFormat is returned for sample rates or channel counts no
	// microphone produces.
	ErrBadFormat = errors.New("audioio: unsupported audio format")
)

// Accepted input sample rates.
const (
	MinSampleRate = 8000
	MaxSampleRate = 192000
)

// MaxChannels bounds the channel count of pushed audio.
const MaxChannels = 8

// checkFormat rejects formats Resample and ToMono cannot handle sanely.
func checkFormat(sampleRate, channels int) error {
	if sampleRate < MinSampleRate || sampleRate > MaxSampleRate {
		return fmt.Errorf("%w: sample rate %d Hz", ErrBadFormat, sampleRate)
	}
	if channels < 1 || channels > MaxChannels {
		return fmt.Errorf("%w: %d channels", ErrBadFormat, channels)
	}
	return nil
}

const wavHeaderSize = 44

// EncodeWAV wraps PCM16 samples in a canonical 44-byte WAV header.
func EncodeWAV(samples []int16, sampleRate, channels int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, wavHeaderSize+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[wavHeaderSize+i*2:], uint16(s))
	}
	return buf
}

// WAV is decoded PCM16 audio.
type WAV struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// DecodeWAV parses a PCM16 WAV file. Chunks other than "fmt " and "data"
// are skipped.
func DecodeWAV(data []byte) (*WAV, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		w       WAV
		haveFmt bool
		pos     = 12
	)
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) {
			// Streaming writers leave the size unset; take what is there.
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, fmt.Errorf("audioio: short fmt chunk (%d bytes)", end-body)
			}
			format := binary.LittleEndian.Uint16(data[body:])
			bits := binary.LittleEndian.Uint16(data[body+14:])
			if format != 1 || bits != 16 {
				return nil, fmt.Errorf("audioio: unsupported WAV format %d/%d-bit", format, bits)
			}
			w.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			w.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			if err := checkFormat(w.SampleRate, w.Channels); err != nil {
				return nil, err
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("audioio: data chunk before fmt chunk")
			}
			w.Samples = BytesToSamples(data[body:end])
			return &w, nil
		}

		pos = end + size%2 // chunks are word aligned
	}
	return nil, fmt.Errorf("audioio: WAV has no data chunk")
}
