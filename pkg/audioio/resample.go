package audioio

import "math"

// Resample converts audio from one sample rate to another using linear
// interpolation. Good enough for speech headed to a recognizer. A
// non-positive rate yields no samples.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate <= 0 || toRate <= 0 {
		return []int16{}
	}
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	// Integer decimation keeps the exact sample picks the bridge used
	// (48kHz -> 16kHz takes every third sample).
	if fromRate > toRate && fromRate%toRate == 0 {
		step := fromRate / toRate
		out := make([]int16, 0, len(samples)/step+1)
		for i := 0; i < len(samples); i += step {
			out = append(out, samples[i])
		}
		return out
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples)) / ratio)
	if newLen == 0 {
		return []int16{}
	}

	result := make([]int16, newLen)
	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= len(samples)-1 {
			result[i] = samples[len(samples)-1]
		} else {
			s1 := float64(samples[srcIdx])
			s2 := float64(samples[srcIdx+1])
			result[i] = int16(s1 + frac*(s2-s1))
		}
	}
	return result
}

// BytesToSamples converts raw PCM16 little-endian bytes to int16 samples.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

// SamplesToBytes converts int16 samples to raw PCM16 little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}

// ToMono averages interleaved channels down to one.
func ToMono(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	mono := make([]int16, len(samples)/channels)
	for i := range mono {
		var sum int32
		for ch := 0; ch < channels; ch++ {
			sum += int32(samples[i*channels+ch])
		}
		mono[i] = int16(sum / int32(channels))
	}
	return mono
}

// RMS returns the root mean square of samples on the raw int16 scale
// (0 to 32768). Returns 0 for an empty slice.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Split cuts samples into consecutive frames of frameSize samples per
// channel. A trailing partial frame is returned as the remainder.
func Split(samples []int16, frameSize, channels int) (frames [][]int16, rest []int16) {
	n := frameSize * channels
	if n <= 0 {
		return nil, samples
	}
	for len(samples) >= n {
		frames = append(frames, samples[:n:n])
		samples = samples[n:]
	}
	return frames, samples
}
