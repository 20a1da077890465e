package audioio

import (
	"math"
	"testing"
)

func TestResample_SameRate(t *testing.T) {
	samples := []int16{100, 200, 300, 400, 500}
	result := Resample(samples, 16000, 16000)

	if len(result) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(result))
	}
	for i, s := range samples {
		if result[i] != s {
			t.Errorf("Sample %d: expected %d, got %d", i, s, result[i])
		}
	}
}

func TestResample_IntegerDecimation(t *testing.T) {
	// 48kHz -> 16kHz keeps every third sample
	samples := make([]int16, 960)
	for i := range samples {
		samples[i] = int16(i)
	}

	result := Resample(samples, 48000, 16000)

	if len(result) != 320 {
		t.Fatalf("Expected 320 samples, got %d", len(result))
	}
	for i, s := range result {
		if s != int16(i*3) {
			t.Fatalf("Sample %d: expected %d, got %d", i, i*3, s)
		}
	}
}

func TestResample_Upsample(t *testing.T) {
	samples := make([]int16, 320) // 20ms at 16kHz
	result := Resample(samples, 16000, 24000)

	if len(result) != 480 {
		t.Errorf("Expected 480 samples, got %d", len(result))
	}
}

func TestBytesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 1234}
	got := BytesToSamples(SamplesToBytes(samples))

	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, samples[i], got[i])
		}
	}
}

func TestToMono(t *testing.T) {
	stereo := []int16{100, 300, -200, -400}
	mono := ToMono(stereo, 2)

	if len(mono) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(mono))
	}
	if mono[0] != 200 || mono[1] != -300 {
		t.Errorf("Expected [200 -300], got %v", mono)
	}
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		want    float64
	}{
		{"empty", nil, 0},
		{"silence", []int16{0, 0, 0, 0}, 0},
		{"constant", []int16{500, -500, 500, -500}, 500},
		{"mixed", []int16{3, 4}, math.Sqrt(12.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RMS(tt.samples)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RMS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	samples := make([]int16, 10)
	frames, rest := Split(samples, 4, 1)

	if len(frames) != 2 {
		t.Errorf("Expected 2 frames, got %d", len(frames))
	}
	if len(rest) != 2 {
		t.Errorf("Expected 2 leftover samples, got %d", len(rest))
	}
}

func TestResample_NonPositiveRate(t *testing.T) {
	samples := make([]int16, 1000)
	for _, rates := range [][2]int{{0, 16000}, {16000, 0}, {-1, 16000}} {
		if got := Resample(samples, rates[0], rates[1]); len(got) != 0 {
			t.Errorf("Resample(%d -> %d): expected no samples, got %d", rates[0], rates[1], len(got))
		}
	}
}
