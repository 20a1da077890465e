package conversation

import (
	"sync"
	"time"
)

// maxLatencyHistory bounds the turns averaged by the latency tracker.
const maxLatencyHistory = 100

// Latency is how long each stage of one turn took. Every stage is measured
// from the moment the worker picked up the utterance.
type Latency struct {
	Transcribe time.Duration `json:"transcribe"`
	Chat       time.Duration `json:"chat"`
	Synthesize time.Duration `json:"synthesize"`
	FirstAudio time.Duration `json:"first_audio"` // until playback starts
	Total      time.Duration `json:"total"`
}

// String formats the latencies for logs.
func (l Latency) String() string {
	return formatDuration(l.Transcribe) + " STT | " +
		formatDuration(l.Chat) + " LLM | " +
		formatDuration(l.Synthesize) + " TTS | " +
		formatDuration(l.FirstAudio) + " FIRST AUDIO | " +
		formatDuration(l.Total) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}

// LatencySummary is reported by Status.
type LatencySummary struct {
	Last    Latency `json:"last"`
	Average Latency `json:"average"`
	Turns   int     `json:"turns"`
}

// stopwatch measures stage boundaries within a turn.
type stopwatch struct {
	start time.Time
}

func startStopwatch() stopwatch {
	return stopwatch{start: time.Now()}
}

// elapsed returns the time since the turn began.
func (s stopwatch) elapsed() time.Duration {
	return time.Since(s.start)
}

// latencyTracker keeps the latencies of recent spoken turns.
type latencyTracker struct {
	mu      sync.Mutex
	last    Latency
	history []Latency
}

func (t *latencyTracker) record(l Latency) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = l
	t.history = append(t.history, l)
	if len(t.history) > maxLatencyHistory {
		t.history = t.history[1:]
	}
}

func (t *latencyTracker) summary() LatencySummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := LatencySummary{Last: t.last, Turns: len(t.history)}
	if len(t.history) == 0 {
		return s
	}
	for _, h := range t.history {
		s.Average.Transcribe += h.Transcribe
		s.Average.Chat += h.Chat
		s.Average.Synthesize += h.Synthesize
		s.Average.FirstAudio += h.FirstAudio
		s.Average.Total += h.Total
	}
	n := time.Duration(len(t.history))
	s.Average.Transcribe /= n
	s.Average.Chat /= n
	s.Average.Synthesize /= n
	s.Average.FirstAudio /= n
	s.Average.Total /= n
	return s
}
