package voice

import (
	"sync"
	"time"
)

// Playback schedules synthesized audio chunks against a monotonically
// advancing cursor so successive chunks queue back-to-back without gaps or
// overlap. A barge-in flush discards everything queued and resets the cursor
// so the next chunk plays immediately.
type Playback struct {
	mu         sync.Mutex
	sampleRate int
	cursor     time.Time
	queued     int
}

// NewPlayback creates a scheduler for 16-bit mono PCM at the given rate.
func NewPlayback(sampleRate int) *Playback {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	return &Playback{sampleRate: sampleRate}
}

// ChunkDuration returns the play time of a 16-bit mono PCM chunk.
func (p *Playback) ChunkDuration(pcm []byte) time.Duration {
	samples := len(pcm) / 2
	return time.Duration(samples) * time.Second / time.Duration(p.sampleRate)
}

// Schedule returns the start time for the chunk and advances the cursor past
// it. A chunk arriving after the queue has drained starts immediately;
// otherwise it starts where the previous chunk ends.
func (p *Playback) Schedule(pcm []byte, now time.Time) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.cursor
	if start.Before(now) {
		start = now
	}
	p.cursor = start.Add(p.ChunkDuration(pcm))
	p.queued++
	return start
}

// Flush discards all queued playback and resets the cursor, used on barge-in.
// Returns the number of chunks dropped.
func (p *Playback) Flush() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	dropped := p.queued
	p.queued = 0
	p.cursor = time.Time{}
	return dropped
}

// QueuedUntil reports when the currently queued audio will finish playing.
func (p *Playback) QueuedUntil() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Queued reports the number of scheduled, unflushed chunks.
func (p *Playback) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queued
}
