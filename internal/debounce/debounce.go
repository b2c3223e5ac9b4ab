// Package debounce merges rapid consecutive message fragments from the same
// sender into one logical message before downstream processing.
package debounce

import (
	"strings"
	"sync"
	"time"
)

const (
	// DefaultWindow is how long a buffer stays open after its last fragment.
	DefaultWindow = 1500 * time.Millisecond

	// Fragments up to this length are joined with a space, reassembling
	// words typed in bursts. Longer fragments are joined with a newline.
	shortFragmentLen = 10
	shortBufferLen   = 50
)

type buffer struct {
	text          string
	providerID    string
	fragmentCount int
	updatedAt     time.Time
}

// Coalescer holds one open buffer per sender behind a single mutex.
// Critical sections are short and never perform I/O.
type Coalescer struct {
	mu      sync.Mutex
	window  time.Duration
	buffers map[string]*buffer
	now     func() time.Time
}

// New creates a Coalescer. A non-positive window falls back to DefaultWindow.
func New(window time.Duration) *Coalescer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Coalescer{
		window:  window,
		buffers: make(map[string]*buffer),
		now:     time.Now,
	}
}

// Window returns the configured coalescing window.
func (c *Coalescer) Window() time.Duration { return c.window }

// Submit records a fragment for sender and reports whether the caller should
// process now. The first fragment from a sender (or the first after the window
// expired) is processed immediately; fragments arriving while the buffer is
// fresh are merged and must not be processed by the caller, a later Flush
// picks them up.
func (c *Coalescer) Submit(sender, fragment, providerID string) (combined string, effectiveProviderID string, processNow bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	buf, ok := c.buffers[sender]
	if ok && now.Sub(buf.updatedAt) < c.window {
		buf.text = join(buf.text, fragment)
		buf.fragmentCount++
		buf.updatedAt = now
		return buf.text, buf.providerID, false
	}

	c.buffers[sender] = &buffer{
		text:          fragment,
		providerID:    providerID,
		fragmentCount: 1,
		updatedAt:     now,
	}
	return fragment, providerID, true
}

// Flush removes the sender's buffer and returns its combined text. ok is
// false when no buffer exists, which means a concurrent flush already won.
func (c *Coalescer) Flush(sender string) (combined string, providerID string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf, exists := c.buffers[sender]
	if !exists {
		return "", "", false
	}
	delete(c.buffers, sender)
	return buf.text, buf.providerID, true
}

// Cleanup removes the sender's buffer after successful processing.
func (c *Coalescer) Cleanup(sender string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.buffers, sender)
}

func join(existing, fragment string) string {
	f := strings.TrimSpace(fragment)
	if len(f) <= shortFragmentLen && len(existing) <= shortBufferLen {
		return existing + " " + f
	}
	return existing + "\n" + fragment
}
