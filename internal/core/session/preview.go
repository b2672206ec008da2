package session

import "sync"

// Preview holds the latest annotated frame as JPEG bytes for the
// presentation boundary. Writers replace, readers poll; a slow consumer
// only ever skips frames, it cannot back-pressure the loop.
type Preview struct {
	mu    sync.RWMutex
	frame []byte
	seq   uint64
}

func NewPreview() *Preview {
	return &Preview{}
}

func (p *Preview) Publish(jpeg []byte) {
	cp := make([]byte, len(jpeg))
	copy(cp, jpeg)
	p.mu.Lock()
	p.frame = cp
	p.seq++
	p.mu.Unlock()
}

// Latest returns the newest frame and its sequence number. Callers compare
// sequence numbers to avoid re-sending the same frame.
func (p *Preview) Latest() ([]byte, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frame, p.seq
}
