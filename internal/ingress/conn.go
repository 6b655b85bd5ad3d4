package ingress

import (
	"sync"

	"golang.org/x/time/rate"

	"ordergateway/internal/gwerr"
)

// connLimiters tracks a token-bucket rate limiter per connected client fd,
// bounding how many socket reads a single misbehaving or overly chatty client
// can feed into the ingress path per second (one token per read, whatever
// its size or however many messages it holds). Absent from the original
// reference listener, which has no rate limiting at all; added here because
// nothing else in the pipeline throttles a client, and golang.org/x/time/rate
// is the ecosystem's standard token bucket.
type connLimiters struct {
	mu       sync.Mutex
	limiters map[int]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newConnLimiters(rps float64, burst int) *connLimiters {
	return &connLimiters{
		limiters: make(map[int]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (c *connLimiters) onAccept(fd int) {
	if c.rps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limiters[fd] = rate.NewLimiter(c.rps, c.burst)
}

func (c *connLimiters) onClose(fd int) {
	if c.rps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.limiters, fd)
}

// allow reports whether fd may have another read accepted right now. A fd with no
// registered limiter (rate limiting disabled, or the fd is untracked) is
// always allowed.
func (c *connLimiters) allow(fd int) bool {
	if c.rps <= 0 {
		return true
	}
	c.mu.Lock()
	lim := c.limiters[fd]
	c.mu.Unlock()
	if lim == nil {
		return true
	}
	return lim.Allow()
}

const (
	soh = 0x01

	// maxFrameBuf bounds how much unterminated tail a connection may
	// accumulate before it is treated as abuse and the connection closed.
	// The FIX dialect here carries no BodyLength/checksum, so a message
	// boundary is only ever confirmed by the arrival of the next one —
	// without a ceiling, a client that never sends a following message
	// could grow its buffered tail without bound.
	maxFrameBuf = 64 * 1024
)

// connFramers buffers partial reads per connection until a full FIX message
// boundary is found. Edge-triggered epoll hands the listener however many
// bytes happen to be sitting in the socket buffer at wakeup, with no regard
// for where one FIX message ends and the next begins, so message boundaries
// have to be reassembled here rather than assumed to align with reads.
type connFramers struct {
	mu  sync.Mutex
	buf map[int][]byte
}

func newConnFramers() *connFramers {
	return &connFramers{buf: make(map[int][]byte)}
}

// onClose returns fd's buffered tail, if any, and forgets its state. A
// connection that sends exactly one message and then closes never produces a
// following `8=` boundary to confirm it, so the tail has to be flushed as a
// complete message here rather than discarded — otherwise the last message a
// client ever sends would never be dispatched. A connection that stays open
// but idle keeps its tail buffered until it closes.
func (f *connFramers) onClose(fd int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	tail := f.buf[fd]
	delete(f.buf, fd)
	if len(tail) == 0 {
		return nil
	}
	return tail
}

// feed appends data to fd's buffered tail and returns every complete FIX
// message now available. It reports an error if the buffered tail grows
// past maxFrameBuf without a boundary ever arriving; the caller should
// close the connection when that happens.
func (f *connFramers) feed(fd int, data []byte) (complete [][]byte, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	buf := append(f.buf[fd], data...)
	complete, remainder := splitMessages(buf)
	if len(remainder) > maxFrameBuf {
		delete(f.buf, fd)
		return complete, gwerr.New(gwerr.IoError, "ingress: unterminated frame buffer overflow", nil)
	}
	f.buf[fd] = remainder
	return complete, nil
}

// splitMessages splits buf into every complete FIX message it contains plus
// a trailing, possibly-empty remainder. A message begins at index 0 or at
// any index immediately following a SOH byte where the next two bytes spell
// the BeginString tag "8=" — real FIX parsers detect boundaries the same
// way in the absence of a trusted BodyLength field.
func splitMessages(buf []byte) (complete [][]byte, remainder []byte) {
	if len(buf) == 0 {
		return nil, nil
	}
	starts := []int{0}
	for i := 1; i < len(buf)-1; i++ {
		if buf[i-1] == soh && buf[i] == '8' && buf[i+1] == '=' {
			starts = append(starts, i)
		}
	}
	for k := 0; k < len(starts)-1; k++ {
		complete = append(complete, append([]byte(nil), buf[starts[k]:starts[k+1]]...))
	}
	remainder = append([]byte(nil), buf[starts[len(starts)-1]:]...)
	return complete, remainder
}
