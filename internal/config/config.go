// Package config loads the gateway's XML configuration document (spec §6).
// No library in the retrieved example pack loads XML, so this leans on the
// standard library's encoding/xml — see DESIGN.md for the justification.
package config

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// Ipc names the downstream queues the gateway forwards into.
type Ipc struct {
	QueueName string `xml:"QueueName"`
}

// Fix carries the FIX/epoll dimensioning knobs.
type Fix struct {
	MaxEventSize int `xml:"MaxEventSize"`
	BacklogSize  int `xml:"BacklogSize"`

	// RatePerSec and RateBurst size the per-connection token bucket
	// (supplemented feature: ingress rate limiting). RatePerSec <= 0
	// disables rate limiting entirely.
	RatePerSec float64 `xml:"RatePerSec"`
	RateBurst  int     `xml:"RateBurst"`
}

// BlockingQueue configures the ingress FIFO's capacity.
type BlockingQueue struct {
	Size int `xml:"Size"`
}

// Monitor configures the optional read-only order-flow websocket feed. An
// empty Addr disables it entirely.
type Monitor struct {
	Addr      string `xml:"Addr"`
	RedisAddr string `xml:"RedisAddr"`
	MaxConns  int    `xml:"MaxConns"`
	HubShards int    `xml:"HubShards"`
}

// Gateway is the immutable, once-constructed configuration for the gateway
// process. It is built once at startup and passed by pointer into every
// component's constructor (spec §9's design note on removing the C++
// Config/Gateway singletons).
type Gateway struct {
	XMLName       xml.Name      `xml:"Gateway"`
	Port          int           `xml:"Port"`
	BlockingQueue BlockingQueue `xml:"BlockingQueue"`
	Fix           Fix           `xml:"Fix"`
	Ipc           Ipc           `xml:"Ipc"`
	Monitor       Monitor       `xml:"Monitor"`
}

// Load parses a Gateway configuration document from r.
func Load(r io.Reader) (*Gateway, error) {
	var g Gateway
	if err := xml.NewDecoder(r).Decode(&g); err != nil {
		return nil, fmt.Errorf("config: decode gateway xml: %w", err)
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// LoadFile opens path and parses it as a Gateway configuration document.
func LoadFile(path string) (*Gateway, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

func (g *Gateway) validate() error {
	if g.Port <= 0 {
		return fmt.Errorf("config: Port must be positive, got %d", g.Port)
	}
	if g.BlockingQueue.Size <= 0 {
		return fmt.Errorf("config: BlockingQueue/Size must be positive, got %d", g.BlockingQueue.Size)
	}
	if g.Fix.MaxEventSize <= 0 {
		return fmt.Errorf("config: Fix/MaxEventSize must be positive, got %d", g.Fix.MaxEventSize)
	}
	if g.Fix.BacklogSize <= 0 {
		return fmt.Errorf("config: Fix/BacklogSize must be positive, got %d", g.Fix.BacklogSize)
	}
	if g.Ipc.QueueName == "" {
		return fmt.Errorf("config: Ipc/QueueName must be set")
	}
	return nil
}
