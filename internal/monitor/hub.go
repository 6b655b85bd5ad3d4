package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-rendezvous"
)

func hashString(s string) uint64 { return xxhash.Sum64String(s) }

func encodeEvent(ev OrderFlowEvent, log *slog.Logger) []byte {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error("monitor: marshal event failed", "error", err)
		return nil
	}
	return b
}

// Client is anything the hub can push a broadcast frame to. Adapted from the
// ClientInterface in the reference router: a websocket connection wraps a
// send channel so the hub's broadcast loop never blocks on a slow socket.
type Client interface {
	SendCh() chan []byte
}

// shard owns one partition of the symbol space, run on its own goroutine so
// a slow subscriber on one symbol cannot back up broadcasts for another.
type shard struct {
	mu          sync.Mutex
	subscribers map[string][]Client // symbol -> subscribed clients
	register    chan subscription
	unregister  chan subscription
	broadcast   chan OrderFlowEvent
}

type subscription struct {
	symbol string
	client Client
}

// Hub fans out OrderFlowEvents to subscribed websocket clients, sharded by
// symbol via rendezvous hashing (§ SPEC_FULL supplemented feature) so
// broadcast throughput scales with shard count instead of funneling every
// symbol through one goroutine, unlike the reference OrderEventsHub.
type Hub struct {
	shards    []*shard
	shardByID map[string]*shard
	hasher    *rendezvous.Rendezvous
	log       *slog.Logger
}

// NewHub creates a hub with n shards.
func NewHub(n int, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	if n <= 0 {
		n = 1
	}
	names := make([]string, n)
	shards := make([]*shard, n)
	byID := make(map[string]*shard, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("shard-%d", i)
		names[i] = name
		s := &shard{
			subscribers: make(map[string][]Client),
			register:    make(chan subscription, 256),
			unregister:  make(chan subscription, 256),
			broadcast:   make(chan OrderFlowEvent, 4096),
		}
		shards[i] = s
		byID[name] = s
	}
	return &Hub{
		shards:    shards,
		shardByID: byID,
		hasher:    rendezvous.New(names, hashString),
		log:       log,
	}
}

// Start launches every shard's event loop.
func (h *Hub) Start() {
	for i, s := range h.shards {
		go h.runShard(i, s)
	}
}

func (h *Hub) runShard(idx int, s *shard) {
	for {
		select {
		case sub := <-s.register:
			s.subscribers[sub.symbol] = append(s.subscribers[sub.symbol], sub.client)
		case sub := <-s.unregister:
			clients := s.subscribers[sub.symbol]
			kept := clients[:0]
			for _, c := range clients {
				if c != sub.client {
					kept = append(kept, c)
				}
			}
			if len(kept) == 0 {
				delete(s.subscribers, sub.symbol)
			} else {
				s.subscribers[sub.symbol] = kept
			}
		case ev := <-s.broadcast:
			payload := encodeEvent(ev, h.log)
			if payload == nil {
				continue
			}
			for _, c := range s.subscribers[ev.Symbol] {
				select {
				case c.SendCh() <- payload:
				default:
					h.log.Warn("monitor: dropping event for slow subscriber", "shard", idx, "symbol", ev.Symbol)
				}
			}
		}
	}
}

// Subscribe registers client for updates on symbol.
func (h *Hub) Subscribe(symbol string, client Client) {
	h.shardFor(symbol).register <- subscription{symbol: symbol, client: client}
}

// Unsubscribe removes client from symbol's subscriber list.
func (h *Hub) Unsubscribe(symbol string, client Client) {
	h.shardFor(symbol).unregister <- subscription{symbol: symbol, client: client}
}

// Publish fans ev out to every subscriber of ev.Symbol.
func (h *Hub) Publish(ev OrderFlowEvent) {
	h.shardFor(ev.Symbol).broadcast <- ev
}

func (h *Hub) shardFor(symbol string) *shard {
	return h.shardByID[h.hasher.Lookup(symbol)]
}
