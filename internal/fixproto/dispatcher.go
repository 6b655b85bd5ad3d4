package fixproto

import (
	"log/slog"
	"sync/atomic"

	"ordergateway/internal/queue"
	"ordergateway/internal/wire"
)

// RawPacket is one read of client bytes handed off by the TCP listener.
type RawPacket struct {
	ClientID int
	Bytes    []byte
}

// RingWriter is the subset of *ipc.Producer the dispatcher depends on.
type RingWriter interface {
	Write(data []byte) bool
}

// ForwardedOrder is emitted on the dispatcher's monitor sink for every
// New Order Single successfully written to the ring. It carries the same
// fields as the IpcFrame, decoded, purely for observability.
type ForwardedOrder struct {
	OrderID  uint64
	ClientID int
	Symbol   string
	Side     uint64
	Price    int64
	Quantity int64
}

// Dispatcher is C3: it drains RawPackets from the ingress queue, parses each
// as FIX, and translates New Order Single into an IpcFrame pushed to the
// ring. It owns the monotonic order-id counter shared across every order it
// emits.
type Dispatcher struct {
	in     *queue.Queue
	ring   RingWriter
	log    *slog.Logger
	nextID atomic.Uint64

	// sink, if non-nil, receives a ForwardedOrder for every order the ring
	// accepts. The send is non-blocking: a full sink drops the event and
	// logs at INFO, never slowing the ring-write path (spec's monitor design
	// note — this must never affect Full/drop accounting on the ring itself).
	sink chan<- ForwardedOrder
}

// NewDispatcher wires a dispatcher to its ingress queue and ring producer.
// The order-id counter starts at 1.
func NewDispatcher(in *queue.Queue, ring RingWriter, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{in: in, ring: ring, log: log}
	d.nextID.Store(1)
	return d
}

// SetMonitorSink attaches a buffered channel that receives a copy of every
// order forwarded to the ring, for the read-only order-flow monitor.
func (d *Dispatcher) SetMonitorSink(sink chan<- ForwardedOrder) {
	d.sink = sink
}

// Run drains the ingress queue until it reports drained, dispatching each
// packet in turn. It returns when the queue is closed and empty.
func (d *Dispatcher) Run() {
	for {
		pkt, drained := d.in.Pop()
		if drained {
			d.log.Info("dispatcher: ingress drained, exiting")
			return
		}
		d.handle(pkt.(RawPacket))
	}
}

// handle parses one raw packet as FIX and dispatches by message type.
func (d *Dispatcher) handle(pkt RawPacket) {
	frame, err := Parse(pkt.Bytes)
	if err != nil {
		d.log.Warn("dispatcher: parse error", "client", pkt.ClientID, "error", err)
		return
	}

	switch frame.MsgType {
	case "D": // New Order Single
		d.handleNewOrder(pkt.ClientID, frame)
	case "A": // Logon
		d.log.Info("dispatcher: logon", "client", pkt.ClientID)
	default:
		d.log.Info("dispatcher: unhandled message type", "client", pkt.ClientID, "msgType", frame.MsgType)
	}
}

func (d *Dispatcher) handleNewOrder(clientID int, f *Frame) {
	// The wire frame has to carry the id it is stamped with, so the next id
	// is read here without consuming it — the counter only advances once
	// d.ring.Write actually succeeds, so a ring-full drop leaves no gap in
	// the sequence of ids that were ever dispatched.
	orderID := d.nextID.Load()

	m := wire.NewMessage(wire.MsgNewOrder)
	m.AddString(wire.FieldSymbol, f.Symbol)
	m.AddUint64(wire.FieldSide, sideToWire(f.Side))
	m.AddInt64(wire.FieldPrice, f.Price)
	m.AddInt64(wire.FieldQty, f.Quantity)
	m.AddInt64(wire.FieldClientID, int64(clientID))
	m.AddUint64(wire.FieldOrderID, orderID)
	m.AddUint64(wire.FieldTIF, uint64(wire.TIFDay))

	buf := m.Encode()
	if !d.ring.Write(buf) {
		d.log.Warn("dispatcher: ring full, dropping order", "client", clientID, "symbol", f.Symbol, "orderId", orderID)
		return
	}
	d.nextID.Add(1)
	d.log.Info("dispatcher: order forwarded", "client", clientID, "symbol", f.Symbol, "orderId", orderID)

	if d.sink != nil {
		select {
		case d.sink <- ForwardedOrder{
			OrderID:  orderID,
			ClientID: clientID,
			Symbol:   f.Symbol,
			Side:     sideToWire(f.Side),
			Price:    f.Price,
			Quantity: f.Quantity,
		}:
		default:
			d.log.Info("dispatcher: monitor sink full, dropping event", "orderId", orderID)
		}
	}
}

func sideToWire(s Side) uint64 {
	if s == SideSell {
		return wire.SideSell
	}
	return wire.SideBuy
}
