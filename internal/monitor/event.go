// Package monitor implements the gateway's read-only order-flow monitoring
// feed: a websocket endpoint that lets an operator subscribe to a symbol and
// watch New Order Single events flow through the dispatcher in real time.
// It is a supplementary feature, not part of the ring's core contract — it
// observes what C3 forwards but never writes to the ring itself.
package monitor

// OrderFlowEvent is the DTO broadcast to subscribed websocket clients and,
// for cross-process fan-out, published on the queue's redis channel. It
// mirrors the shape of the reference OrderEvent struct, adapted from an
// account-fill event to an order-entry event.
type OrderFlowEvent struct {
	OrderID  uint64 `json:"orderId"`
	ClientID int64  `json:"clientId"`
	Symbol   string `json:"symbol"`
	Side     uint64 `json:"side"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}
