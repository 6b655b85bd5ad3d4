// Package fixproto parses the gateway's simplified FIX tag=value dialect and
// dispatches recognized message types into IPC frames on the ring.
//
// FIX session semantics — checksums, sequence numbers, resend — are out of
// scope; only the five tags New Order Single needs are decoded.
package fixproto

import (
	"bytes"
	"strconv"

	"github.com/shopspring/decimal"

	"ordergateway/internal/gwerr"
)

const (
	tagMsgType = "35"
	tagSymbol  = "55"
	tagSide    = "54"
	tagPrice   = "44"
	tagQty     = "38"
)

// Side is the normalized buy/sell direction of a parsed order.
type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

// priceScale matches the ×10000 fixed-point transport format from SPEC_FULL.
const priceScale = 10000

// Frame is the parsed form of one FIX message. It is transient: built per
// packet by Parse and dropped once dispatched.
type Frame struct {
	MsgType  string
	Symbol   string
	Side     Side
	Price    int64 // fixed-point, ×10000
	Quantity int64
}

// Parse decodes one SOH-delimited tag=value FIX message. It performs a
// single pass over msg, extracting only the tags the dispatcher needs
// (grounded on the single-pass field extraction used for FIX market-data
// parsing in the reference corpus). Segments with no '=' are skipped
// silently; a missing or empty tag 35 makes the frame invalid.
func Parse(msg []byte) (*Frame, error) {
	f := &Frame{}
	haveMsgType := false

	var sideRaw, priceRaw, qtyRaw string
	haveSide, havePrice, haveQty := false, false, false

	pos := 0
	n := len(msg)
	for pos < n {
		segEnd := bytes.IndexByte(msg[pos:], 0x01)
		var seg []byte
		var next int
		if segEnd == -1 {
			seg = msg[pos:]
			next = n
		} else {
			seg = msg[pos : pos+segEnd]
			next = pos + segEnd + 1
		}

		eq := bytes.IndexByte(seg, '=')
		if eq == -1 {
			// malformed segment, no '=' — resync at the next SOH boundary
			// rather than letting a later '=' bleed the tag across segments.
			pos = next
			continue
		}
		tag := string(seg[:eq])
		value := string(seg[eq+1:])

		switch tag {
		case tagMsgType:
			f.MsgType = value
			haveMsgType = value != ""
		case tagSymbol:
			f.Symbol = value
		case tagSide:
			sideRaw = value
			haveSide = true
		case tagPrice:
			priceRaw = value
			havePrice = true
		case tagQty:
			qtyRaw = value
			haveQty = true
		}
		// unknown tags are skipped silently

		pos = next
	}

	if !haveMsgType {
		return nil, gwerr.New(gwerr.ParseError, "fix", errMissingMsgType)
	}

	if haveSide {
		side, err := parseSide(sideRaw)
		if err != nil {
			return nil, err
		}
		f.Side = side
	}

	if havePrice {
		price, err := parsePrice(priceRaw)
		if err != nil {
			return nil, err
		}
		f.Price = price
	}

	if haveQty {
		qty, err := strconv.ParseInt(qtyRaw, 10, 64)
		if err != nil {
			return nil, gwerr.New(gwerr.ParseError, "fix tag 38", err)
		}
		f.Quantity = qty
	}

	return f, nil
}

// parseSide maps FIX tag 54: "1"=buy, "2"=sell. Any other value is a
// ParseError rather than a silent default, per the binding resolution of the
// distilled spec's open question on unrecognized side values.
func parseSide(raw string) (Side, error) {
	switch raw {
	case "1":
		return SideBuy, nil
	case "2":
		return SideSell, nil
	default:
		return 0, gwerr.New(gwerr.ParseError, "fix tag 54: unrecognized side "+strconv.Quote(raw), nil)
	}
}

// parsePrice decodes a decimal price string exactly (no float64 lossiness)
// and scales it to the ×10000 fixed-point transport representation, truncating
// rather than rounding any sub-unit remainder.
func parsePrice(raw string) (int64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, gwerr.New(gwerr.ParseError, "fix tag 44", err)
	}
	scaled := d.Mul(decimal.NewFromInt(priceScale))
	return scaled.Truncate(0).IntPart(), nil
}

var errMissingMsgType = missingMsgTypeErr{}

type missingMsgTypeErr struct{}

func (missingMsgTypeErr) Error() string { return "tag 35 missing or empty" }
