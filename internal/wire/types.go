// Package wire implements the on-wire IpcFrame encoding carried inside ring
// slots: a fixed header followed by a sequence of tag-length-value fields.
package wire

// MsgType identifies the kind of message a frame carries.
type MsgType uint16

const (
	MsgNone      MsgType = 0
	MsgNewOrder  MsgType = 1
	MsgCancel    MsgType = 2
	MsgTrade     MsgType = 3
	MsgBookDelta MsgType = 4
)

// FieldType tags the wire representation of a field's value.
type FieldType uint8

const (
	FieldInt64  FieldType = 1
	FieldUint64 FieldType = 2
	FieldDouble FieldType = 3
	FieldString FieldType = 4
	FieldBytes  FieldType = 5
)

// FieldID identifies a field within a message.
type FieldID int16

const (
	FieldSymbol   FieldID = 1
	FieldSide     FieldID = 2 // 0=buy, 1=sell
	FieldPrice    FieldID = 3
	FieldQty      FieldID = 4
	FieldClientID FieldID = 5
	FieldOrderID  FieldID = 6
	FieldTIF      FieldID = 7
)

// Side values stored under FieldSide.
const (
	SideBuy  uint64 = 0
	SideSell uint64 = 1
)

// TIF is the time-in-force value stored under FieldTIF.
type TIF uint64

// TIF values stored under FieldTIF.
const (
	TIFDay TIF = 0
)
